// Package natsbus publishes finalized scan results on a NATS subject.
package natsbus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/ochairo/pkgguard/internal/domain/entities"
	"github.com/ochairo/pkgguard/internal/domain/interfaces"
)

// DefaultSubject is used when no subject is configured
const DefaultSubject = "pkgguard.scans"

// conn is the part of *nats.Conn the publisher needs
type conn interface {
	PublishMsg(msg *nats.Msg) error
	FlushTimeout(timeout time.Duration) error
}

// Publisher implements gateways.ResultSink over NATS
type Publisher struct {
	nc      conn
	close   func()
	subject string
	logger  interfaces.Logger
}

// Connect dials url and returns a publisher for subject
func Connect(url, subject string, logger interfaces.Logger) (*Publisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("pkgguard"),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(3),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", url, err)
	}
	p := newPublisher(nc, subject, logger)
	p.close = nc.Close
	return p, nil
}

func newPublisher(nc conn, subject string, logger interfaces.Logger) *Publisher {
	if subject == "" {
		subject = DefaultSubject
	}
	return &Publisher{nc: nc, close: func() {}, subject: subject, logger: interfaces.OrNoOp(logger)}
}

// Name identifies the sink in logs
func (p *Publisher) Name() string { return "nats" }

// Publish sends the result as JSON on "<subject>.<recommendation>" and
// waits for the server to acknowledge the flush
func (p *Publisher) Publish(ctx context.Context, result *entities.ScanResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode scan result: %w", err)
	}

	msg := nats.NewMsg(p.SubjectFor(result))
	msg.Header.Set("Nats-Msg-Id", result.ID)
	msg.Header.Set("Pkgguard-Recommendation", string(result.Recommendation))
	msg.Data = data

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("failed to publish scan result: %w", err)
	}
	if err := p.nc.PublishMsg(msg); err != nil {
		return fmt.Errorf("failed to publish scan result: %w", err)
	}

	timeout := 2 * time.Second
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
		if timeout <= 0 {
			return fmt.Errorf("failed to flush NATS connection: %w", context.DeadlineExceeded)
		}
	}
	if err := p.nc.FlushTimeout(timeout); err != nil {
		return fmt.Errorf("failed to flush NATS connection: %w", err)
	}

	p.logger.Debug("Published scan result", interfaces.F("subject", msg.Subject), interfaces.F("id", result.ID))
	return nil
}

// SubjectFor returns the subject a result is published on
func (p *Publisher) SubjectFor(result *entities.ScanResult) string {
	return p.subject + "." + string(result.Recommendation)
}

// Close drops the connection
func (p *Publisher) Close() {
	p.close()
}
