package natsbus

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ochairo/pkgguard/internal/domain/entities"
)

type fakeConn struct {
	msgs       []*nats.Msg
	publishErr error
	flushes    int
	timeouts   []time.Duration
}

func (f *fakeConn) PublishMsg(msg *nats.Msg) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	f.msgs = append(f.msgs, msg)
	return nil
}

func (f *fakeConn) FlushTimeout(timeout time.Duration) error {
	f.flushes++
	f.timeouts = append(f.timeouts, timeout)
	return nil
}

func blockResult() *entities.ScanResult {
	return entities.NewScanResult("scan-1",
		entities.Subject{Name: "evil", Path: "/tmp/evil", Source: "npm"},
		nil, 3,
		entities.Assessment{OverallRisk: entities.SeverityCritical, Recommendation: entities.RecommendBlock, RiskScore: 90},
		time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
}

func TestPublisher_Publish(t *testing.T) {
	fc := &fakeConn{}
	p := newPublisher(fc, "", nil)

	require.NoError(t, p.Publish(context.Background(), blockResult()))
	require.Len(t, fc.msgs, 1)

	msg := fc.msgs[0]
	assert.Equal(t, "pkgguard.scans.BLOCK", msg.Subject)
	assert.Equal(t, "scan-1", msg.Header.Get("Nats-Msg-Id"))
	assert.Equal(t, 1, fc.flushes)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(msg.Data, &decoded))
	assert.Equal(t, "BLOCK", decoded["recommendation"])
	assert.Equal(t, float64(90), decoded["riskScore"])
}

func TestPublisher_PublishError(t *testing.T) {
	fc := &fakeConn{publishErr: errors.New("connection closed")}
	p := newPublisher(fc, "audit.pkg", nil)

	err := p.Publish(context.Background(), blockResult())
	require.Error(t, err)
	assert.Equal(t, 0, fc.flushes)
	assert.Equal(t, "audit.pkg.BLOCK", p.SubjectFor(blockResult()))
}

func TestPublisher_PublishExpiredDeadline(t *testing.T) {
	fc := &fakeConn{}
	p := newPublisher(fc, "", nil)

	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	err := p.Publish(ctx, blockResult())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Empty(t, fc.msgs)
	assert.Equal(t, 0, fc.flushes)
}

func TestPublisher_PublishUsesRemainingDeadline(t *testing.T) {
	fc := &fakeConn{}
	p := newPublisher(fc, "", nil)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	require.NoError(t, p.Publish(ctx, blockResult()))
	require.Len(t, fc.timeouts, 1)
	assert.Greater(t, fc.timeouts[0], time.Duration(0))
	assert.LessOrEqual(t, fc.timeouts[0], time.Minute)
}
