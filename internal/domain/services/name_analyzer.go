package services

import (
	"fmt"
	"math"
	"sort"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/ochairo/pkgguard/internal/domain/entities"
	"github.com/ochairo/pkgguard/internal/domain/interfaces/services"
)

// MaxSimilarityMatches caps how many resemblances are reported per name
const MaxSimilarityMatches = 3

const nameLocation = "package name"

type popularEntry struct {
	entities.PopularPackage
	normalized string
	soundex    string
	grams      map[string]struct{}
}

// nameAnalyzer implements NameAnalyzer over a signature database.
// Popular names are normalized once; results are memoized per raw candidate.
type nameAnalyzer struct {
	db      *entities.SignatureDatabase
	popular []popularEntry
	cache   *lru.Cache[string, []entities.SimilarityMatch]
}

// NewNameAnalyzer creates the name-similarity engine. A cacheSize of zero disables memoization.
func NewNameAnalyzer(db *entities.SignatureDatabase, cacheSize int) services.NameAnalyzer {
	a := &nameAnalyzer{db: db}
	for _, p := range db.PopularPackages {
		norm := NormalizeName(p.Name)
		a.popular = append(a.popular, popularEntry{
			PopularPackage: p,
			normalized:     norm,
			soundex:        Soundex(norm),
			grams:          bigrams(norm),
		})
	}
	if cacheSize > 0 {
		// lru.New only fails on a non-positive size
		a.cache, _ = lru.New[string, []entities.SimilarityMatch](cacheSize)
	}
	return a
}

// DetectTyposquatting compares candidate with every popular name. For each
// target only the first firing method is kept, in the order edit distance,
// bigram Jaccard, phonetic. A homoglyph-heavy candidate adds one HOMOGLYPH
// match against the popular name nearest to its Latin skeleton.
func (a *nameAnalyzer) DetectTyposquatting(candidate string) []entities.SimilarityMatch {
	if a.cache != nil {
		if cached, ok := a.cache.Get(candidate); ok {
			return append([]entities.SimilarityMatch(nil), cached...)
		}
	}

	matches := a.detect(candidate)
	if a.cache != nil {
		a.cache.Add(candidate, matches)
	}
	return append([]entities.SimilarityMatch(nil), matches...)
}

func (a *nameAnalyzer) detect(candidate string) []entities.SimilarityMatch {
	name := NormalizeName(candidate)
	matched := make(map[string]bool)
	var matches []entities.SimilarityMatch

	if name != "" {
		nameSoundex := Soundex(name)
		nameGrams := bigrams(name)
		threshold := editThreshold(len(name))

		for _, p := range a.popular {
			if m, ok := compareWith(name, nameSoundex, nameGrams, threshold, p); ok {
				matches = append(matches, m)
				matched[p.Name] = true
			}
		}
	}

	if ratio, skeleton := HomoglyphRatio(candidate); ratio > homoglyphThreshold {
		if target, ok := a.nearest(skeleton); ok && !matched[target.Name] {
			matches = append(matches, entities.SimilarityMatch{
				TargetName: target.Name,
				Method:     entities.MethodHomoglyph,
				Score:      ratio,
				RiskTier:   target.Risk,
				Message: fmt.Sprintf("Homoglyph attack: %d%% look-alike characters imitating '%s'",
					percent(ratio), target.Name),
			})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].RiskTier > matches[j].RiskTier
	})
	if len(matches) > MaxSimilarityMatches {
		matches = matches[:MaxSimilarityMatches]
	}
	return matches
}

func compareWith(name, nameSoundex string, nameGrams map[string]struct{}, threshold int, p popularEntry) (entities.SimilarityMatch, bool) {
	m := entities.SimilarityMatch{TargetName: p.Name, RiskTier: p.Risk}

	dist := Levenshtein(name, p.normalized)
	longest := max(len(name), len(p.normalized))
	similarity := 1 - float64(dist)/float64(longest)
	if dist > 0 && dist <= threshold && similarity > 0.6 {
		m.Method = entities.MethodEditDistance
		m.Score = float64(dist)
		m.Message = fmt.Sprintf("Similar to '%s' (%d edits, %d%% similar)", p.Name, dist, percent(similarity))
		return m, true
	}

	if j := jaccard(nameGrams, p.grams); j > 0.7 && j < 1.0 {
		m.Method = entities.MethodNgramJaccard
		m.Score = j
		m.Message = fmt.Sprintf("N-gram similarity to '%s' (%d%%)", p.Name, percent(j))
		return m, true
	}

	if name != p.normalized && nameSoundex == p.soundex {
		m.Method = entities.MethodPhonetic
		m.Score = 1
		m.Message = fmt.Sprintf("Phonetically similar to '%s' (%s)", p.Name, nameSoundex)
		return m, true
	}

	return m, false
}

// nearest returns the popular package with the smallest edit distance to skeleton
func (a *nameAnalyzer) nearest(skeleton string) (entities.PopularPackage, bool) {
	if skeleton == "" || len(a.popular) == 0 {
		return entities.PopularPackage{}, false
	}
	best, bestDist := a.popular[0].PopularPackage, math.MaxInt
	for _, p := range a.popular {
		if d := Levenshtein(skeleton, p.normalized); d < bestDist {
			best, bestDist = p.PopularPackage, d
		}
	}
	return best, true
}

// InspectSubject runs every name-level check on subject
func (a *nameAnalyzer) InspectSubject(subject entities.Subject) []entities.Finding {
	var findings []entities.Finding

	full := strings.ToLower(strings.TrimSpace(subject.Name))
	if full == "" {
		return nil
	}
	bare := full
	if i := strings.LastIndex(bare, "/"); i >= 0 {
		bare = bare[i+1:]
	}

	for _, m := range a.DetectTyposquatting(bare) {
		f := entities.NewFinding(entities.CategoryTyposquatting, m.RiskTier, m.Message, nameLocation)
		f.Location.Snippet = subject.Name
		findings = append(findings, f)
	}

	for _, token := range a.db.SuspiciousNameTokens {
		if strings.Contains(full, token) {
			findings = append(findings, entities.NewFinding(entities.CategorySignature, entities.SeverityHigh,
				fmt.Sprintf("Package name contains suspicious token: %s", token), nameLocation))
		}
	}

	for _, candidate := range uniqueStrings(full, bare) {
		if km, ok := a.db.IsKnownMalicious(candidate); ok {
			findings = append(findings, entities.NewFinding(entities.CategorySignature, entities.SeverityCritical,
				fmt.Sprintf("Known malicious package %s: %s", km.Name, km.Description), nameLocation))
			break
		}
	}

	return append(findings, a.inspectOwner(subject.Owner)...)
}

func (a *nameAnalyzer) inspectOwner(owner string) []entities.Finding {
	lower := strings.ToLower(strings.TrimSpace(owner))
	if lower == "" {
		return nil
	}

	var findings []entities.Finding
	for _, token := range a.db.SuspiciousOwnerTokens {
		if strings.Contains(lower, token) {
			findings = append(findings, entities.NewFinding(entities.CategorySignature, entities.SeverityHigh,
				fmt.Sprintf("Suspicious owner %s: contains %q", owner, token), "package owner"))
		}
	}
	for _, trusted := range a.db.TrustedOwners {
		if lower == trusted {
			findings = append(findings, entities.NewFinding(entities.CategorySignature, entities.SeverityInfo,
				fmt.Sprintf("Trusted owner: %s", owner), "package owner"))
			break
		}
	}
	return findings
}

func percent(f float64) int {
	return int(math.Round(f * 100))
}

func uniqueStrings(values ...string) []string {
	out := values[:0:0]
	seen := make(map[string]bool, len(values))
	for _, v := range values {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}
