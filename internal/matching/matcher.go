// Package matching resolves import rows to existing employees.
package matching

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/Stephilip2022/wotc-platform-sub004/internal/domain"
	"github.com/Stephilip2022/wotc-platform-sub004/internal/repository"
)

// Policy holds the fuzzy name thresholds.
type Policy struct {
	// HighThreshold is the score at or above which a name match is high confidence.
	HighThreshold float64
	// LowThreshold discards candidates scoring below it.
	LowThreshold float64
	// TieMargin makes the match ambiguous when the runner-up is this close.
	TieMargin float64
	// CandidateLimit caps how many name candidates are requested.
	CandidateLimit int
}

// DefaultPolicy returns the standard thresholds.
func DefaultPolicy() Policy {
	return Policy{
		HighThreshold:  0.85,
		LowThreshold:   0.75,
		TieMargin:      0.10,
		CandidateLimit: 200,
	}
}

// Matcher runs the identity cascade against an employee directory.
type Matcher struct {
	directory  repository.EmployeeDirectory
	similarity Similarity
	policy     Policy
}

// NewMatcher wires a matcher. A nil similarity uses LevenshteinSimilarity.
func NewMatcher(directory repository.EmployeeDirectory, similarity Similarity, policy Policy) *Matcher {
	if similarity == nil {
		similarity = LevenshteinSimilarity{}
	}
	if policy.CandidateLimit <= 0 {
		policy.CandidateLimit = DefaultPolicy().CandidateLimit
	}
	return &Matcher{directory: directory, similarity: similarity, policy: policy}
}

// WithDirectory returns a copy of m reading from directory. Previews use it
// to swap in a request-scoped batching directory.
func (m *Matcher) WithDirectory(directory repository.EmployeeDirectory) *Matcher {
	clone := *m
	clone.directory = directory
	return &clone
}

// stepOutcome is what one identity step learned.
type stepOutcome struct {
	attempted bool
	result    domain.MatchResult
	note      string
}

// Match resolves row to a single employee. Only directory failures are
// returned as errors; every data outcome is a MatchResult.
func (m *Matcher) Match(ctx context.Context, employerID uuid.UUID, row domain.MappedRow, strategy domain.MatchStrategy) (domain.MatchResult, error) {
	var (
		attempted []domain.MatchMethod
		notes     []string
	)
	for _, method := range strategy.Methods() {
		outcome, err := m.step(ctx, employerID, row, method)
		if err != nil {
			return domain.MatchResult{}, err
		}
		if !outcome.attempted {
			continue
		}
		attempted = append(attempted, method)
		if outcome.result.Matched {
			return outcome.result, nil
		}
		if outcome.note != "" {
			notes = append(notes, outcome.note)
		}
	}

	if len(attempted) == 0 {
		return domain.NewUnmatched(fmt.Sprintf("no identity values for strategy %s", strategy), nil), nil
	}
	return domain.NewUnmatched(strings.Join(notes, "; "), attempted), nil
}

func (m *Matcher) step(ctx context.Context, employerID uuid.UUID, row domain.MappedRow, method domain.MatchMethod) (stepOutcome, error) {
	switch method {
	case domain.MethodID:
		return m.matchByID(ctx, employerID, row)
	case domain.MethodSSN:
		return m.matchBySSN(ctx, employerID, row)
	case domain.MethodEmail:
		return m.matchByEmail(ctx, employerID, row)
	case domain.MethodName:
		return m.matchByName(ctx, employerID, row)
	default:
		return stepOutcome{}, nil
	}
}

func (m *Matcher) matchByID(ctx context.Context, employerID uuid.UUID, row domain.MappedRow) (stepOutcome, error) {
	if !row.EmployeeID.Present() {
		return stepOutcome{}, nil
	}
	hits, err := m.directory.FindByID(ctx, employerID, row.EmployeeID.Value)
	if err != nil {
		return stepOutcome{}, fmt.Errorf("employee lookup by id: %w", err)
	}
	return exactOutcome(domain.MethodID, hits), nil
}

func (m *Matcher) matchBySSN(ctx context.Context, employerID uuid.UUID, row domain.MappedRow) (stepOutcome, error) {
	digits := domain.DigitsOnly(row.SSN.Value)
	if !row.SSN.Mapped || digits == "" {
		return stepOutcome{}, nil
	}
	hits, err := m.directory.FindBySSN(ctx, employerID, digits)
	if err != nil {
		return stepOutcome{}, fmt.Errorf("employee lookup by ssn: %w", err)
	}
	return exactOutcome(domain.MethodSSN, hits), nil
}

func (m *Matcher) matchByEmail(ctx context.Context, employerID uuid.UUID, row domain.MappedRow) (stepOutcome, error) {
	if !row.Email.Present() {
		return stepOutcome{}, nil
	}
	email := strings.TrimSpace(row.Email.Value)
	candidates, err := m.directory.FindByEmail(ctx, employerID, email)
	if err != nil {
		return stepOutcome{}, fmt.Errorf("employee lookup by email: %w", err)
	}

	var hits []domain.Employee
	for _, candidate := range candidates {
		if strings.EqualFold(strings.TrimSpace(candidate.Email), email) {
			hits = append(hits, candidate)
		}
	}
	switch {
	case len(hits) == 1 && len(candidates) == 1:
		return stepOutcome{attempted: true, result: domain.NewMatch(hits[0], domain.MethodEmail, domain.ConfidenceExact, 1)}, nil
	case len(hits) == 1:
		return stepOutcome{attempted: true, result: domain.NewMatch(hits[0], domain.MethodEmail, domain.ConfidenceHigh, 1)}, nil
	case len(hits) > 1:
		return stepOutcome{attempted: true, note: fmt.Sprintf("email matches %d employees", len(hits))}, nil
	default:
		return stepOutcome{attempted: true, note: "no employee with this email"}, nil
	}
}

func (m *Matcher) matchByName(ctx context.Context, employerID uuid.UUID, row domain.MappedRow) (stepOutcome, error) {
	if !row.FirstName.Present() || !row.LastName.Present() {
		return stepOutcome{}, nil
	}
	query := NormalizeName(row.FirstName.Value + " " + row.LastName.Value)
	if query == "" {
		return stepOutcome{}, nil
	}

	candidates, err := m.directory.SearchByName(ctx, employerID, query, m.policy.CandidateLimit)
	if err != nil {
		return stepOutcome{}, fmt.Errorf("employee search by name: %w", err)
	}

	var (
		best      domain.Employee
		bestScore = -1.0
		scores    = make(map[uuid.UUID]float64, len(candidates))
	)
	for _, candidate := range candidates {
		if _, seen := scores[candidate.ID]; seen {
			continue
		}
		score := m.similarity.Score(query, NormalizeName(candidate.FullName()))
		if score < m.policy.LowThreshold {
			continue
		}
		scores[candidate.ID] = score
		if score > bestScore {
			best, bestScore = candidate, score
		}
	}
	if len(scores) == 0 {
		return stepOutcome{attempted: true, note: "no employee with a similar name"}, nil
	}

	for id, score := range scores {
		if id != best.ID && bestScore-score < m.policy.TieMargin {
			return stepOutcome{attempted: true, note: fmt.Sprintf("name is ambiguous between %d employees", countWithin(scores, bestScore, m.policy.TieMargin))}, nil
		}
	}

	tier := domain.ConfidenceLow
	if bestScore >= m.policy.HighThreshold {
		tier = domain.ConfidenceHigh
	}
	return stepOutcome{attempted: true, result: domain.NewMatch(best, domain.MethodName, tier, bestScore)}, nil
}

func exactOutcome(method domain.MatchMethod, hits []domain.Employee) stepOutcome {
	switch len(hits) {
	case 0:
		return stepOutcome{attempted: true, note: fmt.Sprintf("no employee with this %s", method)}
	case 1:
		return stepOutcome{attempted: true, result: domain.NewMatch(hits[0], method, domain.ConfidenceExact, 1)}
	default:
		return stepOutcome{attempted: true, note: fmt.Sprintf("%s matches %d employees", method, len(hits))}
	}
}

func countWithin(scores map[uuid.UUID]float64, best, margin float64) int {
	count := 0
	for _, score := range scores {
		if best-score < margin {
			count++
		}
	}
	return count
}
