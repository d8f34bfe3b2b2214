package repository

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/Stephilip2022/wotc-platform-sub004/internal/domain"
)

// ErrConflict is returned when a compare-and-set update finds the row in a
// different state than the caller expected. Callers reload and decide.
var ErrConflict = errors.New("concurrent modification")

// ImportSessionRepository persists import sessions. Every state change is a
// compare-and-set on the stored row. A commit claim older than the
// repository's claim TTL is treated as absent.
type ImportSessionRepository interface {
	Create(ctx context.Context, session domain.ImportSession) (domain.ImportSession, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.ImportSession, error)
	// SaveMapping stores the session's mapping, strategy and revision when the
	// stored revision still equals expectedRevision and the session is
	// neither terminal nor claimed. A created session becomes mapped; any
	// other status is left as stored.
	SaveMapping(ctx context.Context, session domain.ImportSession, expectedRevision int) (domain.ImportSession, error)
	// RecordPreview stores summary, sets the row count to summary.TotalRows and
	// moves the session to previewed when the stored revision equals
	// summary.MappingRevision.
	RecordPreview(ctx context.Context, id uuid.UUID, summary domain.PreviewSummary) (domain.ImportSession, error)
	// ClaimCommit marks a previewed, unclaimed session at revision as being
	// committed.
	ClaimCommit(ctx context.Context, id uuid.UUID, revision int) (domain.ImportSession, error)
	// ReleaseCommit clears the claim taken at claimedAt after a failed handoff.
	ReleaseCommit(ctx context.Context, id uuid.UUID, claimedAt time.Time) error
	// CompleteCommit moves a session still holding the claim taken at
	// claimedAt to committed.
	CompleteCommit(ctx context.Context, id uuid.UUID, claimedAt time.Time, committedCount int) (domain.ImportSession, error)
	// Abort moves a non-terminal, unclaimed session to aborted.
	Abort(ctx context.Context, id uuid.UUID) (domain.ImportSession, error)
}

// TemplateRepository stores immutable mapping templates.
type TemplateRepository interface {
	Create(ctx context.Context, template domain.MappingTemplate) (domain.MappingTemplate, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.MappingTemplate, error)
	// ListByEmployer returns templates in creation order.
	ListByEmployer(ctx context.Context, employerID uuid.UUID) ([]domain.MappingTemplate, error)
}

// ImportLogRepository stores rows excluded at commit for auditing.
type ImportLogRepository interface {
	Record(ctx context.Context, entries []domain.ImportLogEntry) error
	ListBySession(ctx context.Context, sessionID uuid.UUID, limit int, offset int) ([]domain.ImportLogEntry, error)
}

// EmployeeDirectory is the read-only view of existing employees. Lookups are
// scoped to one employer and return every hit so callers can detect
// ambiguity.
type EmployeeDirectory interface {
	FindByID(ctx context.Context, employerID uuid.UUID, employeeID string) ([]domain.Employee, error)
	// FindByIDs resolves many external ids at once, keyed by the requested id.
	FindByIDs(ctx context.Context, employerID uuid.UUID, employeeIDs []string) (map[string][]domain.Employee, error)
	FindBySSN(ctx context.Context, employerID uuid.UUID, ssnDigits string) ([]domain.Employee, error)
	FindByEmail(ctx context.Context, employerID uuid.UUID, email string) ([]domain.Employee, error)
	// SearchByName returns raw name candidates; scoring is the caller's job.
	SearchByName(ctx context.Context, employerID uuid.UUID, name string, limit int) ([]domain.Employee, error)
}
