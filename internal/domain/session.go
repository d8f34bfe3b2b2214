package domain

import (
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
)

// SessionStatus is the lifecycle state of an import session.
type SessionStatus string

const (
	SessionStatusCreated   SessionStatus = "created"
	SessionStatusMapped    SessionStatus = "mapped"
	SessionStatusPreviewed SessionStatus = "previewed"
	SessionStatusCommitted SessionStatus = "committed"
	SessionStatusAborted   SessionStatus = "aborted"
)

// IsTerminal reports whether no further transitions are possible.
func (s SessionStatus) IsTerminal() bool {
	return s == SessionStatusCommitted || s == SessionStatusAborted
}

// CanTransition reports whether moving from s to next is allowed. Staying in
// place is only allowed for previewed (a repeated preview).
func (s SessionStatus) CanTransition(next SessionStatus) bool {
	if s.IsTerminal() {
		return false
	}
	switch next {
	case SessionStatusAborted:
		return true
	case SessionStatusMapped:
		return s == SessionStatusCreated
	case SessionStatusPreviewed:
		return s == SessionStatusMapped || s == SessionStatusPreviewed
	case SessionStatusCommitted:
		return s == SessionStatusPreviewed
	default:
		return false
	}
}

// PreviewSummary is what a session remembers about its latest preview.
type PreviewSummary struct {
	MappingRevision int       `json:"mappingRevision"`
	TotalRows       int       `json:"totalRows"`
	SuccessCount    int       `json:"successCount"`
	ErrorCount      int       `json:"errorCount"`
	GeneratedAt     time.Time `json:"generatedAt"`
}

// ImportSession is the aggregate root tracking one import attempt.
type ImportSession struct {
	ID              uuid.UUID        `json:"id"`
	EmployerID      uuid.UUID        `json:"employerId"`
	FileName        string           `json:"fileName"`
	RowCount        int              `json:"rowCount"`
	DetectedColumns []DetectedColumn `json:"detectedColumns"`
	ColumnMappings  FieldMapping     `json:"columnMappings"`
	MatchStrategy   MatchStrategy    `json:"matchStrategy"`
	Status          SessionStatus    `json:"status"`
	MappingRevision int              `json:"mappingRevision"`
	LastPreview     *PreviewSummary  `json:"lastPreview,omitempty"`
	CommitClaimedAt *time.Time       `json:"commitClaimedAt,omitempty"`
	CommittedCount  int              `json:"committedCount"`
	CreatedAt       time.Time        `json:"createdAt"`
	UpdatedAt       time.Time        `json:"updatedAt"`
	CompletedAt     *time.Time       `json:"completedAt,omitempty"`
}

// NewImportSession creates a session in the created state.
func NewImportSession(employerID uuid.UUID, fileName string, rowCount int, columns []DetectedColumn) ImportSession {
	now := time.Now().UTC()
	return ImportSession{
		ID:              uuid.New(),
		EmployerID:      employerID,
		FileName:        fileName,
		RowCount:        rowCount,
		DetectedColumns: columns,
		ColumnMappings:  FieldMapping{},
		MatchStrategy:   MatchAuto,
		Status:          SessionStatusCreated,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// ColumnNames returns the detected header names in order.
func (s ImportSession) ColumnNames() []string {
	names := make([]string, len(s.DetectedColumns))
	for i, column := range s.DetectedColumns {
		names[i] = column.Name
	}
	return names
}

// WithMapping returns a copy carrying a freshly saved mapping. The previous
// preview no longer describes the session and is dropped. Re-saving the
// current mapping and strategy is a no-op.
func (s ImportSession) WithMapping(mapping FieldMapping, strategy MatchStrategy) (ImportSession, error) {
	if s.Status.IsTerminal() {
		return s, errors.Wrapf(ErrSessionTerminal, "session %s is %s", s.ID, s.Status)
	}
	if s.CommitClaimedAt != nil {
		return s, errors.Wrapf(ErrCommitInProgress, "session %s", s.ID)
	}
	if s.Status != SessionStatusCreated && s.MatchStrategy == strategy && s.ColumnMappings.Equal(mapping) {
		return s, nil
	}
	next := s
	next.ColumnMappings = mapping.Clone()
	next.MatchStrategy = strategy
	next.MappingRevision = s.MappingRevision + 1
	next.LastPreview = nil
	if s.Status == SessionStatusCreated {
		next.Status = SessionStatusMapped
	}
	next.UpdatedAt = time.Now().UTC()
	return next, nil
}

// WithPreview returns a copy recording a preview of the given revision.
func (s ImportSession) WithPreview(summary PreviewSummary) (ImportSession, error) {
	if !s.Status.CanTransition(SessionStatusPreviewed) {
		return s, errors.Wrapf(ErrInvalidTransition, "cannot preview session in %s state", s.Status)
	}
	next := s
	next.Status = SessionStatusPreviewed
	next.LastPreview = &summary
	next.UpdatedAt = time.Now().UTC()
	return next, nil
}

// CommitReady checks the commit guard without changing anything.
func (s ImportSession) CommitReady() error {
	if s.Status.IsTerminal() {
		return errors.Wrapf(ErrSessionTerminal, "session %s is %s", s.ID, s.Status)
	}
	if s.Status != SessionStatusPreviewed {
		return errors.Wrapf(ErrInvalidTransition, "cannot commit session in %s state", s.Status)
	}
	if s.CommitClaimedAt != nil {
		return errors.Wrapf(ErrCommitInProgress, "session %s", s.ID)
	}
	if s.LastPreview == nil || s.LastPreview.MappingRevision != s.MappingRevision {
		return errors.Wrapf(ErrPreviewRequired, "session %s mapping revision %d", s.ID, s.MappingRevision)
	}
	if s.LastPreview.SuccessCount == 0 {
		return errors.Wrapf(ErrNoValidRows, "session %s", s.ID)
	}
	return nil
}

// CheckTransition returns a typed state error when s cannot move to next.
func (s ImportSession) CheckTransition(next SessionStatus) error {
	if s.Status.IsTerminal() {
		return errors.Wrapf(ErrSessionTerminal, "session %s is %s", s.ID, s.Status)
	}
	if !s.Status.CanTransition(next) {
		return errors.Wrapf(ErrInvalidTransition, "%s -> %s", s.Status, next)
	}
	return nil
}
