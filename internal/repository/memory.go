package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Stephilip2022/wotc-platform-sub004/internal/domain"
)

// MemorySessionRepository keeps sessions in a map. The mutex only guards map
// access; each method is one compare-and-set.
type MemorySessionRepository struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]domain.ImportSession
	opts     sessionOptions
}

// NewMemorySessionRepository returns an empty in-memory session store.
func NewMemorySessionRepository(opts ...SessionOption) *MemorySessionRepository {
	return &MemorySessionRepository{
		sessions: make(map[uuid.UUID]domain.ImportSession),
		opts:     newSessionOptions(opts),
	}
}

func (r *MemorySessionRepository) Create(_ context.Context, session domain.ImportSession) (domain.ImportSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.sessions[session.ID]; exists {
		return domain.ImportSession{}, fmt.Errorf("session %s already exists", session.ID)
	}
	session.ColumnMappings = session.ColumnMappings.Clone()
	r.sessions[session.ID] = session
	return session, nil
}

func (r *MemorySessionRepository) GetByID(_ context.Context, id uuid.UUID) (domain.ImportSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[id]
	if !ok {
		return domain.ImportSession{}, fmt.Errorf("session %s: %w", id, domain.ErrSessionNotFound)
	}
	return r.opts.visible(session), nil
}

func (r *MemorySessionRepository) SaveMapping(_ context.Context, session domain.ImportSession, expectedRevision int) (domain.ImportSession, error) {
	return r.update(session.ID, func(current *domain.ImportSession) bool {
		if current.MappingRevision != expectedRevision || current.Status.IsTerminal() || r.opts.claimHeld(*current) {
			return false
		}
		current.ColumnMappings = session.ColumnMappings.Clone()
		current.MatchStrategy = session.MatchStrategy
		current.MappingRevision = session.MappingRevision
		if current.Status == domain.SessionStatusCreated {
			current.Status = domain.SessionStatusMapped
		}
		current.LastPreview = nil
		current.CommitClaimedAt = nil
		return true
	})
}

func (r *MemorySessionRepository) RecordPreview(_ context.Context, id uuid.UUID, summary domain.PreviewSummary) (domain.ImportSession, error) {
	return r.update(id, func(current *domain.ImportSession) bool {
		if current.MappingRevision != summary.MappingRevision || r.opts.claimHeld(*current) {
			return false
		}
		if current.Status != domain.SessionStatusMapped && current.Status != domain.SessionStatusPreviewed {
			return false
		}
		current.Status = domain.SessionStatusPreviewed
		current.RowCount = summary.TotalRows
		current.LastPreview = &summary
		current.CommitClaimedAt = nil
		return true
	})
}

func (r *MemorySessionRepository) ClaimCommit(_ context.Context, id uuid.UUID, revision int) (domain.ImportSession, error) {
	return r.update(id, func(current *domain.ImportSession) bool {
		if current.Status != domain.SessionStatusPreviewed || r.opts.claimHeld(*current) || current.MappingRevision != revision {
			return false
		}
		now := r.opts.now().UTC()
		current.CommitClaimedAt = &now
		return true
	})
}

func (r *MemorySessionRepository) ReleaseCommit(_ context.Context, id uuid.UUID, claimedAt time.Time) error {
	_, err := r.update(id, func(current *domain.ImportSession) bool {
		if current.Status != domain.SessionStatusPreviewed || !sameClaim(current.CommitClaimedAt, claimedAt) {
			return false
		}
		current.CommitClaimedAt = nil
		return true
	})
	return err
}

func (r *MemorySessionRepository) CompleteCommit(_ context.Context, id uuid.UUID, claimedAt time.Time, committedCount int) (domain.ImportSession, error) {
	return r.update(id, func(current *domain.ImportSession) bool {
		if current.Status != domain.SessionStatusPreviewed || !sameClaim(current.CommitClaimedAt, claimedAt) {
			return false
		}
		now := r.opts.now().UTC()
		current.Status = domain.SessionStatusCommitted
		current.CommittedCount = committedCount
		current.CommitClaimedAt = nil
		current.CompletedAt = &now
		return true
	})
}

func (r *MemorySessionRepository) Abort(_ context.Context, id uuid.UUID) (domain.ImportSession, error) {
	return r.update(id, func(current *domain.ImportSession) bool {
		if current.Status.IsTerminal() || r.opts.claimHeld(*current) {
			return false
		}
		now := r.opts.now().UTC()
		current.Status = domain.SessionStatusAborted
		current.CommitClaimedAt = nil
		current.CompletedAt = &now
		return true
	})
}

func (r *MemorySessionRepository) update(id uuid.UUID, apply func(*domain.ImportSession) bool) (domain.ImportSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.sessions[id]
	if !ok {
		return domain.ImportSession{}, fmt.Errorf("session %s: %w", id, domain.ErrSessionNotFound)
	}
	if !apply(&current) {
		return domain.ImportSession{}, fmt.Errorf("session %s: %w", id, ErrConflict)
	}
	current.UpdatedAt = r.opts.now().UTC()
	r.sessions[id] = current
	return r.opts.visible(current), nil
}

func sameClaim(held *time.Time, claimedAt time.Time) bool {
	return held != nil && held.Equal(claimedAt)
}

// MemoryTemplateRepository keeps templates in insertion order.
type MemoryTemplateRepository struct {
	mu        sync.Mutex
	templates []domain.MappingTemplate
}

// NewMemoryTemplateRepository returns an empty in-memory template store.
func NewMemoryTemplateRepository() *MemoryTemplateRepository {
	return &MemoryTemplateRepository{}
}

func (r *MemoryTemplateRepository) Create(_ context.Context, template domain.MappingTemplate) (domain.MappingTemplate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	template.ColumnMappings = template.ColumnMappings.Clone()
	r.templates = append(r.templates, template)
	return template, nil
}

func (r *MemoryTemplateRepository) GetByID(_ context.Context, id uuid.UUID) (domain.MappingTemplate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, template := range r.templates {
		if template.ID == id {
			template.ColumnMappings = template.ColumnMappings.Clone()
			return template, nil
		}
	}
	return domain.MappingTemplate{}, fmt.Errorf("template %s: %w", id, domain.ErrTemplateNotFound)
}

func (r *MemoryTemplateRepository) ListByEmployer(_ context.Context, employerID uuid.UUID) ([]domain.MappingTemplate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	templates := []domain.MappingTemplate{}
	for _, template := range r.templates {
		if template.EmployerID == employerID {
			template.ColumnMappings = template.ColumnMappings.Clone()
			templates = append(templates, template)
		}
	}
	return templates, nil
}

// MemoryImportLogRepository collects log entries in memory.
type MemoryImportLogRepository struct {
	mu      sync.Mutex
	entries []domain.ImportLogEntry
}

// NewMemoryImportLogRepository returns an empty in-memory import log.
func NewMemoryImportLogRepository() *MemoryImportLogRepository {
	return &MemoryImportLogRepository{}
}

func (r *MemoryImportLogRepository) Record(_ context.Context, entries []domain.ImportLogEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	for _, entry := range entries {
		if entry.ID == uuid.Nil {
			entry.ID = uuid.New()
		}
		if entry.CreatedAt.IsZero() {
			entry.CreatedAt = now
		}
		r.entries = append(r.entries, entry)
	}
	return nil
}

func (r *MemoryImportLogRepository) ListBySession(_ context.Context, sessionID uuid.UUID, limit int, offset int) ([]domain.ImportLogEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if limit <= 0 {
		limit = 200
	}
	if offset < 0 {
		offset = 0
	}
	matched := []domain.ImportLogEntry{}
	for _, entry := range r.entries {
		if entry.SessionID == sessionID {
			matched = append(matched, entry)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return rowNumberOf(matched[i]) < rowNumberOf(matched[j])
	})
	if offset >= len(matched) {
		return []domain.ImportLogEntry{}, nil
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], nil
}

func rowNumberOf(entry domain.ImportLogEntry) int {
	if entry.RowNumber == nil {
		return 0
	}
	return *entry.RowNumber
}

// normalizeEmail lower-cases and trims an address for comparison.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
