package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Stephilip2022/wotc-platform-sub004/internal/domain"
)

func newSession(t *testing.T, repo *MemorySessionRepository) domain.ImportSession {
	t.Helper()
	session := domain.NewImportSession(uuid.New(), "hours.csv", 2, []domain.DetectedColumn{{Name: "Employee ID"}, {Name: "Hours"}})
	created, err := repo.Create(context.Background(), session)
	require.NoError(t, err)
	return created
}

func TestMemorySessionRepositorySaveMappingIsCompareAndSet(t *testing.T) {
	ctx := context.Background()
	repo := NewMemorySessionRepository()
	session := newSession(t, repo)

	mapped, err := session.WithMapping(domain.FieldMapping{"Employee ID": domain.FieldEmployeeID, "Hours": domain.FieldHours}, domain.MatchAuto)
	require.NoError(t, err)

	saved, err := repo.SaveMapping(ctx, mapped, session.MappingRevision)
	require.NoError(t, err)
	assert.Equal(t, domain.SessionStatusMapped, saved.Status)
	assert.Equal(t, 1, saved.MappingRevision)

	_, err = repo.SaveMapping(ctx, mapped, session.MappingRevision)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestMemorySessionRepositoryCommitClaimIsExclusive(t *testing.T) {
	ctx := context.Background()
	repo := NewMemorySessionRepository()
	session := newSession(t, repo)

	mapped, err := session.WithMapping(domain.FieldMapping{"Hours": domain.FieldHours}, domain.MatchAuto)
	require.NoError(t, err)
	_, err = repo.SaveMapping(ctx, mapped, 0)
	require.NoError(t, err)
	_, err = repo.RecordPreview(ctx, session.ID, domain.PreviewSummary{MappingRevision: 1, TotalRows: 2, SuccessCount: 1, ErrorCount: 1})
	require.NoError(t, err)

	claimed, err := repo.ClaimCommit(ctx, session.ID, 1)
	require.NoError(t, err)
	require.NotNil(t, claimed.CommitClaimedAt)

	_, err = repo.ClaimCommit(ctx, session.ID, 1)
	assert.ErrorIs(t, err, ErrConflict)

	_, err = repo.Abort(ctx, session.ID)
	assert.ErrorIs(t, err, ErrConflict, "claimed sessions cannot be aborted")

	assert.ErrorIs(t, repo.ReleaseCommit(ctx, session.ID, claimed.CommitClaimedAt.Add(time.Second)), ErrConflict,
		"only the holder of the claim can release it")
	require.NoError(t, repo.ReleaseCommit(ctx, session.ID, *claimed.CommitClaimedAt))
	reclaimed, err := repo.ClaimCommit(ctx, session.ID, 1)
	require.NoError(t, err)

	committed, err := repo.CompleteCommit(ctx, session.ID, *reclaimed.CommitClaimedAt, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.SessionStatusCommitted, committed.Status)
	assert.Nil(t, committed.CommitClaimedAt)
	assert.NotNil(t, committed.CompletedAt)

	_, err = repo.Abort(ctx, session.ID)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestMemorySessionRepositoryStalePreviewIsRejected(t *testing.T) {
	ctx := context.Background()
	repo := NewMemorySessionRepository()
	session := newSession(t, repo)

	mapped, err := session.WithMapping(domain.FieldMapping{"Hours": domain.FieldHours}, domain.MatchAuto)
	require.NoError(t, err)
	_, err = repo.SaveMapping(ctx, mapped, 0)
	require.NoError(t, err)

	_, err = repo.RecordPreview(ctx, session.ID, domain.PreviewSummary{MappingRevision: 0})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestMemorySessionRepositorySaveMappingNeverMovesStatusBack(t *testing.T) {
	ctx := context.Background()
	repo := NewMemorySessionRepository()
	session := newSession(t, repo)

	first, err := session.WithMapping(domain.FieldMapping{"Hours": domain.FieldHours}, domain.MatchAuto)
	require.NoError(t, err)
	mapped, err := repo.SaveMapping(ctx, first, 0)
	require.NoError(t, err)
	require.Equal(t, domain.SessionStatusMapped, mapped.Status)

	// A preview lands after the caller read the session as mapped.
	_, err = repo.RecordPreview(ctx, session.ID, domain.PreviewSummary{MappingRevision: 1, TotalRows: 2, SuccessCount: 2})
	require.NoError(t, err)

	second, err := mapped.WithMapping(domain.FieldMapping{"Hours": domain.FieldHours, "Employee ID": domain.FieldEmployeeID}, domain.MatchByID)
	require.NoError(t, err)
	require.Equal(t, domain.SessionStatusMapped, second.Status)
	saved, err := repo.SaveMapping(ctx, second, 1)
	require.NoError(t, err)

	assert.Equal(t, domain.SessionStatusPreviewed, saved.Status)
	assert.Equal(t, 2, saved.MappingRevision)
	assert.Nil(t, saved.LastPreview)
}

func TestMemorySessionRepositoryRecordPreviewUpdatesRowCount(t *testing.T) {
	ctx := context.Background()
	repo := NewMemorySessionRepository()
	session := newSession(t, repo)

	mapped, err := session.WithMapping(domain.FieldMapping{"Hours": domain.FieldHours}, domain.MatchAuto)
	require.NoError(t, err)
	_, err = repo.SaveMapping(ctx, mapped, 0)
	require.NoError(t, err)

	previewed, err := repo.RecordPreview(ctx, session.ID, domain.PreviewSummary{MappingRevision: 1, TotalRows: 7, SuccessCount: 7})
	require.NoError(t, err)
	assert.Equal(t, 7, previewed.RowCount)
}

func TestMemorySessionRepositoryCommitClaimExpires(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	repo := NewMemorySessionRepository(WithCommitClaimTTL(time.Minute), WithClock(func() time.Time { return now }))
	session := newSession(t, repo)

	mapped, err := session.WithMapping(domain.FieldMapping{"Hours": domain.FieldHours}, domain.MatchAuto)
	require.NoError(t, err)
	_, err = repo.SaveMapping(ctx, mapped, 0)
	require.NoError(t, err)
	_, err = repo.RecordPreview(ctx, session.ID, domain.PreviewSummary{MappingRevision: 1, TotalRows: 2, SuccessCount: 2})
	require.NoError(t, err)

	abandoned, err := repo.ClaimCommit(ctx, session.ID, 1)
	require.NoError(t, err)

	now = now.Add(30 * time.Second)
	_, err = repo.Abort(ctx, session.ID)
	assert.ErrorIs(t, err, ErrConflict, "a live claim blocks abort")

	now = now.Add(time.Minute)
	current, err := repo.GetByID(ctx, session.ID)
	require.NoError(t, err)
	assert.Nil(t, current.CommitClaimedAt, "expired claims are not reported")

	fresh, err := repo.ClaimCommit(ctx, session.ID, 1)
	require.NoError(t, err, "an expired claim can be taken over")

	_, err = repo.CompleteCommit(ctx, session.ID, *abandoned.CommitClaimedAt, 2)
	assert.ErrorIs(t, err, ErrConflict, "the previous holder lost its claim")

	committed, err := repo.CompleteCommit(ctx, session.ID, *fresh.CommitClaimedAt, 2)
	require.NoError(t, err)
	assert.Equal(t, domain.SessionStatusCommitted, committed.Status)
}

func TestMemorySessionRepositoryExpiredClaimAllowsAbort(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	repo := NewMemorySessionRepository(WithCommitClaimTTL(time.Minute), WithClock(func() time.Time { return now }))
	session := newSession(t, repo)

	mapped, err := session.WithMapping(domain.FieldMapping{"Hours": domain.FieldHours}, domain.MatchAuto)
	require.NoError(t, err)
	_, err = repo.SaveMapping(ctx, mapped, 0)
	require.NoError(t, err)
	_, err = repo.RecordPreview(ctx, session.ID, domain.PreviewSummary{MappingRevision: 1, TotalRows: 2, SuccessCount: 2})
	require.NoError(t, err)
	_, err = repo.ClaimCommit(ctx, session.ID, 1)
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	aborted, err := repo.Abort(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SessionStatusAborted, aborted.Status)
	assert.Nil(t, aborted.CommitClaimedAt)
}

func TestMemorySessionRepositoryNotFound(t *testing.T) {
	repo := NewMemorySessionRepository()
	_, err := repo.GetByID(context.Background(), uuid.New())
	assert.True(t, errors.Is(err, domain.ErrSessionNotFound))

	_, err = repo.Abort(context.Background(), uuid.New())
	assert.True(t, errors.Is(err, domain.ErrSessionNotFound))
}

func TestMemoryTemplateRepositoryListsInCreationOrder(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryTemplateRepository()
	employer := uuid.New()

	first, err := repo.Create(ctx, domain.NewMappingTemplate(employer, "weekly", domain.FieldMapping{"A": domain.FieldHours}, domain.MatchAuto))
	require.NoError(t, err)
	_, err = repo.Create(ctx, domain.NewMappingTemplate(uuid.New(), "other", domain.FieldMapping{}, domain.MatchAuto))
	require.NoError(t, err)
	second, err := repo.Create(ctx, domain.NewMappingTemplate(employer, "weekly", domain.FieldMapping{"B": domain.FieldHours}, domain.MatchByID))
	require.NoError(t, err)

	templates, err := repo.ListByEmployer(ctx, employer)
	require.NoError(t, err)
	require.Len(t, templates, 2)
	assert.Equal(t, first.ID, templates[0].ID)
	assert.Equal(t, second.ID, templates[1].ID)

	_, err = repo.GetByID(ctx, uuid.New())
	assert.ErrorIs(t, err, domain.ErrTemplateNotFound)
}

func TestMemoryEmployeeDirectoryLookups(t *testing.T) {
	ctx := context.Background()
	employer := uuid.New()
	directory := NewMemoryEmployeeDirectory(
		domain.Employee{EmployerID: employer, EmployeeID: "E100", SSN: "123-45-6789", Email: "Ana@Example.com", FirstName: "Ana", LastName: "Lopez"},
		domain.Employee{EmployerID: employer, EmployeeID: "E200", FirstName: "John", LastName: "Smith"},
		domain.Employee{EmployerID: uuid.New(), EmployeeID: "E100", FirstName: "Other", LastName: "Tenant"},
	)

	byID, err := directory.FindByID(ctx, employer, " E100 ")
	require.NoError(t, err)
	require.Len(t, byID, 1)
	assert.Equal(t, "Ana", byID[0].FirstName)

	bySSN, err := directory.FindBySSN(ctx, employer, "123456789")
	require.NoError(t, err)
	assert.Len(t, bySSN, 1)

	byEmail, err := directory.FindByEmail(ctx, employer, "ana@example.COM")
	require.NoError(t, err)
	assert.Len(t, byEmail, 1)

	batch, err := directory.FindByIDs(ctx, employer, []string{"E100", "E200", "E999"})
	require.NoError(t, err)
	assert.Len(t, batch["E100"], 1)
	assert.Len(t, batch["E200"], 1)
	assert.Empty(t, batch["E999"])
	assert.Equal(t, 1, directory.BatchCalls())

	byName, err := directory.SearchByName(ctx, employer, "Jon Smyth", 10)
	require.NoError(t, err)
	require.NotEmpty(t, byName)
	assert.Equal(t, "John", byName[0].FirstName)
}

func TestMemoryEmployeeDirectorySearchByNameKeepsClosestWithinLimit(t *testing.T) {
	ctx := context.Background()
	employer := uuid.New()
	directory := NewMemoryEmployeeDirectory(
		domain.Employee{EmployerID: employer, EmployeeID: "E1", FirstName: "Aaron", LastName: "Sanders"},
		domain.Employee{EmployerID: employer, EmployeeID: "E2", FirstName: "Abby", LastName: "Stone"},
		domain.Employee{EmployerID: employer, EmployeeID: "E3", FirstName: "Sam", LastName: "Adams"},
		domain.Employee{EmployerID: employer, EmployeeID: "E4", FirstName: "Zoe", LastName: "Smith"},
	)

	byName, err := directory.SearchByName(ctx, employer, "Smith Zoe", 1)
	require.NoError(t, err)
	require.Len(t, byName, 1)
	assert.Equal(t, "E4", byName[0].EmployeeID)

	byName, err = directory.SearchByName(ctx, employer, "Sam Adams", 2)
	require.NoError(t, err)
	require.Len(t, byName, 2)
	assert.Equal(t, "E3", byName[0].EmployeeID)
}
