package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Stephilip2022/wotc-platform-sub004/internal/domain"
)

const sessionColumns = `id, employer_id, file_name, row_count, detected_columns, column_mappings,
	match_strategy, status, mapping_revision, last_preview, commit_claimed_at, committed_count,
	created_at, updated_at, completed_at`

// importSessionRepository implements ImportSessionRepository on Postgres.
type importSessionRepository struct {
	pool *pgxpool.Pool
	opts sessionOptions
}

// NewImportSessionRepository creates a new session repository.
func NewImportSessionRepository(pool *pgxpool.Pool, opts ...SessionOption) ImportSessionRepository {
	return &importSessionRepository{pool: pool, opts: newSessionOptions(opts)}
}

func (r *importSessionRepository) claimTTLSeconds() float64 {
	return r.opts.claimTTL.Seconds()
}

func (r *importSessionRepository) Create(ctx context.Context, session domain.ImportSession) (domain.ImportSession, error) {
	detected, err := domain.DetectedColumnsToJSON(session.DetectedColumns)
	if err != nil {
		return domain.ImportSession{}, fmt.Errorf("failed to marshal detected columns: %w", err)
	}
	mappings, err := session.ColumnMappings.ToJSON()
	if err != nil {
		return domain.ImportSession{}, fmt.Errorf("failed to marshal column mappings: %w", err)
	}

	row := r.pool.QueryRow(ctx,
		`INSERT INTO import_sessions (id, employer_id, file_name, row_count, detected_columns, column_mappings,
			match_strategy, status, mapping_revision, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
		 RETURNING `+sessionColumns,
		session.ID,
		session.EmployerID,
		session.FileName,
		session.RowCount,
		detected,
		mappings,
		string(session.MatchStrategy),
		string(session.Status),
		session.MappingRevision,
		session.CreatedAt,
	)
	created, err := scanSession(row)
	if err != nil {
		return domain.ImportSession{}, fmt.Errorf("failed to create import session: %w", err)
	}
	return created, nil
}

func (r *importSessionRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.ImportSession, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+sessionColumns+` FROM import_sessions WHERE id = $1`, id)
	session, err := scanSession(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ImportSession{}, fmt.Errorf("session %s: %w", id, domain.ErrSessionNotFound)
		}
		return domain.ImportSession{}, fmt.Errorf("failed to get import session: %w", err)
	}
	return r.opts.visible(session), nil
}

func (r *importSessionRepository) SaveMapping(ctx context.Context, session domain.ImportSession, expectedRevision int) (domain.ImportSession, error) {
	mappings, err := session.ColumnMappings.ToJSON()
	if err != nil {
		return domain.ImportSession{}, fmt.Errorf("failed to marshal column mappings: %w", err)
	}

	row := r.pool.QueryRow(ctx,
		`UPDATE import_sessions
		 SET column_mappings = $2, match_strategy = $3, mapping_revision = $4,
			status = CASE WHEN status = 'created' THEN 'mapped' ELSE status END,
			last_preview = NULL, commit_claimed_at = NULL, updated_at = now()
		 WHERE id = $1 AND mapping_revision = $5
		   AND status NOT IN ('committed', 'aborted') AND `+claimFree(6)+`
		 RETURNING `+sessionColumns,
		session.ID,
		mappings,
		string(session.MatchStrategy),
		session.MappingRevision,
		expectedRevision,
		r.claimTTLSeconds(),
	)
	return r.finishUpdate(ctx, session.ID, row, "save mapping")
}

func (r *importSessionRepository) RecordPreview(ctx context.Context, id uuid.UUID, summary domain.PreviewSummary) (domain.ImportSession, error) {
	payload, err := json.Marshal(summary)
	if err != nil {
		return domain.ImportSession{}, fmt.Errorf("failed to marshal preview summary: %w", err)
	}

	row := r.pool.QueryRow(ctx,
		`UPDATE import_sessions
		 SET last_preview = $2, status = 'previewed', row_count = $4,
			commit_claimed_at = NULL, updated_at = now()
		 WHERE id = $1 AND mapping_revision = $3
		   AND status IN ('mapped', 'previewed') AND `+claimFree(5)+`
		 RETURNING `+sessionColumns,
		id,
		payload,
		summary.MappingRevision,
		summary.TotalRows,
		r.claimTTLSeconds(),
	)
	return r.finishUpdate(ctx, id, row, "record preview")
}

func (r *importSessionRepository) ClaimCommit(ctx context.Context, id uuid.UUID, revision int) (domain.ImportSession, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE import_sessions
		 SET commit_claimed_at = now(), updated_at = now()
		 WHERE id = $1 AND mapping_revision = $2
		   AND status = 'previewed' AND `+claimFree(3)+`
		 RETURNING `+sessionColumns,
		id,
		revision,
		r.claimTTLSeconds(),
	)
	return r.finishUpdate(ctx, id, row, "claim commit")
}

func (r *importSessionRepository) ReleaseCommit(ctx context.Context, id uuid.UUID, claimedAt time.Time) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE import_sessions
		 SET commit_claimed_at = NULL, updated_at = now()
		 WHERE id = $1 AND status = 'previewed' AND commit_claimed_at = $2`,
		id,
		claimedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to release commit claim: %w", err)
	}
	return nil
}

func (r *importSessionRepository) CompleteCommit(ctx context.Context, id uuid.UUID, claimedAt time.Time, committedCount int) (domain.ImportSession, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE import_sessions
		 SET status = 'committed', committed_count = $2, commit_claimed_at = NULL,
			completed_at = now(), updated_at = now()
		 WHERE id = $1 AND status = 'previewed' AND commit_claimed_at = $3
		 RETURNING `+sessionColumns,
		id,
		committedCount,
		claimedAt,
	)
	return r.finishUpdate(ctx, id, row, "complete commit")
}

func (r *importSessionRepository) Abort(ctx context.Context, id uuid.UUID) (domain.ImportSession, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE import_sessions
		 SET status = 'aborted', commit_claimed_at = NULL, completed_at = now(), updated_at = now()
		 WHERE id = $1 AND status NOT IN ('committed', 'aborted') AND `+claimFree(2)+`
		 RETURNING `+sessionColumns,
		id,
		r.claimTTLSeconds(),
	)
	return r.finishUpdate(ctx, id, row, "abort")
}

// finishUpdate scans a compare-and-set result. No returned row means the
// session is missing or was not in the expected state.
func (r *importSessionRepository) finishUpdate(ctx context.Context, id uuid.UUID, row pgx.Row, action string) (domain.ImportSession, error) {
	session, err := scanSession(row)
	if err == nil {
		return r.opts.visible(session), nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return domain.ImportSession{}, fmt.Errorf("failed to %s: %w", action, err)
	}

	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM import_sessions WHERE id = $1)`, id).Scan(&exists); err != nil {
		return domain.ImportSession{}, fmt.Errorf("failed to %s: %w", action, err)
	}
	if !exists {
		return domain.ImportSession{}, fmt.Errorf("session %s: %w", id, domain.ErrSessionNotFound)
	}
	return domain.ImportSession{}, fmt.Errorf("failed to %s session %s: %w", action, id, ErrConflict)
}

func scanSession(row pgx.Row) (domain.ImportSession, error) {
	var (
		session         domain.ImportSession
		detected        []byte
		mappings        []byte
		strategy        string
		status          string
		lastPreview     []byte
		commitClaimedAt pgtype.Timestamptz
		completedAt     pgtype.Timestamptz
	)
	if err := row.Scan(
		&session.ID,
		&session.EmployerID,
		&session.FileName,
		&session.RowCount,
		&detected,
		&mappings,
		&strategy,
		&status,
		&session.MappingRevision,
		&lastPreview,
		&commitClaimedAt,
		&session.CommittedCount,
		&session.CreatedAt,
		&session.UpdatedAt,
		&completedAt,
	); err != nil {
		return domain.ImportSession{}, err
	}

	var err error
	if session.DetectedColumns, err = domain.DetectedColumnsFromJSON(detected); err != nil {
		return domain.ImportSession{}, fmt.Errorf("failed to decode detected columns: %w", err)
	}
	if session.ColumnMappings, err = domain.FieldMappingFromJSON(mappings); err != nil {
		return domain.ImportSession{}, fmt.Errorf("failed to decode column mappings: %w", err)
	}
	if len(lastPreview) > 0 {
		var summary domain.PreviewSummary
		if err := json.Unmarshal(lastPreview, &summary); err != nil {
			return domain.ImportSession{}, fmt.Errorf("failed to decode preview summary: %w", err)
		}
		session.LastPreview = &summary
	}
	session.MatchStrategy = domain.MatchStrategy(strategy)
	session.Status = domain.SessionStatus(status)
	if commitClaimedAt.Valid {
		claimed := commitClaimedAt.Time
		session.CommitClaimedAt = &claimed
	}
	if completedAt.Valid {
		completed := completedAt.Time
		session.CompletedAt = &completed
	}
	return session, nil
}
