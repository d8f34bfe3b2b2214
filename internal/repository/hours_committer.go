package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/Stephilip2022/wotc-platform-sub004/internal/db"
	"github.com/Stephilip2022/wotc-platform-sub004/internal/domain"
)

var hoursColumns = []string{
	"session_id", "employer_id", "employee_id", "row_number",
	"hours", "period_start", "period_end", "notes",
}

// HoursCommitter writes validated rows into employee_hours in one
// transaction.
type HoursCommitter struct {
	conn *db.Connection
}

// NewHoursCommitter wires a committer on the shared connection.
func NewHoursCommitter(conn *db.Connection) *HoursCommitter {
	return &HoursCommitter{conn: conn}
}

func (c *HoursCommitter) Commit(ctx context.Context, session domain.ImportSession, records []domain.NormalizedRecord) (int, error) {
	if c.conn == nil || c.conn.Pool == nil {
		return 0, fmt.Errorf("hours committer not initialized")
	}
	if len(records) == 0 {
		return 0, nil
	}

	var copied int64
	err := c.conn.WithTx(ctx, func(tx pgx.Tx) error {
		var copyErr error
		copied, copyErr = tx.CopyFrom(ctx, pgx.Identifier{"employee_hours"}, hoursColumns,
			pgx.CopyFromSlice(len(records), func(i int) ([]any, error) {
				record := records[i]
				return []any{
					session.ID,
					session.EmployerID,
					record.Employee.ID,
					record.RowNumber,
					numeric(record.Hours),
					date(record.PeriodStart),
					date(record.PeriodEnd),
					pgtype.Text{String: record.Notes, Valid: record.Notes != ""},
				}, nil
			}),
		)
		if copyErr != nil {
			return fmt.Errorf("failed to copy hours: %w", copyErr)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return int(copied), nil
}

func numeric(value decimal.Decimal) pgtype.Numeric {
	return pgtype.Numeric{Int: value.Coefficient(), Exp: value.Exponent(), Valid: true}
}

func date(value *time.Time) pgtype.Date {
	if value == nil {
		return pgtype.Date{}
	}
	return pgtype.Date{Time: *value, Valid: true}
}

// MemoryCommitter keeps committed records per session.
type MemoryCommitter struct {
	mu      sync.Mutex
	records map[uuid.UUID][]domain.NormalizedRecord
	// Fail, when set, is returned instead of writing.
	Fail error
}

// NewMemoryCommitter returns an empty in-memory committer.
func NewMemoryCommitter() *MemoryCommitter {
	return &MemoryCommitter{records: make(map[uuid.UUID][]domain.NormalizedRecord)}
}

func (c *MemoryCommitter) Commit(_ context.Context, session domain.ImportSession, records []domain.NormalizedRecord) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Fail != nil {
		return 0, c.Fail
	}
	c.records[session.ID] = append(c.records[session.ID], records...)
	return len(records), nil
}

// Records returns what was committed for a session.
func (c *MemoryCommitter) Records(sessionID uuid.UUID) []domain.NormalizedRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]domain.NormalizedRecord(nil), c.records[sessionID]...)
}

// Calls reports how many sessions have been committed.
func (c *MemoryCommitter) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.records)
}
