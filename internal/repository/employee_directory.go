package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Stephilip2022/wotc-platform-sub004/internal/domain"
)

const employeeColumns = `id, employer_id, COALESCE(employee_id, ''), COALESCE(ssn, ''), COALESCE(email, ''), first_name, last_name`

// employeeDirectory reads the employees table. It never writes.
type employeeDirectory struct {
	pool *pgxpool.Pool
}

// NewEmployeeDirectory creates a Postgres-backed employee directory.
func NewEmployeeDirectory(pool *pgxpool.Pool) EmployeeDirectory {
	return &employeeDirectory{pool: pool}
}

func (d *employeeDirectory) FindByID(ctx context.Context, employerID uuid.UUID, employeeID string) ([]domain.Employee, error) {
	return d.query(ctx, "find employee by id",
		`SELECT `+employeeColumns+` FROM employees WHERE employer_id = $1 AND employee_id = $2 ORDER BY id`,
		employerID, strings.TrimSpace(employeeID),
	)
}

func (d *employeeDirectory) FindByIDs(ctx context.Context, employerID uuid.UUID, employeeIDs []string) (map[string][]domain.Employee, error) {
	result := make(map[string][]domain.Employee, len(employeeIDs))
	if len(employeeIDs) == 0 {
		return result, nil
	}
	trimmed := make([]string, len(employeeIDs))
	for i, id := range employeeIDs {
		trimmed[i] = strings.TrimSpace(id)
	}

	employees, err := d.query(ctx, "find employees by ids",
		`SELECT `+employeeColumns+` FROM employees WHERE employer_id = $1 AND employee_id = ANY($2) ORDER BY id`,
		employerID, trimmed,
	)
	if err != nil {
		return nil, err
	}
	for _, employee := range employees {
		result[employee.EmployeeID] = append(result[employee.EmployeeID], employee)
	}
	return result, nil
}

func (d *employeeDirectory) FindBySSN(ctx context.Context, employerID uuid.UUID, ssnDigits string) ([]domain.Employee, error) {
	return d.query(ctx, "find employee by ssn",
		`SELECT `+employeeColumns+` FROM employees WHERE employer_id = $1 AND regexp_replace(ssn, '[^0-9]', '', 'g') = $2 ORDER BY id`,
		employerID, domain.DigitsOnly(ssnDigits),
	)
}

// FindByEmail returns every employee whose address matches ignoring case.
func (d *employeeDirectory) FindByEmail(ctx context.Context, employerID uuid.UUID, email string) ([]domain.Employee, error) {
	return d.query(ctx, "find employee by email",
		`SELECT `+employeeColumns+` FROM employees WHERE employer_id = $1 AND lower(email) = lower($2) ORDER BY id`,
		employerID, strings.TrimSpace(email),
	)
}

// SearchByName narrows candidates to employees sharing a leading letter with
// one of the name's tokens in either name part. Candidates are ordered by edit
// distance to the name in either token order, so the limit drops the furthest.
func (d *employeeDirectory) SearchByName(ctx context.Context, employerID uuid.UUID, name string, limit int) ([]domain.Employee, error) {
	initials := nameInitials(name)
	if len(initials) == 0 {
		return []domain.Employee{}, nil
	}
	if limit <= 0 {
		limit = 200
	}
	query := strings.ToLower(strings.Join(strings.Fields(name), " "))
	return d.query(ctx, "search employees by name",
		`SELECT `+employeeColumns+` FROM employees
		 WHERE employer_id = $1
		   AND (left(lower(first_name), 1) = ANY($2) OR left(lower(last_name), 1) = ANY($2))
		 ORDER BY least(
		     levenshtein(left(lower(first_name || ' ' || last_name), 255), left($4, 255)),
		     levenshtein(left(lower(last_name || ' ' || first_name), 255), left($4, 255))
		 ), last_name, first_name, id
		 LIMIT $3`,
		employerID, initials, limit, query,
	)
}

func (d *employeeDirectory) query(ctx context.Context, action string, sql string, args ...any) ([]domain.Employee, error) {
	if d.pool == nil {
		return nil, fmt.Errorf("employee directory not initialized")
	}
	rows, err := d.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to %s: %w", action, err)
	}
	employees, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Employee, error) {
		var employee domain.Employee
		err := row.Scan(
			&employee.ID,
			&employee.EmployerID,
			&employee.EmployeeID,
			&employee.SSN,
			&employee.Email,
			&employee.FirstName,
			&employee.LastName,
		)
		return employee, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to %s: %w", action, err)
	}
	return employees, nil
}

func nameInitials(name string) []string {
	seen := make(map[string]bool)
	var initials []string
	for _, token := range strings.Fields(strings.ToLower(name)) {
		initial := string([]rune(token)[:1])
		if !seen[initial] {
			seen[initial] = true
			initials = append(initials, initial)
		}
	}
	return initials
}
