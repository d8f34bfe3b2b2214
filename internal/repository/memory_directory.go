package repository

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/Stephilip2022/wotc-platform-sub004/internal/domain"
)

// MemoryEmployeeDirectory is an in-memory EmployeeDirectory used by the
// memory storage driver and in tests.
type MemoryEmployeeDirectory struct {
	mu         sync.RWMutex
	employees  []domain.Employee
	batchCalls int
}

// NewMemoryEmployeeDirectory seeds a directory with employees.
func NewMemoryEmployeeDirectory(employees ...domain.Employee) *MemoryEmployeeDirectory {
	d := &MemoryEmployeeDirectory{}
	d.Add(employees...)
	return d
}

// Add stores employees, assigning ids where missing.
func (d *MemoryEmployeeDirectory) Add(employees ...domain.Employee) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, employee := range employees {
		if employee.ID == uuid.Nil {
			employee.ID = uuid.New()
		}
		employee.SSN = domain.DigitsOnly(employee.SSN)
		d.employees = append(d.employees, employee)
	}
}

// BatchCalls reports how many times FindByIDs was called.
func (d *MemoryEmployeeDirectory) BatchCalls() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.batchCalls
}

func (d *MemoryEmployeeDirectory) FindByID(_ context.Context, employerID uuid.UUID, employeeID string) ([]domain.Employee, error) {
	key := strings.TrimSpace(employeeID)
	return d.filter(employerID, func(e domain.Employee) bool {
		return e.EmployeeID == key
	}), nil
}

func (d *MemoryEmployeeDirectory) FindByIDs(_ context.Context, employerID uuid.UUID, employeeIDs []string) (map[string][]domain.Employee, error) {
	d.mu.Lock()
	d.batchCalls++
	d.mu.Unlock()

	wanted := make(map[string]bool, len(employeeIDs))
	for _, id := range employeeIDs {
		wanted[strings.TrimSpace(id)] = true
	}
	result := make(map[string][]domain.Employee, len(employeeIDs))
	for _, employee := range d.filter(employerID, func(e domain.Employee) bool { return wanted[e.EmployeeID] }) {
		result[employee.EmployeeID] = append(result[employee.EmployeeID], employee)
	}
	return result, nil
}

func (d *MemoryEmployeeDirectory) FindBySSN(_ context.Context, employerID uuid.UUID, ssnDigits string) ([]domain.Employee, error) {
	key := domain.DigitsOnly(ssnDigits)
	if key == "" {
		return []domain.Employee{}, nil
	}
	return d.filter(employerID, func(e domain.Employee) bool {
		return e.SSN == key
	}), nil
}

func (d *MemoryEmployeeDirectory) FindByEmail(_ context.Context, employerID uuid.UUID, email string) ([]domain.Employee, error) {
	key := normalizeEmail(email)
	return d.filter(employerID, func(e domain.Employee) bool {
		return normalizeEmail(e.Email) == key
	}), nil
}

// SearchByName keeps employees sharing a leading letter with the query or
// whose full name fuzzily contains it, closest first.
func (d *MemoryEmployeeDirectory) SearchByName(_ context.Context, employerID uuid.UUID, name string, limit int) ([]domain.Employee, error) {
	query := strings.ToLower(strings.Join(strings.Fields(name), " "))
	if query == "" {
		return []domain.Employee{}, nil
	}
	initials := make(map[string]bool)
	for _, initial := range nameInitials(query) {
		initials[initial] = true
	}

	candidates := d.filter(employerID, func(e domain.Employee) bool {
		full := strings.ToLower(e.FullName())
		if fuzzy.MatchNormalizedFold(query, full) {
			return true
		}
		for _, initial := range nameInitials(full) {
			if initials[initial] {
				return true
			}
		}
		return false
	})

	sort.SliceStable(candidates, func(i, j int) bool {
		return nameDistance(query, candidates[i]) < nameDistance(query, candidates[j])
	})
	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates, nil
}

// nameDistance is the edit distance from query to the employee's name written
// first-last or last-first, whichever is closer.
func nameDistance(query string, e domain.Employee) int {
	forward := strings.ToLower(e.FullName())
	reverse := strings.ToLower(strings.TrimSpace(strings.TrimSpace(e.LastName) + " " + strings.TrimSpace(e.FirstName)))
	return min(fuzzy.LevenshteinDistance(query, forward), fuzzy.LevenshteinDistance(query, reverse))
}

func (d *MemoryEmployeeDirectory) filter(employerID uuid.UUID, keep func(domain.Employee) bool) []domain.Employee {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := []domain.Employee{}
	for _, employee := range d.employees {
		if employee.EmployerID == employerID && keep(employee) {
			out = append(out, employee)
		}
	}
	return out
}
