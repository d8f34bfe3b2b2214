// Package employeeloader batches employee-id lookups issued concurrently
// during a single preview or commit.
package employeeloader

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/graph-gophers/dataloader"

	"github.com/Stephilip2022/wotc-platform-sub004/internal/domain"
	"github.com/Stephilip2022/wotc-platform-sub004/internal/repository"
)

// Directory is an EmployeeDirectory whose FindByID calls for one employer are
// coalesced into FindByIDs batches. Other lookups pass straight through.
// Build one per evaluation run; results are cached for its lifetime.
type Directory struct {
	repository.EmployeeDirectory
	employerID uuid.UUID
	Loader     *dataloader.Loader
}

// New wraps directory with a batching loader scoped to employerID.
func New(directory repository.EmployeeDirectory, employerID uuid.UUID, wait time.Duration, capacity int) *Directory {
	batchFn := func(ctx context.Context, keys dataloader.Keys) []*dataloader.Result {
		ids := keys.Keys()

		found, err := directory.FindByIDs(ctx, employerID, ids)
		if err != nil {
			results := make([]*dataloader.Result, len(keys))
			for i := range results {
				results[i] = &dataloader.Result{Error: err}
			}
			return results
		}

		// Build results in the same order as keys
		results := make([]*dataloader.Result, len(keys))
		for i, id := range ids {
			hits := found[id]
			if hits == nil {
				hits = []domain.Employee{}
			}
			results[i] = &dataloader.Result{Data: hits}
		}
		return results
	}

	if wait <= 0 {
		wait = 2 * time.Millisecond
	}
	opts := []dataloader.Option{dataloader.WithWait(wait)}
	if capacity > 0 {
		opts = append(opts, dataloader.WithBatchCapacity(capacity))
	}

	return &Directory{
		EmployeeDirectory: directory,
		employerID:        employerID,
		Loader:            dataloader.NewBatchedLoader(batchFn, opts...),
	}
}

// FindByID loads through the batching loader when the employer matches.
func (d *Directory) FindByID(ctx context.Context, employerID uuid.UUID, employeeID string) ([]domain.Employee, error) {
	if employerID != d.employerID {
		return d.EmployeeDirectory.FindByID(ctx, employerID, employeeID)
	}
	value, err := d.Loader.Load(ctx, dataloader.StringKey(strings.TrimSpace(employeeID)))()
	if err != nil {
		return nil, err
	}
	employees, ok := value.([]domain.Employee)
	if !ok {
		return nil, fmt.Errorf("unexpected loader value %T", value)
	}
	return employees, nil
}
