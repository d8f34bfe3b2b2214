package domain

import (
	"time"

	"github.com/google/uuid"
)

// MappingTemplate is a saved, immutable mapping + strategy preset for
// recurring file layouts from the same source. Sessions copy its values;
// there is no live link back to the template.
type MappingTemplate struct {
	ID             uuid.UUID     `json:"id"`
	EmployerID     uuid.UUID     `json:"employerId"`
	Name           string        `json:"name"`
	ColumnMappings FieldMapping  `json:"columnMappings"`
	MatchStrategy  MatchStrategy `json:"matchStrategy"`
	CreatedAt      time.Time     `json:"createdAt"`
}

// NewMappingTemplate builds a template with a fresh id.
func NewMappingTemplate(employerID uuid.UUID, name string, mapping FieldMapping, strategy MatchStrategy) MappingTemplate {
	return MappingTemplate{
		ID:             uuid.New(),
		EmployerID:     employerID,
		Name:           name,
		ColumnMappings: mapping.Clone(),
		MatchStrategy:  strategy,
		CreatedAt:      time.Now().UTC(),
	}
}
