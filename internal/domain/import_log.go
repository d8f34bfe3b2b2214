package domain

import (
	"time"

	"github.com/google/uuid"
)

// ImportLogEntry records a row that was excluded when a session was committed.
type ImportLogEntry struct {
	ID           uuid.UUID `json:"id"`
	SessionID    uuid.UUID `json:"session_id"`
	EmployerID   uuid.UUID `json:"employer_id"`
	FileName     string    `json:"file_name"`
	RowNumber    *int      `json:"row_number,omitempty"`
	ErrorMessage string    `json:"error_message"`
	CreatedAt    time.Time `json:"created_at"`
}
