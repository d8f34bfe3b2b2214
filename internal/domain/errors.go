package domain

import "github.com/go-faster/errors"

// Structural errors: the upload itself cannot be used.
var (
	ErrInvalidTable      = errors.New("invalid table")
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrTableMismatch     = errors.New("table does not match session columns")
)

// Mapping errors.
var (
	ErrInvalidMapping  = errors.New("invalid column mapping")
	ErrMappingNotReady = errors.New("mapping is not ready for preview")
)

// State errors: operations were called out of order.
var (
	ErrInvalidTransition = errors.New("invalid session state transition")
	ErrSessionTerminal   = errors.New("session is already committed or aborted")
	ErrPreviewRequired   = errors.New("a preview of the current mapping is required")
	ErrNoValidRows       = errors.New("last preview has no valid rows")
	ErrCommitInProgress  = errors.New("session commit already in progress")
	ErrSourceUnavailable = errors.New("source table is no longer stored; re-submit the file")
)

// Lookup errors.
var (
	ErrSessionNotFound  = errors.New("import session not found")
	ErrTemplateNotFound = errors.New("mapping template not found")
	ErrScopeMismatch    = errors.New("resource belongs to another employer")
)

// Kind groups errors by how a caller is expected to react.
type Kind string

const (
	KindStructural Kind = "structural"
	KindMapping    Kind = "mapping"
	KindState      Kind = "state"
	KindNotFound   Kind = "not_found"
	KindForbidden  Kind = "forbidden"
	KindInternal   Kind = "internal"
)

var kinds = []struct {
	err  error
	kind Kind
}{
	{ErrInvalidTable, KindStructural},
	{ErrUnsupportedFormat, KindStructural},
	{ErrTableMismatch, KindStructural},
	{ErrInvalidMapping, KindMapping},
	{ErrMappingNotReady, KindMapping},
	{ErrInvalidTransition, KindState},
	{ErrSessionTerminal, KindState},
	{ErrPreviewRequired, KindState},
	{ErrNoValidRows, KindState},
	{ErrCommitInProgress, KindState},
	{ErrSourceUnavailable, KindState},
	{ErrSessionNotFound, KindNotFound},
	{ErrTemplateNotFound, KindNotFound},
	{ErrScopeMismatch, KindForbidden},
}

// ErrorKind classifies err by the first known sentinel it wraps.
func ErrorKind(err error) Kind {
	for _, entry := range kinds {
		if errors.Is(err, entry.err) {
			return entry.kind
		}
	}
	return KindInternal
}

// ErrorCode returns a stable machine-readable code for known sentinels.
func ErrorCode(err error) string {
	codes := map[error]string{
		ErrInvalidTable:      "invalid_table",
		ErrUnsupportedFormat: "unsupported_format",
		ErrTableMismatch:     "table_mismatch",
		ErrInvalidMapping:    "invalid_mapping",
		ErrMappingNotReady:   "mapping_not_ready",
		ErrInvalidTransition: "invalid_transition",
		ErrSessionTerminal:   "session_terminal",
		ErrPreviewRequired:   "preview_required",
		ErrNoValidRows:       "no_valid_rows",
		ErrCommitInProgress:  "commit_in_progress",
		ErrSourceUnavailable: "source_unavailable",
		ErrSessionNotFound:   "session_not_found",
		ErrTemplateNotFound:  "template_not_found",
		ErrScopeMismatch:     "scope_mismatch",
	}
	for _, entry := range kinds {
		if errors.Is(err, entry.err) {
			return codes[entry.err]
		}
	}
	return "internal"
}
