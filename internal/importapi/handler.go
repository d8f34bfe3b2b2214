// Package importapi exposes import sessions and mapping templates over HTTP.
package importapi

import (
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Stephilip2022/wotc-platform-sub004/internal/auth"
	"github.com/Stephilip2022/wotc-platform-sub004/internal/domain"
	"github.com/Stephilip2022/wotc-platform-sub004/internal/export"
	"github.com/Stephilip2022/wotc-platform-sub004/internal/session"
	"github.com/Stephilip2022/wotc-platform-sub004/internal/tabular"
)

// DefaultMaxUploadBytes caps multipart uploads.
const DefaultMaxUploadBytes = 32 << 20

// Handler serves the import API.
type Handler struct {
	service        *session.Service
	exporter       *export.ImportLogExporter
	log            *logrus.Entry
	maxUploadBytes int64
}

// NewHandler wraps the session service.
func NewHandler(service *session.Service, logger *logrus.Logger, maxUploadBytes int64) *Handler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if maxUploadBytes <= 0 {
		maxUploadBytes = DefaultMaxUploadBytes
	}
	return &Handler{
		service:        service,
		exporter:       export.NewImportLogExporter(service),
		log:            logger.WithField("component", "importapi"),
		maxUploadBytes: maxUploadBytes,
	}
}

// RegisterRoutes mounts the import and template routes on r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/imports", func(r chi.Router) {
		r.Post("/", h.HandleUpload)
		r.Get("/{id}", h.HandleGetSession)
		r.Post("/{id}/resolve", h.HandleResolve)
		r.Put("/{id}/mapping", h.HandleSaveMapping)
		r.Post("/{id}/template", h.HandleApplyTemplate)
		r.Post("/{id}/preview", h.HandlePreview)
		r.Post("/{id}/commit", h.HandleCommit)
		r.Post("/{id}/abort", h.HandleAbort)
		r.Get("/{id}/log", h.HandleImportLog)
		r.Get("/{id}/log.csv", h.HandleExportImportLog)
	})
	r.Route("/templates", func(r chi.Router) {
		r.Get("/", h.HandleListTemplates)
		r.Post("/", h.HandleSaveTemplate)
	})
}

type uploadResponse struct {
	Session          domain.ImportSession      `json:"session"`
	HeaderRowIndex   int                       `json:"headerRowIndex"`
	HeaderCandidates []tabular.HeaderCandidate `json:"headerCandidates"`
}

// HandleUpload parses an uploaded file and opens a session for it.
// POST /api/imports
func (h *Handler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	employerID, ok := auth.EmployerIDFromContext(r.Context())
	if !ok {
		badRequest(w, "employer scope is required")
		return
	}

	fileName, parsed, err := h.readUpload(w, r)
	if err != nil {
		h.writeUploadError(w, r, err)
		return
	}

	created, err := h.service.InitSession(r.Context(), employerID, parsed.Table, fileName)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, uploadResponse{
		Session:          created,
		HeaderRowIndex:   parsed.HeaderRowIndex,
		HeaderCandidates: parsed.HeaderCandidates,
	})
}

// HandleGetSession returns one session.
// GET /api/imports/{id}
func (h *Handler) HandleGetSession(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	found, err := h.service.GetSession(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, found)
}

// HandleResolve suggests a mapping without saving it.
// POST /api/imports/{id}/resolve
func (h *Handler) HandleResolve(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	var req resolveRequest
	if !decode(w, r, &req, true) {
		return
	}
	templateID, err := parseOptionalUUID(req.TemplateID)
	if err != nil {
		badRequest(w, fmt.Sprintf("invalid templateId: %v", err))
		return
	}
	overrides, err := parseMapping(req.Overrides)
	if err != nil {
		h.writeError(w, r, fmt.Errorf("%w: %v", domain.ErrInvalidMapping, err))
		return
	}

	resolved, err := h.service.ResolveMapping(r.Context(), id, templateID, overrides)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resolved)
}

// HandleSaveMapping stores the caller's mapping and strategy.
// PUT /api/imports/{id}/mapping
func (h *Handler) HandleSaveMapping(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	var req saveMappingRequest
	if !decode(w, r, &req, false) {
		return
	}
	fieldMapping, err := parseMapping(req.Mapping)
	if err != nil {
		h.writeError(w, r, fmt.Errorf("%w: %v", domain.ErrInvalidMapping, err))
		return
	}
	strategy, err := domain.ParseMatchStrategy(req.MatchStrategy)
	if err != nil {
		h.writeError(w, r, fmt.Errorf("%w: %v", domain.ErrInvalidMapping, err))
		return
	}

	saved, err := h.service.SaveMapping(r.Context(), id, fieldMapping, strategy)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

type applyTemplateResponse struct {
	Session    domain.ImportSession  `json:"session"`
	Resolution session.ResolveResult `json:"resolution"`
}

// HandleApplyTemplate resolves against a template and saves the result.
// POST /api/imports/{id}/template
func (h *Handler) HandleApplyTemplate(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	var req applyTemplateRequest
	if !decode(w, r, &req, false) {
		return
	}
	templateID := uuid.MustParse(strings.TrimSpace(req.TemplateID))

	saved, resolved, err := h.service.ApplyTemplate(r.Context(), id, templateID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, applyTemplateResponse{Session: saved, Resolution: resolved})
}

// HandlePreview runs a dry run. A multipart body re-supplies the file.
// POST /api/imports/{id}/preview
func (h *Handler) HandlePreview(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}

	var (
		table *domain.Table
		req   previewRequest
	)
	if isMultipart(r) {
		_, parsed, err := h.readUpload(w, r)
		if err != nil {
			h.writeUploadError(w, r, err)
			return
		}
		table = &parsed.Table
		if raw := strings.TrimSpace(r.FormValue("limit")); raw != "" {
			limit, convErr := strconv.Atoi(raw)
			if convErr != nil {
				badRequest(w, fmt.Sprintf("invalid limit: %v", convErr))
				return
			}
			req.Limit = limit
		}
		if err := check(&req); err != nil {
			badRequest(w, err.Error())
			return
		}
	} else if !decode(w, r, &req, true) {
		return
	}

	preview, err := h.service.GeneratePreview(r.Context(), id, table, req.Limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, preview)
}

// HandleCommit hands the valid rows to the committer.
// POST /api/imports/{id}/commit
func (h *Handler) HandleCommit(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	result, err := h.service.CommitSession(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// HandleAbort cancels a session.
// POST /api/imports/{id}/abort
func (h *Handler) HandleAbort(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	aborted, err := h.service.AbortSession(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, aborted)
}

// HandleImportLog lists one page of rows excluded at commit. count is the
// size of the page, not of the whole log.
// GET /api/imports/{id}/log
func (h *Handler) HandleImportLog(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	entries, err := h.service.ImportLog(r.Context(), id, limit, offset)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"entries": entries,
		"count":   len(entries),
		"limit":   limit,
		"offset":  offset,
	})
}

// HandleExportImportLog downloads the whole import log as CSV.
// GET /api/imports/{id}/log.csv
func (h *Handler) HandleExportImportLog(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	current, err := h.service.GetSession(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", export.FileName(current.FileName, current.ID)))
	rows, written, err := h.exporter.WriteCSV(r.Context(), id, w)
	if err != nil {
		// Headers are already sent; the client sees a truncated file.
		h.log.WithError(err).WithField("session_id", id).Error("import log export failed")
		return
	}
	h.log.WithFields(logrus.Fields{
		"session_id": id,
		"rows":       rows,
		"bytes":      written,
	}).Debug("import log exported")
}

// HandleListTemplates lists the caller's templates in creation order.
// GET /api/templates
func (h *Handler) HandleListTemplates(w http.ResponseWriter, r *http.Request) {
	employerID, ok := auth.EmployerIDFromContext(r.Context())
	if !ok {
		badRequest(w, "employer scope is required")
		return
	}
	templates, err := h.service.ListTemplates(r.Context(), employerID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"templates": templates,
		"total":     len(templates),
	})
}

// HandleSaveTemplate saves a template from a session or from an explicit
// mapping.
// POST /api/templates
func (h *Handler) HandleSaveTemplate(w http.ResponseWriter, r *http.Request) {
	employerID, ok := auth.EmployerIDFromContext(r.Context())
	if !ok {
		badRequest(w, "employer scope is required")
		return
	}
	var req saveTemplateRequest
	if !decode(w, r, &req, false) {
		return
	}

	sourceSession, err := parseOptionalUUID(req.SessionID)
	if err != nil {
		badRequest(w, fmt.Sprintf("invalid sessionId: %v", err))
		return
	}
	if sourceSession != nil {
		template, err := h.service.SaveTemplateFromSession(r.Context(), *sourceSession, req.Name)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, template)
		return
	}

	if len(req.Mapping) == 0 {
		badRequest(w, "either sessionId or mapping is required")
		return
	}
	fieldMapping, err := parseMapping(req.Mapping)
	if err != nil {
		h.writeError(w, r, fmt.Errorf("%w: %v", domain.ErrInvalidMapping, err))
		return
	}
	strategy, err := domain.ParseMatchStrategy(req.MatchStrategy)
	if err != nil {
		h.writeError(w, r, fmt.Errorf("%w: %v", domain.ErrInvalidMapping, err))
		return
	}

	template, err := h.service.SaveTemplate(r.Context(), employerID, req.Name, fieldMapping, strategy)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, template)
}

type uploadError struct {
	message string
}

func (e *uploadError) Error() string { return e.message }

// readUpload reads the multipart file and parses it into a table.
func (h *Handler) readUpload(w http.ResponseWriter, r *http.Request) (string, tabular.Result, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		return "", tabular.Result{}, &uploadError{message: fmt.Sprintf("invalid form data: %v", err)}
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return "", tabular.Result{}, &uploadError{message: fmt.Sprintf("file required: %v", err)}
	}
	defer file.Close()

	opts := tabular.Options{Sheet: strings.TrimSpace(r.FormValue("sheet"))}
	if raw := strings.TrimSpace(r.FormValue("headerRow")); raw != "" {
		idx, convErr := strconv.Atoi(raw)
		if convErr != nil || idx < 0 {
			return "", tabular.Result{}, &uploadError{message: fmt.Sprintf("invalid headerRow %q", raw)}
		}
		opts.HeaderRowIndex = &idx
	}

	data, err := io.ReadAll(file)
	if err != nil {
		return "", tabular.Result{}, &uploadError{message: fmt.Sprintf("failed to read file: %v", err)}
	}

	parsed, err := tabular.Parse(header.Filename, data, opts)
	if err != nil {
		return "", tabular.Result{}, err
	}
	return header.Filename, parsed, nil
}

func (h *Handler) writeUploadError(w http.ResponseWriter, r *http.Request, err error) {
	var uploadErr *uploadError
	if errors.As(err, &uploadErr) {
		badRequest(w, uploadErr.message)
		return
	}
	h.writeError(w, r, err)
}

func sessionID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, fmt.Sprintf("invalid session id: %v", err))
		return uuid.Nil, false
	}
	return id, true
}

// decode reads a JSON body into req and validates it. allowEmpty accepts a
// missing body as the zero request.
func decode(w http.ResponseWriter, r *http.Request, req any, allowEmpty bool) bool {
	err := json.NewDecoder(r.Body).Decode(req)
	if err != nil && !(allowEmpty && errors.Is(err, io.EOF)) {
		badRequest(w, fmt.Sprintf("invalid request body: %v", err))
		return false
	}
	if err := check(req); err != nil {
		badRequest(w, err.Error())
		return false
	}
	return true
}

func isMultipart(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "multipart/form-data"
}
