package importapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-faster/errors"

	"github.com/Stephilip2022/wotc-platform-sub004/internal/domain"
	"github.com/Stephilip2022/wotc-platform-sub004/internal/mapping"
	"github.com/Stephilip2022/wotc-platform-sub004/internal/session"
)

type errorResponse struct {
	Error     string             `json:"error"`
	Code      string             `json:"code"`
	Kind      domain.Kind        `json:"kind"`
	Readiness *mapping.Readiness `json:"readiness,omitempty"`
}

func statusFor(kind domain.Kind) int {
	switch kind {
	case domain.KindStructural:
		return http.StatusBadRequest
	case domain.KindMapping:
		return http.StatusUnprocessableEntity
	case domain.KindState:
		return http.StatusConflict
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// writeError maps a service error onto a status and a stable code. Internal
// errors are logged and hidden from the caller.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := domain.ErrorKind(err)
	resp := errorResponse{Error: err.Error(), Code: domain.ErrorCode(err), Kind: kind}

	var notReady *session.NotReadyError
	if errors.As(err, &notReady) {
		readiness := notReady.Readiness
		resp.Readiness = &readiness
	}
	if kind == domain.KindInternal {
		h.log.WithError(err).WithField("path", r.URL.Path).Error("import request failed")
		resp.Error = "internal error"
	}
	writeJSON(w, statusFor(kind), resp)
}

// badRequest reports a malformed request that never reached the service.
func badRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: message, Code: "bad_request", Kind: domain.KindStructural})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(payload)
}
