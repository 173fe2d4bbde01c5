package httpapi

import (
	"errors"
	"net/http"

	"github.com/dmitrijs2005/filevault/internal/common"
)

type errorResponse struct {
	Error string `json:"error"`
}

// statusFor maps a service error to its HTTP status and client message.
// Unknown errors are internal and their text is not exposed.
func statusFor(err error) (int, string) {
	var mf *common.MissingFieldError
	switch {
	case errors.As(err, &mf):
		return http.StatusBadRequest, "Missing " + mf.Field
	case errors.Is(err, common.ErrorUnauthorized):
		return http.StatusUnauthorized, "Unauthorized"
	case errors.Is(err, common.ErrorAlreadyExists):
		return http.StatusBadRequest, "Already exist"
	case errors.Is(err, common.ErrorInvalidParent):
		return http.StatusBadRequest, "Parent not found"
	case errors.Is(err, common.ErrorParentNotFolder):
		return http.StatusBadRequest, "Parent is not a folder"
	case errors.Is(err, common.ErrorInvalidSize):
		return http.StatusBadRequest, "Invalid size"
	case errors.Is(err, common.ErrorTooLarge):
		return http.StatusRequestEntityTooLarge, "Payload too large"
	case errors.Is(err, common.ErrorForbidden):
		return http.StatusForbidden, "Forbidden"
	case errors.Is(err, common.ErrorNotFound):
		return http.StatusNotFound, "Not found"
	}
	return http.StatusInternalServerError, "Internal server error"
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, errorResponse{Error: msg})
}
