package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"voicelink/internal/apperr"
)

// ErrorResponse is the body of every non-2xx answer.
type ErrorResponse struct {
	Detail string       `json:"detail"`
	Errors []FieldError `json:"errors,omitempty"`
}

func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation, apperr.KindDuplicateEmail:
		return http.StatusBadRequest
	case apperr.KindAuthentication:
		return http.StatusUnauthorized
	case apperr.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes the client-facing message of err. The wrapped cause is
// logged for server errors and never sent.
func (h *Handler) respondError(c *gin.Context, err error) {
	ae, ok := apperr.As(err)
	if !ok {
		ae = apperr.Wrap(err, apperr.KindStore, msgUnexpected)
	}

	status := statusFor(ae.Kind)
	if status >= http.StatusInternalServerError {
		h.logger.WithError(err).
			WithField("request_id", requestIDFrom(c)).
			WithField("route", c.FullPath()).
			Error("request failed")
	}

	c.JSON(status, ErrorResponse{Detail: ae.Message})
}
