package errors

import (
	"net/http"

	"github.com/tenantgate/tenant-gate/internal/pkg/logger"
)

// Normalizer converts any failure into one of the stable external response
// shapes. It is the single place errors are logged; upstream stages return
// errors instead of logging them.
type Normalizer struct {
	log        *logger.Logger
	production bool
}

// NewNormalizer creates a Normalizer. In production mode the messages of
// unexpected failures are replaced with a generic string before being written.
func NewNormalizer(log *logger.Logger, production bool) *Normalizer {
	return &Normalizer{log: log, production: production}
}

// WriteError normalizes err and writes the corresponding response.
//
// Guard rejections and request validation failures carry a structured code
// and pass through with their message preserved. Everything else becomes
// INTERNAL: logged with full detail, sanitized for the caller in production
// builds.
func (n *Normalizer) WriteError(w http.ResponseWriter, r *http.Request, err error) {
	if appErr, ok := err.(*AppError); ok {
		switch appErr.Code {
		case CodeUnauthenticated, CodeForbidden, CodeValidation:
			WriteJSON(w, appErr.HTTPStatus(), ErrorResponse{
				Error: ErrorBody{
					Message: appErr.Message,
					Code:    appErr.Code,
				},
			})
			return
		case CodeRateLimited:
			WriteJSON(w, http.StatusTooManyRequests, ErrorResponse{
				Error: ErrorBody{
					Message:    appErr.Message,
					RetryAfter: appErr.RetryAfter,
				},
			})
			return
		}
	}

	n.log.WithContext(r.Context()).WithError(err).Error("internal error",
		"method", r.Method,
		"path", r.URL.Path,
	)

	message := err.Error()
	if n.production {
		message = "internal server error"
	}
	WriteJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error: ErrorBody{Message: message},
	})
}
