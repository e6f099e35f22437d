package httpx

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/ranchbook/ranchbook/internal/shared"
)

// RespondError maps the error taxonomy to HTTP responses. Storage failures are logged, never echoed.
func RespondError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var (
		verr *shared.ValidationError
		dup  *shared.DuplicateError
	)
	switch {
	case errors.As(err, &verr):
		Fail(w, http.StatusBadRequest, verr.Message, verr.Fields)
	case errors.Is(err, shared.ErrValidation):
		Fail(w, http.StatusBadRequest, err.Error(), nil)
	case errors.As(err, &dup):
		JSON(w, http.StatusBadRequest, Envelope{Success: false, Message: dup.Error(), LedgerTransactionID: dup.LedgerTransactionID})
	case errors.Is(err, shared.ErrDuplicatePosting), errors.Is(err, shared.ErrPrecondition):
		Fail(w, http.StatusBadRequest, err.Error(), nil)
	case errors.Is(err, shared.ErrNotFound):
		Fail(w, http.StatusNotFound, err.Error(), nil)
	case errors.Is(err, shared.ErrLockHeld):
		Fail(w, http.StatusConflict, err.Error(), nil)
	default:
		if logger == nil {
			logger = slog.Default()
		}
		logger.Error("request failed", slog.Any("error", err))
		Fail(w, http.StatusInternalServerError, "internal error; nothing was posted", nil)
	}
}
