package handlers

import (
	"errors"
	"log"
	"net/http"

	"medwaste-backend/internal/models"
	"medwaste-backend/pkg/utils"
)

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrInvalidQuantity),
		errors.Is(err, models.ErrInvalidWasteType),
		errors.Is(err, models.ErrInvalidUnit),
		errors.Is(err, models.ErrWasteTypeMismatch),
		errors.Is(err, models.ErrMissingHandler):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrBinNotFound),
		errors.Is(err, models.ErrRequestNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrInvalidRequestState):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func respondServiceError(w http.ResponseWriter, op string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Printf("❌ [%s] %v", op, err)
		utils.RespondError(w, status, "Internal server error")
		return
	}
	utils.RespondError(w, status, err.Error())
}
