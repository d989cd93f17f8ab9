package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"medwaste-backend/internal/middleware"
	"medwaste-backend/internal/models"
	"medwaste-backend/internal/services"
	"medwaste-backend/pkg/utils"

	"github.com/go-chi/chi/v5"
)

func GetPickupRequests(svc *services.WasteService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requests, err := svc.ListPickupRequests(r.Context())
		if err != nil {
			respondServiceError(w, "PICKUP", err)
			return
		}

		responses := make([]models.PickupRequestResponse, len(requests))
		for i, req := range requests {
			responses[i] = req.ToPickupRequestResponse()
		}

		utils.RespondJSON(w, http.StatusOK, responses)
	}
}

// CompletePickupRequest is called by the waste handler once the bin has been
// emptied. Photos are URLs of already uploaded images.
func CompletePickupRequest(svc *services.WasteService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID := chi.URLParam(r, "id")
		if requestID == "" {
			utils.RespondError(w, http.StatusBadRequest, "Request ID is required")
			return
		}

		userClaims, ok := middleware.GetUserFromContext(r)
		if !ok {
			utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		var req models.CompletePickupRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			utils.RespondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		handlerName := strings.TrimSpace(req.HandlerName)
		if handlerName == "" {
			handlerName = userClaims.Name
		}

		completed, err := svc.CompletePickupRequest(r.Context(), services.CompletionInput{
			RequestID:   requestID,
			HandlerID:   userClaims.UserID,
			HandlerName: handlerName,
			Photos:      req.Photos,
			Notes:       req.Notes,
		})
		if err != nil {
			respondServiceError(w, "PICKUP", err)
			return
		}

		utils.RespondJSON(w, http.StatusOK, completed.ToPickupRequestResponse())
	}
}
