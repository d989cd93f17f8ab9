package handlers

import (
	"encoding/json"
	"net/http"

	"medwaste-backend/internal/models"
	"medwaste-backend/internal/services"
	"medwaste-backend/pkg/utils"

	"github.com/go-chi/chi/v5"
)

// GetBins returns every bin, newest first
func GetBins(svc *services.WasteService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		bins, err := svc.ListBins(r.Context())
		if err != nil {
			respondServiceError(w, "BINS", err)
			return
		}

		responses := make([]models.BinResponse, len(bins))
		for i, bin := range bins {
			responses[i] = bin.ToBinResponse()
		}

		utils.RespondJSON(w, http.StatusOK, responses)
	}
}

// ApplyDisposal adds a quantity to a bin without writing a ledger entry.
// Used by sensor-style level updates.
func ApplyDisposal(svc *services.WasteService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		binID := chi.URLParam(r, "id")
		if binID == "" {
			utils.RespondError(w, http.StatusBadRequest, "Bin ID is required")
			return
		}

		var req models.ApplyDisposalRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			utils.RespondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		bin, err := svc.ApplyDisposal(r.Context(), binID, req.Quantity)
		if err != nil {
			respondServiceError(w, "BINS", err)
			return
		}

		utils.RespondJSON(w, http.StatusOK, bin.ToBinResponse())
	}
}

// CreatePickupRequest opens a pickup request for the bin, or returns the one
// already open.
func CreatePickupRequest(svc *services.WasteService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		binID := chi.URLParam(r, "id")
		if binID == "" {
			utils.RespondError(w, http.StatusBadRequest, "Bin ID is required")
			return
		}

		req, err := svc.CreatePickupRequest(r.Context(), binID)
		if err != nil {
			respondServiceError(w, "PICKUP", err)
			return
		}

		utils.RespondJSON(w, http.StatusOK, req.ToPickupRequestResponse())
	}
}
