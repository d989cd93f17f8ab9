package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"medwaste-backend/internal/middleware"
	"medwaste-backend/internal/models"
	"medwaste-backend/internal/services"
	"medwaste-backend/pkg/utils"
)

func GetWasteEntries(svc *services.WasteService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entries, err := svc.ListWasteEntries(r.Context())
		if err != nil {
			respondServiceError(w, "WASTE", err)
			return
		}

		responses := make([]models.WasteEntryResponse, len(entries))
		for i, entry := range entries {
			responses[i] = entry.ToWasteEntryResponse()
		}

		utils.RespondJSON(w, http.StatusOK, responses)
	}
}

// RecordDisposal appends a ledger entry for the authenticated staff member
// and updates the target bin.
func RecordDisposal(svc *services.WasteService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userClaims, ok := middleware.GetUserFromContext(r)
		if !ok {
			utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		var req models.CreateWasteEntryRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			utils.RespondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		if strings.TrimSpace(req.BinID) == "" {
			utils.RespondError(w, http.StatusBadRequest, "bin_id is required")
			return
		}

		staffName := strings.TrimSpace(req.StaffName)
		if staffName == "" {
			staffName = userClaims.Name
		}

		entry, err := svc.RecordDisposal(r.Context(), services.DisposalInput{
			StaffID:     userClaims.UserID,
			StaffName:   staffName,
			WasteType:   req.WasteType,
			Quantity:    req.Quantity,
			Unit:        req.Unit,
			BinID:       req.BinID,
			Location:    req.Location,
			Description: req.Description,
		})
		if err != nil {
			respondServiceError(w, "WASTE", err)
			return
		}

		utils.RespondJSON(w, http.StatusCreated, entry.ToWasteEntryResponse())
	}
}
