package handlers

import (
	"net/http"
	"strconv"

	"medwaste-backend/internal/models"
	"medwaste-backend/internal/services"
	"medwaste-backend/pkg/utils"
)

// maxActivityLogLimit caps ?limit= so a client cannot pull the whole table.
const maxActivityLogLimit = 1000

// GetActivityLogs returns the newest activity log entries. ?limit= defaults
// to 100.
func GetActivityLogs(svc *services.WasteService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 0
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				utils.RespondError(w, http.StatusBadRequest, "limit must be a positive integer")
				return
			}
			limit = min(n, maxActivityLogLimit)
		}

		logs, err := svc.ListActivityLogs(r.Context(), limit)
		if err != nil {
			respondServiceError(w, "ACTIVITY", err)
			return
		}

		responses := make([]models.ActivityLogResponse, len(logs))
		for i, entry := range logs {
			responses[i] = entry.ToActivityLogResponse()
		}

		utils.RespondJSON(w, http.StatusOK, responses)
	}
}
