package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"medwaste-backend/internal/middleware"
	"medwaste-backend/pkg/utils"

	"go.uber.org/zap"
)

// DiagnosticLog is a log line forwarded by the staff or handler app
type DiagnosticLog struct {
	Timestamp string                 `json:"timestamp"`
	Context   string                 `json:"context"`
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Data      map[string]interface{} `json:"data"`
	Platform  string                 `json:"platform"`
}

// ReceiveDiagnosticLog writes app diagnostics into the server log.
// POST /api/logs/diagnostic
func ReceiveDiagnosticLog() http.HandlerFunc {
	logger := zap.L().Named("diagnostic")

	return func(w http.ResponseWriter, r *http.Request) {
		var entry DiagnosticLog
		if err := json.NewDecoder(r.Body).Decode(&entry); err != nil {
			utils.RespondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		if strings.TrimSpace(entry.Message) == "" {
			utils.RespondError(w, http.StatusBadRequest, "message is required")
			return
		}

		fields := []zap.Field{
			zap.String("platform", entry.Platform),
			zap.String("context", entry.Context),
			zap.String("client_timestamp", entry.Timestamp),
		}
		if userClaims, ok := middleware.GetUserFromContext(r); ok {
			fields = append(fields, zap.String("user_id", userClaims.UserID), zap.String("role", userClaims.Role))
		}
		if len(entry.Data) > 0 {
			fields = append(fields, zap.Any("data", entry.Data))
		}

		switch strings.ToUpper(entry.Level) {
		case "ERROR":
			logger.Error(entry.Message, fields...)
		case "WARNING", "WARN":
			logger.Warn(entry.Message, fields...)
		case "DEBUG":
			logger.Debug(entry.Message, fields...)
		default:
			logger.Info(entry.Message, fields...)
		}

		utils.RespondJSON(w, http.StatusOK, map[string]string{
			"status": "received",
		})
	}
}
