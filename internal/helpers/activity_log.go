package helpers

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"medwaste-backend/internal/models"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx/types"
)

// ActivityLogWriter is the part of the store the activity helpers need.
type ActivityLogWriter interface {
	InsertActivityLog(ctx context.Context, entry *models.ActivityLog) error
}

// LogWasteAdded logs when a disposal is recorded
func LogWasteAdded(ctx context.Context, w ActivityLogWriter, entry *models.WasteEntry, actor models.Actor, now time.Time) (*models.ActivityLog, error) {
	return writeActivity(ctx, w, models.ActionWasteAdded, models.EntityWasteEntry, entry.ID, actor, now, map[string]interface{}{
		"wasteType": entry.WasteType,
		"quantity":  entry.Quantity,
		"unit":      entry.Unit,
		"location":  entry.Location,
	})
}

// LogPickupRequested logs when a pickup request is opened for a bin
func LogPickupRequested(ctx context.Context, w ActivityLogWriter, req *models.PickupRequest, actor models.Actor, now time.Time) (*models.ActivityLog, error) {
	return writeActivity(ctx, w, models.ActionPickupRequested, models.EntityPickupRequest, req.ID, actor, now, map[string]interface{}{
		"location":  req.Location,
		"wasteType": req.WasteType,
	})
}

// LogPickupCompleted logs when a handler completes a pickup
func LogPickupCompleted(ctx context.Context, w ActivityLogWriter, req *models.PickupRequest, actor models.Actor, now time.Time) (*models.ActivityLog, error) {
	var handlerName string
	if req.HandlerName != nil {
		handlerName = *req.HandlerName
	}

	return writeActivity(ctx, w, models.ActionPickupCompleted, models.EntityPickupRequest, req.ID, actor, now, map[string]interface{}{
		"location":    req.Location,
		"wasteType":   req.WasteType,
		"handlerName": handlerName,
		"photosCount": len(req.DisposalPhotos),
		"notes":       req.Notes,
	})
}

func writeActivity(ctx context.Context, w ActivityLogWriter, action models.ActivityAction, entityType, entityID string,
	actor models.Actor, now time.Time, details map[string]interface{}) (*models.ActivityLog, error) {

	raw, err := json.Marshal(details)
	if err != nil {
		log.Printf("[ACTIVITY] Failed to encode details for '%s' on %s %s: %v", action, entityType, entityID, err)
		return nil, err
	}

	id := entityID
	entry := &models.ActivityLog{
		ID:         uuid.New().String(),
		Action:     action,
		EntityType: entityType,
		EntityID:   &id,
		UserID:     actor.IDPtr(),
		UserName:   actor.DisplayName(),
		Details:    types.JSONText(raw),
		Timestamp:  now.Unix(),
	}

	if err := w.InsertActivityLog(ctx, entry); err != nil {
		log.Printf("[ACTIVITY] Failed to log '%s' action for %s %s: %v", action, entityType, entityID, err)
		return nil, err
	}

	return entry, nil
}
