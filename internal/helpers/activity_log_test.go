package helpers

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"medwaste-backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingWriter struct {
	logs []*models.ActivityLog
	err  error
}

func (w *recordingWriter) InsertActivityLog(ctx context.Context, entry *models.ActivityLog) error {
	if w.err != nil {
		return w.err
	}
	w.logs = append(w.logs, entry)
	return nil
}

func TestLogWasteAdded(t *testing.T) {
	w := &recordingWriter{}
	now := time.Unix(1700000000, 0)
	entry := &models.WasteEntry{ID: "e1", WasteType: models.WasteTypeSharps, Quantity: 2.5, Unit: models.UnitKg, Location: "ICU"}

	got, err := LogWasteAdded(context.Background(), w, entry, models.Actor{ID: "u1", Name: "Nurse Joy"}, now)
	require.NoError(t, err)
	require.Len(t, w.logs, 1)

	assert.Equal(t, models.ActionWasteAdded, got.Action)
	assert.Equal(t, models.EntityWasteEntry, got.EntityType)
	assert.Equal(t, "e1", *got.EntityID)
	assert.Equal(t, "u1", *got.UserID)
	assert.Equal(t, "Nurse Joy", got.UserName)
	assert.Equal(t, int64(1700000000), got.Timestamp)

	var details map[string]interface{}
	require.NoError(t, json.Unmarshal(got.Details, &details))
	assert.Equal(t, "sharps", details["wasteType"])
	assert.Equal(t, 2.5, details["quantity"])
	assert.Equal(t, "kg", details["unit"])
	assert.Equal(t, "ICU", details["location"])
}

func TestLogPickupCompleted_SystemActor(t *testing.T) {
	w := &recordingWriter{}
	handler := "Hank"
	notes := "double bagged"
	req := &models.PickupRequest{
		ID:             "r1",
		Location:       "ICU",
		WasteType:      models.WasteTypeSharps,
		HandlerName:    &handler,
		DisposalPhotos: []string{"a.jpg", "b.jpg"},
		Notes:          &notes,
	}

	got, err := LogPickupCompleted(context.Background(), w, req, models.Actor{}, time.Now())
	require.NoError(t, err)

	assert.Nil(t, got.UserID)
	assert.Equal(t, models.SystemActorName, got.UserName)

	var details map[string]interface{}
	require.NoError(t, json.Unmarshal(got.Details, &details))
	assert.Equal(t, "Hank", details["handlerName"])
	assert.Equal(t, float64(2), details["photosCount"])
	assert.Equal(t, "double bagged", details["notes"])
}

func TestLogPickupRequested_WriteFailure(t *testing.T) {
	boom := errors.New("disk full")
	w := &recordingWriter{err: boom}

	got, err := LogPickupRequested(context.Background(), w, &models.PickupRequest{ID: "r1"}, models.Actor{}, time.Now())
	assert.ErrorIs(t, err, boom)
	assert.Nil(t, got)
}
