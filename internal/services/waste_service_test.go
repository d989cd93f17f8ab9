package services

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"medwaste-backend/internal/events"
	"medwaste-backend/internal/models"
	"medwaste-backend/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

var testNow = time.Unix(1700000000, 0)

func sharpsBin(level float64) models.Bin {
	return models.Bin{
		ID:           "bin-icu",
		Location:     "ICU - Ward 3",
		WasteType:    models.WasteTypeSharps,
		Capacity:     50,
		Threshold:    40,
		CurrentLevel: level,
		Status:       models.DeriveStatus(level, 40, 50, false),
		CreatedAt:    1,
	}
}

type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) handle(ev events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) types() []events.Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.Type, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Type)
	}
	return out
}

func newTestService(t *testing.T, st store.Store) (*WasteService, *recorder) {
	t.Helper()
	bus := events.NewBus()
	rec := &recorder{}
	bus.Subscribe(rec.handle)
	return NewWasteService(st, bus, WithClock(func() time.Time { return testNow })), rec
}

func sharpsDisposal(qty float64) DisposalInput {
	return DisposalInput{
		StaffID:   "staff-1",
		StaffName: "Nurse Joy",
		WasteType: models.WasteTypeSharps,
		Quantity:  qty,
		Unit:      models.UnitKg,
		BinID:     "bin-icu",
		Location:  "ICU - Ward 3",
	}
}

func getBin(t *testing.T, svc *WasteService, id string) models.Bin {
	t.Helper()
	bins, err := svc.ListBins(context.Background())
	require.NoError(t, err)
	for _, b := range bins {
		if b.ID == id {
			return b
		}
	}
	t.Fatalf("bin %s not found", id)
	return models.Bin{}
}

func openRequests(t *testing.T, svc *WasteService, binID string) []models.PickupRequest {
	t.Helper()
	requests, err := svc.ListPickupRequests(context.Background())
	require.NoError(t, err)
	var open []models.PickupRequest
	for _, r := range requests {
		if r.BinID == binID && r.Status.Open() {
			open = append(open, r)
		}
	}
	return open
}

func TestRecordDisposal_CrossesThreshold(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore(sharpsBin(35))
	svc, rec := newTestService(t, st)

	entry, err := svc.RecordDisposal(ctx, sharpsDisposal(10))
	require.NoError(t, err)
	assert.Equal(t, "ICU - Ward 3", entry.Location)
	assert.Equal(t, testNow.Unix(), entry.Timestamp)

	bin := getBin(t, svc, "bin-icu")
	assert.Equal(t, 45.0, bin.CurrentLevel)
	assert.Equal(t, models.BinStatusPickupRequested, bin.Status)
	assert.Equal(t, testNow.Unix(), bin.LastUpdated)

	open := openRequests(t, svc, "bin-icu")
	require.Len(t, open, 1)
	assert.Equal(t, models.PickupStatusPending, open[0].Status)
	assert.Equal(t, "ICU - Ward 3", open[0].Location)
	assert.Equal(t, models.WasteTypeSharps, open[0].WasteType)

	logs, err := svc.ListActivityLogs(ctx, 0)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	actions := []models.ActivityAction{logs[0].Action, logs[1].Action}
	assert.ElementsMatch(t, []models.ActivityAction{models.ActionWasteAdded, models.ActionPickupRequested}, actions)
	assert.Equal(t, "Nurse Joy", logs[0].UserName)

	assert.ElementsMatch(t, []events.Type{
		events.WasteEntryRecorded,
		events.PickupRequestCreated,
		events.BinChanged,
		events.ActivityLogCreated,
		events.ActivityLogCreated,
	}, rec.types())

	outbox := st.OutboxEvents()
	assert.Len(t, outbox, 3)
	for _, ev := range outbox {
		assert.Equal(t, DefaultOutboxTopic, ev.Topic)
		assert.Equal(t, models.OutboxStatusCreated, ev.Status)
	}
}

func TestRecordDisposal_ClampsAndKeepsSingleRequest(t *testing.T) {
	ctx := context.Background()
	svc, rec := newTestService(t, store.NewMemoryStore(sharpsBin(35)))

	_, err := svc.RecordDisposal(ctx, sharpsDisposal(10))
	require.NoError(t, err)
	first := openRequests(t, svc, "bin-icu")
	require.Len(t, first, 1)

	_, err = svc.RecordDisposal(ctx, sharpsDisposal(10))
	require.NoError(t, err)

	bin := getBin(t, svc, "bin-icu")
	assert.Equal(t, 50.0, bin.CurrentLevel)
	assert.Equal(t, models.BinStatusPickupRequested, bin.Status)

	open := openRequests(t, svc, "bin-icu")
	require.Len(t, open, 1)
	assert.Equal(t, first[0].ID, open[0].ID)

	created := 0
	for _, typ := range rec.types() {
		if typ == events.PickupRequestCreated {
			created++
		}
	}
	assert.Equal(t, 1, created)

	entries, err := svc.ListWasteEntries(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestCompletePickupRequest_ResetsBin(t *testing.T) {
	ctx := context.Background()
	svc, rec := newTestService(t, store.NewMemoryStore(sharpsBin(35)))

	_, err := svc.RecordDisposal(ctx, sharpsDisposal(10))
	require.NoError(t, err)
	_, err = svc.RecordDisposal(ctx, sharpsDisposal(10))
	require.NoError(t, err)
	open := openRequests(t, svc, "bin-icu")
	require.Len(t, open, 1)

	notes := "sealed"
	req, err := svc.CompletePickupRequest(ctx, CompletionInput{
		RequestID:   open[0].ID,
		HandlerID:   "h1",
		HandlerName: "Hank",
		Photos:      []string{"p1.jpg", "p2.jpg"},
		Notes:       &notes,
	})
	require.NoError(t, err)

	assert.Equal(t, models.PickupStatusCompleted, req.Status)
	assert.Len(t, req.DisposalPhotos, 2)
	require.NotNil(t, req.HandlerID)
	assert.Equal(t, "h1", *req.HandlerID)
	require.NotNil(t, req.CompletedAt)
	assert.Equal(t, testNow.Unix(), *req.CompletedAt)

	bin := getBin(t, svc, "bin-icu")
	assert.Equal(t, 0.0, bin.CurrentLevel)
	assert.Equal(t, models.BinStatusNormal, bin.Status)
	assert.Empty(t, openRequests(t, svc, "bin-icu"))

	logs, err := svc.ListActivityLogs(ctx, 1)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, models.ActionPickupCompleted, logs[0].Action)
	assert.Equal(t, "Hank", logs[0].UserName)

	assert.Contains(t, rec.types(), events.PickupRequestCompleted)
}

func TestCompletePickupRequest_Twice(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, store.NewMemoryStore(sharpsBin(45)))

	req, err := svc.CreatePickupRequest(ctx, "bin-icu")
	require.NoError(t, err)

	in := CompletionInput{RequestID: req.ID, HandlerID: "h1", HandlerName: "Hank"}
	_, err = svc.CompletePickupRequest(ctx, in)
	require.NoError(t, err)

	// refill below threshold so a second reset would be visible
	_, err = svc.RecordDisposal(ctx, sharpsDisposal(12))
	require.NoError(t, err)
	before := getBin(t, svc, "bin-icu")
	require.Equal(t, 12.0, before.CurrentLevel)

	second := in
	second.HandlerID = "h2"
	second.HandlerName = "Someone Else"
	second.Photos = []string{"late.jpg"}
	_, err = svc.CompletePickupRequest(ctx, second)
	assert.ErrorIs(t, err, models.ErrInvalidRequestState)

	after := getBin(t, svc, "bin-icu")
	assert.Equal(t, before, after)

	requests, err := svc.ListPickupRequests(ctx)
	require.NoError(t, err)
	require.Len(t, requests, 1)
	assert.Equal(t, models.PickupStatusCompleted, requests[0].Status)
	assert.Empty(t, requests[0].DisposalPhotos)
	require.NotNil(t, requests[0].HandlerName)
	assert.Equal(t, "Hank", *requests[0].HandlerName)
	require.NotNil(t, requests[0].CompletedAt)
	assert.Equal(t, testNow.Unix(), *requests[0].CompletedAt)
}

func TestCompletePickupRequest_Concurrent(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, store.NewMemoryStore(sharpsBin(45)))

	req, err := svc.CreatePickupRequest(ctx, "bin-icu")
	require.NoError(t, err)

	const workers = 10
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.CompletePickupRequest(ctx, CompletionInput{RequestID: req.ID, HandlerID: "h1", HandlerName: "Hank"})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, models.ErrInvalidRequestState)
	}
	assert.Equal(t, 1, succeeded)
}

func TestCompletePickupRequest_NotFound(t *testing.T) {
	svc, _ := newTestService(t, store.NewMemoryStore(sharpsBin(0)))

	_, err := svc.CompletePickupRequest(context.Background(), CompletionInput{RequestID: "missing", HandlerID: "h1", HandlerName: "Hank"})
	assert.ErrorIs(t, err, models.ErrRequestNotFound)
}

func TestCompletePickupRequest_RequiresHandler(t *testing.T) {
	ctx := context.Background()
	svc, rec := newTestService(t, store.NewMemoryStore(sharpsBin(45)))

	req, err := svc.CreatePickupRequest(ctx, "bin-icu")
	require.NoError(t, err)
	created := len(rec.types())

	tests := []struct {
		name string
		in   CompletionInput
	}{
		{"No handler", CompletionInput{RequestID: req.ID}},
		{"No handler id", CompletionInput{RequestID: req.ID, HandlerName: "Hank"}},
		{"No handler name", CompletionInput{RequestID: req.ID, HandlerID: "h1"}},
		{"Blank handler name", CompletionInput{RequestID: req.ID, HandlerID: "h1", HandlerName: "   "}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CompletePickupRequest(ctx, tt.in)
			assert.ErrorIs(t, err, models.ErrMissingHandler)
		})
	}

	open := openRequests(t, svc, "bin-icu")
	require.Len(t, open, 1)
	assert.Equal(t, models.PickupStatusPending, open[0].Status)
	assert.Nil(t, open[0].HandlerID)
	assert.Len(t, rec.types(), created)
}

func TestRecordDisposal_Validation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(in *DisposalInput)
		wantErr error
	}{
		{"Negative quantity", func(in *DisposalInput) { in.Quantity = -5 }, models.ErrInvalidQuantity},
		{"Zero quantity", func(in *DisposalInput) { in.Quantity = 0 }, models.ErrInvalidQuantity},
		{"NaN quantity", func(in *DisposalInput) { in.Quantity = math.NaN() }, models.ErrInvalidQuantity},
		{"Infinite quantity", func(in *DisposalInput) { in.Quantity = math.Inf(1) }, models.ErrInvalidQuantity},
		{"Unknown waste type", func(in *DisposalInput) { in.WasteType = "glass" }, models.ErrInvalidWasteType},
		{"Unknown unit", func(in *DisposalInput) { in.Unit = "tons" }, models.ErrInvalidUnit},
		{"Unknown bin", func(in *DisposalInput) { in.BinID = "nope" }, models.ErrBinNotFound},
		{"Type mismatch", func(in *DisposalInput) { in.WasteType = models.WasteTypeInfectious }, models.ErrWasteTypeMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			st := store.NewMemoryStore(sharpsBin(35))
			svc, rec := newTestService(t, st)

			in := sharpsDisposal(10)
			tt.mutate(&in)
			_, err := svc.RecordDisposal(ctx, in)
			require.ErrorIs(t, err, tt.wantErr)

			entries, err := svc.ListWasteEntries(ctx)
			require.NoError(t, err)
			assert.Empty(t, entries)

			logs, err := svc.ListActivityLogs(ctx, 0)
			require.NoError(t, err)
			assert.Empty(t, logs)

			bin := getBin(t, svc, "bin-icu")
			assert.Equal(t, 35.0, bin.CurrentLevel)
			assert.Equal(t, int64(0), bin.LastUpdated)

			assert.Empty(t, rec.types())
			assert.Empty(t, st.OutboxEvents())
		})
	}
}

func TestApplyDisposal(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, store.NewMemoryStore(sharpsBin(0)))

	bin, err := svc.ApplyDisposal(ctx, "bin-icu", 20)
	require.NoError(t, err)
	assert.Equal(t, 20.0, bin.CurrentLevel)
	assert.Equal(t, models.BinStatusNormal, bin.Status)
	assert.Empty(t, openRequests(t, svc, "bin-icu"))

	bin, err = svc.ApplyDisposal(ctx, "bin-icu", 20)
	require.NoError(t, err)
	assert.Equal(t, 40.0, bin.CurrentLevel)
	assert.Equal(t, models.BinStatusPickupRequested, bin.Status)
	assert.Len(t, openRequests(t, svc, "bin-icu"), 1)

	entries, err := svc.ListWasteEntries(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)

	_, err = svc.ApplyDisposal(ctx, "bin-icu", -1)
	assert.ErrorIs(t, err, models.ErrInvalidQuantity)
	_, err = svc.ApplyDisposal(ctx, "nope", 1)
	assert.ErrorIs(t, err, models.ErrBinNotFound)
}

func TestApplyDisposal_ClampProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		capacity := rapid.Float64Range(1, 500).Draw(t, "capacity")
		threshold := rapid.Float64Range(0.5, capacity).Draw(t, "threshold")
		level := rapid.Float64Range(0, threshold*0.99).Draw(t, "level")
		qty := rapid.Float64Range(0.001, 1000).Draw(t, "qty")

		bin := models.Bin{
			ID: "b", Location: "Ward", WasteType: models.WasteTypeInfectious,
			Capacity: capacity, Threshold: threshold, CurrentLevel: level,
		}
		svc := NewWasteService(store.NewMemoryStore(bin), nil)

		got, err := svc.ApplyDisposal(context.Background(), "b", qty)
		if err != nil {
			t.Fatalf("ApplyDisposal: %v", err)
		}
		if want := math.Min(level+qty, capacity); got.CurrentLevel != want {
			t.Fatalf("level = %v, want %v", got.CurrentLevel, want)
		}
		wantStatus := models.DeriveStatus(got.CurrentLevel, threshold, capacity, got.CurrentLevel >= threshold)
		if got.Status != wantStatus {
			t.Fatalf("status = %s, want %s", got.Status, wantStatus)
		}
	})
}

func TestCreatePickupRequest_Idempotent(t *testing.T) {
	ctx := context.Background()
	svc, rec := newTestService(t, store.NewMemoryStore(sharpsBin(10)))

	first, err := svc.CreatePickupRequest(ctx, "bin-icu")
	require.NoError(t, err)
	eventsAfterFirst := len(rec.types())

	second, err := svc.CreatePickupRequest(ctx, "bin-icu")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, rec.types(), eventsAfterFirst, "no-op must not announce anything")

	logs, err := svc.ListActivityLogs(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, logs, 1)
	assert.Equal(t, models.SystemActorName, logs[0].UserName)

	bin := getBin(t, svc, "bin-icu")
	assert.Equal(t, models.BinStatusPickupRequested, bin.Status)
	assert.Equal(t, 10.0, bin.CurrentLevel)
}

func TestCreatePickupRequest_Concurrent(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, store.NewMemoryStore(sharpsBin(10)))

	const workers = 20
	ids := make([]string, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req, err := svc.CreatePickupRequest(ctx, "bin-icu")
			if assert.NoError(t, err) {
				ids[i] = req.ID
			}
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	assert.Len(t, openRequests(t, svc, "bin-icu"), 1)
}

func TestRecordDisposal_ConcurrentThresholdCrossing(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, store.NewMemoryStore(sharpsBin(0)))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.RecordDisposal(ctx, sharpsDisposal(5))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	bin := getBin(t, svc, "bin-icu")
	assert.Equal(t, 50.0, bin.CurrentLevel)
	assert.Len(t, openRequests(t, svc, "bin-icu"), 1)

	entries, err := svc.ListWasteEntries(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, 10)
}

func TestCreatePickupRequest_UnknownBin(t *testing.T) {
	svc, _ := newTestService(t, store.NewMemoryStore(sharpsBin(0)))

	_, err := svc.CreatePickupRequest(context.Background(), "nope")
	assert.ErrorIs(t, err, models.ErrBinNotFound)
}

func TestActorFromContext(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, store.NewMemoryStore(sharpsBin(10)))

	ctx = ContextWithActor(ctx, models.Actor{ID: "u9", Name: "Dr. Who"})
	_, err := svc.CreatePickupRequest(ctx, "bin-icu")
	require.NoError(t, err)

	logs, err := svc.ListActivityLogs(ctx, 0)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	require.NotNil(t, logs[0].UserID)
	assert.Equal(t, "u9", *logs[0].UserID)
	assert.Equal(t, "Dr. Who", logs[0].UserName)
}

// faultyStore injects storage failures around a memory store.
type faultyStore struct {
	store.Store
	failUpdateBin   bool
	failActivityLog bool
	// hideOpenOnce makes the first transaction miss an open request that a
	// competing writer committed, like two racing Postgres transactions.
	hideOpenOnce bool
	competitor   *models.PickupRequest
	attempts     int
}

func (f *faultyStore) InTx(ctx context.Context, fn func(tx store.Tx) error) error {
	f.attempts++
	hide := f.hideOpenOnce && f.attempts == 1
	if hide {
		err := f.Store.InTx(ctx, func(tx store.Tx) error {
			return tx.InsertPickupRequest(ctx, f.competitor)
		})
		if err != nil {
			return err
		}
	}
	return f.Store.InTx(ctx, func(tx store.Tx) error {
		return fn(&faultyTx{Tx: tx, failUpdateBin: f.failUpdateBin, hideOpen: hide})
	})
}

func (f *faultyStore) InsertActivityLog(ctx context.Context, entry *models.ActivityLog) error {
	if f.failActivityLog {
		return errors.New("activity log unavailable")
	}
	return f.Store.InsertActivityLog(ctx, entry)
}

type faultyTx struct {
	store.Tx
	failUpdateBin bool
	hideOpen      bool
}

func (t *faultyTx) UpdateBin(ctx context.Context, bin *models.Bin) error {
	if t.failUpdateBin {
		return errors.New("connection reset by peer")
	}
	return t.Tx.UpdateBin(ctx, bin)
}

func (t *faultyTx) OpenPickupRequest(ctx context.Context, binID string) (*models.PickupRequest, error) {
	if t.hideOpen {
		return nil, nil
	}
	return t.Tx.OpenPickupRequest(ctx, binID)
}

func TestRecordDisposal_StorageFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore(sharpsBin(35))
	svc, rec := newTestService(t, &faultyStore{Store: mem, failUpdateBin: true})

	_, err := svc.RecordDisposal(ctx, sharpsDisposal(10))
	require.ErrorIs(t, err, models.ErrTransactionFailure)

	entries, err := mem.ListWasteEntries(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)

	requests, err := mem.ListPickupRequests(ctx)
	require.NoError(t, err)
	assert.Empty(t, requests)

	bins, err := mem.ListBins(ctx)
	require.NoError(t, err)
	assert.Equal(t, 35.0, bins[0].CurrentLevel)

	logs, err := mem.ListActivityLogs(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, logs)

	assert.Empty(t, rec.types())
	assert.Empty(t, mem.OutboxEvents())
}

func TestCompletePickupRequest_StorageFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore(sharpsBin(45))
	setup, _ := newTestService(t, mem)
	req, err := setup.CreatePickupRequest(ctx, "bin-icu")
	require.NoError(t, err)
	outboxBefore := len(mem.OutboxEvents())
	logsBefore, err := mem.ListActivityLogs(ctx, 0)
	require.NoError(t, err)

	svc, rec := newTestService(t, &faultyStore{Store: mem, failUpdateBin: true})
	_, err = svc.CompletePickupRequest(ctx, CompletionInput{
		RequestID:   req.ID,
		HandlerID:   "h1",
		HandlerName: "Hank",
		Photos:      []string{"p1.jpg"},
	})
	require.ErrorIs(t, err, models.ErrTransactionFailure)

	requests, err := mem.ListPickupRequests(ctx)
	require.NoError(t, err)
	require.Len(t, requests, 1)
	assert.Equal(t, models.PickupStatusPending, requests[0].Status)
	assert.Nil(t, requests[0].HandlerID)
	assert.Nil(t, requests[0].HandlerName)
	assert.Nil(t, requests[0].CompletedAt)
	assert.Empty(t, requests[0].DisposalPhotos)

	bins, err := mem.ListBins(ctx)
	require.NoError(t, err)
	assert.Equal(t, 45.0, bins[0].CurrentLevel)
	assert.Equal(t, models.BinStatusPickupRequested, bins[0].Status)

	logs, err := mem.ListActivityLogs(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, logs, len(logsBefore))

	assert.Empty(t, rec.types())
	assert.Len(t, mem.OutboxEvents(), outboxBefore)
}

func TestRecordDisposal_ActivityLogFailureIsNotFatal(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore(sharpsBin(35))
	svc, rec := newTestService(t, &faultyStore{Store: mem, failActivityLog: true})

	entry, err := svc.RecordDisposal(ctx, sharpsDisposal(10))
	require.NoError(t, err)
	require.NotNil(t, entry)

	bins, err := mem.ListBins(ctx)
	require.NoError(t, err)
	assert.Equal(t, 45.0, bins[0].CurrentLevel)
	assert.Equal(t, models.BinStatusPickupRequested, bins[0].Status)

	assert.NotContains(t, rec.types(), events.ActivityLogCreated)
	assert.Contains(t, rec.types(), events.WasteEntryRecorded)
}

func TestCreatePickupRequest_LostRaceReturnsWinner(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore(sharpsBin(10))
	competitor := &models.PickupRequest{
		ID:          "winner",
		BinID:       "bin-icu",
		Location:    "ICU - Ward 3",
		WasteType:   models.WasteTypeSharps,
		RequestedAt: testNow.Unix(),
		Status:      models.PickupStatusPending,
	}
	fs := &faultyStore{Store: mem, hideOpenOnce: true, competitor: competitor}
	svc, rec := newTestService(t, fs)

	req, err := svc.CreatePickupRequest(ctx, "bin-icu")
	require.NoError(t, err)
	assert.Equal(t, "winner", req.ID)
	assert.Equal(t, 2, fs.attempts)
	assert.Len(t, openRequests(t, svc, "bin-icu"), 1)
	assert.Empty(t, rec.types())
}
