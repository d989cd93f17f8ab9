package store

import (
	"context"
	"sort"
	"sync"

	"medwaste-backend/internal/models"
)

// MemoryStore keeps everything in process. A transaction holds the store
// mutex for its whole duration and works on a copy of the state, which is
// swapped in only on success. Used when no DATABASE_URL is configured and in
// tests.
type MemoryStore struct {
	mu    sync.Mutex
	state *memoryState
}

type memoryState struct {
	bins     map[string]models.Bin
	entries  []models.WasteEntry
	requests []*models.PickupRequest
	logs     []models.ActivityLog
	outbox   []models.OutboxEvent
}

func NewMemoryStore(bins ...models.Bin) *MemoryStore {
	st := &memoryState{bins: make(map[string]models.Bin, len(bins))}
	for _, b := range bins {
		st.bins[b.ID] = b
	}
	return &MemoryStore{state: st}
}

// clone copies the mutable parts. Ledger and log slices are append-only, so
// a capped copy of the slice header is enough for them.
func (st *memoryState) clone() *memoryState {
	c := &memoryState{
		bins:     make(map[string]models.Bin, len(st.bins)),
		entries:  st.entries[:len(st.entries):len(st.entries)],
		requests: make([]*models.PickupRequest, len(st.requests)),
		logs:     st.logs,
		outbox:   make([]models.OutboxEvent, len(st.outbox)),
	}
	for id, b := range st.bins {
		c.bins[id] = b
	}
	for i, r := range st.requests {
		c.requests[i] = r.Clone()
	}
	copy(c.outbox, st.outbox)
	return c
}

func (s *MemoryStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	draft := s.state.clone()
	if err := fn(&memoryTx{state: draft}); err != nil {
		return err
	}
	s.state = draft
	return nil
}

func (s *MemoryStore) ListBins(ctx context.Context) ([]models.Bin, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bins := make([]models.Bin, 0, len(s.state.bins))
	for _, b := range s.state.bins {
		bins = append(bins, b)
	}
	sort.Slice(bins, func(i, j int) bool {
		if bins[i].CreatedAt != bins[j].CreatedAt {
			return bins[i].CreatedAt > bins[j].CreatedAt
		}
		return bins[i].ID < bins[j].ID
	})
	return bins, nil
}

func (s *MemoryStore) ListWasteEntries(ctx context.Context) ([]models.WasteEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := make([]models.WasteEntry, len(s.state.entries))
	for i, e := range s.state.entries {
		entries[len(entries)-1-i] = e
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp > entries[j].Timestamp
	})
	return entries, nil
}

func (s *MemoryStore) ListPickupRequests(ctx context.Context) ([]models.PickupRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	requests := make([]models.PickupRequest, len(s.state.requests))
	for i, r := range s.state.requests {
		requests[len(requests)-1-i] = *r.Clone()
	}
	sort.SliceStable(requests, func(i, j int) bool {
		return requests[i].RequestedAt > requests[j].RequestedAt
	})
	return requests, nil
}

func (s *MemoryStore) ListActivityLogs(ctx context.Context, limit int) ([]models.ActivityLog, error) {
	if limit <= 0 {
		limit = DefaultActivityLogLimit
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	logs := make([]models.ActivityLog, len(s.state.logs))
	for i, l := range s.state.logs {
		logs[len(logs)-1-i] = l
	}
	sort.SliceStable(logs, func(i, j int) bool {
		return logs[i].Timestamp > logs[j].Timestamp
	})
	if len(logs) > limit {
		logs = logs[:limit]
	}
	return logs, nil
}

func (s *MemoryStore) InsertActivityLog(ctx context.Context, entry *models.ActivityLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.logs = append(s.state.logs, *entry)
	return nil
}

func (s *MemoryStore) ClaimOutboxBatch(ctx context.Context, limit, maxAttempts int) ([]models.OutboxEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var claimed []models.OutboxEvent
	for i := range s.state.outbox {
		if len(claimed) >= limit {
			break
		}
		ev := &s.state.outbox[i]
		deliverable := ev.Status == models.OutboxStatusCreated ||
			(ev.Status == models.OutboxStatusFailed && ev.Attempts < maxAttempts)
		if !deliverable {
			continue
		}
		ev.Status = models.OutboxStatusProcessing
		claimed = append(claimed, *ev)
	}
	return claimed, nil
}

func (s *MemoryStore) MarkOutboxDone(ctx context.Context, id string, completedAt int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ev := s.findOutbox(id); ev != nil {
		ev.Status = models.OutboxStatusDone
		ev.CompletedAt = &completedAt
		ev.UpdatedAt = completedAt
		ev.LastError = nil
	}
	return nil
}

func (s *MemoryStore) MarkOutboxFailed(ctx context.Context, id string, attempts int, lastError string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ev := s.findOutbox(id); ev != nil {
		ev.Status = models.OutboxStatusFailed
		ev.Attempts = attempts
		ev.LastError = &lastError
	}
	return nil
}

// OutboxEvents returns a snapshot of the outbox, oldest first.
func (s *MemoryStore) OutboxEvents() []models.OutboxEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.OutboxEvent, len(s.state.outbox))
	copy(out, s.state.outbox)
	return out
}

func (s *MemoryStore) findOutbox(id string) *models.OutboxEvent {
	for i := range s.state.outbox {
		if s.state.outbox[i].ID == id {
			return &s.state.outbox[i]
		}
	}
	return nil
}

type memoryTx struct {
	state *memoryState
}

func (t *memoryTx) LockBin(ctx context.Context, binID string) (*models.Bin, error) {
	b, ok := t.state.bins[binID]
	if !ok {
		return nil, models.ErrBinNotFound
	}
	return &b, nil
}

func (t *memoryTx) UpdateBin(ctx context.Context, bin *models.Bin) error {
	if _, ok := t.state.bins[bin.ID]; !ok {
		return models.ErrBinNotFound
	}
	t.state.bins[bin.ID] = *bin
	return nil
}

func (t *memoryTx) InsertWasteEntry(ctx context.Context, entry *models.WasteEntry) error {
	if _, ok := t.state.bins[entry.BinID]; !ok {
		return models.ErrBinNotFound
	}
	t.state.entries = append(t.state.entries, *entry)
	return nil
}

func (t *memoryTx) OpenPickupRequest(ctx context.Context, binID string) (*models.PickupRequest, error) {
	for _, r := range t.state.requests {
		if r.BinID == binID && r.Status.Open() {
			return r.Clone(), nil
		}
	}
	return nil, nil
}

func (t *memoryTx) GetPickupRequest(ctx context.Context, id string) (*models.PickupRequest, error) {
	for _, r := range t.state.requests {
		if r.ID == id {
			return r.Clone(), nil
		}
	}
	return nil, models.ErrRequestNotFound
}

func (t *memoryTx) InsertPickupRequest(ctx context.Context, req *models.PickupRequest) error {
	if _, ok := t.state.bins[req.BinID]; !ok {
		return models.ErrBinNotFound
	}
	if req.Status.Open() {
		for _, r := range t.state.requests {
			if r.BinID == req.BinID && r.Status.Open() {
				return ErrOpenRequestExists
			}
		}
	}
	t.state.requests = append(t.state.requests, req.Clone())
	return nil
}

func (t *memoryTx) UpdatePickupRequest(ctx context.Context, req *models.PickupRequest) error {
	for i, r := range t.state.requests {
		if r.ID != req.ID {
			continue
		}
		if r.Status == models.PickupStatusCompleted {
			return models.ErrInvalidRequestState
		}
		t.state.requests[i] = req.Clone()
		return nil
	}
	return models.ErrRequestNotFound
}

func (t *memoryTx) InsertOutboxEvents(ctx context.Context, events []models.OutboxEvent) error {
	for _, ev := range events {
		ev.Status = models.OutboxStatusCreated
		ev.UpdatedAt = ev.CreatedAt
		t.state.outbox = append(t.state.outbox, ev)
	}
	return nil
}
