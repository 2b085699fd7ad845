package fraud

import (
	"context"
	"sort"
	"sync"
	"time"
)

// History хранит отметки времени событий по ключу для скользящих окон.
type History interface {
	Record(ctx context.Context, key string, at time.Time) error
	Since(ctx context.Context, key string, from time.Time) ([]time.Time, error)
}

// MemoryHistory - история в памяти процесса. Записи старше retention отбрасываются при записи.
type MemoryHistory struct {
	mu        sync.Mutex
	entries   map[string][]time.Time
	retention time.Duration
}

func NewMemoryHistory(retention time.Duration) *MemoryHistory {
	return &MemoryHistory{entries: make(map[string][]time.Time), retention: retention}
}

func (h *MemoryHistory) Record(_ context.Context, key string, at time.Time) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	list := append(h.entries[key], at)
	sort.Slice(list, func(i, j int) bool { return list[i].Before(list[j]) })
	if h.retention > 0 {
		cutoff := at.Add(-h.retention)
		i := sort.Search(len(list), func(i int) bool { return !list[i].Before(cutoff) })
		list = list[i:]
	}
	h.entries[key] = list
	return nil
}

func (h *MemoryHistory) Since(_ context.Context, key string, from time.Time) ([]time.Time, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	list := h.entries[key]
	i := sort.Search(len(list), func(i int) bool { return !list[i].Before(from) })
	return append([]time.Time(nil), list[i:]...), nil
}
