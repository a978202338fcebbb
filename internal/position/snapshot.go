package position

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// Snapshot captures all position books at a point in time.
type Snapshot struct {
	Timestamp int64   `json:"timestamp"`
	Positions []Entry `json:"positions"`
}

// Entry is a single symbol position entry.
type Entry struct {
	Symbol      string  `json:"symbol"`
	Qty         int64   `json:"qty"`
	AvgPrice    float64 `json:"avgPrice"`
	PendingBuy  int64   `json:"pendingBuy"`
	PendingSell int64   `json:"pendingSell"`
}

// snapshotLocked builds a snapshot. Caller holds m.mu.
func (m *Manager) snapshotLocked() Snapshot {
	entries := make([]Entry, 0, len(m.books))
	for symbol, b := range m.books {
		entries = append(entries, Entry{
			Symbol:      symbol,
			Qty:         b.qty,
			AvgPrice:    b.avgPrice,
			PendingBuy:  b.pendingBuy,
			PendingSell: b.pendingSell,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Symbol < entries[j].Symbol
	})
	return Snapshot{
		Timestamp: time.Now().UTC().UnixNano(),
		Positions: entries,
	}
}

// Snapshot returns the current state of all books.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

type snapshotWriter struct {
	path string
}

func newSnapshotWriter(path string) *snapshotWriter {
	return &snapshotWriter{path: path}
}

// write persists the snapshot with write-to-temp then rename so a crash
// never leaves a torn file behind.
func (w *snapshotWriter) write(snap Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(w.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp := w.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, w.path)
}

func (w *snapshotWriter) read() (Snapshot, error) {
	data, err := os.ReadFile(w.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Snapshot{}, nil
		}
		return Snapshot{}, err
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}
