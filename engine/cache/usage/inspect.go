package usage

import (
	"cmp"
	"fmt"

	"github.com/spaghettifunk/shadercache/engine/renderer/metadata"
	"golang.org/x/exp/slices"
)

// Row is one stored profile entry as seen by Inspect.
type Row struct {
	UID    metadata.ShaderUid
	Counts map[Category]uint64
}

// Total returns the usage summed over all categories.
func (r Row) Total() uint64 {
	var t uint64
	for _, c := range r.Counts {
		t += c
	}
	return t
}

// Snapshot is a read-only copy of a persisted profile.
type Snapshot struct {
	FormatVersion uint32
	CacheID       string
	Rows          []Row
}

// Inspect reads a persisted profile without validating or modifying it.
func Inspect(filename string) (*Snapshot, error) {
	db, err := openStore(filename, true)
	if err != nil {
		return nil, fmt.Errorf("usage.Inspect - opening %s: %w", filename, err)
	}
	defer db.Close()

	p := &Profiler[struct{}]{
		db:      db,
		path:    filename,
		entries: make(map[metadata.UidKey]*record[struct{}]),
	}

	snap := &Snapshot{}
	raw, err := db.Get(metaKey, nil)
	if err == nil {
		snap.FormatVersion, snap.CacheID, _ = decodeMeta(raw)
	}
	if err := p.load(); err != nil {
		return nil, err
	}
	for _, r := range p.entries {
		snap.Rows = append(snap.Rows, Row{UID: r.uid, Counts: r.counts})
	}
	slices.SortFunc(snap.Rows, func(a, b Row) int {
		if c := cmp.Compare(b.Total(), a.Total()); c != 0 {
			return c
		}
		return compareUids(a.UID, b.UID)
	})
	return snap, nil
}

// Top returns up to n rows used by category, most used first. n <= 0 returns all.
func (s *Snapshot) Top(category Category, n int) []Row {
	var out []Row
	for _, r := range s.Rows {
		if r.Counts[category] > 0 {
			out = append(out, r)
		}
	}
	slices.SortStableFunc(out, func(a, b Row) int {
		return cmp.Compare(b.Counts[category], a.Counts[category])
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}
