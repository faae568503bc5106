// Package usage counts how often each shader variant is requested per workload
// and ranks them, so the most used ones can be compiled before they are needed.
package usage

import (
	"bytes"
	"cmp"
	"encoding/binary"
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/spaghettifunk/shadercache/engine/core"
	"github.com/spaghettifunk/shadercache/engine/renderer/metadata"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"
	"golang.org/x/exp/slices"
)

var (
	metaKey     = []byte("meta")
	entryPrefix = []byte("e/")
)

// Category identifies the workload that produced a usage count.
type Category uint64

// CategoryOf derives a stable category from a workload identifier.
func CategoryOf(workload string) Category {
	return Category(xxhash.Sum64String(workload))
}

type record[V any] struct {
	uid    metadata.ShaderUid
	value  V
	counts map[Category]uint64
}

func (r *record[V]) total() uint64 {
	var t uint64
	for _, c := range r.counts {
		t += c
	}
	return t
}

func (r *record[V]) usedOutside(category Category) bool {
	for cat, c := range r.counts {
		if cat != category && c > 0 {
			return true
		}
	}
	return false
}

// Profiler maps shader UIDs to a value and per-category usage counters.
// It is not safe for concurrent use.
type Profiler[V any] struct {
	db            *leveldb.DB
	path          string
	category      Category
	formatVersion uint32
	cacheID       string
	// MaxEntries bounds how many entries Persist keeps, most used first. Zero keeps all.
	MaxEntries int

	entries map[metadata.UidKey]*record[V]
}

func openStore(path string, readOnly bool) (*leveldb.DB, error) {
	o := &opt.Options{
		OpenFilesCacheCapacity: 16,
		Compression:            opt.NoCompression,
		ReadOnly:               readOnly,
		ErrorIfMissing:         readOnly,
	}

	var err error
	var db *leveldb.DB
	if path == "" {
		db, err = leveldb.Open(storage.NewMemStorage(), o)
	} else {
		db, err = leveldb.OpenFile(path, o)
		if errors.IsCorrupted(err) && !o.GetReadOnly() {
			core.LogWarn("usage store %s is corrupted, recovering", path)
			db, err = leveldb.RecoverFile(path, o)
		}
	}
	if err != nil {
		return nil, err
	}
	return db, nil
}

// Create opens the profile stored at filename for the given category. A store
// written with another formatVersion or cacheID belongs to a different
// generation; it is wiped and the profiler starts empty. An empty filename
// keeps the profile in memory.
func Create[V any](category Category, formatVersion uint32, cacheID, filename string) (*Profiler[V], error) {
	db, err := openStore(filename, false)
	if err != nil {
		return nil, fmt.Errorf("usage.Create - opening %s: %w", filename, err)
	}

	p := &Profiler[V]{
		db:            db,
		path:          filename,
		category:      category,
		formatVersion: formatVersion,
		cacheID:       cacheID,
		entries:       make(map[metadata.UidKey]*record[V]),
	}

	valid, err := p.checkMeta()
	if err != nil {
		db.Close()
		return nil, err
	}
	if !valid {
		if err := p.wipe(); err != nil {
			db.Close()
			return nil, err
		}
		return p, nil
	}
	if err := p.load(); err != nil {
		db.Close()
		return nil, err
	}
	return p, nil
}

func encodeMeta(formatVersion uint32, cacheID string) []byte {
	out := binary.LittleEndian.AppendUint32(nil, formatVersion)
	return append(out, cacheID...)
}

func decodeMeta(raw []byte) (uint32, string, bool) {
	if len(raw) < 4 {
		return 0, "", false
	}
	return binary.LittleEndian.Uint32(raw[:4]), string(raw[4:]), true
}

func (p *Profiler[V]) checkMeta() (bool, error) {
	raw, err := p.db.Get(metaKey, nil)
	if err == leveldb.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("usage - reading meta of %s: %w", p.path, err)
	}
	version, id, ok := decodeMeta(raw)
	if !ok || version != p.formatVersion || id != p.cacheID {
		core.LogInfo("usage profile %s belongs to another generation (version=%d id=%q), starting empty", p.path, version, id)
		return false, nil
	}
	return true, nil
}

func (p *Profiler[V]) wipe() error {
	batch := new(leveldb.Batch)
	it := p.db.NewIterator(util.BytesPrefix(entryPrefix), nil)
	for it.Next() {
		batch.Delete(bytes.Clone(it.Key()))
	}
	it.Release()
	if err := it.Error(); err != nil {
		return fmt.Errorf("usage - iterating %s: %w", p.path, err)
	}
	batch.Put(metaKey, encodeMeta(p.formatVersion, p.cacheID))
	if err := p.db.Write(batch, &opt.WriteOptions{Sync: true}); err != nil {
		return fmt.Errorf("usage - wiping %s: %w", p.path, err)
	}
	return nil
}

func encodeCounts(counts map[Category]uint64) []byte {
	cats := make([]Category, 0, len(counts))
	for cat, c := range counts {
		if c > 0 {
			cats = append(cats, cat)
		}
	}
	slices.Sort(cats)

	out := binary.LittleEndian.AppendUint32(make([]byte, 0, 4+16*len(cats)), uint32(len(cats)))
	for _, cat := range cats {
		out = binary.LittleEndian.AppendUint64(out, uint64(cat))
		out = binary.LittleEndian.AppendUint64(out, counts[cat])
	}
	return out
}

func decodeCounts(raw []byte) (map[Category]uint64, error) {
	if len(raw) < 4 {
		return nil, fmt.Errorf("counts too short: %d bytes", len(raw))
	}
	n := binary.LittleEndian.Uint32(raw[:4])
	raw = raw[4:]
	if uint64(len(raw)) != uint64(n)*16 {
		return nil, fmt.Errorf("counts length mismatch: %d pairs in %d bytes", n, len(raw))
	}
	counts := make(map[Category]uint64, n)
	for i := uint32(0); i < n; i++ {
		cat := Category(binary.LittleEndian.Uint64(raw[0:8]))
		counts[cat] = binary.LittleEndian.Uint64(raw[8:16])
		raw = raw[16:]
	}
	return counts, nil
}

func (p *Profiler[V]) load() error {
	it := p.db.NewIterator(util.BytesPrefix(entryPrefix), nil)
	defer it.Release()

	for it.Next() {
		var uid metadata.ShaderUid
		if err := uid.UnmarshalBinary(it.Key()[len(entryPrefix):]); err != nil {
			core.LogWarn("usage profile %s: skipping bad key: %s", p.path, err.Error())
			continue
		}
		counts, err := decodeCounts(it.Value())
		if err != nil {
			core.LogWarn("usage profile %s: skipping %s: %s", p.path, uid, err.Error())
			continue
		}
		uid.Canonicalize()
		p.entries[uid.Key()] = &record[V]{uid: uid, counts: counts}
	}
	if err := it.Error(); err != nil {
		return fmt.Errorf("usage - loading %s: %w", p.path, err)
	}
	return nil
}

func (p *Profiler[V]) lookup(uid metadata.ShaderUid) *record[V] {
	key := uid.Key()
	r, ok := p.entries[key]
	if !ok {
		r = &record[V]{uid: uid, counts: make(map[Category]uint64)}
		p.entries[key] = r
	}
	return r
}

// GetOrAdd returns the entry for uid, inserting a zero one if needed, and
// counts one use for the active category.
func (p *Profiler[V]) GetOrAdd(uid metadata.ShaderUid) *V {
	r := p.lookup(uid)
	r.counts[p.category]++
	return &r.value
}

// Insert is GetOrAdd without counting a use.
func (p *Profiler[V]) Insert(uid metadata.ShaderUid) *V {
	return &p.lookup(uid).value
}

func (p *Profiler[V]) Get(uid metadata.ShaderUid) (*V, bool) {
	r, ok := p.entries[uid.Key()]
	if !ok {
		return nil, false
	}
	return &r.value, true
}

// Remove forgets the entry and its usage counts.
func (p *Profiler[V]) Remove(uid metadata.ShaderUid) {
	delete(p.entries, uid.Key())
}

// Count returns the number of uses of uid recorded for category.
func (p *Profiler[V]) Count(uid metadata.ShaderUid, category Category) uint64 {
	r, ok := p.entries[uid.Key()]
	if !ok {
		return 0
	}
	return r.counts[category]
}

func (p *Profiler[V]) Len() int {
	return len(p.entries)
}

func (p *Profiler[V]) Category() Category {
	return p.category
}

// ForEachMostUsedByCategory visits the entries used by category, most used
// first, that pass filter. With exclusive set, entries that any other category
// used as well are skipped. total is the number of entries that will be
// visited, so filter is where entries get dropped, never visit.
func (p *Profiler[V]) ForEachMostUsedByCategory(category Category, visit func(uid metadata.ShaderUid, total int), filter func(uid metadata.ShaderUid, value *V) bool, exclusive bool) {
	candidates := make([]*record[V], 0, len(p.entries))
	for _, r := range p.entries {
		if r.counts[category] == 0 {
			continue
		}
		if exclusive && r.usedOutside(category) {
			continue
		}
		if filter != nil && !filter(r.uid, &r.value) {
			continue
		}
		candidates = append(candidates, r)
	}

	slices.SortFunc(candidates, func(a, b *record[V]) int {
		if c := cmp.Compare(b.counts[category], a.counts[category]); c != 0 {
			return c
		}
		return compareUids(a.uid, b.uid)
	})

	for _, r := range candidates {
		visit(r.uid, len(candidates))
	}
}

// compareUids gives a stable order for equally used entries.
func compareUids(a, b metadata.ShaderUid) int {
	if c := cmp.Compare(a.Hash(), b.Hash()); c != 0 {
		return c
	}
	ka, kb := a.Key(), b.Key()
	if c := cmp.Compare(ka.Kind, kb.Kind); c != 0 {
		return c
	}
	if c := cmp.Compare(ka.Version, kb.Version); c != 0 {
		return c
	}
	return cmp.Compare(ka.Data, kb.Data)
}

// ForEach visits every entry.
func (p *Profiler[V]) ForEach(visit func(uid metadata.ShaderUid, value *V)) {
	for _, r := range p.entries {
		visit(r.uid, &r.value)
	}
}

// Persist normalizes every stored UID and rewrites the store. Entries that
// were never used are not written; when MaxEntries is set only the most used
// survive.
func (p *Profiler[V]) Persist(normalize func(uid *metadata.ShaderUid)) error {
	retained := make([]*record[V], 0, len(p.entries))
	for _, r := range p.entries {
		if normalize != nil {
			normalize(&r.uid)
		}
		if r.total() > 0 {
			retained = append(retained, r)
		}
	}
	if p.MaxEntries > 0 && len(retained) > p.MaxEntries {
		slices.SortFunc(retained, func(a, b *record[V]) int {
			if c := cmp.Compare(b.total(), a.total()); c != 0 {
				return c
			}
			return compareUids(a.uid, b.uid)
		})
		retained = retained[:p.MaxEntries]
	}

	batch := new(leveldb.Batch)
	it := p.db.NewIterator(util.BytesPrefix(entryPrefix), nil)
	for it.Next() {
		batch.Delete(bytes.Clone(it.Key()))
	}
	it.Release()
	if err := it.Error(); err != nil {
		return fmt.Errorf("Profiler.Persist - iterating %s: %w", p.path, err)
	}

	batch.Put(metaKey, encodeMeta(p.formatVersion, p.cacheID))
	for _, r := range retained {
		raw, err := r.uid.MarshalBinary()
		if err != nil {
			return fmt.Errorf("Profiler.Persist - encoding %s: %w", r.uid, err)
		}
		batch.Put(append(bytes.Clone(entryPrefix), raw...), encodeCounts(r.counts))
	}
	if err := p.db.Write(batch, &opt.WriteOptions{Sync: true}); err != nil {
		return fmt.Errorf("Profiler.Persist - writing %s: %w", p.path, err)
	}
	core.LogDebug("persisted %d of %d usage entries to %s", len(retained), len(p.entries), p.path)
	return nil
}

func (p *Profiler[V]) Close() error {
	if p.db == nil {
		return nil
	}
	err := p.db.Close()
	p.db = nil
	return err
}
