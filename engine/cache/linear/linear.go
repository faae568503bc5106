// Package linear implements an append-only keyed log of binary blobs.
//
// File layout:
//
//	[magic "ANOC"][format: u32][version: u32]
//	[[keyLen: u32][valueLen: u32][key][value][xxhash64(key, value): u64]]..
//
// Records are never updated in place. A torn or corrupt tail, left behind by a
// crash during a write, ends the replay and is truncated away.
package linear

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/cespare/xxhash/v2"
	"github.com/gofrs/flock"
	"github.com/spaghettifunk/shadercache/engine/core"
)

const (
	headerMagic          = "ANOC"
	formatVersion uint32 = 1
	headerSize           = 12

	recordHeaderSize = 8
	checksumSize     = 8
	// Bigger records are treated as corruption.
	maxRecordSize = 256 << 20

	writeBufSize = 1 << 20

	// RecordsUnavailable is returned by OpenAndRead when the file cannot be opened.
	RecordsUnavailable = -1
)

var errCorruptRecord = errors.New("corrupt record")

// Reader receives every replayed record in file order. The slices are owned
// by the reader. Later records for the same key should replace earlier ones.
type Reader func(key, value []byte)

type DiskCache struct {
	// version is written to the header; a mismatch discards the file.
	version uint32

	path     string
	file     *os.File
	buffered *bufio.Writer
	lock     *flock.Flock
	readOnly bool

	// offset just after the last valid record
	size    int64
	records int
}

func NewDiskCache(version uint32) *DiskCache {
	return &DiskCache{version: version}
}

// OpenAndRead opens or creates the log at path and replays every valid
// record through reader. It returns the number of replayed records. A missing
// file is created and reports zero records without error.
func (c *DiskCache) OpenAndRead(path string, reader Reader) (int, error) {
	if c.file != nil {
		if err := c.Close(); err != nil {
			core.LogWarn("DiskCache.OpenAndRead - closing %s: %s", c.path, err.Error())
		}
	}
	c.path = path
	c.records = 0
	c.size = 0

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return RecordsUnavailable, fmt.Errorf("DiskCache.OpenAndRead - mkdir %s: %w", filepath.Dir(path), err)
	}

	lock := flock.New(path + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return RecordsUnavailable, fmt.Errorf("DiskCache.OpenAndRead - locking %s: %w", path, err)
	}
	c.readOnly = !locked
	if c.readOnly {
		core.LogWarn("%s is owned by another process, opening read-only", path)
	} else {
		c.lock = lock
	}

	flags := os.O_RDWR | os.O_CREATE
	if c.readOnly {
		flags = os.O_RDONLY
	}
	f, err := os.OpenFile(path, flags, 0644)
	if err != nil {
		c.releaseLock()
		if c.readOnly && errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return RecordsUnavailable, fmt.Errorf("DiskCache.OpenAndRead - opening %s: %w", path, err)
	}
	c.file = f

	valid, err := c.checkHeader()
	if err != nil {
		c.abort()
		return RecordsUnavailable, err
	}
	if !valid {
		if err := c.reset(); err != nil {
			c.abort()
			return RecordsUnavailable, err
		}
	} else if err := c.replay(reader); err != nil {
		c.abort()
		return RecordsUnavailable, err
	}

	if !c.readOnly {
		if _, err := c.file.Seek(c.size, io.SeekStart); err != nil {
			c.abort()
			return RecordsUnavailable, fmt.Errorf("DiskCache.OpenAndRead - seeking to end of %s: %w", path, err)
		}
		c.buffered = bufio.NewWriterSize(c.file, writeBufSize)
	}
	return c.records, nil
}

// checkHeader reports whether the file starts with a header for this version.
// An empty file is not valid and gets a fresh header.
func (c *DiskCache) checkHeader() (bool, error) {
	var hdr [headerSize]byte
	n, err := c.file.ReadAt(hdr[:], 0)
	if err != nil && !errors.Is(err, io.EOF) {
		return false, fmt.Errorf("DiskCache - reading header of %s: %w", c.path, err)
	}
	if n == 0 {
		return false, nil
	}
	if n < headerSize || string(hdr[:4]) != headerMagic {
		core.LogWarn("%s has an unknown header, discarding it", c.path)
		return false, nil
	}
	format := binary.LittleEndian.Uint32(hdr[4:8])
	version := binary.LittleEndian.Uint32(hdr[8:12])
	if format != formatVersion || version != c.version {
		core.LogInfo("%s was written by another version (format=%d version=%d, want %d/%d), discarding it",
			c.path, format, version, formatVersion, c.version)
		return false, nil
	}
	c.size = headerSize
	return true, nil
}

// reset truncates the file down to a fresh header.
func (c *DiskCache) reset() error {
	c.size = 0
	if c.readOnly {
		return nil
	}
	if err := c.file.Truncate(0); err != nil {
		return fmt.Errorf("DiskCache - truncating %s: %w", c.path, err)
	}
	var hdr [headerSize]byte
	copy(hdr[:4], headerMagic)
	binary.LittleEndian.PutUint32(hdr[4:8], formatVersion)
	binary.LittleEndian.PutUint32(hdr[8:12], c.version)
	if _, err := c.file.WriteAt(hdr[:], 0); err != nil {
		return fmt.Errorf("DiskCache - writing header of %s: %w", c.path, err)
	}
	c.size = headerSize
	return c.file.Sync()
}

func (c *DiskCache) replay(reader Reader) error {
	if _, err := c.file.Seek(headerSize, io.SeekStart); err != nil {
		return fmt.Errorf("DiskCache - seeking %s: %w", c.path, err)
	}
	r := bufio.NewReaderSize(c.file, writeBufSize)

	for {
		key, value, n, err := readRecord(r)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			core.LogWarn("%s: skipping damaged tail at offset %d: %s", c.path, c.size, err.Error())
			if !c.readOnly {
				if err := c.file.Truncate(c.size); err != nil {
					return fmt.Errorf("DiskCache - truncating damaged tail of %s: %w", c.path, err)
				}
			}
			return nil
		}
		if reader != nil {
			reader(key, value)
		}
		c.size += n
		c.records++
	}
}

// readRecord returns io.EOF only on a clean record boundary.
func readRecord(r io.Reader) ([]byte, []byte, int64, error) {
	var hdr [recordHeaderSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil, 0, io.EOF
		}
		return nil, nil, 0, err
	}
	keyLen := binary.LittleEndian.Uint32(hdr[0:4])
	valueLen := binary.LittleEndian.Uint32(hdr[4:8])
	if uint64(keyLen)+uint64(valueLen) > maxRecordSize {
		return nil, nil, 0, fmt.Errorf("%w: %d+%d bytes", errCorruptRecord, keyLen, valueLen)
	}

	body := make([]byte, int(keyLen)+int(valueLen)+checksumSize)
	if _, err := io.ReadFull(r, body); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, nil, 0, err
	}
	payload := body[:keyLen+valueLen]
	sum := binary.LittleEndian.Uint64(body[keyLen+valueLen:])
	if xxhash.Sum64(payload) != sum {
		return nil, nil, 0, fmt.Errorf("%w: checksum mismatch", errCorruptRecord)
	}
	return payload[:keyLen:keyLen], payload[keyLen:], int64(recordHeaderSize + len(body)), nil
}

func encodeRecord(key, value []byte) []byte {
	out := make([]byte, recordHeaderSize, recordHeaderSize+len(key)+len(value)+checksumSize)
	binary.LittleEndian.PutUint32(out[0:4], uint32(len(key)))
	binary.LittleEndian.PutUint32(out[4:8], uint32(len(value)))
	out = append(out, key...)
	out = append(out, value...)
	return binary.LittleEndian.AppendUint64(out, xxhash.Sum64(out[recordHeaderSize:]))
}

// Append writes one record. It reports false when the cache is closed,
// read-only, or the write failed.
func (c *DiskCache) Append(key, value []byte) bool {
	if c.buffered == nil || c.readOnly {
		return false
	}
	rec := encodeRecord(key, value)
	if _, err := c.buffered.Write(rec); err != nil {
		core.LogError("DiskCache.Append - writing to %s: %s", c.path, err.Error())
		return false
	}
	c.size += int64(len(rec))
	c.records++
	return true
}

// Sync flushes buffered records and fsyncs the file. A read-only cache has
// nothing to sync.
func (c *DiskCache) Sync() error {
	if c.file == nil {
		return fmt.Errorf("DiskCache.Sync - %s: %w", c.path, core.ErrCacheClosed)
	}
	if c.buffered == nil {
		return nil
	}
	if err := c.buffered.Flush(); err != nil {
		return fmt.Errorf("DiskCache.Sync - flushing %s: %w", c.path, err)
	}
	if err := c.file.Sync(); err != nil {
		return fmt.Errorf("DiskCache.Sync - syncing %s: %w", c.path, err)
	}
	return nil
}

// Close syncs and releases the file and its lock. Closing a closed cache is a no-op.
func (c *DiskCache) Close() error {
	if c.file == nil {
		return nil
	}
	err := c.Sync()
	if cerr := c.file.Close(); cerr != nil && err == nil {
		err = fmt.Errorf("DiskCache.Close - closing %s: %w", c.path, cerr)
	}
	c.file = nil
	c.buffered = nil
	c.releaseLock()
	return err
}

func (c *DiskCache) abort() {
	if c.file != nil {
		_ = c.file.Close()
	}
	c.file = nil
	c.buffered = nil
	c.releaseLock()
}

func (c *DiskCache) releaseLock() {
	if c.lock != nil {
		if err := c.lock.Unlock(); err != nil {
			core.LogWarn("DiskCache - unlocking %s: %s", c.path, err.Error())
		}
		c.lock = nil
	}
}

func (c *DiskCache) Path() string {
	return c.path
}

// Records returns the number of records in the log, replayed and appended.
func (c *DiskCache) Records() int {
	return c.records
}

// ReadOnly reports whether another process owns the file.
func (c *DiskCache) ReadOnly() bool {
	return c.readOnly
}

func (c *DiskCache) IsOpen() bool {
	return c.file != nil
}

// Remove deletes a cache file. A missing file is not an error.
func Remove(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("linear.Remove - %s: %w", path, err)
	}
	return nil
}

// CompactStats reports what Compact kept.
type CompactStats struct {
	Records int
	Kept    int
	Dropped int
	Before  int64
	After   int64
}

// Compact rewrites the log at path keeping only the last record for every key,
// in order of first appearance. progress, when set, is called once per record.
func Compact(path string, version uint32, progress func(current, total int)) (CompactStats, error) {
	var stats CompactStats

	var order [][]byte
	latest := make(map[string][]byte)
	c := NewDiskCache(version)
	n, err := c.OpenAndRead(path, func(key, value []byte) {
		if _, ok := latest[string(key)]; !ok {
			order = append(order, key)
		}
		latest[string(key)] = value
	})
	if err != nil {
		return stats, err
	}
	defer c.Close()
	if c.ReadOnly() {
		return stats, fmt.Errorf("linear.Compact - %s: %w", path, core.ErrCacheLocked)
	}
	stats.Records = n
	stats.Before = c.size

	tmpPath := path + ".compact"
	tmp, err := os.OpenFile(tmpPath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return stats, fmt.Errorf("linear.Compact - creating %s: %w", tmpPath, err)
	}
	defer os.Remove(tmpPath)

	w := bufio.NewWriterSize(tmp, writeBufSize)
	var hdr [headerSize]byte
	copy(hdr[:4], headerMagic)
	binary.LittleEndian.PutUint32(hdr[4:8], formatVersion)
	binary.LittleEndian.PutUint32(hdr[8:12], version)
	written := int64(headerSize)
	if _, err := w.Write(hdr[:]); err != nil {
		tmp.Close()
		return stats, fmt.Errorf("linear.Compact - writing header: %w", err)
	}
	for i, key := range order {
		rec := encodeRecord(key, latest[string(key)])
		if _, err := w.Write(rec); err != nil {
			tmp.Close()
			return stats, fmt.Errorf("linear.Compact - writing record: %w", err)
		}
		written += int64(len(rec))
		if progress != nil {
			progress(i+1, len(order))
		}
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return stats, fmt.Errorf("linear.Compact - flushing: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return stats, fmt.Errorf("linear.Compact - syncing: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return stats, fmt.Errorf("linear.Compact - closing: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return stats, fmt.Errorf("linear.Compact - replacing %s: %w", path, err)
	}

	stats.Kept = len(order)
	stats.Dropped = n - len(order)
	stats.After = written
	return stats, nil
}

// ReadAll replays path without taking ownership of it, for inspection tools.
func ReadAll(path string, version uint32, reader Reader) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return RecordsUnavailable, fmt.Errorf("linear.ReadAll - opening %s: %w", path, err)
	}
	defer f.Close()

	var hdr [headerSize]byte
	if _, err := io.ReadFull(f, hdr[:]); err != nil {
		return 0, nil
	}
	if !bytes.Equal(hdr[:4], []byte(headerMagic)) ||
		binary.LittleEndian.Uint32(hdr[4:8]) != formatVersion ||
		binary.LittleEndian.Uint32(hdr[8:12]) != version {
		return 0, nil
	}

	r := bufio.NewReaderSize(f, writeBufSize)
	count := 0
	for {
		key, value, _, err := readRecord(r)
		if err != nil {
			return count, nil
		}
		reader(key, value)
		count++
	}
}

// ReadVersion returns the caller version stored in the header of path.
func ReadVersion(path string) (uint32, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("linear.ReadVersion - opening %s: %w", path, err)
	}
	defer f.Close()

	var hdr [headerSize]byte
	if _, err := io.ReadFull(f, hdr[:]); err != nil {
		return 0, fmt.Errorf("linear.ReadVersion - %s: %w", path, err)
	}
	if string(hdr[:4]) != headerMagic {
		return 0, fmt.Errorf("linear.ReadVersion - %s is not a cache file", path)
	}
	return binary.LittleEndian.Uint32(hdr[8:12]), nil
}
