package pipelinecache

import (
	"encoding/binary"
	"fmt"

	"github.com/spaghettifunk/shadercache/engine/cache/linear"
	"github.com/spaghettifunk/shadercache/engine/core"
	"github.com/spaghettifunk/shadercache/engine/renderer/metadata"
)

// FileVersion is the version written to the header of the blob file.
const FileVersion uint32 = 1

// blobKey is the key of the single record the blob file holds.
const blobKey uint32 = 1

// Store keeps the driver blob as the only record of a linear cache file.
type Store struct {
	path string
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

func (s *Store) Path() string {
	return s.path
}

// Load returns the stored blob. Anything but exactly one record under the
// blob key is treated as no data.
func (s *Store) Load() ([]byte, error) {
	var blob []byte
	found := false
	c := linear.NewDiskCache(FileVersion)
	n, err := c.OpenAndRead(s.path, func(key, value []byte) {
		if len(key) == 4 && binary.LittleEndian.Uint32(key) == blobKey {
			blob = value
			found = true
		}
	})
	if cerr := c.Close(); cerr != nil {
		core.LogWarn("Store.Load - closing %s: %s", s.path, cerr.Error())
	}
	if err != nil {
		return nil, err
	}
	if n != 1 || !found {
		if n > 0 {
			core.LogWarn("pipeline cache %s holds %d records, ignoring it", s.path, n)
		}
		return nil, nil
	}
	return blob, nil
}

// LoadValidated returns the stored blob if it was produced by device. A blob
// that fails validation is deleted and nil is returned; this is never fatal.
func (s *Store) LoadValidated(device metadata.DeviceIdentity) []byte {
	blob, err := s.Load()
	if err != nil {
		core.LogWarn("failed to read pipeline cache %s: %s", s.path, err.Error())
		return nil
	}
	if blob == nil {
		return nil
	}
	if err := Validate(blob, device); err != nil {
		core.LogWarn("discarding pipeline cache %s: %s", s.path, err.Error())
		if err := s.Remove(); err != nil {
			core.LogWarn("%s", err)
		}
		return nil
	}
	return blob
}

// Save replaces the stored blob.
func (s *Store) Save(blob []byte) error {
	if err := s.Remove(); err != nil {
		return err
	}

	c := linear.NewDiskCache(FileVersion)
	if _, err := c.OpenAndRead(s.path, nil); err != nil {
		return fmt.Errorf("Store.Save - %w", err)
	}
	key := binary.LittleEndian.AppendUint32(nil, blobKey)
	if !c.Append(key, blob) {
		c.Close()
		return fmt.Errorf("Store.Save - failed to append to %s", s.path)
	}
	if err := c.Close(); err != nil {
		return fmt.Errorf("Store.Save - %w", err)
	}
	return nil
}

func (s *Store) Remove() error {
	return linear.Remove(s.path)
}
