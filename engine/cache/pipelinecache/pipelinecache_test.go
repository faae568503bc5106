package pipelinecache

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/spaghettifunk/shadercache/engine/renderer/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var device = metadata.DeviceIdentity{
	Name:              "test gpu",
	VendorID:          0x10de,
	DeviceID:          0x2204,
	PipelineCacheUUID: uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8"),
}

func TestHeaderValidation(t *testing.T) {
	good := NewBlob(device, []byte("driver data"))
	require.NoError(t, Validate(good, device))

	h, err := ParseHeader(good)
	require.NoError(t, err)
	assert.EqualValues(t, HeaderSize, h.Length)
	assert.Equal(t, device.PipelineCacheUUID, h.UUID)

	tests := []struct {
		name   string
		mutate func(h *Header)
		want   error
	}{
		{"length", func(h *Header) { h.Length = 8 }, ErrHeaderLength},
		{"version", func(h *Header) { h.Version = 2 }, ErrHeaderVersion},
		{"vendor", func(h *Header) { h.VendorID = 0x1002 }, ErrVendorMismatch},
		{"device", func(h *Header) { h.DeviceID = 0x1234 }, ErrDeviceMismatch},
		{"uuid", func(h *Header) { h.UUID = uuid.Nil }, ErrUUIDMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := ParseHeader(good)
			require.NoError(t, err)
			tt.mutate(&h)
			raw, err := h.MarshalBinary()
			require.NoError(t, err)
			assert.ErrorIs(t, Validate(append(raw, good[HeaderSize:]...), device), tt.want)
		})
	}

	assert.ErrorIs(t, Validate(good[:10], device), ErrHeaderTooShort)
}

func TestStoreRoundTrip(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "vulkan-pipeline-game.cache"))

	blob, err := s.Load()
	require.NoError(t, err)
	assert.Nil(t, blob)

	want := NewBlob(device, []byte("first"))
	require.NoError(t, s.Save(want))
	got, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, want, got)

	// Save replaces the blob instead of appending to it.
	want = NewBlob(device, []byte("second"))
	require.NoError(t, s.Save(want))
	assert.Equal(t, want, s.LoadValidated(device))
}

func TestForeignDeviceBlobIsDeleted(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "pipeline.cache"))

	other := device
	other.DeviceID = 0x9999
	require.NoError(t, s.Save(NewBlob(other, []byte("foreign"))))

	assert.Nil(t, s.LoadValidated(device))
	_, err := os.Stat(s.Path())
	assert.True(t, os.IsNotExist(err))
}
