// Package pipelinecache validates and persists the driver's pipeline-cache blob.
// The driver prefixes the blob with a header identifying the device that
// produced it; a blob from any other device must never reach the driver.
package pipelinecache

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/spaghettifunk/shadercache/engine/renderer/metadata"
)

const (
	// HeaderSize is the size of the fixed header: length, version, vendor, device, uuid.
	HeaderSize = 16 + 16
	// HeaderVersionOne is the only header layout drivers emit.
	HeaderVersionOne uint32 = 1
)

var (
	ErrHeaderTooShort = errors.New("pipeline cache blob is shorter than its header")
	ErrHeaderLength   = errors.New("pipeline cache header length is invalid")
	ErrHeaderVersion  = errors.New("pipeline cache header version is unsupported")
	ErrVendorMismatch = errors.New("pipeline cache was created by another vendor")
	ErrDeviceMismatch = errors.New("pipeline cache was created by another device")
	ErrUUIDMismatch   = errors.New("pipeline cache UUID does not match the device")
)

type Header struct {
	Length   uint32
	Version  uint32
	VendorID uint32
	DeviceID uint32
	UUID     uuid.UUID
}

// ParseHeader decodes the little-endian header at the start of blob.
func ParseHeader(blob []byte) (Header, error) {
	if len(blob) < HeaderSize {
		return Header{}, fmt.Errorf("%w: %d bytes", ErrHeaderTooShort, len(blob))
	}
	h := Header{
		Length:   binary.LittleEndian.Uint32(blob[0:4]),
		Version:  binary.LittleEndian.Uint32(blob[4:8]),
		VendorID: binary.LittleEndian.Uint32(blob[8:12]),
		DeviceID: binary.LittleEndian.Uint32(blob[12:16]),
	}
	copy(h.UUID[:], blob[16:32])
	return h, nil
}

// Validate checks the header against the live device.
func (h Header) Validate(device metadata.DeviceIdentity) error {
	if h.Length < HeaderSize {
		return fmt.Errorf("%w: %d", ErrHeaderLength, h.Length)
	}
	if h.Version != HeaderVersionOne {
		return fmt.Errorf("%w: %d", ErrHeaderVersion, h.Version)
	}
	if h.VendorID != device.VendorID {
		return fmt.Errorf("%w: 0x%04x, device is 0x%04x", ErrVendorMismatch, h.VendorID, device.VendorID)
	}
	if h.DeviceID != device.DeviceID {
		return fmt.Errorf("%w: 0x%04x, device is 0x%04x", ErrDeviceMismatch, h.DeviceID, device.DeviceID)
	}
	if h.UUID != device.PipelineCacheUUID {
		return fmt.Errorf("%w: %s, device is %s", ErrUUIDMismatch, h.UUID, device.PipelineCacheUUID)
	}
	return nil
}

// Validate parses and validates the header of blob.
func Validate(blob []byte, device metadata.DeviceIdentity) error {
	h, err := ParseHeader(blob)
	if err != nil {
		return err
	}
	if uint64(h.Length) > uint64(len(blob)) {
		return fmt.Errorf("%w: %d exceeds blob size %d", ErrHeaderLength, h.Length, len(blob))
	}
	return h.Validate(device)
}

// MarshalBinary encodes the header the way a driver lays it out.
func (h Header) MarshalBinary() ([]byte, error) {
	out := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(out[0:4], h.Length)
	binary.LittleEndian.PutUint32(out[4:8], h.Version)
	binary.LittleEndian.PutUint32(out[8:12], h.VendorID)
	binary.LittleEndian.PutUint32(out[12:16], h.DeviceID)
	copy(out[16:32], h.UUID[:])
	return out, nil
}

// NewBlob builds a blob for device with the given body, as a driver would.
func NewBlob(device metadata.DeviceIdentity, body []byte) []byte {
	h := Header{
		Length:   HeaderSize,
		Version:  HeaderVersionOne,
		VendorID: device.VendorID,
		DeviceID: device.DeviceID,
		UUID:     device.PipelineCacheUUID,
	}
	raw, _ := h.MarshalBinary()
	return append(raw, body...)
}
