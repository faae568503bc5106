package metadata

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/cespare/xxhash/v2"
)

const uidHeaderSize = 5

var ErrShortUid = errors.New("uid bytes too short")

// UidKey is the comparable identity of a ShaderUid. It never includes the cached hash.
type UidKey struct {
	Kind    ShaderKind
	Version uint32
	Data    string
}

// ShaderUid identifies one generated shader variant by the parameters that were
// fed to the source generator. The hash is memoized and may be stale until
// Canonicalize is called.
type ShaderUid struct {
	kind    ShaderKind
	version uint32
	data    string
	hash    uint64
}

func NewShaderUid(kind ShaderKind, version uint32, data []byte) ShaderUid {
	uid := ShaderUid{
		kind:    kind,
		version: version,
		data:    string(data),
	}
	uid.CalculateHash()
	return uid
}

func (u ShaderUid) Kind() ShaderKind {
	return u.kind
}

func (u ShaderUid) Version() uint32 {
	return u.version
}

func (u ShaderUid) Data() []byte {
	return []byte(u.data)
}

// Hash returns the memoized hash without recomputing it.
func (u ShaderUid) Hash() uint64 {
	return u.hash
}

func (u *ShaderUid) ClearHash() {
	u.hash = 0
}

// CalculateHash hashes kind, version and parameter data. The previous hash is not an input.
func (u *ShaderUid) CalculateHash() {
	var hdr [uidHeaderSize]byte
	hdr[0] = byte(u.kind)
	binary.LittleEndian.PutUint32(hdr[1:], u.version)

	d := xxhash.New()
	_, _ = d.Write(hdr[:])
	_, _ = d.WriteString(u.data)
	u.hash = d.Sum64()
}

// Canonicalize clears and recomputes the hash. Call it before using a UID that
// came from disk or from another process as a key.
func (u *ShaderUid) Canonicalize() {
	u.ClearHash()
	u.CalculateHash()
}

func (u ShaderUid) Key() UidKey {
	return UidKey{Kind: u.kind, Version: u.version, Data: u.data}
}

func (u ShaderUid) Equal(o ShaderUid) bool {
	return u.Key() == o.Key()
}

// MarshalBinary encodes kind, version and data. The hash is never written.
func (u ShaderUid) MarshalBinary() ([]byte, error) {
	out := make([]byte, uidHeaderSize+len(u.data))
	out[0] = byte(u.kind)
	binary.LittleEndian.PutUint32(out[1:uidHeaderSize], u.version)
	copy(out[uidHeaderSize:], u.data)
	return out, nil
}

// UnmarshalBinary decodes a key written by MarshalBinary. The hash is left
// cleared; callers canonicalize before use.
func (u *ShaderUid) UnmarshalBinary(b []byte) error {
	if len(b) < uidHeaderSize {
		return fmt.Errorf("%w: got %d bytes", ErrShortUid, len(b))
	}
	u.kind = ShaderKind(b[0])
	u.version = binary.LittleEndian.Uint32(b[1:uidHeaderSize])
	u.data = string(b[uidHeaderSize:])
	u.hash = 0
	return nil
}

func (u ShaderUid) String() string {
	return fmt.Sprintf("%s:v%d:%016x", u.kind.Tag(), u.version, u.hash)
}
