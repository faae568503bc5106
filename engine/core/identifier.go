package core

import "fmt"

// IdentifierPool hands out small integer ids for owners and reuses released slots.
// Id 0 is never handed out so that a zero value can mean "null".
type IdentifierPool[T any] struct {
	owners []*T
}

func NewIdentifierPool[T any]() *IdentifierPool[T] {
	return &IdentifierPool[T]{
		owners: make([]*T, 1, 100),
	}
}

func (p *IdentifierPool[T]) Acquire(owner T) uint64 {
	length := uint64(len(p.owners))
	for i := uint64(1); i < length; i++ {
		// Existing free spot. Take it.
		if p.owners[i] == nil {
			p.owners[i] = &owner
			return i
		}
	}

	// If here, no existing free slots. Need a new id, so push one.
	p.owners = append(p.owners, &owner)
	return uint64(len(p.owners)) - 1
}

func (p *IdentifierPool[T]) Get(id uint64) (T, bool) {
	var zero T
	if id == 0 || id >= uint64(len(p.owners)) || p.owners[id] == nil {
		return zero, false
	}
	return *p.owners[id], true
}

func (p *IdentifierPool[T]) Release(id uint64) error {
	length := uint64(len(p.owners))
	if id == 0 || id >= length {
		return fmt.Errorf("IdentifierPool.Release: id '%d' out of range (max=%d). Nothing was done", id, length)
	}

	// Just zero out the entry, making it available for use.
	p.owners[id] = nil
	return nil
}

// Len returns the number of live ids.
func (p *IdentifierPool[T]) Len() int {
	n := 0
	for _, o := range p.owners[1:] {
		if o != nil {
			n++
		}
	}
	return n
}

// IDs returns the live ids in ascending order.
func (p *IdentifierPool[T]) IDs() []uint64 {
	ids := make([]uint64, 0, len(p.owners))
	for i := 1; i < len(p.owners); i++ {
		if p.owners[i] != nil {
			ids = append(ids, uint64(i))
		}
	}
	return ids
}
