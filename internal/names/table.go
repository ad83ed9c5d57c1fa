// Package names stores file names in the fixed name slots of an archive.
//
// Names are XOR-obfuscated with the archive key. Slots freed by deletes are
// re-randomized and queued for reuse, so a slot never exposes a stale name.
package names

import (
	"crypto/rand"
	"fmt"
	"io"

	"github.com/meigma/packfs/internal/packtype"
	"github.com/meigma/packfs/internal/record"
)

// Store persists name slots.
type Store interface {
	WriteSlot(index int, s record.NameSlot) error
}

// Table tracks name slots in memory and persists every change.
type Table struct {
	key       [record.KeySize]byte
	maxFiles  int
	slots     map[int]record.NameSlot
	next      int // first index never handed out
	freeIdx   []int
	freeSlots []record.NameSlot
	store     Store
	rand      io.Reader
}

// Option configures a Table.
type Option func(*Table)

// WithRand sets the source of filler bytes. Defaults to crypto/rand.
func WithRand(r io.Reader) Option {
	return func(t *Table) {
		t.rand = r
	}
}

// New returns a table for an archive without names.
func New(key [record.KeySize]byte, maxFiles int, store Store, opts ...Option) *Table {
	return Load(key, maxFiles, nil, store, opts...)
}

// Load returns a table over the slots referenced by used blocks.
//
// Unused indices below the highest used index are queued for reuse in
// ascending order. Indices above it are handed out by growth.
func Load(key [record.KeySize]byte, maxFiles int, used map[int]record.NameSlot, store Store, opts ...Option) *Table {
	t := &Table{
		key:      key,
		maxFiles: maxFiles,
		slots:    make(map[int]record.NameSlot, len(used)),
		store:    store,
		rand:     rand.Reader,
	}
	for _, opt := range opts {
		opt(t)
	}
	for i, s := range used {
		t.slots[i] = s
		if i >= t.next {
			t.next = i + 1
		}
	}
	for i := range t.next {
		if _, ok := t.slots[i]; !ok {
			t.freeIdx = append(t.freeIdx, i)
		}
	}
	return t
}

// Len returns the number of stored names.
func (t *Table) Len() int {
	return len(t.slots)
}

// Store writes name into a free slot and returns its index.
func (t *Table) Store(name string) (int, error) {
	if err := checkName(name); err != nil {
		return -1, err
	}

	var index int
	switch {
	case len(t.freeIdx) > 0:
		index = t.freeIdx[0]
	case t.next < t.maxFiles:
		index = t.next
	default:
		return -1, packtype.ErrFileLimit
	}

	var slot record.NameSlot
	if len(t.freeSlots) > 0 {
		slot = t.freeSlots[0]
	} else if err := t.randomize(&slot); err != nil {
		return -1, err
	}
	slot.SetName(name, t.key)

	if err := t.store.WriteSlot(index, slot); err != nil {
		return -1, err
	}

	if len(t.freeIdx) > 0 {
		t.freeIdx = t.freeIdx[1:]
	} else {
		t.next++
	}
	if len(t.freeSlots) > 0 {
		t.freeSlots = t.freeSlots[1:]
	}
	t.slots[index] = slot
	return index, nil
}

// Read returns the name stored at index.
func (t *Table) Read(index int) (string, error) {
	slot, ok := t.slots[index]
	if !ok {
		return "", fmt.Errorf("%w: name slot %d is empty", packtype.ErrInvalidArgument, index)
	}
	return slot.Name(t.key), nil
}

// Rewrite replaces the name stored at index in place.
func (t *Table) Rewrite(index int, name string) error {
	if err := checkName(name); err != nil {
		return err
	}
	slot, ok := t.slots[index]
	if !ok {
		return fmt.Errorf("%w: name slot %d is empty", packtype.ErrInvalidArgument, index)
	}
	slot.SetName(name, t.key)
	if err := t.store.WriteSlot(index, slot); err != nil {
		return err
	}
	t.slots[index] = slot
	return nil
}

// Clear empties the slot at index and queues it for reuse.
func (t *Table) Clear(index int) error {
	if _, ok := t.slots[index]; !ok {
		return fmt.Errorf("%w: name slot %d is empty", packtype.ErrInvalidArgument, index)
	}
	var slot record.NameSlot
	if err := t.randomize(&slot); err != nil {
		return err
	}
	if err := t.store.WriteSlot(index, slot); err != nil {
		return err
	}
	delete(t.slots, index)
	t.freeIdx = append(t.freeIdx, index)
	t.freeSlots = append(t.freeSlots, slot)
	return nil
}

// randomize fills the slot buffer with random bytes and zeroes its length.
func (t *Table) randomize(slot *record.NameSlot) error {
	slot.Length = 0
	if _, err := io.ReadFull(t.rand, slot.Bytes[:]); err != nil {
		return fmt.Errorf("randomize name slot: %w", err)
	}
	return nil
}

func checkName(name string) error {
	if name == "" {
		return packtype.ErrInvalidName
	}
	if len(name) > record.MaxNameLength {
		return packtype.ErrNameTooLong
	}
	return nil
}
