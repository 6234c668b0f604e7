// Package stopset implements the keyed collection shared by breakpoint
// sites and watchpoints: id-based and address-based lookup, insertion
// order iteration, and lifetime-tied removal.
//
// Grounded on the shape of github.com/go-delve/delve's pkg/proc.BreakpointMap
// (an address-keyed map with an id counter and a Clear that invokes the
// entry's disable behavior before removal), generalized here to a type
// parameter over any stop-point kind instead of one concrete
// *Breakpoint type.
package stopset

import "github.com/ptracer/ptracer/pkg/dbgerr"

// Item is the subset of behavior a stop-point must expose to live in a
// Set: a stable id, the address it watches, and a disable hook invoked
// on removal.
type Item interface {
	ID() int
	Address() uint64
	Disable() error
}

// Set is a keyed container generic over any stop-point type. Ids are
// unique and stable for the Set's lifetime; iteration order follows
// insertion order.
type Set[T Item] struct {
	order []int
	byID  map[int]T
	byAddr map[uint64]int
}

// New creates an empty Set.
func New[T Item]() *Set[T] {
	return &Set[T]{byID: make(map[int]T), byAddr: make(map[uint64]int)}
}

// Insert adds item to the set. It is an error to insert two items at
// the same address, or to reuse an id already present.
func (s *Set[T]) Insert(item T) error {
	if _, exists := s.byID[item.ID()]; exists {
		return dbgerr.Usagef("stop-point id %d already present", item.ID())
	}
	if _, exists := s.byAddr[item.Address()]; exists {
		return dbgerr.Usagef("stop-point already present at %#x", item.Address())
	}
	s.byID[item.ID()] = item
	s.byAddr[item.Address()] = item.ID()
	s.order = append(s.order, item.ID())
	return nil
}

// RemoveByID disables and removes the item with the given id.
func (s *Set[T]) RemoveByID(id int) error {
	item, ok := s.byID[id]
	if !ok {
		return dbgerr.Usagef("no stop-point with id %d", id)
	}
	return s.remove(item)
}

// RemoveByAddress disables and removes the item at the given address.
// Software-trap resolution pivots on the faulting address, so this is
// required alongside id-based removal.
func (s *Set[T]) RemoveByAddress(address uint64) error {
	id, ok := s.byAddr[address]
	if !ok {
		return dbgerr.Usagef("no stop-point at %#x", address)
	}
	return s.remove(s.byID[id])
}

func (s *Set[T]) remove(item T) error {
	if err := item.Disable(); err != nil {
		return err
	}
	delete(s.byID, item.ID())
	delete(s.byAddr, item.Address())
	for i, id := range s.order {
		if id == item.ID() {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

// GetByID returns the item with the given id.
func (s *Set[T]) GetByID(id int) (T, bool) {
	item, ok := s.byID[id]
	return item, ok
}

// GetByAddress returns the item at the given address.
func (s *Set[T]) GetByAddress(address uint64) (T, bool) {
	id, ok := s.byAddr[address]
	if !ok {
		var zero T
		return zero, false
	}
	return s.byID[id], true
}

// ContainsID reports whether id is present.
func (s *Set[T]) ContainsID(id int) bool { _, ok := s.byID[id]; return ok }

// ContainsAddress reports whether address is present.
func (s *Set[T]) ContainsAddress(address uint64) bool { _, ok := s.byAddr[address]; return ok }

// Size returns the number of items in the set.
func (s *Set[T]) Size() int { return len(s.order) }

// Empty reports whether the set has no items.
func (s *Set[T]) Empty() bool { return len(s.order) == 0 }

// ForEach calls f on every item in insertion order.
func (s *Set[T]) ForEach(f func(T)) {
	for _, id := range s.order {
		f(s.byID[id])
	}
}
