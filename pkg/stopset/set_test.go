package stopset

import "testing"

type fakeItem struct {
	id       int
	address  uint64
	disabled bool
	disableErr error
}

func (f *fakeItem) ID() int      { return f.id }
func (f *fakeItem) Address() uint64 { return f.address }
func (f *fakeItem) Disable() error {
	f.disabled = true
	return f.disableErr
}

func TestInsertRejectsDuplicateIDAndAddress(t *testing.T) {
	s := New[*fakeItem]()
	if err := s.Insert(&fakeItem{id: 1, address: 0x1000}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := s.Insert(&fakeItem{id: 1, address: 0x2000}); err == nil {
		t.Fatal("expected duplicate id to fail")
	}
	if err := s.Insert(&fakeItem{id: 2, address: 0x1000}); err == nil {
		t.Fatal("expected duplicate address to fail")
	}
}

func TestRemoveByIDDisablesAndRemoves(t *testing.T) {
	s := New[*fakeItem]()
	item := &fakeItem{id: 1, address: 0x1000}
	_ = s.Insert(item)
	if err := s.RemoveByID(1); err != nil {
		t.Fatalf("RemoveByID: %v", err)
	}
	if !item.disabled {
		t.Fatal("expected Disable to be called before removal")
	}
	if s.ContainsID(1) || s.ContainsAddress(0x1000) {
		t.Fatal("item should be gone from both indexes")
	}
}

func TestRemoveByAddress(t *testing.T) {
	s := New[*fakeItem]()
	_ = s.Insert(&fakeItem{id: 1, address: 0x1000})
	if err := s.RemoveByAddress(0x1000); err != nil {
		t.Fatalf("RemoveByAddress: %v", err)
	}
	if s.Size() != 0 {
		t.Fatalf("Size = %d, want 0", s.Size())
	}
}

func TestForEachPreservesInsertionOrder(t *testing.T) {
	s := New[*fakeItem]()
	_ = s.Insert(&fakeItem{id: 3, address: 0x3000})
	_ = s.Insert(&fakeItem{id: 1, address: 0x1000})
	_ = s.Insert(&fakeItem{id: 2, address: 0x2000})

	var order []int
	s.ForEach(func(f *fakeItem) { order = append(order, f.id) })
	want := []int{3, 1, 2}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestEmptyAndGetMissing(t *testing.T) {
	s := New[*fakeItem]()
	if !s.Empty() {
		t.Fatal("new set should be empty")
	}
	if _, ok := s.GetByID(42); ok {
		t.Fatal("expected GetByID to miss on empty set")
	}
	if err := s.RemoveByID(42); err == nil {
		t.Fatal("expected RemoveByID to fail on missing id")
	}
}
