package addr

import "testing"

func TestAddAndIn(t *testing.T) {
	a := Address(0x1000)
	if got := a.Add(0x10); got != Address(0x1010) {
		t.Fatalf("Add: got %s, want 0x1010", got)
	}
	if !a.In(Address(0x1000), 16) {
		t.Fatalf("expected %s to be in [0x1000, 0x1010)", a)
	}
	if a.In(Address(0x1001), 16) {
		t.Fatalf("expected %s to not be in [0x1001, 0x1011)", a)
	}
}

func TestOverlaps(t *testing.T) {
	cases := []struct {
		a, b       Address
		asz, bsz   int
		wantOverlap bool
	}{
		{0x1000, 0x1000, 4, 4, true},
		{0x1000, 0x1004, 4, 4, false},
		{0x1000, 0x1003, 4, 4, true},
		{0x1000, 0x2000, 4, 4, false},
		{0x1000, 0x1000, 0, 4, false},
	}
	for _, c := range cases {
		if got := Overlaps(c.a, c.asz, c.b, c.bsz); got != c.wantOverlap {
			t.Errorf("Overlaps(%s,%d,%s,%d) = %v, want %v", c.a, c.asz, c.b, c.bsz, got, c.wantOverlap)
		}
	}
}

func TestString(t *testing.T) {
	if got := Address(0xdeadbeef).String(); got != "0x00000000deadbeef" {
		t.Fatalf("String: got %q", got)
	}
}
