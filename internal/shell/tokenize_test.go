package shell

import "testing"

func TestTokenizeSplitsOnWhitespace(t *testing.T) {
	words, err := Tokenize("watch 0x401000 rw 4")
	if err != nil {
		t.Fatalf("Tokenize: %v", err)
	}
	want := []string{"watch", "0x401000", "rw", "4"}
	if len(words) != len(want) {
		t.Fatalf("got %v, want %v", words, want)
	}
	for i := range want {
		if words[i] != want[i] {
			t.Fatalf("got %v, want %v", words, want)
		}
	}
}

func TestTokenizeEmptyLine(t *testing.T) {
	words, err := Tokenize("   ")
	if err != nil {
		t.Fatalf("Tokenize: %v", err)
	}
	if len(words) != 0 {
		t.Fatalf("expected no words for a blank line, got %v", words)
	}
}

func TestParseAddressAcceptsHexWithOrWithoutPrefix(t *testing.T) {
	a, err := parseAddress("0x401000")
	if err != nil || a != 0x401000 {
		t.Fatalf("parseAddress(0x401000) = %s, %v", a, err)
	}
	b, err := parseAddress("401000")
	if err != nil || b != 0x401000 {
		t.Fatalf("parseAddress(401000) = %s, %v", b, err)
	}
}

func TestParseAddressRejectsGarbage(t *testing.T) {
	if _, err := parseAddress("not-an-address"); err == nil {
		t.Fatal("expected failure on garbage address")
	}
}

func TestWidenUintPicksNarrowestFittingVariant(t *testing.T) {
	if widenUint(1, 0xff).ByteWidth() != 1 {
		t.Fatal("expected 1-byte variant for size 1")
	}
	if widenUint(8, 1).ByteWidth() != 8 {
		t.Fatal("expected 8-byte variant for size 8")
	}
}
