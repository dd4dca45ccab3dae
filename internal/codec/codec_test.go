package codec

import (
	"testing"
)

func TestEncodeDecode_RoundTrip(t *testing.T) {
	for _, n := range []int{0, 1, 12, 16, 32, 33} {
		b := MustRandom(n)
		s := Encode(b)
		got, err := Decode(s)
		if err != nil {
			t.Fatalf("Decode(%q) error: %v", s, err)
		}
		if string(got) != string(b) {
			t.Fatalf("round trip mismatch for n=%d", n)
		}
	}
}

func TestEncode_NoPadding(t *testing.T) {
	s := Encode(MustRandom(1))
	for _, c := range s {
		if c == '=' {
			t.Fatalf("encoded output %q contains padding", s)
		}
	}
}

func TestDecode_RejectsInvalidAlphabet(t *testing.T) {
	cases := []string{"abc+def", "abc/def", "abc def", "abc=def", "héllo"}
	for _, c := range cases {
		if _, err := Decode(c); err == nil {
			t.Fatalf("expected error decoding %q", c)
		}
	}
}

func TestRandom_Length(t *testing.T) {
	b, err := Random(32)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(b) != 32 {
		t.Fatalf("expected 32 bytes, got %d", len(b))
	}
}

func TestRandom_Distinct(t *testing.T) {
	a := MustRandom(32)
	b := MustRandom(32)
	if string(a) == string(b) {
		t.Fatalf("two independent Random(32) calls produced identical output")
	}
}
