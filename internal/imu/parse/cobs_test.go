package parse

import (
	"bytes"
	"testing"
)

func TestCobs_RoundTrip(t *testing.T) {
	long := bytes.Repeat([]byte{0xAA}, 300)
	payloads := [][]byte{
		{},
		{0x00},
		{0x00, 0x00},
		{0x11, 0x22, 0x00, 0x33},
		long,
		Encode(sampleFixture()),
	}

	for i, p := range payloads {
		framed := CobsEncode(p)
		if framed[len(framed)-1] != 0x00 {
			t.Fatalf("payload %d: missing delimiter", i)
		}
		if bytes.IndexByte(framed[:len(framed)-1], 0x00) >= 0 {
			t.Fatalf("payload %d: zero byte inside frame", i)
		}
		got, err := CobsDecode(framed[:len(framed)-1])
		if err != nil {
			t.Fatalf("payload %d: decode: %v", i, err)
		}
		if !bytes.Equal(got, p) {
			t.Errorf("payload %d: got %x, want %x", i, got, p)
		}
	}
}

func TestCobsDecode_Invalid(t *testing.T) {
	if _, err := CobsDecode([]byte{0x05, 0x01}); err == nil {
		t.Error("expected truncation error")
	}
	if _, err := CobsDecode([]byte{0x02, 0x01, 0x00}); err == nil {
		t.Error("expected error for embedded zero code")
	}
}
