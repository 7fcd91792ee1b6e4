package types

import (
	"bytes"
	"strings"
	"testing"
)

func TestBech32_Roundtrip(t *testing.T) {
	data := []byte{0x8f, 0x3a, 0x44, 0xb8, 0x05, 0x6c, 0xaf, 0xec, 0x36, 0x8d,
		0xea, 0x0c, 0xbe, 0x0a, 0xd1, 0xd9, 0xbc, 0x3f, 0x43, 0x05}

	for _, enc := range []Encoding{Bech32, Bech32m} {
		t.Run(enc.String(), func(t *testing.T) {
			encoded, err := encode(enc, "rmt", data)
			if err != nil {
				t.Fatalf("encode: %v", err)
			}
			hrp, decoded, got, err := DecodeAny(encoded)
			if err != nil {
				t.Fatalf("DecodeAny: %v", err)
			}
			if hrp != "rmt" {
				t.Errorf("HRP = %q, want %q", hrp, "rmt")
			}
			if got != enc {
				t.Errorf("encoding = %v, want %v", got, enc)
			}
			if !bytes.Equal(decoded, data) {
				t.Errorf("decoded = %x, want %x", decoded, data)
			}
		})
	}
}

func TestBech32_KnownVectors(t *testing.T) {
	tests := []struct {
		in  string
		enc Encoding
		hrp string
	}{
		{"A12UEL5L", Bech32, "a"},
		{"a12uel5l", Bech32, "a"},
		{"A1LQFN3A", Bech32m, "a"},
		{"a1lqfn3a", Bech32m, "a"},
	}
	for _, tt := range tests {
		hrp, data, enc, err := DecodeAny(tt.in)
		if err != nil {
			t.Errorf("DecodeAny(%q): %v", tt.in, err)
			continue
		}
		if enc != tt.enc || hrp != tt.hrp || len(data) != 0 {
			t.Errorf("DecodeAny(%q) = %q %x %v", tt.in, hrp, data, enc)
		}
	}
}

func TestBech32_VariantsNotInterchangeable(t *testing.T) {
	data := []byte{1, 2, 3, 4}
	b32, _ := Bech32Encode("rmt", data)
	b32m, _ := Bech32mEncode("rmt", data)
	if b32 == b32m {
		t.Fatal("bech32 and bech32m encodings should differ")
	}
	if _, _, err := Bech32mDecode(b32); err == nil {
		t.Error("Bech32mDecode accepted a bech32 checksum")
	}
	if _, _, err := Bech32Decode(b32m); err == nil {
		t.Error("Bech32Decode accepted a bech32m checksum")
	}
}

func TestBech32Decode_InvalidChecksum(t *testing.T) {
	encoded, err := Bech32mEncode("rmt", make([]byte, 20))
	if err != nil {
		t.Fatalf("Bech32mEncode: %v", err)
	}

	corrupted := encoded[:len(encoded)-1] + "q"
	if corrupted == encoded {
		corrupted = encoded[:len(encoded)-1] + "p"
	}
	if _, _, _, err := DecodeAny(corrupted); err == nil {
		t.Error("expected error for invalid checksum")
	}
}

func TestBech32Decode_Invalid(t *testing.T) {
	tests := map[string]string{
		"empty":        "",
		"bad chars":    "rmt1b!!invalid",
		"no separator": "rmtqqqqqqqq",
		"too short":    "rmt1qqqq",
		"too long":     "rmt1" + strings.Repeat("q", maxBech32Len),
	}
	for name, in := range tests {
		if _, _, _, err := DecodeAny(in); err == nil {
			t.Errorf("%s: expected error for %q", name, in)
		}
	}
}

func TestBech32Decode_MixedCase(t *testing.T) {
	encoded, err := Bech32mEncode("rmt", make([]byte, 20))
	if err != nil {
		t.Fatalf("Bech32mEncode: %v", err)
	}
	mixed := strings.ToUpper(encoded[:4]) + encoded[4:]
	if _, _, _, err := DecodeAny(mixed); err == nil {
		t.Error("expected error for mixed case")
	}
	if _, _, _, err := DecodeAny(strings.ToUpper(encoded)); err != nil {
		t.Errorf("all-uppercase should decode: %v", err)
	}
}

func TestBech32Encode_EmptyHRP(t *testing.T) {
	if _, err := Bech32mEncode("", []byte{0x01}); err == nil {
		t.Error("expected error for empty HRP")
	}
}
