package crypto

import (
	"encoding/hex"
	"testing"

	"github.com/Klingon-tech/wallet-controller/pkg/types"
)

func hexToHash(t *testing.T, s string) types.Hash {
	t.Helper()
	h, err := types.HexToHash(s)
	if err != nil {
		t.Fatalf("bad hex: %v", err)
	}
	return h
}

func TestHash(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
		want  string
	}{
		{
			name:  "empty input",
			input: []byte{},
			want:  "af1349b9f5f9a1a6a0404dea36dcc9499bcb25c9adc112b7cc9a93cae41f3262",
		},
		{
			name:  "hello",
			input: []byte("hello"),
			want:  "ea8f163db38682925e4491c5e58d4bb3506ef8c14eb78a86e908c5624a67200f",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Hash(tt.input)
			want := hexToHash(t, tt.want)
			if got != want {
				t.Errorf("Hash(%q) = %x, want %x", tt.input, got, want)
			}
			if d := DigestHex(tt.input); d != tt.want {
				t.Errorf("DigestHex(%q) = %s, want %s", tt.input, d, tt.want)
			}
		})
	}
}

func TestHashConcat_EqualsManualConcat(t *testing.T) {
	a := []byte("shut")
	b := []byte("down")
	if HashConcat(a, b) != Hash([]byte("shutdown")) {
		t.Error("HashConcat(a, b) != Hash(a||b)")
	}
	if HashConcat() != Hash(nil) {
		t.Error("HashConcat() != Hash(nil)")
	}
}

func TestDigestHex_Length(t *testing.T) {
	d := DigestHex([]byte(`{"jsonrpc":"2.0","id":1,"result":null}`))
	if len(d) != 64 {
		t.Fatalf("digest length = %d", len(d))
	}
	if _, err := hex.DecodeString(d); err != nil {
		t.Fatalf("digest not hex: %v", err)
	}
}
