package types

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestHash_IsZero(t *testing.T) {
	var zero Hash
	if !zero.IsZero() {
		t.Error("zero-value Hash should be zero")
	}
	if (Hash{0x01}).IsZero() {
		t.Error("non-zero Hash should not be zero")
	}
}

func TestHexToHash(t *testing.T) {
	valid := strings.Repeat("ab", 32)
	h, err := HexToHash(valid)
	if err != nil {
		t.Fatalf("HexToHash: %v", err)
	}
	if h.String() != valid {
		t.Errorf("String() = %s", h.String())
	}

	for _, bad := range []string{"", "zz", strings.Repeat("ab", 31), strings.Repeat("ab", 33)} {
		if _, err := HexToHash(bad); err == nil {
			t.Errorf("HexToHash(%q) should fail", bad)
		}
	}
}

func TestHash_JSON(t *testing.T) {
	h := Hash{0xde, 0xad}
	data, err := json.Marshal(h)
	if err != nil {
		t.Fatal(err)
	}
	var back Hash
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if back != h {
		t.Errorf("round trip = %s, want %s", back, h)
	}
	if err := json.Unmarshal([]byte(`"abc"`), &back); err == nil {
		t.Error("short hex should fail")
	}
}
