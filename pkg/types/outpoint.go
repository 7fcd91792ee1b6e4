package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// UtxoOutpoint references a transaction output by transaction id and index.
type UtxoOutpoint struct {
	ID    string `json:"id"`
	Index uint32 `json:"index"`
}

// String returns "tx(<id>,<index>)".
func (o UtxoOutpoint) String() string {
	return fmt.Sprintf("tx(%s,%d)", o.ID, o.Index)
}

// UnmarshalJSON accepts the index as a number or a decimal string, and trims
// surrounding whitespace from both fields.
func (o *UtxoOutpoint) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID    string          `json:"id"`
		Index json.RawMessage `json:"index"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	idx, err := parseIndex(raw.Index)
	if err != nil {
		return fmt.Errorf("outpoint index: %w", err)
	}
	o.ID = strings.TrimSpace(raw.ID)
	o.Index = idx
	return nil
}

func parseIndex(raw json.RawMessage) (uint32, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return 0, fmt.Errorf("missing")
	}
	s := string(raw)
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, err
		}
		s = strings.TrimSpace(s)
	}
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, err
	}
	return uint32(n), nil
}

// ParseOutpoint parses the "tx(<id>,<index>)" form.
func ParseOutpoint(s string) (UtxoOutpoint, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "tx(") || !strings.HasSuffix(s, ")") {
		return UtxoOutpoint{}, fmt.Errorf("outpoint %q: want tx(<id>,<index>)", s)
	}
	body := s[3 : len(s)-1]
	i := strings.LastIndex(body, ",")
	if i < 0 {
		return UtxoOutpoint{}, fmt.Errorf("outpoint %q: missing index", s)
	}
	n, err := strconv.ParseUint(strings.TrimSpace(body[i+1:]), 10, 32)
	if err != nil {
		return UtxoOutpoint{}, fmt.Errorf("outpoint %q: %w", s, err)
	}
	id := strings.TrimSpace(body[:i])
	if id == "" {
		return UtxoOutpoint{}, fmt.Errorf("outpoint %q: empty id", s)
	}
	return UtxoOutpoint{ID: id, Index: uint32(n)}, nil
}
