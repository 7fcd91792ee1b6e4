package types

import (
	"encoding/json"
	"testing"
)

func TestUtxoOutpoint_String(t *testing.T) {
	o := UtxoOutpoint{ID: "abcd", Index: 3}
	if got := o.String(); got != "tx(abcd,3)" {
		t.Errorf("String() = %q, want %q", got, "tx(abcd,3)")
	}
}

func TestUtxoOutpoint_MarshalJSON(t *testing.T) {
	data, err := json.Marshal(UtxoOutpoint{ID: "ff", Index: 1})
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"id":"ff","index":1}` {
		t.Errorf("json = %s", data)
	}
}

func TestUtxoOutpoint_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		in   string
		want UtxoOutpoint
		ok   bool
	}{
		{`{"id":"ab","index":2}`, UtxoOutpoint{"ab", 2}, true},
		{`{"id":" ab ","index":" 7 "}`, UtxoOutpoint{"ab", 7}, true},
		{`{"id":"ab","index":"x"}`, UtxoOutpoint{}, false},
		{`{"id":"ab","index":-1}`, UtxoOutpoint{}, false},
		{`{"id":"ab"}`, UtxoOutpoint{}, false},
	}
	for _, tt := range tests {
		var got UtxoOutpoint
		err := json.Unmarshal([]byte(tt.in), &got)
		if (err == nil) != tt.ok {
			t.Errorf("Unmarshal(%s) err = %v, ok = %v", tt.in, err, tt.ok)
			continue
		}
		if tt.ok && got != tt.want {
			t.Errorf("Unmarshal(%s) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}

func TestParseOutpoint(t *testing.T) {
	o, err := ParseOutpoint("tx(abcd,12)")
	if err != nil {
		t.Fatalf("ParseOutpoint: %v", err)
	}
	if o != (UtxoOutpoint{ID: "abcd", Index: 12}) {
		t.Errorf("got %+v", o)
	}
	if back, _ := ParseOutpoint(o.String()); back != o {
		t.Errorf("String/Parse mismatch: %+v", back)
	}
	for _, bad := range []string{"abcd:1", "tx(abcd)", "tx(,1)", "tx(ab,x)"} {
		if _, err := ParseOutpoint(bad); err == nil {
			t.Errorf("ParseOutpoint(%q) should fail", bad)
		}
	}
}
