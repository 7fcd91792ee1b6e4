package types

import (
	"fmt"
	"strings"
)

// Encoding selects the bech32 checksum variant.
type Encoding int

const (
	// Bech32 is the original BIP-173 checksum.
	Bech32 Encoding = iota
	// Bech32m is the BIP-350 checksum used for wallet addresses and ids.
	Bech32m
)

func (e Encoding) String() string {
	if e == Bech32m {
		return "bech32m"
	}
	return "bech32"
}

func (e Encoding) constant() uint32 {
	if e == Bech32m {
		return 0x2bc830a3
	}
	return 1
}

// Bech32 charset used for encoding (BIP-173).
const bech32Charset = "qpzry9x8gf2tvdw0s3jn54khce6mua7l"

// Longest string accepted by the decoder. Wallet ids exceed the BIP-173
// limit of 90 characters.
const maxBech32Len = 1023

// bech32CharsetRev maps bech32 characters to their 5-bit values. -1 = invalid.
var bech32CharsetRev [128]int8

func init() {
	for i := range bech32CharsetRev {
		bech32CharsetRev[i] = -1
	}
	for i, c := range bech32Charset {
		bech32CharsetRev[c] = int8(i)
	}
}

// Bech32Encode encodes data with the BIP-173 checksum.
func Bech32Encode(hrp string, data []byte) (string, error) {
	return encode(Bech32, hrp, data)
}

// Bech32mEncode encodes data with the BIP-350 checksum.
func Bech32mEncode(hrp string, data []byte) (string, error) {
	return encode(Bech32m, hrp, data)
}

func encode(enc Encoding, hrp string, data []byte) (string, error) {
	if len(hrp) == 0 {
		return "", fmt.Errorf("%s: empty HRP", enc)
	}
	for _, c := range hrp {
		if c < 33 || c > 126 {
			return "", fmt.Errorf("%s: invalid HRP character %q", enc, c)
		}
	}
	hrp = strings.ToLower(hrp)

	conv, err := convertBits(data, 8, 5, true)
	if err != nil {
		return "", fmt.Errorf("%s: convert bits: %w", enc, err)
	}
	chk := createChecksum(enc, hrp, conv)

	var sb strings.Builder
	sb.Grow(len(hrp) + 1 + len(conv) + 6)
	sb.WriteString(hrp)
	sb.WriteByte('1')
	for _, b := range conv {
		sb.WriteByte(bech32Charset[b])
	}
	for _, b := range chk {
		sb.WriteByte(bech32Charset[b])
	}
	return sb.String(), nil
}

// Bech32Decode decodes a string carrying the BIP-173 checksum.
func Bech32Decode(s string) (string, []byte, error) {
	hrp, data, enc, err := DecodeAny(s)
	if err != nil {
		return "", nil, err
	}
	if enc != Bech32 {
		return "", nil, fmt.Errorf("bech32: invalid checksum")
	}
	return hrp, data, nil
}

// Bech32mDecode decodes a string carrying the BIP-350 checksum.
func Bech32mDecode(s string) (string, []byte, error) {
	hrp, data, enc, err := DecodeAny(s)
	if err != nil {
		return "", nil, err
	}
	if enc != Bech32m {
		return "", nil, fmt.Errorf("bech32m: invalid checksum")
	}
	return hrp, data, nil
}

// DecodeAny decodes either variant and reports which checksum matched.
func DecodeAny(s string) (string, []byte, Encoding, error) {
	if len(s) == 0 {
		return "", nil, 0, fmt.Errorf("bech32: empty string")
	}
	if len(s) > maxBech32Len {
		return "", nil, 0, fmt.Errorf("bech32: too long")
	}

	hasUpper, hasLower := false, false
	for _, c := range s {
		if c >= 'A' && c <= 'Z' {
			hasUpper = true
		}
		if c >= 'a' && c <= 'z' {
			hasLower = true
		}
	}
	if hasUpper && hasLower {
		return "", nil, 0, fmt.Errorf("bech32: mixed case")
	}
	s = strings.ToLower(s)

	sepIdx := strings.LastIndex(s, "1")
	if sepIdx < 1 {
		return "", nil, 0, fmt.Errorf("bech32: missing separator")
	}
	if sepIdx+7 > len(s) {
		return "", nil, 0, fmt.Errorf("bech32: too short")
	}

	hrp := s[:sepIdx]
	dataStr := s[sepIdx+1:]

	data5 := make([]byte, len(dataStr))
	for i, c := range dataStr {
		if c > 127 || bech32CharsetRev[c] < 0 {
			return "", nil, 0, fmt.Errorf("bech32: invalid character %q", c)
		}
		data5[i] = byte(bech32CharsetRev[c])
	}

	var enc Encoding
	switch polymod(append(hrpExpand(hrp), data5...)) {
	case Bech32.constant():
		enc = Bech32
	case Bech32m.constant():
		enc = Bech32m
	default:
		return "", nil, 0, fmt.Errorf("bech32: invalid checksum")
	}

	data8, err := convertBits(data5[:len(data5)-6], 5, 8, false)
	if err != nil {
		return "", nil, 0, fmt.Errorf("%s: convert bits: %w", enc, err)
	}
	return hrp, data8, enc, nil
}

func polymod(values []byte) uint32 {
	gen := [5]uint32{0x3b6a57b2, 0x26508e6d, 0x1ea119fa, 0x3d4233dd, 0x2a1462b3}
	chk := uint32(1)
	for _, v := range values {
		top := chk >> 25
		chk = (chk&0x1ffffff)<<5 ^ uint32(v)
		for i := 0; i < 5; i++ {
			if (top>>uint(i))&1 == 1 {
				chk ^= gen[i]
			}
		}
	}
	return chk
}

func hrpExpand(hrp string) []byte {
	ret := make([]byte, 0, len(hrp)*2+1)
	for _, c := range hrp {
		ret = append(ret, byte(c>>5))
	}
	ret = append(ret, 0)
	for _, c := range hrp {
		ret = append(ret, byte(c&31))
	}
	return ret
}

func createChecksum(enc Encoding, hrp string, data []byte) []byte {
	values := append(hrpExpand(hrp), data...)
	values = append(values, 0, 0, 0, 0, 0, 0)
	mod := polymod(values) ^ enc.constant()
	ret := make([]byte, 6)
	for i := 0; i < 6; i++ {
		ret[i] = byte((mod >> uint(5*(5-i))) & 31)
	}
	return ret
}

// convertBits converts between bit groups.
// fromBits/toBits are the source/destination group sizes (e.g. 8 and 5).
// pad controls whether incomplete groups are zero-padded.
func convertBits(data []byte, fromBits, toBits uint, pad bool) ([]byte, error) {
	acc := uint32(0)
	bits := uint(0)
	maxv := uint32((1 << toBits) - 1)
	var ret []byte

	for _, b := range data {
		if uint32(b)>>fromBits != 0 {
			return nil, fmt.Errorf("invalid data byte: %d", b)
		}
		acc = acc<<fromBits | uint32(b)
		bits += fromBits
		for bits >= toBits {
			bits -= toBits
			ret = append(ret, byte((acc>>bits)&maxv))
		}
	}

	if pad {
		if bits > 0 {
			ret = append(ret, byte((acc<<(toBits-bits))&maxv))
		}
	} else {
		if bits >= fromBits {
			return nil, fmt.Errorf("non-zero padding")
		}
		if (acc<<(toBits-bits))&maxv != 0 {
			return nil, fmt.Errorf("non-zero padding")
		}
	}

	return ret, nil
}
