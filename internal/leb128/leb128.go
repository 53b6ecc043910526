// Package leb128 encodes and decodes the variable-length integer formats
// used throughout the WebAssembly binary format: unsigned LEB128 for
// indices and counts, signed LEB128 for constant immediates.
package leb128

import "fmt"

const (
	maxVarintLen32 = 5
	maxVarintLen64 = 10
)

// EncodeUint32 encodes v as unsigned LEB128.
func EncodeUint32(v uint32) []byte {
	return EncodeUint64(uint64(v))
}

// EncodeUint64 encodes v as unsigned LEB128.
func EncodeUint64(v uint64) []byte {
	var buf []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		buf = append(buf, b)
		if v == 0 {
			return buf
		}
	}
}

// EncodeInt32 encodes v as signed LEB128.
func EncodeInt32(v int32) []byte {
	return EncodeInt64(int64(v))
}

// EncodeInt64 encodes v as signed LEB128.
func EncodeInt64(v int64) []byte {
	var buf []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		signBitSet := b&0x40 != 0
		if (v == 0 && !signBitSet) || (v == -1 && signBitSet) {
			buf = append(buf, b)
			return buf
		}
		buf = append(buf, b|0x80)
	}
}

// LoadUint32 decodes an unsigned LEB128 value from the front of b,
// returning the value and the number of bytes consumed.
func LoadUint32(b []byte) (uint32, uint64, error) {
	v, n, err := loadUint(b, maxVarintLen32)
	if err != nil {
		return 0, 0, err
	}
	return uint32(v), n, nil
}

// LoadUint64 decodes an unsigned LEB128 value from the front of b.
func LoadUint64(b []byte) (uint64, uint64, error) {
	return loadUint(b, maxVarintLen64)
}

func loadUint(b []byte, maxLen int) (uint64, uint64, error) {
	var result uint64
	var shift uint
	for i := 0; i < maxLen; i++ {
		if i >= len(b) {
			return 0, 0, fmt.Errorf("unexpected EOF decoding uleb128")
		}
		c := b[i]
		result |= uint64(c&0x7f) << shift
		if c&0x80 == 0 {
			return result, uint64(i + 1), nil
		}
		shift += 7
	}
	return 0, 0, fmt.Errorf("uleb128 value exceeds %d bytes", maxLen)
}

// LoadInt32 decodes a signed LEB128 value from the front of b.
func LoadInt32(b []byte) (int32, uint64, error) {
	v, n, err := loadInt(b, 32, maxVarintLen32)
	if err != nil {
		return 0, 0, err
	}
	return int32(v), n, nil
}

// LoadInt64 decodes a signed LEB128 value from the front of b.
func LoadInt64(b []byte) (int64, uint64, error) {
	return loadInt(b, 64, maxVarintLen64)
}

func loadInt(b []byte, bits int, maxLen int) (int64, uint64, error) {
	var result int64
	var shift uint
	var c byte
	for i := 0; i < maxLen; i++ {
		if i >= len(b) {
			return 0, 0, fmt.Errorf("unexpected EOF decoding sleb128")
		}
		c = b[i]
		result |= int64(c&0x7f) << shift
		shift += 7
		if c&0x80 == 0 {
			if shift < uint(bits) && c&0x40 != 0 {
				result |= -1 << shift
			}
			return result, uint64(i + 1), nil
		}
	}
	return 0, 0, fmt.Errorf("sleb128 value exceeds %d bytes", maxLen)
}

// DecodeInt33AsInt64 decodes a 33-bit signed LEB128 value (used for
// WebAssembly block types, which distinguish a value type from an empty
// block type by sign) as an int64, reading from b.
func DecodeInt33AsInt64(b []byte) (int64, uint64, error) {
	return loadInt(b, 33, 5)
}
