package comms

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrInvalidLength is returned when a payload does not have the exact width
// of the attribute's value type.
var ErrInvalidLength = errors.New("invalid payload length")

// ErrNotFinite is returned for NaN or infinite float payloads.
var ErrNotFinite = errors.New("value is not finite")

func checkLen(data []byte, want int) error {
	if len(data) != want {
		return fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidLength, len(data), want)
	}
	return nil
}

func DecodeU8(data []byte) (uint8, error) {
	if err := checkLen(data, 1); err != nil {
		return 0, err
	}
	return data[0], nil
}

func DecodeU16(data []byte) (uint16, error) {
	if err := checkLen(data, 2); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(data), nil
}

func DecodeU64(data []byte) (uint64, error) {
	if err := checkLen(data, 8); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(data), nil
}

func DecodeF32(data []byte) (float32, error) {
	if err := checkLen(data, 4); err != nil {
		return 0, err
	}
	return math.Float32frombits(binary.LittleEndian.Uint32(data)), nil
}

// DecodeFiniteF32 is DecodeF32 rejecting NaN and infinities.
func DecodeFiniteF32(data []byte) (float32, error) {
	v, err := DecodeF32(data)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
		return 0, fmt.Errorf("%w: %v", ErrNotFinite, v)
	}
	return v, nil
}

// DecodeBool decodes a one byte flag; any nonzero value is true.
func DecodeBool(data []byte) (bool, error) {
	v, err := DecodeU8(data)
	return v != 0, err
}

func EncodeU8(v uint8) []byte {
	return []byte{v}
}

func EncodeU16(v uint16) []byte {
	return binary.LittleEndian.AppendUint16(nil, v)
}

func EncodeU64(v uint64) []byte {
	return binary.LittleEndian.AppendUint64(nil, v)
}

func EncodeF32(v float32) []byte {
	return binary.LittleEndian.AppendUint32(nil, math.Float32bits(v))
}

func EncodeBool(v bool) []byte {
	if v {
		return []byte{1}
	}
	return []byte{0}
}

// Parse converts a human readable value into the wire payload for k.
func (k Kind) Parse(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	switch k {
	case KindU8, KindTrigger:
		v, err := strconv.ParseUint(s, 0, 8)
		if err != nil {
			return nil, err
		}
		return EncodeU8(uint8(v)), nil
	case KindBool:
		v, err := strconv.ParseBool(s)
		if err != nil {
			return nil, err
		}
		return EncodeBool(v), nil
	case KindU16:
		v, err := strconv.ParseUint(s, 0, 16)
		if err != nil {
			return nil, err
		}
		return EncodeU16(uint16(v)), nil
	case KindU64:
		v, err := strconv.ParseUint(s, 0, 64)
		if err != nil {
			return nil, err
		}
		return EncodeU64(v), nil
	case KindF32:
		v, err := strconv.ParseFloat(s, 32)
		if err != nil {
			return nil, err
		}
		return EncodeF32(float32(v)), nil
	case KindString:
		return []byte(s), nil
	}
	return nil, fmt.Errorf("attribute kind %s is not writable", k)
}

// Format renders a wire payload of kind k for display.
func (k Kind) Format(data []byte) string {
	switch k {
	case KindU8, KindTrigger:
		if v, err := DecodeU8(data); err == nil {
			return strconv.FormatUint(uint64(v), 10)
		}
	case KindBool:
		if v, err := DecodeBool(data); err == nil {
			return strconv.FormatBool(v)
		}
	case KindU16:
		if v, err := DecodeU16(data); err == nil {
			return strconv.FormatUint(uint64(v), 10)
		}
	case KindU64:
		if v, err := DecodeU64(data); err == nil {
			return strconv.FormatUint(v, 10)
		}
	case KindF32:
		if v, err := DecodeF32(data); err == nil {
			return strconv.FormatFloat(float64(v), 'g', -1, 32)
		}
	case KindString:
		return string(data)
	}
	return fmt.Sprintf("% X", data)
}
