// Package canon provides the deterministic encoding used to hash kernel state.
//
// Encoding rules:
//   - JSON-compatible output with no insignificant whitespace
//   - object keys emitted in ascending byte order
//   - integers, booleans, strings, nil, slices, and string-keyed maps only
//   - floating-point values are rejected outright
//
// Two encodings of equal values are byte-identical, which makes the SHA-256
// of an encoded snapshot usable as a replay anchor.
package canon

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"unicode/utf8"
)

// Encoding error codes.
const (
	ErrCodeFloatValue  = "canon.float_value" // Float encountered in hashable structure
	ErrCodeUnsupported = "canon.unsupported" // Value of an unencodable type
)

// EncodeError reports a value that cannot be canonically encoded.
type EncodeError struct {
	Code    string
	Message string
}

// Error implements the error interface.
func (e *EncodeError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Encode returns the canonical encoding of v.
//
// v must be built from nil, bool, string, signed/unsigned integers,
// []any, and map[string]any. Anything else, floats in particular,
// returns an EncodeError.
func Encode(v any) ([]byte, error) {
	return appendValue(nil, v)
}

// HashHex returns the lowercase hex SHA-256 of the canonical encoding of v.
func HashHex(v any) (string, error) {
	b, err := Encode(v)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

func appendValue(dst []byte, v any) ([]byte, error) {
	switch x := v.(type) {
	case nil:
		return append(dst, "null"...), nil
	case bool:
		if x {
			return append(dst, "true"...), nil
		}
		return append(dst, "false"...), nil
	case string:
		return appendString(dst, x), nil
	case int:
		return strconv.AppendInt(dst, int64(x), 10), nil
	case int8:
		return strconv.AppendInt(dst, int64(x), 10), nil
	case int16:
		return strconv.AppendInt(dst, int64(x), 10), nil
	case int32:
		return strconv.AppendInt(dst, int64(x), 10), nil
	case int64:
		return strconv.AppendInt(dst, x, 10), nil
	case uint:
		return strconv.AppendUint(dst, uint64(x), 10), nil
	case uint8:
		return strconv.AppendUint(dst, uint64(x), 10), nil
	case uint16:
		return strconv.AppendUint(dst, uint64(x), 10), nil
	case uint32:
		return strconv.AppendUint(dst, uint64(x), 10), nil
	case uint64:
		return strconv.AppendUint(dst, x, 10), nil
	case float32, float64:
		return nil, &EncodeError{
			Code:    ErrCodeFloatValue,
			Message: "floating-point values are not permitted in hashed structures",
		}
	case []any:
		return appendSlice(dst, x)
	case []string:
		// Common case for ID lists; avoids forcing callers to box every element.
		dst = append(dst, '[')
		for i, s := range x {
			if i > 0 {
				dst = append(dst, ',')
			}
			dst = appendString(dst, s)
		}
		return append(dst, ']'), nil
	case map[string]any:
		return appendMap(dst, x)
	default:
		return nil, &EncodeError{
			Code:    ErrCodeUnsupported,
			Message: fmt.Sprintf("cannot canonically encode value of type %T", v),
		}
	}
}

func appendSlice(dst []byte, s []any) ([]byte, error) {
	dst = append(dst, '[')
	for i, e := range s {
		if i > 0 {
			dst = append(dst, ',')
		}
		var err error
		dst, err = appendValue(dst, e)
		if err != nil {
			return nil, err
		}
	}
	return append(dst, ']'), nil
}

func appendMap(dst []byte, m map[string]any) ([]byte, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	dst = append(dst, '{')
	for i, k := range keys {
		if i > 0 {
			dst = append(dst, ',')
		}
		dst = appendString(dst, k)
		dst = append(dst, ':')
		var err error
		dst, err = appendValue(dst, m[k])
		if err != nil {
			return nil, err
		}
	}
	return append(dst, '}'), nil
}

const hexDigits = "0123456789abcdef"

// appendString writes a JSON string with the minimal escape set, so the same
// input always produces the same bytes regardless of encoder version.
func appendString(dst []byte, s string) []byte {
	dst = append(dst, '"')
	for i := 0; i < len(s); {
		b := s[i]
		if b >= 0x20 && b != '"' && b != '\\' && b < utf8.RuneSelf {
			dst = append(dst, b)
			i++
			continue
		}
		if b < utf8.RuneSelf {
			switch b {
			case '"':
				dst = append(dst, '\\', '"')
			case '\\':
				dst = append(dst, '\\', '\\')
			case '\n':
				dst = append(dst, '\\', 'n')
			case '\r':
				dst = append(dst, '\\', 'r')
			case '\t':
				dst = append(dst, '\\', 't')
			default:
				dst = append(dst, '\\', 'u', '0', '0', hexDigits[b>>4], hexDigits[b&0xF])
			}
			i++
			continue
		}
		r, size := utf8.DecodeRuneInString(s[i:])
		if r == utf8.RuneError && size == 1 {
			// Invalid UTF-8 byte; escape it so the encoding stays reversible.
			dst = append(dst, '\\', 'u', 'f', 'f', 'f', 'd')
			i++
			continue
		}
		dst = append(dst, s[i:i+size]...)
		i += size
	}
	return append(dst, '"')
}
