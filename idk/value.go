package idk

import (
	"math"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Value is the only scalar type of the machine, an unsigned integer in the
// ring 0..0xffff.
type Value uint16

// True is the value produced by a comparison that holds.
const True Value = 0xffff

const valueModulus = 1 << 16

// ParseValue converts s to a Value using general numeric coercion: the whole
// (trimmed) string is read as a number, decimal with optional sign, fraction
// and exponent, or an unsigned 0x, 0o or 0b integer. The result is the
// truncated absolute value reduced modulo 0x10000. Strings that are not
// numbers, and numbers that are not finite, yield 0.
func ParseValue(s string) Value {
	s = strings.TrimSpace(s)
	if len(s) > 2 && s[0] == '0' {
		base := 0
		switch s[1] {
		case 'x', 'X':
			base = 16
		case 'o', 'O':
			base = 8
		case 'b', 'B':
			base = 2
		}
		if base != 0 {
			n, err := strconv.ParseUint(s[2:], base, 64)
			if err != nil {
				return 0
			}
			return Value(n % valueModulus)
		}
	}
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0
	}
	return Value(math.Mod(math.Trunc(math.Abs(f)), valueModulus))
}

// IsLiteral reports whether word is a numeric literal rather than a variable
// name. Only the first character is examined: a word is a literal if it
// starts with a decimal digit (or with a character that coerces to zero on
// its own, which is whitespace). So "1x" is a literal and "-5" is a name.
func IsLiteral(word string) bool {
	r, _ := utf8.DecodeRuneInString(word)
	switch {
	case r == utf8.RuneError:
		return false
	case r >= '0' && r <= '9':
		return true
	default:
		return unicode.IsSpace(r)
	}
}
