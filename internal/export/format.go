package export

import (
	"database/sql/driver"
	"encoding/hex"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// Decimal is an arbitrary-precision decimal number: Unscaled * 10^-Scale.
// Sources whose drivers expose decimals in their own types convert to it.
type Decimal struct {
	Unscaled *big.Int
	Scale    int32
}

// String renders d in plain decimal notation with trailing zeros stripped.
func (d Decimal) String() string {
	if d.Unscaled == nil {
		return ""
	}
	return formatScaled(d.Unscaled, -d.Scale)
}

// FormatValue renders a single column value. nil renders as the empty field,
// numeric values as plain decimals without exponent or grouping, and
// everything else in its natural text form.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		if utf8.Valid(x) {
			return string(x)
		}
		return HexBytes(x)
	case bool:
		return strconv.FormatBool(x)
	case int:
		return strconv.FormatInt(int64(x), 10)
	case int8:
		return strconv.FormatInt(int64(x), 10)
	case int16:
		return strconv.FormatInt(int64(x), 10)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case int64:
		return strconv.FormatInt(x, 10)
	case uint:
		return strconv.FormatUint(uint64(x), 10)
	case uint8:
		return strconv.FormatUint(uint64(x), 10)
	case uint16:
		return strconv.FormatUint(uint64(x), 10)
	case uint32:
		return strconv.FormatUint(uint64(x), 10)
	case uint64:
		return strconv.FormatUint(x, 10)
	case float32:
		return formatFloat(float64(x), 32)
	case float64:
		return formatFloat(x, 64)
	case *big.Int:
		if x == nil {
			return ""
		}
		return x.String()
	case *big.Rat:
		if x == nil {
			return ""
		}
		return formatRat(x)
	case *big.Float:
		if x == nil {
			return ""
		}
		return formatBigFloat(x)
	case Decimal:
		return x.String()
	case pgtype.Numeric:
		return formatNumeric(x)
	case *pgtype.Numeric:
		if x == nil {
			return ""
		}
		return formatNumeric(*x)
	case time.Time:
		return x.Format(time.RFC3339Nano)
	case time.Duration:
		return x.String()
	case uuid.UUID:
		return x.String()
	case [16]byte:
		return uuid.UUID(x).String()
	case driver.Valuer:
		inner, err := x.Value()
		if err != nil {
			return fmt.Sprint(v)
		}
		if inner == nil {
			return ""
		}
		if _, same := inner.(driver.Valuer); same {
			return fmt.Sprint(inner)
		}
		return FormatValue(inner)
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(v)
	}
}

func formatFloat(f float64, bits int) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	return stripZeros(strconv.FormatFloat(f, 'f', -1, bits))
}

func formatNumeric(n pgtype.Numeric) string {
	if !n.Valid {
		return ""
	}
	if n.NaN {
		return "NaN"
	}
	switch n.InfinityModifier {
	case pgtype.Infinity:
		return "Infinity"
	case pgtype.NegativeInfinity:
		return "-Infinity"
	}
	if n.Int == nil {
		return "0"
	}
	return formatScaled(n.Int, n.Exp)
}

// formatScaled renders unscaled * 10^exp in plain notation.
func formatScaled(unscaled *big.Int, exp int32) string {
	digits := new(big.Int).Abs(unscaled).String()
	negative := unscaled.Sign() < 0

	var s string
	switch {
	case exp >= 0:
		if digits == "0" {
			s = "0"
		} else {
			s = digits + strings.Repeat("0", int(exp))
		}
	default:
		frac := int(-exp)
		if len(digits) <= frac {
			digits = strings.Repeat("0", frac-len(digits)+1) + digits
		}
		point := len(digits) - frac
		s = stripZeros(digits[:point] + "." + digits[point:])
	}

	if negative && s != "0" {
		return "-" + s
	}
	return s
}

func formatRat(r *big.Rat) string {
	if r.IsInt() {
		return r.Num().String()
	}
	// Exact when the denominator has only 2 and 5 as prime factors.
	if prec, exact := r.FloatPrec(); exact {
		return stripZeros(r.FloatString(prec))
	}
	f, _ := r.Float64()
	return formatFloat(f, 64)
}

func formatBigFloat(f *big.Float) string {
	if f.IsInf() {
		if f.Sign() < 0 {
			return "-Infinity"
		}
		return "Infinity"
	}
	return stripZeros(f.Text('f', -1))
}

// stripZeros removes trailing fractional zeros and a dangling decimal point.
func stripZeros(s string) string {
	if !strings.Contains(s, ".") {
		return normalizeZero(s)
	}
	s = strings.TrimRight(s, "0")
	s = strings.TrimSuffix(s, ".")
	return normalizeZero(s)
}

func normalizeZero(s string) string {
	if s == "-0" || s == "" {
		return "0"
	}
	return s
}

// HexBytes renders binary data that is not valid text as \x-prefixed hex,
// matching PostgreSQL's bytea output.
func HexBytes(b []byte) string {
	return `\x` + hex.EncodeToString(b)
}
