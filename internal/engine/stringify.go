package engine

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

const fractionDigits = 6

// Stringify renders a scalar result as answer text. Null becomes "0",
// booleans "1" or "0", integral values print without a fractional part,
// and other decimals are rounded to six places with trailing zeros
// removed.
func Stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return "0"
	case bool:
		if x {
			return "1"
		}
		return "0"
	case int:
		return strconv.Itoa(x)
	case int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprint(x)
	case float32:
		return formatDecimal(decimal.NewFromFloat32(x))
	case float64:
		return formatDecimal(decimal.NewFromFloat(x))
	case decimal.Decimal:
		return formatDecimal(x)
	case *big.Int:
		if x == nil {
			return "0"
		}
		return x.String()
	case pgtype.Numeric:
		return formatNumeric(x)
	case *pgtype.Numeric:
		if x == nil {
			return "0"
		}
		return formatNumeric(*x)
	case string:
		if d, err := decimal.NewFromString(strings.TrimSpace(x)); err == nil {
			return formatDecimal(d)
		}
		return x
	case []byte:
		return Stringify(string(x))
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}

func formatNumeric(n pgtype.Numeric) string {
	if !n.Valid {
		return "0"
	}
	if n.NaN {
		return "NaN"
	}
	if n.InfinityModifier != pgtype.Finite {
		return n.InfinityModifier.String()
	}
	if n.Int == nil {
		return "0"
	}
	return formatDecimal(decimal.NewFromBigInt(n.Int, n.Exp))
}

func formatDecimal(d decimal.Decimal) string {
	if d.Equal(d.Truncate(0)) {
		return d.Truncate(0).String()
	}
	s := d.Round(fractionDigits).StringFixed(fractionDigits)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}
