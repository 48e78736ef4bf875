package rza

import (
	"math"
	"math/big"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// exponentThreshold is the magnitude from which fixed-point output switches
// to exponent notation.
const exponentThreshold = 1e21

// FormatFixed renders v with exactly places digits after the decimal point.
//
// Rounding is applied to the exact binary value of v, half away from zero:
// 0.25 → "0.3" (0.25 is exact) but 1.005 → "1.00" (1.005 is stored as
// 1.00499999...). NaN renders as "NaN", infinities as "Infinity" and
// "-Infinity". A negative value that rounds to zero keeps its sign ("-0.00").
func FormatFixed(v float64, places int32) string {
	switch {
	case math.IsNaN(v):
		return "NaN"
	case math.IsInf(v, 1):
		return "Infinity"
	case math.IsInf(v, -1):
		return "-Infinity"
	case math.Abs(v) >= exponentThreshold:
		return strconv.FormatFloat(v, 'g', -1, 64)
	}

	s := exactDecimal(v).StringFixed(places)
	if v < 0 && !strings.HasPrefix(s, "-") {
		s = "-" + s
	}
	return s
}

// exactDecimal converts v to a Decimal holding its exact binary value.
// decimal.NewFromFloat would use the shortest round-trip representation
// instead, which changes the result of rounding near ties.
func exactDecimal(v float64) decimal.Decimal {
	bits := math.Float64bits(v)
	mant := bits & (1<<52 - 1)
	exp := int((bits >> 52) & 0x7ff)
	if exp == 0 {
		exp = 1 // subnormal
	} else {
		mant |= 1 << 52
	}
	exp -= 1075

	m := new(big.Int).SetUint64(mant)
	if bits>>63 == 1 {
		m.Neg(m)
	}
	if exp >= 0 {
		return decimal.NewFromBigInt(m.Lsh(m, uint(exp)), 0)
	}
	// m·2^exp == m·5^-exp · 10^exp
	five := new(big.Int).Exp(big.NewInt(5), big.NewInt(int64(-exp)), nil)
	return decimal.NewFromBigInt(m.Mul(m, five), int32(exp))
}
