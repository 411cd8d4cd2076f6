package chains

import (
	"math/big"
	"strings"

	"github.com/cockroachdb/errors"
)

// FormatUnits converts a base-unit amount to a human string:
// - divides by 10^decimals
// - truncates to maxFrac decimal places
// - removes trailing zeros but keeps at least one fractional digit
//
// Examples:
//
//	amount=1234567890000000000, decimals=18, maxFrac=4 -> "1.2345"
//	amount=1000000000000000000, decimals=18, maxFrac=4 -> "1.0"
//	amount=1, decimals=18, maxFrac=4 -> "0.0"
func FormatUnits(amount *big.Int, decimals uint8, maxFrac int) string {
	if amount == nil || amount.Sign() == 0 {
		return "0.0"
	}

	sign := ""
	abs := new(big.Int).Set(amount)
	if abs.Sign() < 0 {
		sign = "-"
		abs.Neg(abs)
	}

	base := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	intPart, fracPart := new(big.Int).QuoRem(abs, base, new(big.Int))

	fracStr := fracPart.String()
	if len(fracStr) < int(decimals) {
		fracStr = strings.Repeat("0", int(decimals)-len(fracStr)) + fracStr
	}
	if maxFrac >= 0 && len(fracStr) > maxFrac {
		fracStr = fracStr[:maxFrac]
	}

	fracStr = strings.TrimRight(fracStr, "0")
	if fracStr == "" {
		fracStr = "0"
	}
	return sign + intPart.String() + "." + fracStr
}

// ParseUnits is the inverse of FormatUnits without truncation: "1.5" with
// 18 decimals is 1500000000000000000.
func ParseUnits(value string, decimals uint8) (*big.Int, error) {
	v := strings.TrimSpace(value)
	if v == "" {
		return nil, errors.New("empty amount")
	}
	if strings.HasPrefix(v, "-") {
		return nil, errors.Newf("negative amount %q", value)
	}

	intStr, fracStr, _ := strings.Cut(v, ".")
	if intStr == "" {
		intStr = "0"
	}
	if len(fracStr) > int(decimals) {
		return nil, errors.Newf("amount %q has more than %d decimals", value, decimals)
	}
	fracStr += strings.Repeat("0", int(decimals)-len(fracStr))

	out, ok := new(big.Int).SetString(intStr+fracStr, 10)
	if !ok {
		return nil, errors.Newf("invalid amount %q", value)
	}
	return out, nil
}
