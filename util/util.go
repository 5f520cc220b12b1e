package util

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/ubiq/go-ubiq/v3/common/hexutil"
)

var ErrNegativeAmount = errors.New("amount is negative")

func MakeTimestamp() int64 {
	return time.Now().UnixNano() / int64(time.Millisecond)
}

// FromWei renders a value-unit amount as whole ether, trimmed of trailing zeros.
func FromWei(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return decimal.NewFromBigInt(v, -18).String()
}

// FormatFiat renders an 8-digit fixed point fiat amount with two decimals,
// truncating the rest.
func FormatFiat(v *big.Int) string {
	if v == nil {
		return "0.00"
	}
	return decimal.NewFromBigInt(v, -8).Truncate(2).StringFixed(2)
}

// ParseAmount accepts a base-10 integer, a 0x-prefixed hex quantity or a
// decimal with an "ether" or "usd" suffix ("0.005 ether", "5 usd").
func ParseAmount(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return hexutil.DecodeBig(s)
	}

	if fields := strings.Fields(s); len(fields) == 2 {
		var exp int32
		switch strings.ToLower(fields[1]) {
		case "ether", "eth":
			exp = 18
		case "usd", "fiat":
			exp = 8
		default:
			return nil, fmt.Errorf("unknown unit %q", fields[1])
		}

		d, err := decimal.NewFromString(fields[0])
		if err != nil {
			return nil, err
		}
		if d.Sign() < 0 {
			return nil, ErrNegativeAmount
		}

		return d.Shift(exp).Truncate(0).BigInt(), nil
	}

	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", s)
	}
	if v.Sign() < 0 {
		return nil, ErrNegativeAmount
	}
	return v, nil
}
