package domain

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"auction_go/pkg/safe"
)

// pow10 returns 10^n for small n without float math.
func pow10(n uint8) (uint64, bool) {
	v := uint64(1)
	for i := uint8(0); i < n; i++ {
		var ok bool
		v, ok = safe.Mul(v, 10)
		if !ok {
			return 0, false
		}
	}
	return v, true
}

// ParseAmount scales a human-entered decimal string to an integer with
// decimals places, exactly. "12.34" with decimals=2 becomes 1234.
// More fractional digits than decimals, or any part that is not an unsigned
// integer, is ErrInvalidFormat.
func ParseAmount(s string, decimals uint8) (uint64, error) {
	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return 0, ErrInvalidFormat
	}

	intPart := parts[0]
	fracPart := ""
	if len(parts) == 2 {
		fracPart = parts[1]
	}
	if uint8(len(fracPart)) > decimals {
		return 0, ErrInvalidFormat
	}

	value, err := strconv.ParseUint(intPart, 10, 64)
	if err != nil {
		return 0, ErrInvalidFormat
	}

	scale, ok := pow10(decimals)
	if !ok {
		return 0, ErrArithmeticOverflow
	}
	value, ok = safe.Mul(value, scale)
	if !ok {
		return 0, ErrArithmeticOverflow
	}

	if len(fracPart) > 0 {
		frac, err := strconv.ParseUint(fracPart, 10, 64)
		if err != nil {
			return 0, ErrInvalidFormat
		}
		pad, ok := pow10(decimals - uint8(len(fracPart)))
		if !ok {
			return 0, ErrArithmeticOverflow
		}
		frac, ok = safe.Mul(frac, pad)
		if !ok {
			return 0, ErrArithmeticOverflow
		}
		value, ok = safe.Add(value, frac)
		if !ok {
			return 0, ErrArithmeticOverflow
		}
	}

	return value, nil
}

// RequiredPayment computes the asset-B quantity needed to cover a bid at
// price for the full vault holding of asset A:
//
//	floor(amountA * price * 10^decimalsB / (10^decimalsA * 10^priceDecimals))
//
// The product is carried in arbitrary precision so no intermediate can
// overflow; only the final narrowing back to uint64 can fail.
func RequiredPayment(amountA, price uint64, decimalsA, decimalsB, priceDecimals uint8) (uint64, error) {
	shift := int32(decimalsB) - int32(decimalsA) - int32(priceDecimals)

	v := decimal.NewFromUint64(amountA).
		Mul(decimal.NewFromUint64(price)).
		Shift(shift).
		Floor()

	bi := v.BigInt()
	if !bi.IsUint64() {
		return 0, ErrArithmeticOverflow
	}
	return bi.Uint64(), nil
}

// HouseFee computes floor(escrow * feeBps / 10000).
func HouseFee(escrow uint64, feeBps uint16) (uint64, error) {
	product, ok := safe.Mul(escrow, uint64(feeBps))
	if !ok {
		return 0, ErrArithmeticOverflow
	}
	return product / MaxFeeBps, nil
}
