package common

import (
	"github.com/hermeznetwork/tracerr"
	"github.com/holiman/uint256"
)

var ten = uint256.NewInt(10) //nolint:gomnd

// maxDecimalsDiff is the largest exponent for which 10^diff fits in 64 bits
const maxDecimalsDiff = 19

// ConvertDecimals rescales amount from a token with fromDecimals to a token
// with toDecimals. Scaling down truncates. Scaling up fails with
// ErrInvalidAmount when the result does not fit in 64 bits.
func ConvertDecimals(amount uint64, fromDecimals, toDecimals uint8) (uint64, error) {
	if fromDecimals == toDecimals {
		return amount, nil
	}
	var diff uint8
	if toDecimals > fromDecimals {
		diff = toDecimals - fromDecimals
	} else {
		diff = fromDecimals - toDecimals
	}
	if diff > maxDecimalsDiff {
		if toDecimals < fromDecimals || amount == 0 {
			return 0, nil
		}
		return 0, tracerr.Wrap(ErrInvalidAmount)
	}
	factor := new(uint256.Int).Exp(ten, uint256.NewInt(uint64(diff)))
	v := uint256.NewInt(amount)
	if toDecimals < fromDecimals {
		return v.Div(v, factor).Uint64(), nil
	}
	if _, overflow := v.MulOverflow(v, factor); overflow || !v.IsUint64() {
		return 0, tracerr.Wrap(ErrInvalidAmount)
	}
	return v.Uint64(), nil
}
