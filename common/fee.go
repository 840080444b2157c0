package common

// CalcUnsmeltFee returns the fee retained by the vault on an unsmelt of
// amount, floor(amount * UnsmeltFeePercentage / 100). amount is bounded by
// MaxAmount so the product can not overflow.
func CalcUnsmeltFee(amount uint64) uint64 {
	return amount * UnsmeltFeePercentage / 100 //nolint:gomnd
}

// CalcUnsmeltReturn returns the fee and the amount that goes back to the
// caller on an unsmelt of amount
func CalcUnsmeltReturn(amount uint64) (fee, returned uint64) {
	fee = CalcUnsmeltFee(amount)
	return fee, SaturatingSub(amount, fee)
}

// SaturatingAdd returns a+b clamped at the uint64 maximum
func SaturatingAdd(a, b uint64) uint64 {
	if c := a + b; c >= a {
		return c
	}
	return ^uint64(0)
}

// SaturatingSub returns a-b clamped at 0
func SaturatingSub(a, b uint64) uint64 {
	if b > a {
		return 0
	}
	return a - b
}
