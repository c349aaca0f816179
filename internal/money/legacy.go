package money

// LegacyScaleFactor is the multiplier that affected legacy order rows.
const LegacyScaleFactor = 100

// LooksDoubleScaled reports whether a stored order amount is implausibly large
// compared to the sum of its line items, the signature of rows that were
// multiplied by 100 twice. Only the rescale migration uses this; the display
// path assumes cents everywhere.
func LooksDoubleScaled(stored, itemsSum Cents) bool {
	if stored <= 0 || itemsSum <= 0 {
		return false
	}
	if stored < itemsSum*LegacyScaleFactor/2 {
		return false
	}
	return stored <= itemsSum*LegacyScaleFactor*2
}

// Rescale divides a double-scaled amount back to cents, rounding half-up.
func Rescale(amount Cents) Cents {
	return PercentOf(amount, 1)
}
