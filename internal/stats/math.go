package stats

import "math"

// Round1 rounds to one decimal place. Used for hours and weeks.
func Round1(x float64) float64 {
	return Finite(math.Round(x*10) / 10)
}

// Round2 rounds to two decimal places. Used for percentages.
func Round2(x float64) float64 {
	return Finite(math.Round(x*100) / 100)
}

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}

// SafeDiv returns num/den, or 0 when den is zero.
func SafeDiv(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return Finite(num / den)
}

// Percent returns part as a percentage of whole, 0 when whole is zero.
func Percent(part, whole float64) float64 {
	return SafeDiv(part*100, whole)
}

// Finite maps NaN and ±Inf to 0 so they never reach an output.
func Finite(x float64) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return 0
	}
	return x
}

// Hours converts seconds to (unrounded) hours.
func Hours(seconds int64) float64 {
	return float64(seconds) / 3600
}
