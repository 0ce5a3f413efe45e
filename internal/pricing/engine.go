package pricing

import "math"

// Money represents a monetary value in whole euro units.
type Money = int64

// Line carries the per-line amounts needed for booking level aggregation.
type Line struct {
	Price   Money
	Deposit Money
}

// Totals aggregates computed booking level amounts.
type Totals struct {
	TotalPayment     Money
	Deposit          Money
	RemainingBalance Money
	TotalNet         Money
}

// Round converts a raw amount to whole euros using half-up rounding.
// Amounts are rounded once, at computation time, so repeated reads are stable.
func Round(v float64) Money {
	if v < 0 {
		return -Money(math.Floor(-v + 0.5))
	}
	return Money(math.Floor(v + 0.5))
}

// LinePrice computes a line item total from per-person prices and passenger
// counts. When both per-person prices are zero the catalog base price is used
// as a defined fallback.
func LinePrice(adultPrice, childrenPrice float64, adults, children int, fallback Money) Money {
	if adultPrice == 0 && childrenPrice == 0 {
		return fallback
	}
	return Round(adultPrice*float64(adults) + childrenPrice*float64(children))
}

// Remaining computes the unclamped balance left on a line after deposit.
// The result may be negative when the deposit exceeds the price; callers clamp
// when aggregating.
func Remaining(price, deposit Money) Money {
	return price - deposit
}

// Aggregate computes booking level totals from line amounts. The commission is
// subtracted once here, never per line.
func Aggregate(lines []Line, commission Money) Totals {
	var totalPayment, deposit, remaining Money
	for _, l := range lines {
		totalPayment += l.Price
		deposit += l.Deposit
		remaining += Remaining(l.Price, l.Deposit)
	}
	if remaining < 0 {
		remaining = 0
	}
	return Totals{
		TotalPayment:     totalPayment,
		Deposit:          deposit,
		RemainingBalance: remaining - commission,
		TotalNet:         totalPayment - commission,
	}
}

// AllocateCommission splits a booking level commission across line items in
// proportion to each line's share of the total price. Largest-remainder
// rounding keeps the shares summing to the commission exactly. A zero total
// price degenerates to all-zero shares.
func AllocateCommission(prices []Money, commission Money) []Money {
	shares := make([]Money, len(prices))
	if len(prices) == 0 || commission <= 0 {
		return shares
	}
	var total Money
	for _, p := range prices {
		total += p
	}
	if total <= 0 {
		return shares
	}
	type frac struct {
		idx int
		rem Money
	}
	var allocated Money
	fracs := make([]frac, len(prices))
	for i, p := range prices {
		exact := commission * p
		shares[i] = exact / total
		fracs[i] = frac{idx: i, rem: exact % total}
		allocated += shares[i]
	}
	// hand the rounding leftover to the largest fractional parts
	for allocated < commission {
		best := -1
		for _, f := range fracs {
			if f.rem == 0 {
				continue
			}
			if best == -1 || f.rem > fracs[best].rem {
				best = f.idx
			}
		}
		if best == -1 {
			break
		}
		shares[best]++
		fracs[best].rem = 0
		allocated++
	}
	return shares
}

// AdjustedRemaining applies a line's commission share to its remaining balance
// for storage, clamped at zero.
func AdjustedRemaining(remaining, share Money) Money {
	adjusted := remaining - share
	if adjusted < 0 {
		return 0
	}
	return adjusted
}
