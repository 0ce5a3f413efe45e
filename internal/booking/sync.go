package booking

import "github.com/noah-isme/backend-tour/internal/pricing"

// Synchronize propagates passenger counts, deposit and ship assignment from
// the primary line item to every other line, then recomputes each line's
// price and remaining balance against its own per-person prices. The input is
// not mutated and the function is idempotent.
//
// The deposit is replicated across lines, not divided; booking level totals
// sum the replicated values.
func Synchronize(items []LineItem, primary int) []LineItem {
	if len(items) == 0 {
		return items
	}
	if primary < 0 || primary >= len(items) {
		primary = 0
	}
	out := make([]LineItem, len(items))
	copy(out, items)
	lead := out[primary]
	for i := range out {
		if i != primary {
			out[i].Adults = lead.Adults
			out[i].Children = lead.Children
			out[i].Deposit = lead.Deposit
			out[i].ShipID = lead.ShipID
		}
		out[i].TotalPax = out[i].Adults + out[i].Children
		out[i].Price = pricing.LinePrice(out[i].AdultPrice, out[i].ChildrenPrice, out[i].Adults, out[i].Children, out[i].CatalogPrice)
		out[i].RemainingBalance = pricing.Remaining(out[i].Price, out[i].Deposit)
	}
	return out
}
