package checkout

import "math"

// Quote computes the amount to charge.
//
// A supplied price wins. Otherwise the base is the tier price, or the event
// fee when no tier is chosen (nothing for a standalone sub-event purchase),
// plus every selected sub-event, minus credits. The result is floored at zero
// and rounded to cents.
func Quote(sel *Selection, creditsUsed float64, supplied *float64) float64 {
	if supplied != nil {
		return roundCents(math.Max(0, *supplied))
	}
	return roundCents(math.Max(0, ListPrice(sel)-creditsUsed))
}

// ListPrice is the price before credits.
func ListPrice(sel *Selection) float64 {
	var base float64
	switch {
	case sel.Tier != nil:
		base = sel.Tier.Price
	case sel.standaloneOnly():
		base = 0
	default:
		base = sel.Event.Fee
	}
	for _, sub := range sel.SubEvents {
		base += sub.Price
	}
	return base
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
