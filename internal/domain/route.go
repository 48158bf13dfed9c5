package domain

import "fmt"

// RouteHop is one venue swap inside a route.
type RouteHop struct {
	Venue    string
	TokenIn  string
	TokenOut string
	FeeRate  float64
}

// Route is an ordered sequence of hops converting AmountIn of the first hop's
// TokenIn into ExpectedOut of the last hop's TokenOut.
type Route struct {
	Hops         []RouteHop
	AmountIn     float64
	ExpectedOut  float64
	TotalFees    float64
	GasEstimate  uint64
	QualityScore float64 // [0,1]
}

// NetProfit is the route's expected profit net of swap fees. Gas is reported
// separately via GasEstimate and priced by the caller.
func (r Route) NetProfit() float64 {
	return r.ExpectedOut - r.AmountIn - r.TotalFees
}

// Direct reports whether the route is a single-hop swap.
func (r Route) Direct() bool {
	return len(r.Hops) == 1
}

// Validate checks the hop-chaining invariant and that the route is acyclic.
func (r Route) Validate() error {
	if len(r.Hops) == 0 {
		return fmt.Errorf("domain: route has no hops")
	}
	seen := map[string]bool{r.Hops[0].TokenIn: true}
	for i, h := range r.Hops {
		if h.TokenIn == h.TokenOut {
			return fmt.Errorf("domain: hop %d is degenerate (%s)", i, h.TokenIn)
		}
		if i > 0 && r.Hops[i-1].TokenOut != h.TokenIn {
			return fmt.Errorf("domain: hop %d input %s does not chain from %s",
				i, h.TokenIn, r.Hops[i-1].TokenOut)
		}
		if seen[h.TokenOut] {
			return fmt.Errorf("domain: route revisits token %s", h.TokenOut)
		}
		seen[h.TokenOut] = true
	}
	return nil
}
