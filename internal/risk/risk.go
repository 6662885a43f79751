// Package risk holds the guard rails applied before any ledger mutation.
package risk

// Limits caps how much exposure a single driver decision may take on.
// Zero values disable the corresponding check.
type Limits struct {
	MaxNotionalPerTrade float64
	MaxPortfolioValue   float64
}

// AllowTrade reports whether a trade of the given value may be placed.
func (l Limits) AllowTrade(value float64) bool {
	return l.MaxNotionalPerTrade <= 0 || value <= l.MaxNotionalPerTrade
}

// AllowExposure reports whether total non-cash exposure may grow to value.
func (l Limits) AllowExposure(value float64) bool {
	return l.MaxPortfolioValue <= 0 || value <= l.MaxPortfolioValue
}
