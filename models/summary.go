package models

// TargetSummary is one line of the per-complex breakdown.
type TargetSummary struct {
	Target Target
	Name   string
	Items  int
	Error  string
}

// RunSummary aggregates the results of one run.
type RunSummary struct {
	TargetsTotal int
	Succeeded    int
	Failed       int
	TotalItems   int
	ByTarget     []TargetSummary
	ByTradeType  map[string]int

	PricedItems int
	MinPriceWon int64
	AvgPriceWon int64
	MaxPriceWon int64
}
