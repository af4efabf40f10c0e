package models

import (
	"strings"

	"github.com/shopspring/decimal"
)

// PriceTableVersion identifies the current plan price table.
const PriceTableVersion = "2025-01"

// Currency is the ISO code charged for every plan.
const Currency = "eur"

// Plan is one row of the price table.
type Plan struct {
	ID    string
	Price decimal.Decimal
	Label string
}

// DefaultPlanID is charged when the submitted plan is absent or unknown.
const DefaultPlanID = "découverte"

var planTable = map[string]Plan{
	"découverte": {ID: "découverte", Price: decimal.RequireFromString("9.90"), Label: "🌟 Découverte (9.90€)"},
	"standard":   {ID: "standard", Price: decimal.RequireFromString("14.90"), Label: "⭐ Standard (14.90€)"},
	"premium":    {ID: "premium", Price: decimal.RequireFromString("19.90"), Label: "💎 Premium (19.90€)"},
}

var planAliases = map[string]string{
	"decouverte": "découverte",
}

// PriceQuote is a resolved price for a plan.
type PriceQuote struct {
	PlanID     string
	Version    string
	Currency   string
	Amount     decimal.Decimal
	MinorUnits int64
	// Fallback is set when the requested plan was unknown and the default was charged.
	Fallback bool
}

// Display renders the major-unit amount with two decimals ("14.90").
func (q PriceQuote) Display() string {
	return q.Amount.StringFixed(2)
}

// LookupPlan finds a plan case-insensitively, accepting unaccented aliases.
func LookupPlan(plan string) (Plan, bool) {
	key := strings.ToLower(strings.TrimSpace(plan))
	if alias, ok := planAliases[key]; ok {
		key = alias
	}
	p, ok := planTable[key]
	return p, ok
}

// ResolvePrice prices a plan from the server-owned table. Unknown plans are
// charged at the default plan's price.
func ResolvePrice(plan string) PriceQuote {
	p, ok := LookupPlan(plan)
	if !ok {
		p = planTable[DefaultPlanID]
	}
	return PriceQuote{
		PlanID:     p.ID,
		Version:    PriceTableVersion,
		Currency:   Currency,
		Amount:     p.Price,
		MinorUnits: ToMinorUnits(p.Price),
		Fallback:   !ok,
	}
}

// ToMinorUnits converts a major-unit amount to cents, rounding half away from zero.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// PlanLabel returns the marketing label for a plan, or the raw plan string
// when it is not in the table.
func PlanLabel(plan string) string {
	if p, ok := LookupPlan(plan); ok {
		return p.Label
	}
	return plan
}
