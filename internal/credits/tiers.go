package credits

// Tier allotments per 30-day period.
const (
	TierFree = "free"
	TierPro  = "pro"
)

var tierAllotments = map[string]float64{
	TierFree: 500,
	TierPro:  10000,
}

// Allotment returns the credit budget for a tier. Unknown tiers fall back
// to the free allotment rather than zero so a bad plan string never bricks
// an account.
func Allotment(tier string) float64 {
	if a, ok := tierAllotments[tier]; ok {
		return a
	}
	return tierAllotments[TierFree]
}

// modelMultipliers scale the 1-credit-per-1000-token baseline. Models not
// listed bill at baseline.
var modelMultipliers = map[string]float64{
	"gpt-4o-mini":                1,
	"gpt-3.5-turbo":              1,
	"gpt-4o":                     5,
	"gpt-4":                      15,
	"gpt-4-turbo":                10,
	"claude-3-haiku-20240307":    1,
	"claude-3-sonnet-20240229":   5,
	"claude-sonnet-4-20250514":   5,
	"claude-3-opus-20240229":     15,
	"claude-opus-4-20250514":     15,
}

// ChargeFor converts a token count into a credit charge for a model.
func ChargeFor(model string, tokens int) float64 {
	mult, ok := modelMultipliers[model]
	if !ok {
		mult = 1
	}
	return float64(tokens) / 1000.0 * mult
}

// WouldExceed is the in-memory mirror of the debit guard. The authoritative
// check runs inside the debit UPDATE itself so concurrent spenders cannot
// race past the limit; this form exists for pre-flight checks and tests.
func WouldExceed(used, total, charge float64) bool {
	return used+charge > total
}
