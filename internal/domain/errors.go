package domain

import "github.com/pkg/errors"

// Trade and pipeline error taxonomy. Callers wrap these with context and
// classify with errors.Is.
var (
	ErrNotConnected        = errors.New("signer is not connected")
	ErrLookup              = errors.New("account lookup failed")
	ErrAuthorityRisk       = errors.New("mint or freeze authority is not relinquished")
	ErrSimulationFailed    = errors.New("pre-trade simulation failed")
	ErrNoRoute             = errors.New("no route")
	ErrBuild               = errors.New("swap build failed")
	ErrImpactExceeded      = errors.New("price impact exceeds limit")
	ErrSubmitFailed        = errors.New("transaction submission failed")
	ErrZeroBalance         = errors.New("token balance is zero")
	ErrAmountTooSmall      = errors.New("sell amount is too small")
	ErrConfirmationTimeout = errors.New("transaction submitted but not confirmed")
	ErrValidation          = errors.New("validation failed")
	ErrFeedUnavailable     = errors.New("market feed unavailable")
	ErrPriceUnavailable    = errors.New("price unavailable")
)

var taxonomy = []struct {
	err  error
	name string
}{
	{ErrNotConnected, "NotConnected"},
	{ErrLookup, "LookupError"},
	{ErrAuthorityRisk, "AuthorityRisk"},
	{ErrSimulationFailed, "SimulationFailed"},
	{ErrNoRoute, "NoRouteError"},
	{ErrBuild, "BuildError"},
	{ErrImpactExceeded, "ImpactExceeded"},
	{ErrSubmitFailed, "SubmitFailed"},
	{ErrZeroBalance, "ZeroBalance"},
	{ErrAmountTooSmall, "AmountTooSmall"},
	{ErrConfirmationTimeout, "ConfirmationTimeout"},
	{ErrValidation, "ValidationError"},
	{ErrFeedUnavailable, "FeedUnavailable"},
	{ErrPriceUnavailable, "PriceUnavailable"},
}

// Classify returns the taxonomy name of err, "" for nil and "Unknown" otherwise.
func Classify(err error) string {
	if err == nil {
		return ""
	}
	for _, t := range taxonomy {
		if errors.Is(err, t.err) {
			return t.name
		}
	}
	return "Unknown"
}
