// Package scoring ranks market snapshots by desirability and applies operator filters.
package scoring

import (
	"math"
	"sort"
	"time"

	"github.com/vadiminshakov/dexsnipe/internal/domain"
)

// MaxCandidates size of the published candidate list.
const MaxCandidates = 80

const (
	weightAge       = 0.25
	weightLiquidity = 0.25
	weightVolume    = 0.25
	weightValuation = 0.15
	weightMomentum  = 0.10

	ageHorizonMinutes = 240.0
	momentumExhausted = 80.0
	unknownValuation  = 0.6
)

// Score returns the composite score of s in [0,100] rounded to one decimal.
// Missing liquidity, volume and momentum contribute zero, an unknown pair age
// counts as very old and an unknown valuation gets the neutral default.
func Score(s domain.MarketSnapshot, now time.Time) float64 {
	total := weightAge*ageComponent(s, now) +
		weightLiquidity*logComponent(s.LiquidityUSD, 5) +
		weightVolume*logComponent(s.Volume24h, 6) +
		weightValuation*valuationComponent(s.FDV) +
		weightMomentum*momentumComponent(s.PriceChange.H1)

	return math.Round(clamp(total, 0, 1)*1000) / 10
}

func ageComponent(s domain.MarketSnapshot, now time.Time) float64 {
	age, ok := s.AgeMinutes(now)
	if !ok {
		return 0
	}
	age = math.Max(age, 0)
	return clamp(1-math.Min(age, ageHorizonMinutes)/ageHorizonMinutes, 0, 1)
}

func logComponent(v *float64, decades float64) float64 {
	if v == nil || *v <= 0 || math.IsNaN(*v) {
		return 0
	}
	return clamp(math.Log10(1+*v)/decades, 0, 1)
}

func valuationComponent(fdv *float64) float64 {
	if fdv == nil || *fdv <= 0 {
		return unknownValuation
	}
	return clamp(1-math.Log10(math.Max(1, *fdv))/7, 0, 1)
}

func momentumComponent(ch *float64) float64 {
	if ch == nil || *ch <= 0 {
		return 0
	}
	if *ch > momentumExhausted {
		return 0.2
	}
	return 0.6 + 0.4*(1-*ch/momentumExhausted)
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}

// PassesFilters reports whether s satisfies every configured filter.
// A filter whose input is missing from the snapshot passes.
func PassesFilters(s domain.MarketSnapshot, f domain.FilterConfig, now time.Time) bool {
	if f.MaxAgeMinutes > 0 {
		if age, ok := s.AgeMinutes(now); ok && age > f.MaxAgeMinutes {
			return false
		}
	}
	if s.LiquidityUSD != nil && *s.LiquidityUSD < f.MinLiquidityUSD {
		return false
	}
	if s.Volume24h != nil && *s.Volume24h < f.MinVolume24h {
		return false
	}
	if s.FDV != nil && *s.FDV > f.MaxFDV {
		return false
	}
	if ch := s.PriceChange.H1; ch != nil && (*ch < f.MinChangeH1 || *ch > f.MaxChangeH1) {
		return false
	}

	mint := s.BaseMint()
	if contains(f.Deny, mint) {
		return false
	}
	if len(f.Allow) > 0 && !contains(f.Allow, mint) {
		return false
	}
	return true
}

func contains(list []string, mint string) bool {
	for _, m := range list {
		if domain.SameMint(m, mint) {
			return true
		}
	}
	return false
}

// Rank filters snaps, scores the survivors and returns them ordered by score,
// highest first, truncated to MaxCandidates. Equal scores are ordered by pair address.
func Rank(snaps []domain.MarketSnapshot, f domain.FilterConfig, now time.Time) []domain.ScoredCandidate {
	out := make([]domain.ScoredCandidate, 0, len(snaps))
	for _, s := range snaps {
		if !PassesFilters(s, f, now) {
			continue
		}
		out = append(out, domain.ScoredCandidate{MarketSnapshot: s, Score: Score(s, now)})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Pair.PairAddress < out[j].Pair.PairAddress
	})

	if len(out) > MaxCandidates {
		out = out[:MaxCandidates]
	}
	return out
}
