package domain

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

var (
	defaultLadderLevels = []int64{2, 3, 5, 10}
	defaultLadderParts  = []int64{40, 20, 20, 20}

	hundred = decimal.NewFromInt(100)
)

// Ladder take-profit ladder for one base mint.
type Ladder struct {
	// Levels price multiples of the entry price.
	Levels []decimal.Decimal `json:"levels"`
	// Parts percent of current holdings sold when the matching level is crossed.
	Parts []decimal.Decimal `json:"parts"`
	Armed bool              `json:"armed"`
	// EntryPrice price captured when the ladder was armed or on the first buy.
	EntryPrice  decimal.NullDecimal `json:"entryUsd"`
	ChainID     string              `json:"chainId,omitempty"`
	PairAddress string              `json:"pairAddress,omitempty"`
	// Executed per-level flag, parallel to Levels.
	Executed []bool `json:"executed,omitempty"`
	// Revision changes whenever the ladder is re-armed or re-shaped.
	Revision uint64 `json:"revision"`
}

// NewDefaultLadder returns a disarmed ladder with the default levels and parts.
func NewDefaultLadder() Ladder {
	l := Ladder{
		Levels: make([]decimal.Decimal, len(defaultLadderLevels)),
		Parts:  make([]decimal.Decimal, len(defaultLadderParts)),
	}
	for i := range defaultLadderLevels {
		l.Levels[i] = decimal.NewFromInt(defaultLadderLevels[i])
		l.Parts[i] = decimal.NewFromInt(defaultLadderParts[i])
	}
	return l
}

// Pair returns the pair identity the ladder is priced from.
func (l Ladder) Pair() PairRef {
	return PairRef{ChainID: l.ChainID, PairAddress: l.PairAddress}
}

// Clone returns a deep copy.
func (l Ladder) Clone() Ladder {
	c := l
	c.Levels = append([]decimal.Decimal(nil), l.Levels...)
	c.Parts = append([]decimal.Decimal(nil), l.Parts...)
	if l.Executed != nil {
		c.Executed = append([]bool(nil), l.Executed...)
	}
	return c
}

// ResetExecuted marks every level as not executed.
func (l *Ladder) ResetExecuted() {
	l.Executed = make([]bool, len(l.Levels))
}

// ExecutedAt reports whether level i has been executed.
func (l Ladder) ExecutedAt(i int) bool {
	return i < len(l.Executed) && l.Executed[i]
}

// Tradable reports whether the tick loop should evaluate the ladder.
func (l Ladder) Tradable() bool {
	return l.Armed && l.EntryPrice.Valid && l.EntryPrice.Decimal.IsPositive() && !l.Pair().IsZero() && len(l.Levels) > 0
}

// Target returns the price at which level i triggers.
func (l Ladder) Target(i int) decimal.Decimal {
	return l.EntryPrice.Decimal.Mul(l.Levels[i])
}

// Validate checks the ladder invariants.
func (l Ladder) Validate() error {
	return validateShape(l.Levels, l.Parts, l.Executed)
}

func validateShape(levels, parts []decimal.Decimal, executed []bool) error {
	if len(levels) == 0 {
		return errors.Wrap(ErrValidation, "ladder needs at least one level")
	}
	if len(levels) != len(parts) {
		return errors.Wrapf(ErrValidation, "levels and parts lengths differ (%d != %d)", len(levels), len(parts))
	}
	if executed != nil && len(executed) != len(levels) {
		return errors.Wrapf(ErrValidation, "executed length %d does not match %d levels", len(executed), len(levels))
	}

	sum := decimal.Zero
	for i := range levels {
		if !levels[i].IsPositive() {
			return errors.Wrapf(ErrValidation, "level %d must be > 0, got %s", i, levels[i].String())
		}
		if parts[i].IsNegative() {
			return errors.Wrapf(ErrValidation, "part %d must be >= 0, got %s", i, parts[i].String())
		}
		sum = sum.Add(parts[i])
	}
	if sum.GreaterThan(hundred) {
		return errors.Wrapf(ErrValidation, "parts sum to %s, must be <= 100", sum.String())
	}
	return nil
}

// ParseLadderEdit parses comma-separated level and part lists and validates them.
func ParseLadderEdit(levelsCSV, partsCSV string) ([]decimal.Decimal, []decimal.Decimal, error) {
	levels, err := parseCSVDecimals(levelsCSV)
	if err != nil {
		return nil, nil, errors.Wrap(err, "levels")
	}
	parts, err := parseCSVDecimals(partsCSV)
	if err != nil {
		return nil, nil, errors.Wrap(err, "parts")
	}
	if err := validateShape(levels, parts, nil); err != nil {
		return nil, nil, err
	}
	return levels, parts, nil
}

func parseCSVDecimals(csv string) ([]decimal.Decimal, error) {
	if strings.TrimSpace(csv) == "" {
		return nil, nil
	}

	fields := strings.Split(csv, ",")
	out := make([]decimal.Decimal, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimSpace(f)
		d, err := decimal.NewFromString(f)
		if err != nil {
			return nil, errors.Wrapf(ErrValidation, "%q is not a number", f)
		}
		out = append(out, d)
	}
	return out, nil
}

// SellAmount returns floor(balance * pct / 100) in base units.
func SellAmount(balance uint64, pct decimal.Decimal) uint64 {
	if balance == 0 || !pct.IsPositive() {
		return 0
	}
	if pct.GreaterThanOrEqual(hundred) {
		return balance
	}
	// truncated integer quotient, exact for any pct precision
	amount, _ := decimal.NewFromUint64(balance).Mul(pct).QuoRem(hundred, 0)
	return amount.BigInt().Uint64()
}
