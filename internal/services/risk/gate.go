// Package risk checks on-chain mint authorities before a trade.
package risk

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/dexsnipe/internal/domain"
)

// MintReader reads mint records.
type MintReader interface {
	MintInfo(ctx context.Context, mint string) (domain.MintInfo, error)
}

// Gate reports whether mint and freeze authorities are relinquished.
// Nothing is cached: authorities can be set after discovery.
type Gate struct {
	logger *zap.Logger
	reader MintReader
}

// NewGate creates a new Gate.
func NewGate(logger *zap.Logger, reader MintReader) *Gate {
	return &Gate{logger: logger.With(zap.String("component", "risk")), reader: reader}
}

// Assess fetches the mint record and derives the verdict.
// Any lookup failure is returned as domain.ErrLookup.
func (g *Gate) Assess(ctx context.Context, mint string) (domain.RiskVerdict, error) {
	info, err := g.reader.MintInfo(ctx, mint)
	if err != nil {
		if !errors.Is(err, domain.ErrLookup) {
			err = errors.Wrap(domain.ErrLookup, err.Error())
		}
		return domain.RiskVerdict{}, err
	}

	v := info.Verdict()
	g.logger.Debug("mint assessed",
		zap.String("mint", mint),
		zap.Bool("mint_authority_relinquished", v.MintAuthorityRelinquished),
		zap.Bool("freeze_authority_relinquished", v.FreezeAuthorityRelinquished),
	)
	return v, nil
}
