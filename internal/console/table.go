// Package console renders candidate lists for terminal output.
package console

import (
	"fmt"
	"io"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/vadiminshakov/dexsnipe/internal/domain"
)

// RenderCandidates prints the ranked list as a table.
func RenderCandidates(w io.Writer, list domain.CandidateList, now time.Time) error {
	if len(list.Candidates) == 0 {
		_, err := fmt.Fprintf(w, "[%s] cycle %d: no candidates\n", now.Format("15:04:05"), list.Cycle)
		return err
	}

	fmt.Fprintf(w, "[%s] cycle %d: %d candidates\n", list.ScannedAt.Format("15:04:05"), list.Cycle, len(list.Candidates))

	table := tablewriter.NewWriter(w)
	table.Header("#", "Score", "Symbol", "Mint", "Price $", "Liq $", "Vol 24h $", "FDV $", "H1 %", "Age")

	for i, c := range list.Candidates {
		symbol := c.BaseToken.Symbol
		if symbol == "" {
			symbol = "?"
		}
		if err := table.Append(
			fmt.Sprintf("%d", i+1),
			fmt.Sprintf("%.1f", c.Score),
			symbol,
			shorten(c.BaseMint(), 12),
			c.PriceUSD.String(),
			money(c.LiquidityUSD),
			money(c.Volume24h),
			money(c.FDV),
			percent(c.PriceChange.H1),
			age(c.MarketSnapshot, now),
		); err != nil {
			return err
		}
	}

	return table.Render()
}

func shorten(s string, max int) string {
	if len(s) <= max {
		return s
	}
	half := (max - 3) / 2
	return s[:half] + "..." + s[len(s)-half:]
}

func money(v *float64) string {
	if v == nil {
		return "-"
	}
	switch {
	case *v >= 1e6:
		return fmt.Sprintf("%.2fM", *v/1e6)
	case *v >= 1e3:
		return fmt.Sprintf("%.1fK", *v/1e3)
	default:
		return fmt.Sprintf("%.0f", *v)
	}
}

func percent(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%+.1f", *v)
}

func age(s domain.MarketSnapshot, now time.Time) string {
	mins, ok := s.AgeMinutes(now)
	if !ok {
		return "-"
	}
	if mins < 60 {
		return fmt.Sprintf("%.0fm", mins)
	}
	return fmt.Sprintf("%.1fh", mins/60)
}
