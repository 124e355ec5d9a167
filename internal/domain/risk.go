package domain

// RiskVerdict authority state of a mint at the time of a trade attempt.
type RiskVerdict struct {
	MintAuthorityRelinquished   bool `json:"mintAuthorityRelinquished"`
	FreezeAuthorityRelinquished bool `json:"freezeAuthorityRelinquished"`
}

// Safe reports whether both authorities are relinquished.
func (v RiskVerdict) Safe() bool {
	return v.MintAuthorityRelinquished && v.FreezeAuthorityRelinquished
}

// MintInfo on-chain mint record.
type MintInfo struct {
	// MintAuthority empty when relinquished.
	MintAuthority string
	// FreezeAuthority empty when relinquished.
	FreezeAuthority string
	Decimals        uint8
}

// Verdict derives the risk verdict from the mint record.
func (m MintInfo) Verdict() RiskVerdict {
	return RiskVerdict{
		MintAuthorityRelinquished:   m.MintAuthority == "",
		FreezeAuthorityRelinquished: m.FreezeAuthority == "",
	}
}

// TokenBalance owner's balance of one mint in base units.
type TokenBalance struct {
	Amount   uint64
	Decimals uint8
}
