package domain

// Health operator-facing summary of the running bot.
type Health struct {
	// Connected a signer is loaded, trades are possible.
	Connected      bool   `json:"connected"`
	ScansSucceeded uint64 `json:"scansSucceeded"`
	ScansFailed    uint64 `json:"scansFailed"`
	// LastTradeIndex journal index of the newest trade, usable as /trades?after=.
	LastTradeIndex uint64 `json:"lastTradeIndex"`
}
