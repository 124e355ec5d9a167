package domain

// Commitment durability level requested when waiting for confirmation.
type Commitment string

const (
	// CommitmentProcessed node has processed the transaction.
	CommitmentProcessed Commitment = "processed"
	// CommitmentConfirmed supermajority of the cluster voted on the block.
	CommitmentConfirmed Commitment = "confirmed"
	// CommitmentFinalized block is rooted.
	CommitmentFinalized Commitment = "finalized"
)

// String returns the string representation.
func (c Commitment) String() string {
	return string(c)
}

// IsValid checks if the Commitment value is valid.
func (c Commitment) IsValid() bool {
	return c == CommitmentProcessed || c == CommitmentConfirmed || c == CommitmentFinalized
}

// Rank orders commitment levels so that a stronger status satisfies a weaker request.
func (c Commitment) Rank() int {
	switch c {
	case CommitmentProcessed:
		return 1
	case CommitmentConfirmed:
		return 2
	case CommitmentFinalized:
		return 3
	default:
		return 0
	}
}
