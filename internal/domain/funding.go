package domain

// FundingRecord is the result of tracing a wallet's earliest attributable
// funding transfer. At most one per wallet per audit run.
type FundingRecord struct {
	Funder         string // source address of the funding transfer
	Lamports       uint64 // funding amount in lamports
	BlockTime      int64  // Unix timestamp (seconds) of the funding transaction
	Signature      string // funding transaction signature
	SourceName     string // registry enrichment, empty if unknown
	SourceCategory string // registry enrichment, empty if unknown
}

// FunderGroup is a set of audited wallets sharing the same funder.
// Only groups meeting the cluster-size threshold are surfaced.
type FunderGroup struct {
	Funder  string
	Members []string // wallet addresses, enumeration order
}
