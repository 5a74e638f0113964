package domain

import "github.com/shopspring/decimal"

// AuditRun identifies one audit execution.
// Corresponds to audit_runs table in PostgreSQL.
type AuditRun struct {
	RunID       string // PRIMARY KEY, uuid
	Mint        string
	Decimals    int
	Supply      decimal.Decimal
	HolderCount int
	StartedAt   int64 // Unix timestamp in milliseconds
	FinishedAt  int64 // Unix timestamp in milliseconds
}

// CategoryBucket aggregates the wallets of one category within a run.
type CategoryBucket struct {
	Category      Category
	Wallets       []*ClassifiedWallet
	Balance       decimal.Decimal // summed decimal balance
	SupplyPercent decimal.Decimal // Balance / run supply * 100
}

// AuditReport is the full in-memory result of an audit run, consumed by
// formatting layers outside this module.
type AuditReport struct {
	Run          AuditRun
	Token        TokenInfo
	Buckets      map[Category]*CategoryBucket
	FunderGroups []FunderGroup
	Errors       []string // per-wallet error summaries
}

// Bucket returns the bucket for a category, creating it if absent.
func (r *AuditReport) Bucket(c Category) *CategoryBucket {
	if r.Buckets == nil {
		r.Buckets = make(map[Category]*CategoryBucket)
	}
	b, ok := r.Buckets[c]
	if !ok {
		b = &CategoryBucket{Category: c, Balance: decimal.Zero, SupplyPercent: decimal.Zero}
		r.Buckets[c] = b
	}
	return b
}

// Add appends a classified wallet to its category bucket and updates the
// bucket's balance and supply percentage against the run's captured supply.
func (r *AuditReport) Add(w *ClassifiedWallet) {
	b := r.Bucket(w.Category)
	b.Wallets = append(b.Wallets, w)
	b.Balance = b.Balance.Add(w.Balance)
	if !r.Token.Supply.IsZero() {
		b.SupplyPercent = b.Balance.Div(r.Token.Supply).Mul(decimal.NewFromInt(100))
	}
}
