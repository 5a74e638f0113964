package domain

// Category is the terminal classification of a holder wallet.
// Exactly one category is assigned per wallet per audit run.
type Category string

const (
	// CategoryFresh marks a wallet with fewer total signatures than the
	// fresh-wallet threshold.
	CategoryFresh Category = "FRESH"
	// CategoryFewAssets marks a wallet holding at most the configured
	// number of distinct fungible assets.
	CategoryFewAssets Category = "FEW_ASSETS"
	// CategoryNoToken marks a wallet with no token account for the
	// audited mint.
	CategoryNoToken Category = "NO_TOKEN"
	// CategoryNoATATransaction marks a wallet whose history shows no
	// qualifying swap before its token account was created.
	CategoryNoATATransaction Category = "NO_ATA_TRANSACTION"
	// CategoryInactive marks a wallet that was dormant for longer than the
	// inactivity threshold before acquiring the token.
	CategoryInactive Category = "INACTIVE"
	// CategoryTeambot marks a purpose-built distribution wallet that only
	// ever touches the audited token.
	CategoryTeambot Category = "TEAMBOT"
	// CategorySuspiciousFunding marks a wallet funded by a source shared
	// with enough other audited wallets to form a cluster.
	CategorySuspiciousFunding Category = "SUSPICIOUS_FUNDING"
	// CategoryNormal marks an organic wallet.
	CategoryNormal Category = "NORMAL"
	// CategoryError marks a wallet whose classification failed; the error
	// is recorded on the wallet and the run continues.
	CategoryError Category = "ERROR"
)

// Categories lists every valid category in a stable order.
var Categories = []Category{
	CategoryFresh,
	CategoryFewAssets,
	CategoryNoToken,
	CategoryNoATATransaction,
	CategoryInactive,
	CategoryTeambot,
	CategorySuspiciousFunding,
	CategoryNormal,
	CategoryError,
}

// String returns the string representation of Category.
func (c Category) String() string {
	return string(c)
}

// IsValid checks if the category is a member of the closed set.
func (c Category) IsValid() bool {
	for _, v := range Categories {
		if c == v {
			return true
		}
	}
	return false
}

// Suspicious reports whether the category indicates a non-organic wallet.
func (c Category) Suspicious() bool {
	switch c {
	case CategoryNormal, CategoryError:
		return false
	default:
		return true
	}
}
