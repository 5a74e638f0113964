package solana

import (
	"context"
	"errors"
)

// ErrMalformedResponse marks a response the client could not interpret.
// Never retried; most call sites degrade to an empty result.
var ErrMalformedResponse = errors.New("malformed rpc response")

// Client defines the narrow read interface the audit core consumes. Any
// blockchain-data provider with equivalent semantics suffices.
type Client interface {
	// GetSignaturesForAddress retrieves signatures for an address,
	// newest first, with pagination.
	GetSignaturesForAddress(ctx context.Context, address string, opts *SignaturesOpts) ([]SignatureInfo, error)

	// GetTransaction retrieves a transaction by signature, jsonParsed.
	// Returns (nil, nil) when the transaction is unknown.
	GetTransaction(ctx context.Context, signature string) (*Transaction, error)

	// GetTokenAccounts walks token accounts of a mint with an opaque
	// cursor. An empty cursor requests the first page.
	GetTokenAccounts(ctx context.Context, mint string, limit int, cursor string) (*TokenAccountsPage, error)

	// GetTokenLargestAccounts returns the 20 largest token accounts of a
	// mint in one bounded call.
	GetTokenLargestAccounts(ctx context.Context, mint string) ([]LargestAccount, error)

	// GetTokenSupply returns the mint's total supply and decimals.
	GetTokenSupply(ctx context.Context, mint string) (*TokenSupply, error)

	// GetAccountInfo retrieves account info. Returns (nil, nil) when the
	// account does not exist.
	GetAccountInfo(ctx context.Context, address string) (*AccountInfo, error)

	// GetBalance returns the account's lamport balance.
	GetBalance(ctx context.Context, address string) (uint64, error)

	// GetAssetsByOwner pages through the owner's assets (DAS).
	GetAssetsByOwner(ctx context.Context, owner string, page, limit int) (*AssetPage, error)
}
