// Package stub provides in-memory Solana clients for testing.
package stub

import (
	"context"
	"fmt"
	"strconv"

	"solana-holder-audit/internal/solana"
)

// Client implements solana.Client backed by maps. Zero values behave
// like an empty chain: no signatures, no accounts, no assets.
type Client struct {
	Transactions  map[string]*solana.Transaction
	Signatures    map[string][]solana.SignatureInfo
	TokenAccounts map[string][]solana.TokenAccount // by mint
	Largest       map[string][]solana.LargestAccount
	Supplies      map[string]*solana.TokenSupply
	Accounts      map[string]*solana.AccountInfo
	Balances      map[string]uint64
	Assets        map[string][]solana.Asset // by owner

	// PageSize caps GetTokenAccounts pages regardless of the requested
	// limit, letting tests exercise cursor paging with small fixtures.
	PageSize int

	// Err, when set, is returned by every call.
	Err error

	Calls map[string]int
}

// NewClient creates an empty stub client.
func NewClient() *Client {
	return &Client{
		Transactions:  make(map[string]*solana.Transaction),
		Signatures:    make(map[string][]solana.SignatureInfo),
		TokenAccounts: make(map[string][]solana.TokenAccount),
		Largest:       make(map[string][]solana.LargestAccount),
		Supplies:      make(map[string]*solana.TokenSupply),
		Accounts:      make(map[string]*solana.AccountInfo),
		Balances:      make(map[string]uint64),
		Assets:        make(map[string][]solana.Asset),
		Calls:         make(map[string]int),
	}
}

var _ solana.Client = (*Client)(nil)

func (c *Client) count(method string) error {
	c.Calls[method]++
	return c.Err
}

func (c *Client) GetSignaturesForAddress(_ context.Context, address string, opts *solana.SignaturesOpts) ([]solana.SignatureInfo, error) {
	if err := c.count("getSignaturesForAddress"); err != nil {
		return nil, err
	}

	sigs := c.Signatures[address]

	// Signatures are stored newest first, as the RPC returns them.
	if opts != nil && opts.Before != "" {
		for i, s := range sigs {
			if s.Signature == opts.Before {
				sigs = sigs[i+1:]
				break
			}
		}
	}
	if opts != nil && opts.Limit > 0 && opts.Limit < len(sigs) {
		sigs = sigs[:opts.Limit]
	}
	return sigs, nil
}

func (c *Client) GetTransaction(_ context.Context, signature string) (*solana.Transaction, error) {
	if err := c.count("getTransaction"); err != nil {
		return nil, err
	}
	return c.Transactions[signature], nil
}

func (c *Client) GetTokenAccounts(_ context.Context, mint string, limit int, cursor string) (*solana.TokenAccountsPage, error) {
	if err := c.count("getTokenAccounts"); err != nil {
		return nil, err
	}

	accounts := c.TokenAccounts[mint]
	start := 0
	if cursor != "" {
		n, err := strconv.Atoi(cursor)
		if err != nil {
			return nil, fmt.Errorf("bad cursor %q", cursor)
		}
		start = n
	}
	if start >= len(accounts) {
		return &solana.TokenAccountsPage{}, nil
	}

	size := limit
	if c.PageSize > 0 && c.PageSize < size {
		size = c.PageSize
	}
	end := start + size
	if end > len(accounts) {
		end = len(accounts)
	}

	page := &solana.TokenAccountsPage{Accounts: accounts[start:end]}
	if end < len(accounts) {
		page.Cursor = strconv.Itoa(end)
	}
	return page, nil
}

func (c *Client) GetTokenLargestAccounts(_ context.Context, mint string) ([]solana.LargestAccount, error) {
	if err := c.count("getTokenLargestAccounts"); err != nil {
		return nil, err
	}
	return c.Largest[mint], nil
}

func (c *Client) GetTokenSupply(_ context.Context, mint string) (*solana.TokenSupply, error) {
	if err := c.count("getTokenSupply"); err != nil {
		return nil, err
	}
	supply, ok := c.Supplies[mint]
	if !ok {
		return nil, fmt.Errorf("unknown mint %s", mint)
	}
	return supply, nil
}

func (c *Client) GetAccountInfo(_ context.Context, address string) (*solana.AccountInfo, error) {
	if err := c.count("getAccountInfo"); err != nil {
		return nil, err
	}
	return c.Accounts[address], nil
}

func (c *Client) GetBalance(_ context.Context, address string) (uint64, error) {
	if err := c.count("getBalance"); err != nil {
		return 0, err
	}
	return c.Balances[address], nil
}

func (c *Client) GetAssetsByOwner(_ context.Context, owner string, page, limit int) (*solana.AssetPage, error) {
	if err := c.count("getAssetsByOwner"); err != nil {
		return nil, err
	}

	assets := c.Assets[owner]
	out := &solana.AssetPage{Total: len(assets)}
	if page < 1 || limit <= 0 {
		return out, nil
	}
	start := (page - 1) * limit
	if start >= len(assets) {
		return out, nil
	}
	end := start + limit
	if end > len(assets) {
		end = len(assets)
	}
	out.Items = assets[start:end]
	return out, nil
}

// AddSignatures stores signatures for an address, newest first.
func (c *Client) AddSignatures(address string, sigs []solana.SignatureInfo) {
	c.Signatures[address] = sigs
}

// AddTransaction stores a transaction by signature.
func (c *Client) AddTransaction(tx *solana.Transaction) {
	c.Transactions[tx.Signature] = tx
}
