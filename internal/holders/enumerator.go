// Package holders enumerates the wallets holding a token mint.
package holders

import (
	"context"
	"encoding/base64"
	"fmt"
	"sort"

	"github.com/mr-tron/base58"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"solana-holder-audit/internal/domain"
	"solana-holder-audit/internal/observability"
	"solana-holder-audit/internal/solana"
)

// DefaultPageSize is the getTokenAccounts page size.
const DefaultPageSize = 1000

// topFastPathLimit is the most getTokenLargestAccounts returns in one call.
const topFastPathLimit = 20

// Options configures the enumerator. Zero values get defaults.
type Options struct {
	PageSize int
	Logger   zerolog.Logger
}

// Enumerator walks a mint's token accounts and aggregates them by owner.
type Enumerator struct {
	client   solana.Client
	pageSize int
	log      zerolog.Logger
}

// New creates an Enumerator.
func New(client solana.Client, opts Options) *Enumerator {
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Enumerator{
		client:   client,
		pageSize: pageSize,
		log:      opts.Logger.With().Str("component", "holders").Logger(),
	}
}

// Filter narrows the holder set. The zero value keeps every non-zero
// balance.
type Filter struct {
	MinBalance decimal.Decimal // scaled units; zero means no floor
	MinPercent decimal.Decimal // percent of supply; needs Token to apply
	Token      *domain.TokenInfo
}

// Enumerate walks every token account of the mint and returns holders
// aggregated by owner, sorted by balance descending. A page error ends
// the walk instead of failing it; the holders seen so far are returned.
func (e *Enumerator) Enumerate(ctx context.Context, token domain.TokenInfo, filter Filter) ([]domain.Holder, error) {
	// Keyed by token account so a cursor walk that redelivers an account
	// across pages overwrites instead of double-counting; the last page's
	// amount wins.
	accounts := make(map[string]solana.TokenAccount)
	cursor := ""
	pages := 0

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page, err := e.client.GetTokenAccounts(ctx, token.Mint, e.pageSize, cursor)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			// Partial holder sets are acceptable; a failed page is the
			// end of the stream, not the end of the audit.
			e.log.Warn().Err(err).Str("mint", token.Mint).Int("pages", pages).
				Msg("holder page failed, stopping enumeration")
			break
		}
		pages++

		for _, acc := range page.Accounts {
			if acc.Owner == "" {
				continue
			}
			key := acc.Address
			if key == "" {
				key = acc.Owner
			}
			accounts[key] = acc
		}

		if page.Cursor == "" || len(page.Accounts) == 0 || len(page.Accounts) < e.pageSize {
			break
		}
		cursor = page.Cursor
	}

	amounts := make(map[string]decimal.Decimal)
	for _, acc := range accounts {
		amount, err := decimal.NewFromString(acc.Amount)
		if err != nil {
			e.log.Warn().Str("owner", acc.Owner).Str("amount", acc.Amount).
				Msg("unparseable token amount, skipping account")
			continue
		}
		if amount.IsZero() {
			continue
		}
		amounts[acc.Owner] = amounts[acc.Owner].Add(amount)
	}

	holders := e.collect(token, amounts, filter)
	observability.RecordHolders(len(holders))
	e.log.Info().Str("mint", token.Mint).Int("pages", pages).
		Int("holders", len(holders)).Msg("holder enumeration complete")
	return holders, nil
}

// Top returns the n largest holders. For n within the fast-path limit a
// single getTokenLargestAccounts call suffices; larger n falls back to a
// full enumeration.
func (e *Enumerator) Top(ctx context.Context, token domain.TokenInfo, n int) ([]domain.Holder, error) {
	if n <= 0 {
		return nil, nil
	}
	if n > topFastPathLimit {
		all, err := e.Enumerate(ctx, token, Filter{})
		if err != nil {
			return nil, err
		}
		if len(all) > n {
			all = all[:n]
		}
		return all, nil
	}

	largest, err := e.client.GetTokenLargestAccounts(ctx, token.Mint)
	if err != nil {
		return nil, fmt.Errorf("largest accounts for %s: %w", token.Mint, err)
	}

	amounts := make(map[string]decimal.Decimal)
	for _, acc := range largest {
		owner, err := e.resolveOwner(ctx, acc.Address)
		if err != nil {
			e.log.Warn().Err(err).Str("token_account", acc.Address).
				Msg("owner resolution failed, skipping account")
			continue
		}
		amount, err := decimal.NewFromString(acc.Amount)
		if err != nil || amount.IsZero() {
			continue
		}
		amounts[owner] = amounts[owner].Add(amount)
	}

	holders := e.collect(token, amounts, Filter{})
	if len(holders) > n {
		holders = holders[:n]
	}
	return holders, nil
}

// collect turns the owner→raw-amount map into sorted, filtered holders.
func (e *Enumerator) collect(token domain.TokenInfo, amounts map[string]decimal.Decimal, filter Filter) []domain.Holder {
	holders := make([]domain.Holder, 0, len(amounts))
	for owner, raw := range amounts {
		h := domain.Holder{
			Address:    owner,
			RawBalance: raw,
			Balance:    token.ScaleRaw(raw),
		}
		if !filter.MinBalance.IsZero() && h.Balance.LessThan(filter.MinBalance) {
			continue
		}
		if !filter.MinPercent.IsZero() && filter.Token != nil {
			if h.SupplyPercent(filter.Token.Supply).LessThan(filter.MinPercent) {
				continue
			}
		}
		holders = append(holders, h)
	}

	sort.Slice(holders, func(i, j int) bool {
		if !holders[i].Balance.Equal(holders[j].Balance) {
			return holders[i].Balance.GreaterThan(holders[j].Balance)
		}
		return holders[i].Address < holders[j].Address
	})
	return holders
}

// resolveOwner reads a token account and extracts the owner field from
// the SPL token account layout (mint at 0..32, owner at 32..64).
func (e *Enumerator) resolveOwner(ctx context.Context, tokenAccount string) (string, error) {
	info, err := e.client.GetAccountInfo(ctx, tokenAccount)
	if err != nil {
		return "", err
	}
	if info == nil {
		return "", fmt.Errorf("token account %s does not exist", tokenAccount)
	}

	data, err := base64.StdEncoding.DecodeString(info.Data)
	if err != nil {
		return "", fmt.Errorf("decode account data: %w", err)
	}
	if len(data) < 64 {
		return "", fmt.Errorf("account data too short: %d bytes", len(data))
	}
	return base58.Encode(data[32:64]), nil
}
