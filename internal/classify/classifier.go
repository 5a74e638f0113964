// Package classify assigns each holder wallet exactly one audit category.
package classify

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"solana-holder-audit/internal/domain"
	"solana-holder-audit/internal/funding"
	"solana-holder-audit/internal/observability"
	"solana-holder-audit/internal/solana"
)

// Thresholds parameterizes the state machine. Zero values get defaults.
type Thresholds struct {
	FreshWalletThreshold    int     // signature count below which a wallet is Fresh
	AssetCountThreshold     int     // fungible asset count at or below which a wallet is FewAssets
	InactivityThresholdDays float64 // dormancy gap before the token purchase
	TeamBotRecentTxCount    int     // recent transactions inspected for mint purity
	MaxSwapScanTransactions int     // wallet history depth for the pre-purchase swap search
	AssetPageLimit          int     // getAssetsByOwner page size
}

// DefaultThresholds returns the standard thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		FreshWalletThreshold:    100,
		AssetCountThreshold:     2,
		InactivityThresholdDays: 5,
		TeamBotRecentTxCount:    20,
		MaxSwapScanTransactions: 50,
		AssetPageLimit:          1000,
	}
}

func (t Thresholds) withDefaults() Thresholds {
	def := DefaultThresholds()
	if t.FreshWalletThreshold <= 0 {
		t.FreshWalletThreshold = def.FreshWalletThreshold
	}
	if t.AssetCountThreshold <= 0 {
		t.AssetCountThreshold = def.AssetCountThreshold
	}
	if t.InactivityThresholdDays <= 0 {
		t.InactivityThresholdDays = def.InactivityThresholdDays
	}
	if t.TeamBotRecentTxCount <= 0 {
		t.TeamBotRecentTxCount = def.TeamBotRecentTxCount
	}
	if t.MaxSwapScanTransactions <= 0 {
		t.MaxSwapScanTransactions = def.MaxSwapScanTransactions
	}
	if t.AssetPageLimit <= 0 {
		t.AssetPageLimit = def.AssetPageLimit
	}
	return t
}

// Classifier runs the decision sequence for one wallet at a time. It is
// stateless across wallets and safe for concurrent use.
type Classifier struct {
	client solana.Client
	tracer *funding.Tracer
	th     Thresholds
	log    zerolog.Logger
}

// New creates a Classifier.
func New(client solana.Client, tracer *funding.Tracer, th Thresholds, log zerolog.Logger) *Classifier {
	return &Classifier{
		client: client,
		tracer: tracer,
		th:     th.withDefaults(),
		log:    log.With().Str("component", "classify").Logger(),
	}
}

// Classify assigns the holder its terminal category. Step failures fold
// into CategoryError on the wallet itself; only context cancellation is
// returned as an error, so a caller can tell an aborted run from a
// failed wallet.
func (c *Classifier) Classify(ctx context.Context, holder domain.Holder, token domain.TokenInfo) (domain.ClassifiedWallet, error) {
	wallet := domain.ClassifiedWallet{Holder: holder}

	category, err := c.run(ctx, &wallet, token)
	if err != nil {
		if ctx.Err() != nil {
			return wallet, ctx.Err()
		}
		c.log.Warn().Err(err).Str("wallet", holder.Address).Msg("classification step failed")
		wallet.Category = domain.CategoryError
		wallet.Err = err.Error()
		observability.RecordClassification(string(domain.CategoryError))
		return wallet, nil
	}

	wallet.Category = category
	observability.RecordClassification(string(category))
	return wallet, nil
}

// run walks the decision sequence. First match is terminal.
func (c *Classifier) run(ctx context.Context, wallet *domain.ClassifiedWallet, token domain.TokenInfo) (domain.Category, error) {
	address := wallet.Address

	// Freshness: a wallet with almost no history.
	sigs, err := c.client.GetSignaturesForAddress(ctx, address, &solana.SignaturesOpts{
		Limit: c.th.FreshWalletThreshold + 1,
	})
	if err != nil {
		return "", fmt.Errorf("fresh check: %w", err)
	}
	if len(sigs) < c.th.FreshWalletThreshold {
		return domain.CategoryFresh, nil
	}

	// Asset count. A wallet holding almost nothing but the audited mint
	// is either a distribution bot or simply a thin wallet; the recent
	// transaction mix tells the two apart.
	assetCount, err := c.countFungibleAssets(ctx, address)
	if err != nil {
		return "", fmt.Errorf("asset count: %w", err)
	}
	if assetCount <= c.th.AssetCountThreshold {
		teamBot, err := c.recentTxsTouchOnlyMint(ctx, sigs, token.Mint)
		if err != nil {
			return "", fmt.Errorf("team bot check: %w", err)
		}
		if teamBot {
			return domain.CategoryTeambot, nil
		}
		return domain.CategoryFewAssets, nil
	}

	// Dormancy before the token purchase.
	category, days, err := c.inactivityCheck(ctx, address, token.Mint)
	if err != nil {
		return "", fmt.Errorf("inactivity check: %w", err)
	}
	if days != nil {
		wallet.DaysSinceLastActivity = days
	}
	if category != "" {
		return category, nil
	}

	// Funding provenance. Cluster membership is decided across the
	// whole run, so a traced wallet stays Normal here; the orchestrator
	// upgrades members of large funder groups.
	rec, err := c.tracer.Trace(ctx, address)
	if err != nil {
		return "", fmt.Errorf("funding trace: %w", err)
	}
	wallet.Funding = rec

	return domain.CategoryNormal, nil
}

// countFungibleAssets pages through the wallet's assets counting fungible
// ones. Stops as soon as the count exceeds the threshold; the exact total
// past that point changes nothing.
func (c *Classifier) countFungibleAssets(ctx context.Context, address string) (int, error) {
	count := 0
	for page := 1; ; page++ {
		assets, err := c.client.GetAssetsByOwner(ctx, address, page, c.th.AssetPageLimit)
		if err != nil {
			return 0, err
		}
		for _, asset := range assets.Items {
			if asset.IsFungible() {
				count++
				if count > c.th.AssetCountThreshold {
					return count, nil
				}
			}
		}
		if len(assets.Items) < c.th.AssetPageLimit {
			return count, nil
		}
	}
}

// recentTxsTouchOnlyMint reports whether the wallet's latest transactions
// move the audited mint and nothing else.
func (c *Classifier) recentTxsTouchOnlyMint(ctx context.Context, sigs []solana.SignatureInfo, mint string) (bool, error) {
	recent := sigs
	if len(recent) > c.th.TeamBotRecentTxCount {
		recent = recent[:c.th.TeamBotRecentTxCount]
	}
	if len(recent) == 0 {
		return false, nil
	}

	for _, sig := range recent {
		tx, err := c.client.GetTransaction(ctx, sig.Signature)
		if err != nil {
			return false, err
		}
		if tx == nil || tx.Meta == nil {
			return false, nil
		}

		if len(tx.Meta.PreTokenBalances)+len(tx.Meta.PostTokenBalances) == 0 {
			return false, nil
		}
		for _, b := range tx.Meta.PreTokenBalances {
			if b.Mint != mint {
				return false, nil
			}
		}
		for _, b := range tx.Meta.PostTokenBalances {
			if b.Mint != mint {
				return false, nil
			}
		}
	}
	return true, nil
}
