// Package funding traces where audited wallets got their first SOL from.
package funding

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"solana-holder-audit/internal/domain"
	"solana-holder-audit/internal/observability"
	"solana-holder-audit/internal/registry"
	"solana-holder-audit/internal/solana"
)

// Defaults for the tracing window.
const (
	DefaultMaxSignatures = 1000
	DefaultMaxCheck      = 10
	DefaultTolerance     = 10_000 // lamports

	// DefaultClusterSize is the smallest shared-funder cluster worth
	// surfacing as a group.
	DefaultClusterSize = 3
)

// Options configures the Tracer. Zero values get defaults.
type Options struct {
	MaxSignatures int    // history cap; a saturated page means the origin is unreachable
	MaxCheck      int    // oldest transactions examined for a funding transfer
	Tolerance     uint64 // lamport slack when matching balance deltas
	Logger        zerolog.Logger
}

// Tracer walks a wallet's oldest transactions looking for the transfer
// that funded it.
type Tracer struct {
	client    solana.Client
	registry  *registry.Registry
	maxSigs   int
	maxCheck  int
	tolerance uint64
	log       zerolog.Logger
}

// New creates a Tracer.
func New(client solana.Client, reg *registry.Registry, opts Options) *Tracer {
	if opts.MaxSignatures <= 0 {
		opts.MaxSignatures = DefaultMaxSignatures
	}
	if opts.MaxCheck <= 0 {
		opts.MaxCheck = DefaultMaxCheck
	}
	if opts.Tolerance == 0 {
		opts.Tolerance = DefaultTolerance
	}
	return &Tracer{
		client:    client,
		registry:  reg,
		maxSigs:   opts.MaxSignatures,
		maxCheck:  opts.MaxCheck,
		tolerance: opts.Tolerance,
		log:       opts.Logger.With().Str("component", "funding").Logger(),
	}
}

// Trace finds the earliest attributable funding transfer into address.
// Returns (nil, nil) when the wallet's history is too deep to reach its
// origin, or when none of the oldest transactions shows a plausible
// transfer. The result is deterministic for a fixed chain state.
func (t *Tracer) Trace(ctx context.Context, address string) (*domain.FundingRecord, error) {
	sigs, err := t.client.GetSignaturesForAddress(ctx, address, &solana.SignaturesOpts{
		Limit: t.maxSigs,
	})
	if err != nil {
		return nil, fmt.Errorf("signatures for %s: %w", address, err)
	}
	if len(sigs) == 0 {
		return nil, nil
	}
	if len(sigs) >= t.maxSigs {
		// A saturated page means the true origin may lie beyond the
		// window; an unknown funder beats a wrong one.
		observability.RecordFundingTrace("saturated")
		return nil, nil
	}

	// Signatures arrive newest first. Examine the oldest maxCheck of
	// them, oldest to newest: the earliest plausible transfer wins.
	start := len(sigs) - t.maxCheck
	if start < 0 {
		start = 0
	}
	oldest := sigs[start:]

	for i := len(oldest) - 1; i >= 0; i-- {
		sig := oldest[i]
		tx, err := t.client.GetTransaction(ctx, sig.Signature)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			t.log.Warn().Err(err).Str("signature", sig.Signature).
				Msg("funding candidate fetch failed, skipping")
			continue
		}
		if tx == nil || tx.Meta == nil || tx.Meta.Err != nil {
			continue
		}

		if rec := t.match(tx, address); rec != nil {
			t.enrich(rec)
			observability.RecordFundingTrace("found")
			return rec, nil
		}
	}

	observability.RecordFundingTrace("none")
	return nil, nil
}

// match inspects one transaction for a funding transfer into address.
func (t *Tracer) match(tx *solana.Transaction, address string) *domain.FundingRecord {
	// Preferred: an explicitly parsed system transfer to the wallet.
	if rec := t.matchParsedTransfer(tx, address); rec != nil {
		return rec
	}
	// Fallback: a lamport balance increase mirrored by some other
	// account's decrease, within tolerance of the fee.
	return t.matchBalanceDelta(tx, address)
}

func (t *Tracer) matchParsedTransfer(tx *solana.Transaction, address string) *domain.FundingRecord {
	if tx.Message == nil {
		return nil
	}

	instructions := tx.Message.Instructions
	if tx.Meta != nil {
		for _, inner := range tx.Meta.InnerInstructions {
			instructions = append(instructions, inner.Instructions...)
		}
	}

	for _, ins := range instructions {
		if ins.Program != "system" || ins.Parsed == nil {
			continue
		}
		if ins.Parsed.Type != "transfer" && ins.Parsed.Type != "transferChecked" {
			continue
		}
		dest, _ := ins.Parsed.Info["destination"].(string)
		if dest != address {
			continue
		}
		source, _ := ins.Parsed.Info["source"].(string)
		if source == "" || source == address {
			continue
		}

		rec := &domain.FundingRecord{
			Funder:    source,
			BlockTime: tx.BlockTime,
			Signature: tx.Signature,
		}
		if lamports, ok := ins.Parsed.Info["lamports"].(float64); ok {
			rec.Lamports = uint64(lamports)
		}
		return rec
	}
	return nil
}

func (t *Tracer) matchBalanceDelta(tx *solana.Transaction, address string) *domain.FundingRecord {
	meta := tx.Meta
	if tx.Message == nil || meta == nil {
		return nil
	}
	keys := tx.Message.AccountKeys
	if len(meta.PreBalances) != len(keys) || len(meta.PostBalances) != len(keys) {
		return nil
	}

	walletIdx := -1
	for i, key := range keys {
		if key == address {
			walletIdx = i
			break
		}
	}
	if walletIdx == -1 {
		return nil
	}

	post := meta.PostBalances[walletIdx]
	pre := meta.PreBalances[walletIdx]
	if post <= pre {
		return nil
	}
	received := post - pre

	for i, key := range keys {
		if i == walletIdx || key == "" {
			continue
		}
		if meta.PostBalances[i] >= meta.PreBalances[i] {
			continue
		}
		sent := meta.PreBalances[i] - meta.PostBalances[i]

		// The sender also pays the fee, so allow sent to exceed the
		// received amount by fee plus tolerance.
		if sent < received {
			continue
		}
		if sent-received > meta.Fee+t.tolerance {
			continue
		}

		return &domain.FundingRecord{
			Funder:    key,
			Lamports:  received,
			BlockTime: tx.BlockTime,
			Signature: tx.Signature,
		}
	}
	return nil
}

func (t *Tracer) enrich(rec *domain.FundingRecord) {
	if entry, ok := t.registry.Lookup(rec.Funder); ok {
		rec.SourceName = entry.Name
		rec.SourceCategory = entry.Category
	}
}

// FreshAt reports whether the wallet looked fresh just before the anchor
// transaction: fewer than threshold signatures preceded it.
func (t *Tracer) FreshAt(ctx context.Context, address, anchorSig string, threshold int) (bool, error) {
	sigs, err := t.client.GetSignaturesForAddress(ctx, address, &solana.SignaturesOpts{
		Before: anchorSig,
		Limit:  threshold + 1,
	})
	if err != nil {
		return false, fmt.Errorf("signatures before %s for %s: %w", anchorSig, address, err)
	}
	return len(sigs) < threshold, nil
}

// GroupByFunder buckets funding records by funder and returns the groups
// with at least clusterSize members, largest first.
func GroupByFunder(records map[string]*domain.FundingRecord, clusterSize int) []domain.FunderGroup {
	if clusterSize < 2 {
		clusterSize = 2
	}

	members := make(map[string][]string)
	for wallet, rec := range records {
		if rec == nil || rec.Funder == "" {
			continue
		}
		members[rec.Funder] = append(members[rec.Funder], wallet)
	}

	var groups []domain.FunderGroup
	for funder, wallets := range members {
		if len(wallets) < clusterSize {
			continue
		}
		sort.Strings(wallets)
		groups = append(groups, domain.FunderGroup{Funder: funder, Members: wallets})
	}

	sort.Slice(groups, func(i, j int) bool {
		if len(groups[i].Members) != len(groups[j].Members) {
			return len(groups[i].Members) > len(groups[j].Members)
		}
		return groups[i].Funder < groups[j].Funder
	})
	return groups
}
