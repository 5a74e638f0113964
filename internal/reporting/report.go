// Package reporting renders audit results for humans: a console
// summary, a Markdown report and a per-wallet CSV.
package reporting

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"solana-holder-audit/internal/bundle"
	"solana-holder-audit/internal/domain"
)

// Report is the render-ready view of one audit run.
type Report struct {
	GeneratedAt time.Time
	Run         domain.AuditRun
	Rows        []CategoryRow // stable category order, empty buckets omitted
	Wallets     []*domain.ClassifiedWallet

	FunderGroups []domain.FunderGroup
	Bundles      []domain.Bundle
	Team         *bundle.TeamReport

	SuspiciousPercent decimal.Decimal // supply share across suspicious categories
	BotCount          int
	Errors            []string
}

// CategoryRow is one line of the category table.
type CategoryRow struct {
	Category      domain.Category
	Wallets       int
	Balance       decimal.Decimal
	SupplyPercent decimal.Decimal
}

// Build assembles a Report from the audit output. bundles and team may
// be nil when no trade source was attached to the run.
func Build(audit *domain.AuditReport, bundles []domain.Bundle, team *bundle.TeamReport) *Report {
	r := &Report{
		GeneratedAt:  time.Now().UTC(),
		Run:          audit.Run,
		FunderGroups: audit.FunderGroups,
		Bundles:      bundles,
		Team:         team,
		Errors:       audit.Errors,
	}

	for _, cat := range domain.Categories {
		b, ok := audit.Buckets[cat]
		if !ok || len(b.Wallets) == 0 {
			continue
		}
		r.Rows = append(r.Rows, CategoryRow{
			Category:      cat,
			Wallets:       len(b.Wallets),
			Balance:       b.Balance,
			SupplyPercent: b.SupplyPercent,
		})
		if cat.Suspicious() {
			r.SuspiciousPercent = r.SuspiciousPercent.Add(b.SupplyPercent)
		}
		for _, w := range b.Wallets {
			r.Wallets = append(r.Wallets, w)
			if w.Bot {
				r.BotCount++
			}
		}
	}

	sort.Slice(r.Wallets, func(i, j int) bool {
		if !r.Wallets[i].Balance.Equal(r.Wallets[j].Balance) {
			return r.Wallets[i].Balance.GreaterThan(r.Wallets[j].Balance)
		}
		return r.Wallets[i].Address < r.Wallets[j].Address
	})
	return r
}
