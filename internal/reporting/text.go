package reporting

import (
	"fmt"
	"strings"
)

// RenderText renders a compact console summary.
func RenderText(r *Report) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Audit %s\n", r.Run.RunID)
	fmt.Fprintf(&sb, "Mint %s | supply %s | %d holders | %s\n\n",
		r.Run.Mint, r.Run.Supply, r.Run.HolderCount, auditDuration(r))

	for _, row := range r.Rows {
		fmt.Fprintf(&sb, "  %-20s %6d wallets  %12s  %8s%%\n",
			row.Category, row.Wallets, row.Balance.StringFixed(2), row.SupplyPercent.StringFixed(2))
	}
	fmt.Fprintf(&sb, "\nSuspicious supply share: %s%%\n", r.SuspiciousPercent.StringFixed(2))

	if len(r.FunderGroups) > 0 {
		fmt.Fprintf(&sb, "Funder groups: %d\n", len(r.FunderGroups))
	}
	if len(r.Bundles) > 0 {
		fmt.Fprintf(&sb, "Bundles: %d\n", len(r.Bundles))
	}
	if r.Team != nil && len(r.Team.Wallets) > 0 {
		fmt.Fprintf(&sb, "Team: %d wallets holding %s%% of supply\n",
			len(r.Team.Wallets), r.Team.SupplyPercent.StringFixed(2))
	}
	if r.BotCount > 0 {
		fmt.Fprintf(&sb, "Bot-flagged wallets: %d\n", r.BotCount)
	}
	if len(r.Errors) > 0 {
		fmt.Fprintf(&sb, "Errors: %d\n", len(r.Errors))
	}

	return sb.String()
}
