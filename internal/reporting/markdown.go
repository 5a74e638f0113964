package reporting

import (
	"fmt"
	"strings"
	"time"
)

// RenderMarkdown renders the report as a Markdown document.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	sb.WriteString("# Holder Audit Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Run: `%s`\n\n", r.Run.RunID))

	sb.WriteString("## Token\n\n")
	sb.WriteString("| Field | Value |\n")
	sb.WriteString("|-------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Mint | `%s` |\n", r.Run.Mint))
	sb.WriteString(fmt.Sprintf("| Decimals | %d |\n", r.Run.Decimals))
	sb.WriteString(fmt.Sprintf("| Supply | %s |\n", r.Run.Supply))
	sb.WriteString(fmt.Sprintf("| Holders audited | %d |\n", r.Run.HolderCount))
	sb.WriteString(fmt.Sprintf("| Duration | %s |\n", auditDuration(r)))
	sb.WriteString("\n")

	sb.WriteString("## Categories\n\n")
	if len(r.Rows) > 0 {
		sb.WriteString("| Category | Wallets | Balance | Supply % |\n")
		sb.WriteString("|----------|---------|---------|----------|\n")
		for _, row := range r.Rows {
			sb.WriteString(fmt.Sprintf("| %s | %d | %s | %s |\n",
				row.Category, row.Wallets, row.Balance, row.SupplyPercent.StringFixed(4)))
		}
		sb.WriteString(fmt.Sprintf("\nSuspicious supply share: **%s%%**\n\n", r.SuspiciousPercent.StringFixed(4)))
	} else {
		sb.WriteString("No holders classified.\n\n")
	}

	if r.BotCount > 0 {
		sb.WriteString(fmt.Sprintf("Bot-flagged wallets: %d\n\n", r.BotCount))
	}

	if len(r.FunderGroups) > 0 {
		sb.WriteString("## Funder Groups\n\n")
		sb.WriteString("| Funder | Members |\n")
		sb.WriteString("|--------|--------|\n")
		for _, g := range r.FunderGroups {
			sb.WriteString(fmt.Sprintf("| `%s` | %d |\n", g.Funder, len(g.Members)))
		}
		sb.WriteString("\n")
	}

	if len(r.Bundles) > 0 {
		sb.WriteString("## Bundles\n\n")
		sb.WriteString("| Time Key | Wallets | Tokens Bought | SOL Spent |\n")
		sb.WriteString("|----------|---------|---------------|----------|\n")
		for _, b := range r.Bundles {
			sb.WriteString(fmt.Sprintf("| %d | %d | %s | %s |\n",
				b.TimeKey, b.WalletCount(), b.TokensBought, b.SolSpent))
		}
		sb.WriteString("\n")
	}

	if r.Team != nil && len(r.Team.Wallets) > 0 {
		sb.WriteString("## Team\n\n")
		sb.WriteString(fmt.Sprintf("Wallets: %d | Supply share: %s%% | SOL spent: %s\n\n",
			len(r.Team.Wallets), r.Team.SupplyPercent.StringFixed(4), r.Team.SolSpent))
	}

	if len(r.Errors) > 0 {
		sb.WriteString("## Errors\n\n")
		for _, e := range r.Errors {
			sb.WriteString(fmt.Sprintf("- %s\n", e))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

func auditDuration(r *Report) time.Duration {
	if r.Run.FinishedAt <= r.Run.StartedAt {
		return 0
	}
	return time.Duration(r.Run.FinishedAt-r.Run.StartedAt) * time.Millisecond
}
