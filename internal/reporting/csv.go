package reporting

import (
	"fmt"
	"strings"
)

// RenderWalletsCSV renders each classified wallet as one CSV row.
func RenderWalletsCSV(r *Report) string {
	var sb strings.Builder

	sb.WriteString("wallet,category,balance,supply_percent,days_inactive,funder,funder_category,bot,error\n")

	for _, w := range r.Wallets {
		days := ""
		if w.DaysSinceLastActivity != nil {
			days = fmt.Sprintf("%.2f", *w.DaysSinceLastActivity)
		}
		funder, funderCategory := "", ""
		if w.Funding != nil {
			funder = w.Funding.Funder
			funderCategory = w.Funding.SourceCategory
		}
		sb.WriteString(fmt.Sprintf("%s,%s,%s,%s,%s,%s,%s,%t,%s\n",
			w.Address,
			w.Category,
			w.Balance,
			w.SupplyPercent(r.Run.Supply).StringFixed(6),
			days,
			funder,
			funderCategory,
			w.Bot,
			csvEscape(w.Err),
		))
	}

	return sb.String()
}

// csvEscape keeps error messages from breaking the row format.
func csvEscape(s string) string {
	if !strings.ContainsAny(s, ",\"\n") {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
