package pipeline

import (
	"github.com/ksred/insider-api/internal/edgar"
	"github.com/ksred/insider-api/internal/types"
)

// buildTrades shapes a parsed filing's transactions into persistable trade
// rows for the resolved company and insider. Sanity filtering already
// happened in the parser; every transaction that reaches this point becomes
// exactly one candidate row.
func buildTrades(parsed *edgar.ParsedFiling, company *types.Company, insider *types.Insider, entry edgar.FilingIndexEntry) []types.InsiderTrade {
	trades := make([]types.InsiderTrade, 0, len(parsed.Transactions))
	for _, tx := range parsed.Transactions {
		trades = append(trades, types.InsiderTrade{
			CompanyID:       company.ID,
			InsiderID:       insider.ID,
			TransactionDate: tx.Date,
			FilingDate:      entry.FilingDate,
			TransactionType: tx.Type,
			Shares:          tx.Shares,
			PricePerShare:   tx.PricePerShare,
			TotalValue:      tx.TotalValue,
			SharesOwned:     tx.SharesOwned,
			OwnershipType:   tx.OwnershipType,
			IsDerivative:    tx.IsDerivative,
			FilingURL:       entry.IndexURL,
		})
	}
	return trades
}

// insiderFromFiling maps the reporting-owner block to an insider row.
func insiderFromFiling(owner edgar.ReportingOwner) types.Insider {
	return types.Insider{
		Name:       owner.Name,
		CIK:        owner.CIK,
		IsDirector: owner.IsDirector,
		IsOfficer:  owner.IsOfficer,
		IsTenPct:   owner.IsTenPctOwner,
		Title:      owner.OfficerTitle,
	}
}
