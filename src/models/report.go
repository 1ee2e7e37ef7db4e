package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// LotConsumption records one (sale, lot) pairing: the slice of an
// acquisition lot a disposal consumed, with its prorated cost and fee and
// the holding-period classification of the resulting profit.
type LotConsumption struct {
	LotID       string          `json:"lotId"`
	LotDate     time.Time       `json:"lotDate"`
	AmountUsed  decimal.Decimal `json:"amountUsed"`
	PricePerBtc decimal.Decimal `json:"pricePerBtc"`
	TotalCost   decimal.Decimal `json:"totalCost"` // amountUsed x lot price + prorated fee
	FeePart     decimal.Decimal `json:"feePart"`
	HoldingDays int             `json:"holdingDays"`
	IsTaxFree   bool            `json:"isTaxFree"` // held more than 365 whole days
	ProfitPart  decimal.Decimal `json:"profitPart"`
}

// SaleReportRow is one disposal in the target year together with the lot
// slices that funded it.
type SaleReportRow struct {
	SaleID        string           `json:"saleId"`
	Date          time.Time        `json:"date"`
	Coin          string           `json:"coin"`
	Amount        decimal.Decimal  `json:"amount"`
	SellValue     decimal.Decimal  `json:"sellValue"` // amount x price - fee
	BuyValue      decimal.Decimal  `json:"buyValue"`  // sum of TotalCost over consumptions
	Profit        decimal.Decimal  `json:"profit"`
	TaxableProfit decimal.Decimal  `json:"taxableProfit"`
	Fee           decimal.Decimal  `json:"fee"`
	UsedBuys      []LotConsumption `json:"usedBuys"`

	// UnmatchedAmount is the part of the sale no acquisition lot could
	// cover. Zero in the normal case; only nonzero under the lenient
	// unmatched-disposal policy.
	UnmatchedAmount decimal.Decimal `json:"unmatchedAmount"`
}

// TaxReport is the yearly summary. TotalProfit counts every consumption
// regardless of holding period; TaxableProfit is the subset from lots held
// 365 days or less.
type TaxReport struct {
	Year          int             `json:"year"`
	TotalProfit   decimal.Decimal `json:"totalProfit"`
	TaxableProfit decimal.Decimal `json:"taxableProfit"`
	Report        []SaleReportRow `json:"report"`
}

// Clone returns a deep copy. Cached reports are handed to multiple
// requests, so each caller gets its own copy to mutate.
func (r *TaxReport) Clone() *TaxReport {
	if r == nil {
		return nil
	}
	out := *r
	out.Report = make([]SaleReportRow, len(r.Report))
	for i, row := range r.Report {
		row.UsedBuys = append([]LotConsumption(nil), row.UsedBuys...)
		out.Report[i] = row
	}
	return &out
}
