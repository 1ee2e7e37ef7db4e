package processors

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/username/cryptofolio/backend/src/models"
)

// TaxReportProcessor walks disposals of a target year against the
// chronological queue of acquisition lots and attributes each slice of
// profit to the lot that funded it. It is a pure computation: the caller's
// transaction slice is never mutated and no state survives a call.
type TaxReportProcessor struct {
	loc    *time.Location
	policy UnmatchedDisposalPolicy
}

func NewTaxReportProcessor(loc *time.Location, policy UnmatchedDisposalPolicy) *TaxReportProcessor {
	if loc == nil {
		loc = time.UTC
	}
	if policy == "" {
		policy = UnmatchedLenient
	}
	return &TaxReportProcessor{loc: loc, policy: policy}
}

// UnmatchedDisposalError reports a sale that exceeds the quantity
// available across all acquisition lots at the time it is processed.
// Only surfaced under the strict policy.
type UnmatchedDisposalError struct {
	SaleID    string
	Unmatched decimal.Decimal
}

func (e *UnmatchedDisposalError) Error() string {
	return fmt.Sprintf("disposal %s exceeds acquired quantity by %s", e.SaleID, e.Unmatched)
}

// acquisitionLot is the engine's working copy of a buy. Remaining starts
// at the buy amount and is decremented as sales consume it; the original
// transaction is left untouched.
type acquisitionLot struct {
	tx        models.Transaction
	remaining decimal.Decimal
}

const taxFreeHoldingDays = 365

// Calculate computes the tax report for one calendar year.
//
// Calendar-year membership and day truncation both use the processor's
// time zone (UTC unless configured otherwise). Only in-year disposals walk
// the lot queue; lots are shared across the whole ordered run of disposals,
// oldest lot first.
func (p *TaxReportProcessor) Calculate(transactions []models.Transaction, year int) (*models.TaxReport, error) {
	lots, disposals, err := p.classify(transactions)
	if err != nil {
		return nil, err
	}

	report := &models.TaxReport{
		Year:          year,
		TotalProfit:   decimal.Zero,
		TaxableProfit: decimal.Zero,
		Report:        []models.SaleReportRow{},
	}

	head := 0 // index of the oldest still-open lot
	for _, sale := range disposals {
		if sale.Date.In(p.loc).Year() != year {
			continue
		}

		remaining := sale.Amount
		sellValue := sale.Amount.Mul(sale.PricePerBtc).Sub(sale.Fee)
		acquisitionCost := decimal.Zero
		profitForThisSale := decimal.Zero
		taxableProfitForThisSale := decimal.Zero
		usedBuys := []models.LotConsumption{}

		for remaining.IsPositive() && head < len(lots) {
			lot := &lots[head]
			if !lot.remaining.IsPositive() {
				head++
				continue
			}

			available := decimal.Min(remaining, lot.remaining)

			// The proration base is the lot's current remaining amount,
			// so a lot partially consumed by an earlier sale has its fee
			// spread over what is left of it.
			feePart := available.Div(lot.remaining).Mul(lot.tx.Fee)
			cost := available.Mul(lot.tx.PricePerBtc).Add(feePart)

			holdingDays := p.holdingDays(lot.tx.Date, sale.Date)
			isTaxFree := holdingDays > taxFreeHoldingDays

			proceedsPart := available.Div(sale.Amount).Mul(sellValue)
			profitPart := proceedsPart.Sub(cost)

			lot.remaining = lot.remaining.Sub(available)
			if !lot.remaining.IsPositive() {
				head++
			}
			remaining = remaining.Sub(available)

			usedBuys = append(usedBuys, models.LotConsumption{
				LotID:       lot.tx.ID,
				LotDate:     lot.tx.Date,
				AmountUsed:  available,
				PricePerBtc: lot.tx.PricePerBtc,
				TotalCost:   cost,
				FeePart:     feePart,
				HoldingDays: holdingDays,
				IsTaxFree:   isTaxFree,
				ProfitPart:  profitPart,
			})

			acquisitionCost = acquisitionCost.Add(cost)
			profitForThisSale = profitForThisSale.Add(profitPart)
			if !isTaxFree {
				taxableProfitForThisSale = taxableProfitForThisSale.Add(profitPart)
			}
		}

		if remaining.IsPositive() && p.policy == UnmatchedStrict {
			return nil, &UnmatchedDisposalError{SaleID: sale.ID, Unmatched: remaining}
		}

		report.TotalProfit = report.TotalProfit.Add(profitForThisSale)
		report.TaxableProfit = report.TaxableProfit.Add(taxableProfitForThisSale)

		row := models.SaleReportRow{
			SaleID:        sale.ID,
			Date:          sale.Date,
			Coin:          sale.CryptoCurrency,
			Amount:        sale.Amount,
			SellValue:     sellValue,
			BuyValue:      acquisitionCost,
			Profit:        profitForThisSale,
			TaxableProfit: taxableProfitForThisSale,
			Fee:           sale.Fee,
			UsedBuys:      usedBuys,
		}
		if remaining.IsPositive() {
			row.UnmatchedAmount = remaining
		}
		report.Report = append(report.Report, row)
	}

	return report, nil
}

// classify splits the input into acquisition-lot working copies and
// disposals, both in input order. Transactions matching neither label
// (transfers and the like) take no part in matching. Any transaction that
// fails validation aborts the whole report; a partial tax computation is
// worse than none.
func (p *TaxReportProcessor) classify(transactions []models.Transaction) ([]acquisitionLot, []models.Transaction, error) {
	var lots []acquisitionLot
	var disposals []models.Transaction
	for _, tx := range transactions {
		if err := tx.Validate(); err != nil {
			return nil, nil, err
		}
		switch {
		case tx.IsBuy():
			lots = append(lots, acquisitionLot{tx: tx, remaining: tx.Amount})
		case tx.IsSell():
			disposals = append(disposals, tx)
		}
	}
	return lots, disposals, nil
}

// holdingDays is the count of whole calendar days between acquisition and
// disposal. Time of day is discarded before differencing; both dates are
// read in the processor's zone and anchored to UTC midnights so the
// subtraction is exact across DST changes.
func (p *TaxReportProcessor) holdingDays(buyDate, saleDate time.Time) int {
	b := buyDate.In(p.loc)
	s := saleDate.In(p.loc)
	bd := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	sd := time.Date(s.Year(), s.Month(), s.Day(), 0, 0, 0, 0, time.UTC)
	return int(sd.Sub(bd).Hours() / 24)
}
