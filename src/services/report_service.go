package services

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/username/cryptofolio/backend/src/logger"
	"github.com/username/cryptofolio/backend/src/models"
	"github.com/username/cryptofolio/backend/src/processors"
)

const (
	ckTaxReport = "res_tax_report_user_%d_year_%d"

	DefaultCacheExpiration = 15 * time.Minute
	CacheCleanupInterval   = 30 * time.Minute
)

type reportServiceImpl struct {
	txService   TransactionService
	processor   processors.TaxProcessor
	reportCache *cache.Cache
}

func NewReportService(processor processors.TaxProcessor, reportCache *cache.Cache) *reportServiceImpl {
	return &reportServiceImpl{
		processor:   processor,
		reportCache: reportCache,
	}
}

// SetTransactionService breaks the construction cycle between the ledger
// service (which invalidates report caches) and this one (which reads the
// ledger). Call once during wiring.
func (s *reportServiceImpl) SetTransactionService(txService TransactionService) {
	s.txService = txService
}

func (s *reportServiceImpl) GetTaxReport(userID int64, year int) (*models.TaxReport, error) {
	cacheKey := fmt.Sprintf(ckTaxReport, userID, year)
	if cached, found := s.reportCache.Get(cacheKey); found {
		logger.L.Debug("Cache hit for tax report", "userID", userID, "year", year)
		return cached.(*models.TaxReport).Clone(), nil
	}

	logger.L.Info("Cache miss for tax report, recalculating", "userID", userID, "year", year)
	transactions, err := s.txService.ListTransactions(userID)
	if err != nil {
		return nil, err
	}

	report, err := s.processor.Calculate(transactions, year)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrReportFailed, err)
	}

	s.reportCache.Set(cacheKey, report, DefaultCacheExpiration)
	return report.Clone(), nil
}

// InvalidateUserCache drops every cached report for the user. Report cache
// keys carry the year, so a bounded range around the user's data is
// cleared instead of tracking key sets.
func (s *reportServiceImpl) InvalidateUserCache(userID int64) {
	prefix := fmt.Sprintf("res_tax_report_user_%d_year_", userID)
	for key := range s.reportCache.Items() {
		if len(key) > len(prefix) && key[:len(prefix)] == prefix {
			s.reportCache.Delete(key)
		}
	}
	logger.L.Info("Invalidated cached tax reports", "userID", userID)
}

// WriteTaxReportCSV renders the report for download: one "sale" line per
// disposal followed by one "lot" line per consumption, then a summary.
// Money columns are rounded to 2 decimals here; the engine itself never
// rounds.
func (s *reportServiceImpl) WriteTaxReportCSV(w io.Writer, userID int64, year int) error {
	report, err := s.GetTaxReport(userID, year)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{
		"row", "id", "date", "coin", "amount", "sellValue", "buyValue",
		"profit", "taxableProfit", "fee", "holdingDays", "taxFree",
	}); err != nil {
		return err
	}

	for _, row := range report.Report {
		if err := cw.Write([]string{
			"sale", row.SaleID, row.Date.UTC().Format(time.RFC3339), row.Coin,
			row.Amount.String(), row.SellValue.StringFixed(2), row.BuyValue.StringFixed(2),
			row.Profit.StringFixed(2), row.TaxableProfit.StringFixed(2),
			row.Fee.StringFixed(2), "", "",
		}); err != nil {
			return err
		}
		for _, used := range row.UsedBuys {
			if err := cw.Write([]string{
				"lot", used.LotID, used.LotDate.UTC().Format(time.RFC3339), row.Coin,
				used.AmountUsed.String(), "", used.TotalCost.StringFixed(2),
				used.ProfitPart.StringFixed(2), "", used.FeePart.StringFixed(2),
				strconv.Itoa(used.HoldingDays), strconv.FormatBool(used.IsTaxFree),
			}); err != nil {
				return err
			}
		}
	}

	if err := cw.Write([]string{
		"total", "", "", "", "", "", "",
		report.TotalProfit.StringFixed(2), report.TaxableProfit.StringFixed(2), "", "", "",
	}); err != nil {
		return err
	}

	cw.Flush()
	return cw.Error()
}
