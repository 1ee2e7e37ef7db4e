package processors

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/cryptofolio/backend/src/models"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func buyTx(id string, date time.Time, amount, price, fee string) models.Transaction {
	return models.Transaction{
		ID: id, Type: "Buy", Date: date,
		Amount: dec(amount), PricePerBtc: dec(price), Fee: dec(fee),
		CryptoCurrency: "BTC",
	}
}

func sellTx(id string, date time.Time, amount, price, fee string) models.Transaction {
	return models.Transaction{
		ID: id, Type: "Sell", Date: date,
		Amount: dec(amount), PricePerBtc: dec(price), Fee: dec(fee),
		CryptoCurrency: "BTC",
	}
}

func assertDecEq(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...interface{}) {
	t.Helper()
	assert.True(t, got.Equal(dec(want)), "got %s, want %s %v", got, want, msgAndArgs)
}

func newTestProcessor() *TaxReportProcessor {
	return NewTaxReportProcessor(time.UTC, UnmatchedLenient)
}

func TestCalculateFullFIFOConsumption(t *testing.T) {
	txs := []models.Transaction{
		buyTx("b1", day(2023, 1, 1), "1.0", "100", "0"),
		sellTx("s1", day(2023, 6, 1), "1.0", "150", "0"),
	}

	report, err := newTestProcessor().Calculate(txs, 2023)
	require.NoError(t, err)

	require.Len(t, report.Report, 1)
	row := report.Report[0]
	assertDecEq(t, "100", row.BuyValue)
	assertDecEq(t, "150", row.SellValue)
	assertDecEq(t, "50", row.Profit)
	assertDecEq(t, "50", row.TaxableProfit)

	require.Len(t, row.UsedBuys, 1)
	used := row.UsedBuys[0]
	assert.Equal(t, "b1", used.LotID)
	assert.Equal(t, 151, used.HoldingDays)
	assert.False(t, used.IsTaxFree)

	assertDecEq(t, "50", report.TotalProfit)
	assertDecEq(t, "50", report.TaxableProfit)
}

func TestCalculateTaxFreeAfter366Days(t *testing.T) {
	txs := []models.Transaction{
		buyTx("b1", day(2023, 1, 1), "1.0", "100", "0"),
		sellTx("s1", day(2024, 1, 2), "1.0", "150", "0"),
	}

	report, err := newTestProcessor().Calculate(txs, 2024)
	require.NoError(t, err)

	require.Len(t, report.Report, 1)
	row := report.Report[0]
	require.Len(t, row.UsedBuys, 1)
	assert.Equal(t, 366, row.UsedBuys[0].HoldingDays)
	assert.True(t, row.UsedBuys[0].IsTaxFree)
	assertDecEq(t, "50", row.Profit)
	assertDecEq(t, "0", report.TaxableProfit)
	assertDecEq(t, "50", report.TotalProfit)
}

func TestCalculateExactly365DaysIsTaxable(t *testing.T) {
	txs := []models.Transaction{
		buyTx("b1", day(2023, 1, 1), "1.0", "100", "0"),
		sellTx("s1", day(2024, 1, 1), "1.0", "150", "0"),
	}

	report, err := newTestProcessor().Calculate(txs, 2024)
	require.NoError(t, err)

	require.Len(t, report.Report, 1)
	row := report.Report[0]
	require.Len(t, row.UsedBuys, 1)
	assert.Equal(t, 365, row.UsedBuys[0].HoldingDays)
	assert.False(t, row.UsedBuys[0].IsTaxFree)
	assertDecEq(t, "50", report.TaxableProfit)
}

func TestCalculatePartialMultiLotConsumption(t *testing.T) {
	txs := []models.Transaction{
		buyTx("b1", day(2023, 1, 1), "0.5", "100", "0"),
		buyTx("b2", day(2023, 2, 1), "0.5", "200", "0"),
		sellTx("s1", day(2023, 12, 1), "1.0", "300", "0"),
	}

	report, err := newTestProcessor().Calculate(txs, 2023)
	require.NoError(t, err)

	require.Len(t, report.Report, 1)
	row := report.Report[0]
	require.Len(t, row.UsedBuys, 2)

	// Oldest lot first.
	assert.Equal(t, "b1", row.UsedBuys[0].LotID)
	assert.Equal(t, "b2", row.UsedBuys[1].LotID)
	assertDecEq(t, "0.5", row.UsedBuys[0].AmountUsed)
	assertDecEq(t, "0.5", row.UsedBuys[1].AmountUsed)

	assertDecEq(t, "150", row.BuyValue)
	assertDecEq(t, "300", row.SellValue)
	assertDecEq(t, "150", row.Profit)
}

func TestCalculateFeeProration(t *testing.T) {
	txs := []models.Transaction{
		buyTx("b1", day(2023, 1, 1), "1.0", "100", "10"),
		sellTx("s1", day(2023, 6, 1), "0.4", "200", "0"),
	}

	report, err := newTestProcessor().Calculate(txs, 2023)
	require.NoError(t, err)

	require.Len(t, report.Report, 1)
	row := report.Report[0]
	require.Len(t, row.UsedBuys, 1)
	assertDecEq(t, "4", row.UsedBuys[0].FeePart)
	assertDecEq(t, "44", row.UsedBuys[0].TotalCost)
}

// A lot partially consumed by an earlier sale has its full fee prorated
// over what is left of it, so the effective fee-per-unit drifts upward
// across partial consumptions.
func TestCalculateFeeProrationBaseIsCurrentRemaining(t *testing.T) {
	txs := []models.Transaction{
		buyTx("b1", day(2023, 1, 1), "1.0", "100", "10"),
		sellTx("s1", day(2023, 5, 1), "0.4", "200", "0"),
		sellTx("s2", day(2023, 6, 1), "0.6", "200", "0"),
	}

	report, err := newTestProcessor().Calculate(txs, 2023)
	require.NoError(t, err)

	require.Len(t, report.Report, 2)
	assertDecEq(t, "4", report.Report[0].UsedBuys[0].FeePart)
	// Second sale drains the remaining 0.6 completely: 0.6/0.6 x 10.
	assertDecEq(t, "10", report.Report[1].UsedBuys[0].FeePart)
}

func TestCalculateYearFilterExcludesOutOfYearSalesFromConsumption(t *testing.T) {
	txs := []models.Transaction{
		buyTx("b1", day(2021, 3, 1), "1.0", "100", "0"),
		sellTx("s-old", day(2022, 3, 1), "0.5", "120", "0"),
		sellTx("s-new", day(2023, 3, 1), "0.5", "150", "0"),
	}

	report, err := newTestProcessor().Calculate(txs, 2023)
	require.NoError(t, err)

	// The 2022 sale neither appears in the report nor consumes the lot.
	require.Len(t, report.Report, 1)
	row := report.Report[0]
	assert.Equal(t, "s-new", row.SaleID)
	require.Len(t, row.UsedBuys, 1)
	assertDecEq(t, "0.5", row.UsedBuys[0].AmountUsed)
	assertDecEq(t, "75", row.SellValue)
	assertDecEq(t, "50", row.BuyValue)
}

func TestCalculateLotsSharedAcrossDisposals(t *testing.T) {
	txs := []models.Transaction{
		buyTx("b1", day(2023, 1, 1), "1.0", "100", "0"),
		buyTx("b2", day(2023, 2, 1), "1.0", "200", "0"),
		sellTx("s1", day(2023, 6, 1), "0.6", "300", "0"),
		sellTx("s2", day(2023, 7, 1), "0.6", "300", "0"),
	}

	report, err := newTestProcessor().Calculate(txs, 2023)
	require.NoError(t, err)

	require.Len(t, report.Report, 2)
	// First sale eats 0.6 of lot b1; second takes b1's last 0.4 then 0.2 of b2.
	require.Len(t, report.Report[0].UsedBuys, 1)
	require.Len(t, report.Report[1].UsedBuys, 2)
	assert.Equal(t, "b1", report.Report[1].UsedBuys[0].LotID)
	assertDecEq(t, "0.4", report.Report[1].UsedBuys[0].AmountUsed)
	assert.Equal(t, "b2", report.Report[1].UsedBuys[1].LotID)
	assertDecEq(t, "0.2", report.Report[1].UsedBuys[1].AmountUsed)
}

func TestCalculateClassificationBySubstring(t *testing.T) {
	txs := []models.Transaction{
		{
			ID: "b1", Type: "Buy with Strike", Date: day(2023, 1, 1),
			Amount: dec("1.0"), PricePerBtc: dec("100"), CryptoCurrency: "BTC",
		},
		{
			ID: "t1", Type: "Transfer", Date: day(2023, 2, 1),
			Amount: dec("1.0"), CryptoCurrency: "BTC",
		},
		sellTx("s1", day(2023, 6, 1), "1.0", "150", "0"),
	}

	report, err := newTestProcessor().Calculate(txs, 2023)
	require.NoError(t, err)

	require.Len(t, report.Report, 1)
	require.Len(t, report.Report[0].UsedBuys, 1)
	assert.Equal(t, "b1", report.Report[0].UsedBuys[0].LotID)
}

func TestCalculateMissingTypeFailsWholeReport(t *testing.T) {
	txs := []models.Transaction{
		buyTx("b1", day(2023, 1, 1), "1.0", "100", "0"),
		{ID: "bad", Date: day(2023, 2, 1), Amount: dec("1")},
	}

	_, err := newTestProcessor().Calculate(txs, 2023)
	var invalidErr *models.InvalidTransactionError
	require.ErrorAs(t, err, &invalidErr)
	assert.Equal(t, "bad", invalidErr.ID)
	assert.Equal(t, "type", invalidErr.Field)
}

func TestCalculateUnmatchedDisposalLenient(t *testing.T) {
	txs := []models.Transaction{
		buyTx("b1", day(2023, 1, 1), "1.0", "100", "0"),
		sellTx("s1", day(2023, 6, 1), "2.0", "150", "0"),
	}

	report, err := newTestProcessor().Calculate(txs, 2023)
	require.NoError(t, err)

	require.Len(t, report.Report, 1)
	row := report.Report[0]
	// Sell value still reflects the full disposal amount; cost basis only
	// the matched half.
	assertDecEq(t, "300", row.SellValue)
	assertDecEq(t, "100", row.BuyValue)
	assertDecEq(t, "1.0", row.UnmatchedAmount)
	require.Len(t, row.UsedBuys, 1)
	assertDecEq(t, "1.0", row.UsedBuys[0].AmountUsed)
}

func TestCalculateUnmatchedDisposalStrict(t *testing.T) {
	txs := []models.Transaction{
		buyTx("b1", day(2023, 1, 1), "1.0", "100", "0"),
		sellTx("s1", day(2023, 6, 1), "2.0", "150", "0"),
	}

	p := NewTaxReportProcessor(time.UTC, UnmatchedStrict)
	_, err := p.Calculate(txs, 2023)
	var unmatchedErr *UnmatchedDisposalError
	require.ErrorAs(t, err, &unmatchedErr)
	assert.Equal(t, "s1", unmatchedErr.SaleID)
	assertDecEq(t, "1.0", unmatchedErr.Unmatched)
}

func TestCalculateIdempotentAndNonMutating(t *testing.T) {
	txs := []models.Transaction{
		buyTx("b1", day(2023, 1, 1), "1.0", "100", "5"),
		buyTx("b2", day(2023, 2, 1), "2.0", "200", "0"),
		sellTx("s1", day(2023, 6, 1), "1.5", "300", "3"),
	}
	original := make([]models.Transaction, len(txs))
	copy(original, txs)

	p := newTestProcessor()
	first, err := p.Calculate(txs, 2023)
	require.NoError(t, err)
	second, err := p.Calculate(txs, 2023)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	for i := range txs {
		assert.True(t, txs[i].Amount.Equal(original[i].Amount), "input amount mutated at %d", i)
		assert.True(t, txs[i].Fee.Equal(original[i].Fee), "input fee mutated at %d", i)
	}
}

func TestCalculateEmptyInput(t *testing.T) {
	report, err := newTestProcessor().Calculate(nil, 2023)
	require.NoError(t, err)
	assert.Empty(t, report.Report)
	assertDecEq(t, "0", report.TotalProfit)
	assertDecEq(t, "0", report.TaxableProfit)
}

func TestCalculateSaleFeeReducesProceeds(t *testing.T) {
	txs := []models.Transaction{
		buyTx("b1", day(2023, 1, 1), "1.0", "100", "0"),
		sellTx("s1", day(2023, 6, 1), "1.0", "150", "10"),
	}

	report, err := newTestProcessor().Calculate(txs, 2023)
	require.NoError(t, err)

	row := report.Report[0]
	assertDecEq(t, "140", row.SellValue)
	assertDecEq(t, "40", row.Profit)
}
