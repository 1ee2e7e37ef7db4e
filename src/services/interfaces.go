package services

import (
	"errors"
	"io"

	"github.com/shopspring/decimal"
	"github.com/username/cryptofolio/backend/src/models"
)

var (
	ErrInvalidInput  = errors.New("invalid transaction input")
	ErrReportFailed  = errors.New("tax report computation failed")
	ErrStorageFailed = errors.New("transaction storage failed")
)

// NewTransactionInput carries the fields of the transaction capture form.
// Fee is optional: when absent it is derived from PriceOrder (total order
// value minus amount x unit price), mirroring how exchange order
// confirmations report cost.
type NewTransactionInput struct {
	Type           string           `json:"type"`
	Date           string           `json:"date"`
	Amount         decimal.Decimal  `json:"amount"`
	PricePerBtc    decimal.Decimal  `json:"pricePerBtc"`
	PriceOrder     decimal.Decimal  `json:"priceOrder"`
	Fee            *decimal.Decimal `json:"fee,omitempty"`
	CryptoCurrency string           `json:"crypto_currency"`
	TxHash         string           `json:"tx_hash,omitempty"`
	WalletAddress  string           `json:"wallet_address,omitempty"`
	Comments       string           `json:"comments,omitempty"`
}

// TransactionService owns the per-user transaction ledger.
type TransactionService interface {
	CreateTransaction(userID int64, input NewTransactionInput) (*models.Transaction, error)
	ListTransactions(userID int64) ([]models.Transaction, error)
	DeleteAllTransactions(userID int64) error
}

// ReportService computes (and caches) yearly tax reports over a user's
// transaction ledger.
type ReportService interface {
	GetTaxReport(userID int64, year int) (*models.TaxReport, error)
	WriteTaxReportCSV(w io.Writer, userID int64, year int) error
	InvalidateUserCache(userID int64)
}
