package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Transaction is a single recorded crypto event: an acquisition ("buy"),
// a disposal ("sell") or anything else (transfers, rewards) which the
// report engine ignores. Classification is a case-insensitive substring
// match on Type, so free-text labels like "Buy with Strike" still count
// as acquisitions.
type Transaction struct {
	ID             string          `json:"id"`
	UserID         int64           `json:"-"`
	Type           string          `json:"type"`
	Date           time.Time       `json:"date"`
	Amount         decimal.Decimal `json:"amount"`        // quantity in the base asset
	PricePerBtc    decimal.Decimal `json:"pricePerBtc"`   // unit price in settlement currency
	PriceOrder     decimal.Decimal `json:"priceOrder"`    // total order value, if the venue reported one
	Fee            decimal.Decimal `json:"fee"`           // settlement-currency fee, zero when absent
	CryptoCurrency string          `json:"crypto_currency"`
	TxHash         string          `json:"tx_hash,omitempty"`
	WalletAddress  string          `json:"wallet_address,omitempty"`
	OrderOfUse     string          `json:"order_of_use,omitempty"`
	Comments       string          `json:"comments,omitempty"`
}

// IsBuy reports whether the transaction creates an acquisition lot.
func (t Transaction) IsBuy() bool {
	return strings.Contains(strings.ToLower(t.Type), "buy")
}

// IsSell reports whether the transaction is a disposal.
func (t Transaction) IsSell() bool {
	return strings.Contains(strings.ToLower(t.Type), "sell")
}

// InvalidTransactionError marks a transaction the engine cannot compute
// with. The whole report fails rather than skipping the row, since a
// skipped row silently changes the totals.
type InvalidTransactionError struct {
	ID     string
	Field  string
	Reason string
}

func (e *InvalidTransactionError) Error() string {
	return fmt.Sprintf("invalid transaction %s: field %q %s", e.ID, e.Field, e.Reason)
}

// Validate checks the fields the report engine depends on. Only buys and
// sells need full pricing data; a transaction of any type still needs a
// usable type label.
func (t Transaction) Validate() error {
	if strings.TrimSpace(t.Type) == "" {
		return &InvalidTransactionError{ID: t.ID, Field: "type", Reason: "is missing"}
	}
	if !t.IsBuy() && !t.IsSell() {
		return nil
	}
	if t.Date.IsZero() {
		return &InvalidTransactionError{ID: t.ID, Field: "date", Reason: "is missing or unparseable"}
	}
	if t.Amount.IsNegative() {
		return &InvalidTransactionError{ID: t.ID, Field: "amount", Reason: "must not be negative"}
	}
	if t.PricePerBtc.IsNegative() {
		return &InvalidTransactionError{ID: t.ID, Field: "pricePerBtc", Reason: "must not be negative"}
	}
	if t.Fee.IsNegative() {
		return &InvalidTransactionError{ID: t.ID, Field: "fee", Reason: "must not be negative"}
	}
	return nil
}
