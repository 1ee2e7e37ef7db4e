package services

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/username/cryptofolio/backend/src/database"
	"github.com/username/cryptofolio/backend/src/logger"
	"github.com/username/cryptofolio/backend/src/models"
	"github.com/username/cryptofolio/backend/src/utils"
)

type transactionServiceImpl struct {
	reportService ReportService
}

// NewTransactionService wires the ledger service. The report service is
// optional and only used to drop stale cached reports on mutation.
func NewTransactionService(reportService ReportService) TransactionService {
	return &transactionServiceImpl{reportService: reportService}
}

func (s *transactionServiceImpl) CreateTransaction(userID int64, input NewTransactionInput) (*models.Transaction, error) {
	if strings.TrimSpace(input.Type) == "" {
		return nil, fmt.Errorf("%w: type is required", ErrInvalidInput)
	}
	date, err := utils.ParseTimestamp(input.Date)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	fee := decimal.Zero
	switch {
	case input.Fee != nil:
		fee = *input.Fee
	case input.PriceOrder.IsPositive():
		// The order confirmation reports total cost; the spread between
		// it and amount x unit price is the venue's fee.
		fee = input.PriceOrder.Sub(input.Amount.Mul(input.PricePerBtc))
	}

	coin := input.CryptoCurrency
	if coin == "" {
		coin = "BTC"
	}

	tx := &models.Transaction{
		ID:             uuid.NewString(),
		UserID:         userID,
		Type:           input.Type,
		Date:           date,
		Amount:         input.Amount,
		PricePerBtc:    input.PricePerBtc,
		PriceOrder:     input.PriceOrder,
		Fee:            fee,
		CryptoCurrency: coin,
		TxHash:         input.TxHash,
		WalletAddress:  input.WalletAddress,
		OrderOfUse:     "FIFO",
		Comments:       input.Comments,
	}
	if err := tx.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	query := `
	INSERT INTO transactions (id, user_id, type, date, amount, price_per_btc, price_order, fee,
		crypto_currency, tx_hash, wallet_address, order_of_use, comments)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = database.DB.Exec(query, tx.ID, tx.UserID, tx.Type, tx.Date.UTC().Format(time.RFC3339),
		tx.Amount.String(), tx.PricePerBtc.String(), tx.PriceOrder.String(), tx.Fee.String(),
		tx.CryptoCurrency, tx.TxHash, tx.WalletAddress, tx.OrderOfUse, tx.Comments)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageFailed, err)
	}

	if s.reportService != nil {
		s.reportService.InvalidateUserCache(userID)
	}
	logger.L.Info("Transaction recorded", "userID", userID, "txID", tx.ID, "type", tx.Type)
	return tx, nil
}

// ListTransactions returns the user's ledger in insertion order, which the
// report engine treats as chronological acquisition order.
func (s *transactionServiceImpl) ListTransactions(userID int64) ([]models.Transaction, error) {
	query := `
	SELECT id, type, date, amount, price_per_btc, price_order, fee,
		crypto_currency, tx_hash, wallet_address, order_of_use, comments
	FROM transactions WHERE user_id = ? ORDER BY rowid`
	rows, err := database.DB.Query(query, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageFailed, err)
	}
	defer rows.Close()

	transactions := []models.Transaction{}
	for rows.Next() {
		tx, err := scanTransaction(rows, userID)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageFailed, err)
	}
	return transactions, nil
}

func (s *transactionServiceImpl) DeleteAllTransactions(userID int64) error {
	_, err := database.DB.Exec(`DELETE FROM transactions WHERE user_id = ?`, userID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorageFailed, err)
	}
	if s.reportService != nil {
		s.reportService.InvalidateUserCache(userID)
	}
	logger.L.Info("Deleted all transactions", "userID", userID)
	return nil
}

func scanTransaction(rows *sql.Rows, userID int64) (models.Transaction, error) {
	var tx models.Transaction
	var dateStr, amountStr, priceStr string
	var priceOrderStr, feeStr, txHash, walletAddress, orderOfUse, comments sql.NullString

	err := rows.Scan(&tx.ID, &tx.Type, &dateStr, &amountStr, &priceStr, &priceOrderStr,
		&feeStr, &tx.CryptoCurrency, &txHash, &walletAddress, &orderOfUse, &comments)
	if err != nil {
		return tx, fmt.Errorf("%w: %v", ErrStorageFailed, err)
	}

	tx.UserID = userID
	tx.Date, err = time.Parse(time.RFC3339, dateStr)
	if err != nil {
		return tx, fmt.Errorf("%w: stored date %q unparseable: %v", ErrStorageFailed, dateStr, err)
	}
	if tx.Amount, err = decimal.NewFromString(amountStr); err != nil {
		return tx, fmt.Errorf("%w: stored amount %q unparseable: %v", ErrStorageFailed, amountStr, err)
	}
	if tx.PricePerBtc, err = decimal.NewFromString(priceStr); err != nil {
		return tx, fmt.Errorf("%w: stored price %q unparseable: %v", ErrStorageFailed, priceStr, err)
	}
	if tx.PriceOrder, err = parseNullDecimal(priceOrderStr); err != nil {
		return tx, fmt.Errorf("%w: stored priceOrder %q unparseable: %v", ErrStorageFailed, priceOrderStr.String, err)
	}
	if tx.Fee, err = parseNullDecimal(feeStr); err != nil {
		return tx, fmt.Errorf("%w: stored fee %q unparseable: %v", ErrStorageFailed, feeStr.String, err)
	}
	tx.TxHash = txHash.String
	tx.WalletAddress = walletAddress.String
	tx.OrderOfUse = orderOfUse.String
	tx.Comments = comments.String
	return tx, nil
}

// parseNullDecimal treats NULL and the empty string as zero. Any other
// unparseable value is a real error: a silently zeroed fee or order total
// would shift the report's cost basis.
func parseNullDecimal(v sql.NullString) (decimal.Decimal, error) {
	if !v.Valid || v.String == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(v.String)
}
