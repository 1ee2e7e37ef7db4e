package processors

import (
	"github.com/username/cryptofolio/backend/src/models"
)

// UnmatchedDisposalPolicy controls how the report engine treats a sale
// whose amount exceeds the total quantity ever acquired.
type UnmatchedDisposalPolicy string

const (
	// UnmatchedLenient reports the sale with only the lots it could
	// match and records the shortfall on the row.
	UnmatchedLenient UnmatchedDisposalPolicy = "lenient"
	// UnmatchedStrict fails the whole report with an UnmatchedDisposalError.
	UnmatchedStrict UnmatchedDisposalPolicy = "strict"
)

// TaxProcessor defines the interface for computing a yearly FIFO tax report.
type TaxProcessor interface {
	Calculate(transactions []models.Transaction, year int) (*models.TaxReport, error)
}
