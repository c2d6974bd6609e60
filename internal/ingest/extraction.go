package ingest

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// ExtractionResult is the output contract of the external document-parsing
// collaborator. The payload is untrusted: it is validated and normalized with
// the same rules used for fingerprinting before anything is persisted.
type ExtractionResult struct {
	Institution    string                 `validate:"required"`
	Currency       string                 `validate:"required,len=3"`
	PeriodStart    string                 `validate:"required,datetime=2006-01-02"`
	PeriodEnd      string                 `validate:"required,datetime=2006-01-02"`
	OpeningBalance decimal.Decimal        `validate:"-"`
	ClosingBalance decimal.Decimal        `validate:"-"`
	Transactions   []ExtractedTransaction `validate:"dive"`
}

// ExtractedTransaction is one raw transaction as reported by the parser.
type ExtractedTransaction struct {
	Date        string          `validate:"required,datetime=2006-01-02"`
	Description string          `validate:"required"`
	Amount      decimal.Decimal `validate:"-"`
	Direction   string          `validate:"required,oneof=IN OUT"`
	Reference   string          `validate:"-"`
	RawText     string          `validate:"-"`
}

var validate = validator.New()

// Validate checks the extraction payload against the boundary contract.
func (r ExtractionResult) Validate() error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("ingest: invalid extraction payload: %w", err)
	}
	for idx, tx := range r.Transactions {
		if !tx.Amount.IsPositive() {
			return fmt.Errorf("ingest: transaction %d amount must be positive", idx)
		}
	}
	return nil
}
