package ingest

import (
	"time"

	"github.com/shopspring/decimal"
)

// Direction is the flow side of a bank-reported transaction.
type Direction string

const (
	DirectionIn  Direction = "IN"
	DirectionOut Direction = "OUT"
)

// AtomicTransaction is the canonical, hash-identified form of a bank
// transaction. One row exists per unique fingerprint per owner; re-ingestion
// appends to SourceDocuments instead of creating a duplicate. Rows are
// append-only: no field other than the provenance list is ever mutated.
type AtomicTransaction struct {
	ID              int64
	OwnerID         int64
	Date            time.Time
	Amount          decimal.Decimal
	Direction       Direction
	Description     string
	Reference       string
	Currency        string
	DedupHash       string
	SourceDocuments []string
	CreatedAt       time.Time
}

// AtomicPosition is the analogous dedup model for brokerage snapshots.
type AtomicPosition struct {
	ID              int64
	OwnerID         int64
	SnapshotDate    time.Time
	AssetIdentifier string
	Broker          string
	Quantity        decimal.Decimal
	MarketValue     decimal.Decimal
	Currency        string
	DedupHash       string
	SourceDocuments []string
	CreatedAt       time.Time
}

// TransactionInput carries one extracted transaction into the deduplicator.
type TransactionInput struct {
	OwnerID     int64
	Date        time.Time
	Amount      decimal.Decimal
	Direction   Direction
	Description string
	Reference   string
	Currency    string
}

// PositionInput carries one extracted position snapshot.
type PositionInput struct {
	OwnerID         int64
	SnapshotDate    time.Time
	AssetIdentifier string
	Broker          string
	Quantity        decimal.Decimal
	MarketValue     decimal.Decimal
	Currency        string
}
