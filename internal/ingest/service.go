package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Service turns raw extracted records into canonical, hash-identified rows.
// Ingesting the same fingerprint twice yields exactly one row whose
// provenance list carries every source document that reported it.
type Service struct {
	repo   Repository
	logger *slog.Logger
	now    func() time.Time
}

// NewService wires the deduplicator.
func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger, now: time.Now}
}

// WithNow overrides the clock, used by tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// IngestResult reports the outcome of one statement ingestion.
type IngestResult struct {
	Created      int
	Deduplicated int
}

// IngestTransaction upserts one transaction by fingerprint. The returned bool
// reports whether a new canonical row was created.
func (s *Service) IngestTransaction(ctx context.Context, in TransactionInput, sourceDoc string) (AtomicTransaction, bool, error) {
	if in.OwnerID == 0 {
		return AtomicTransaction{}, false, errors.New("ingest: owner required")
	}
	if sourceDoc == "" {
		return AtomicTransaction{}, false, errors.New("ingest: source document required")
	}
	if in.Direction != DirectionIn && in.Direction != DirectionOut {
		return AtomicTransaction{}, false, fmt.Errorf("ingest: unknown direction %q", in.Direction)
	}
	hash := TransactionFingerprint(in.OwnerID, in.Date, in.Amount, in.Direction, in.Description, in.Reference)

	existing, found, err := s.repo.FindTransactionByHash(ctx, in.OwnerID, hash)
	if err != nil {
		return AtomicTransaction{}, false, err
	}
	if found {
		existing, err = s.appendTransactionSource(ctx, existing, sourceDoc)
		return existing, false, err
	}

	created, err := s.repo.InsertTransaction(ctx, AtomicTransaction{
		OwnerID:         in.OwnerID,
		Date:            in.Date,
		Amount:          in.Amount,
		Direction:       in.Direction,
		Description:     NormalizeDescription(in.Description),
		Reference:       in.Reference,
		Currency:        in.Currency,
		DedupHash:       hash,
		SourceDocuments: []string{sourceDoc},
	})
	if err == nil {
		return created, true, nil
	}
	if !errors.Is(err, ErrFingerprintExists) {
		return AtomicTransaction{}, false, err
	}
	// Lost an insert race; the winner's row is canonical.
	existing, found, err = s.repo.FindTransactionByHash(ctx, in.OwnerID, hash)
	if err != nil {
		return AtomicTransaction{}, false, err
	}
	if !found {
		return AtomicTransaction{}, false, fmt.Errorf("ingest: fingerprint %s vanished after conflict", hash)
	}
	existing, err = s.appendTransactionSource(ctx, existing, sourceDoc)
	return existing, false, err
}

// IngestPosition upserts one position snapshot by fingerprint.
func (s *Service) IngestPosition(ctx context.Context, in PositionInput, sourceDoc string) (AtomicPosition, bool, error) {
	if in.OwnerID == 0 {
		return AtomicPosition{}, false, errors.New("ingest: owner required")
	}
	if sourceDoc == "" {
		return AtomicPosition{}, false, errors.New("ingest: source document required")
	}
	hash := PositionFingerprint(in.OwnerID, in.SnapshotDate, in.AssetIdentifier, in.Broker)

	existing, found, err := s.repo.FindPositionByHash(ctx, in.OwnerID, hash)
	if err != nil {
		return AtomicPosition{}, false, err
	}
	if found {
		existing, err = s.appendPositionSource(ctx, existing, sourceDoc)
		return existing, false, err
	}

	created, err := s.repo.InsertPosition(ctx, AtomicPosition{
		OwnerID:         in.OwnerID,
		SnapshotDate:    in.SnapshotDate,
		AssetIdentifier: in.AssetIdentifier,
		Broker:          in.Broker,
		Quantity:        in.Quantity,
		MarketValue:     in.MarketValue,
		Currency:        in.Currency,
		DedupHash:       hash,
		SourceDocuments: []string{sourceDoc},
	})
	if err == nil {
		return created, true, nil
	}
	if !errors.Is(err, ErrFingerprintExists) {
		return AtomicPosition{}, false, err
	}
	existing, found, err = s.repo.FindPositionByHash(ctx, in.OwnerID, hash)
	if err != nil {
		return AtomicPosition{}, false, err
	}
	if !found {
		return AtomicPosition{}, false, fmt.Errorf("ingest: fingerprint %s vanished after conflict", hash)
	}
	existing, err = s.appendPositionSource(ctx, existing, sourceDoc)
	return existing, false, err
}

func (s *Service) appendPositionSource(ctx context.Context, pos AtomicPosition, sourceDoc string) (AtomicPosition, error) {
	for _, doc := range pos.SourceDocuments {
		if doc == sourceDoc {
			return pos, nil
		}
	}
	if err := s.repo.AppendPositionSource(ctx, pos.ID, sourceDoc); err != nil {
		return pos, err
	}
	pos.SourceDocuments = append(pos.SourceDocuments, sourceDoc)
	return pos, nil
}

// IngestExtraction validates an extraction payload and ingests every
// transaction it reports. A duplicate fingerprint is not an error; it only
// extends the existing row's provenance.
func (s *Service) IngestExtraction(ctx context.Context, ownerID int64, result ExtractionResult, sourceDoc string) (IngestResult, error) {
	if err := result.Validate(); err != nil {
		return IngestResult{}, err
	}
	var out IngestResult
	for idx, raw := range result.Transactions {
		date, err := time.Parse(canonicalDate, raw.Date)
		if err != nil {
			return out, fmt.Errorf("ingest: transaction %d: bad date: %w", idx, err)
		}
		_, created, err := s.IngestTransaction(ctx, TransactionInput{
			OwnerID:     ownerID,
			Date:        date,
			Amount:      raw.Amount,
			Direction:   Direction(raw.Direction),
			Description: raw.Description,
			Reference:   raw.Reference,
			Currency:    result.Currency,
		}, sourceDoc)
		if err != nil {
			return out, fmt.Errorf("ingest: transaction %d: %w", idx, err)
		}
		if created {
			out.Created++
		} else {
			out.Deduplicated++
		}
	}
	s.log().Info("ingested extraction",
		slog.Int64("owner_id", ownerID),
		slog.String("institution", result.Institution),
		slog.Int("created", out.Created),
		slog.Int("deduplicated", out.Deduplicated),
	)
	return out, nil
}

func (s *Service) appendTransactionSource(ctx context.Context, tx AtomicTransaction, sourceDoc string) (AtomicTransaction, error) {
	for _, doc := range tx.SourceDocuments {
		if doc == sourceDoc {
			return tx, nil
		}
	}
	if err := s.repo.AppendTransactionSource(ctx, tx.ID, sourceDoc); err != nil {
		return tx, err
	}
	tx.SourceDocuments = append(tx.SourceDocuments, sourceDoc)
	return tx, nil
}

func (s *Service) log() *slog.Logger {
	if s.logger != nil {
		return s.logger
	}
	return slog.Default()
}
