package classify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/finbook/finbook/internal/ingest"
)

// Service applies versioned rules to atomic transactions. Classification
// feeds reconciliation but never gates it.
type Service struct {
	repo   Repository
	logger *slog.Logger
	now    func() time.Time
}

// NewService wires the classification engine.
func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger, now: time.Now}
}

// WithNow overrides the clock, used by tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// RuleInput describes a new rule or a new version of an existing rule.
type RuleInput struct {
	OwnerID         int64
	Name            string
	Type            RuleType
	Keywords        []string
	TargetAccountID int64
	Tags            []string
	EffectiveDate   time.Time
}

// CreateRule stores a new rule version. Existing versions are immutable;
// the new row gets the next version_number under the rule's name.
func (s *Service) CreateRule(ctx context.Context, in RuleInput) (Rule, error) {
	if in.OwnerID == 0 || in.Name == "" {
		return Rule{}, errors.New("classify: owner and name required")
	}
	switch in.Type {
	case RuleTypeKeyword:
		if len(in.Keywords) == 0 {
			return Rule{}, errors.New("classify: keyword rule requires keywords")
		}
	case RuleTypeRegex, RuleTypeModel:
		return Rule{}, fmt.Errorf("classify: %s: %w", in.Type, ErrRuleTypeUnsupported)
	default:
		return Rule{}, fmt.Errorf("classify: unknown rule type %q", in.Type)
	}
	version, err := s.repo.MaxRuleVersion(ctx, in.OwnerID, in.Name)
	if err != nil {
		return Rule{}, err
	}
	return s.repo.InsertRule(ctx, Rule{
		OwnerID:         in.OwnerID,
		Name:            in.Name,
		VersionNumber:   version + 1,
		Type:            in.Type,
		Keywords:        in.Keywords,
		TargetAccountID: in.TargetAccountID,
		Tags:            in.Tags,
		EffectiveDate:   in.EffectiveDate,
		IsActive:        true,
	})
}

// ApplyRules evaluates the owner's active rules against each transaction in
// retrieval order (descending version) and applies the first rule that
// matches. Transactions matching no rule are left unclassified. An existing
// classification is superseded, never overwritten.
func (s *Service) ApplyRules(ctx context.Context, ownerID int64, transactions []ingest.AtomicTransaction) ([]Classification, error) {
	rules, err := s.repo.ListActiveRules(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if len(rules) == 0 {
		return nil, nil
	}

	var applied []Classification
	for _, tx := range transactions {
		rule, ok := s.firstMatch(rules, tx)
		if !ok {
			continue
		}
		prior, hasPrior, err := s.repo.FindAppliedClassification(ctx, tx.ID)
		if err != nil {
			return applied, err
		}
		if hasPrior && prior.RuleID == rule.ID {
			continue
		}
		created, err := s.repo.InsertClassification(ctx, Classification{
			TransactionID: tx.ID,
			RuleID:        rule.ID,
			RuleVersion:   rule.VersionNumber,
			AccountID:     rule.TargetAccountID,
			Tags:          rule.Tags,
			Status:        ClassificationApplied,
		})
		if err != nil {
			return applied, err
		}
		if hasPrior {
			if err := s.repo.SupersedeClassification(ctx, prior.ID, created.ID); err != nil {
				return applied, err
			}
		}
		applied = append(applied, created)
	}

	s.log().Info("applied classification rules",
		slog.Int64("owner_id", ownerID),
		slog.Int("transactions", len(transactions)),
		slog.Int("classified", len(applied)),
	)
	return applied, nil
}

// firstMatch returns the first rule whose criteria match the transaction.
// Rule types other than keyword are declared but not yet supported and are
// skipped with a warning rather than failing the batch.
func (s *Service) firstMatch(rules []Rule, tx ingest.AtomicTransaction) (Rule, bool) {
	normalized := ingest.NormalizeDescription(tx.Description)
	for _, rule := range rules {
		matched, err := matchRule(rule, normalized)
		if err != nil {
			s.log().Warn("skipping rule", slog.Int64("rule_id", rule.ID), slog.Any("error", err))
			continue
		}
		if matched {
			return rule, true
		}
	}
	return Rule{}, false
}

func matchRule(rule Rule, normalizedDescription string) (bool, error) {
	switch rule.Type {
	case RuleTypeKeyword:
		for _, kw := range rule.Keywords {
			kw = strings.ToLower(strings.TrimSpace(kw))
			if kw != "" && strings.Contains(normalizedDescription, kw) {
				return true, nil
			}
		}
		return false, nil
	case RuleTypeRegex, RuleTypeModel:
		return false, fmt.Errorf("classify: %s: %w", rule.Type, ErrRuleTypeUnsupported)
	default:
		return false, fmt.Errorf("classify: unknown rule type %q", rule.Type)
	}
}

func (s *Service) log() *slog.Logger {
	if s.logger != nil {
		return s.logger
	}
	return slog.Default()
}
