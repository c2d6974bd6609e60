package classify

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists rules and classifications.
type Repository interface {
	// ListActiveRules returns the owner's active rules ordered by descending
	// version so the newest version of a rule wins retrieval order.
	ListActiveRules(ctx context.Context, ownerID int64) ([]Rule, error)
	MaxRuleVersion(ctx context.Context, ownerID int64, name string) (int, error)
	InsertRule(ctx context.Context, rule Rule) (Rule, error)

	FindAppliedClassification(ctx context.Context, transactionID int64) (Classification, bool, error)
	InsertClassification(ctx context.Context, c Classification) (Classification, error)
	SupersedeClassification(ctx context.Context, oldID, newID int64) error
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository returns the pgx-backed classification repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

func (r *repository) ListActiveRules(ctx context.Context, ownerID int64) ([]Rule, error) {
	rows, err := r.db.Query(ctx, `SELECT id, owner_id, name, version_number, type, keywords, target_account_id, tags, effective_date, is_active, created_at
FROM classification_rules WHERE owner_id=$1 AND is_active=TRUE
ORDER BY version_number DESC, name ASC`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var rules []Rule
	for rows.Next() {
		var rule Rule
		if err := rows.Scan(&rule.ID, &rule.OwnerID, &rule.Name, &rule.VersionNumber, &rule.Type, &rule.Keywords, &rule.TargetAccountID, &rule.Tags, &rule.EffectiveDate, &rule.IsActive, &rule.CreatedAt); err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

func (r *repository) MaxRuleVersion(ctx context.Context, ownerID int64, name string) (int, error) {
	var v int
	err := r.db.QueryRow(ctx, `SELECT COALESCE(MAX(version_number), 0) FROM classification_rules WHERE owner_id=$1 AND name=$2`, ownerID, name).Scan(&v)
	return v, err
}

func (r *repository) InsertRule(ctx context.Context, rule Rule) (Rule, error) {
	err := r.db.QueryRow(ctx, `INSERT INTO classification_rules (owner_id, name, version_number, type, keywords, target_account_id, tags, effective_date, is_active)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9) RETURNING id, created_at`,
		rule.OwnerID, rule.Name, rule.VersionNumber, rule.Type, rule.Keywords, rule.TargetAccountID, rule.Tags, rule.EffectiveDate, rule.IsActive).
		Scan(&rule.ID, &rule.CreatedAt)
	if err != nil {
		return Rule{}, err
	}
	return rule, nil
}

func (r *repository) FindAppliedClassification(ctx context.Context, transactionID int64) (Classification, bool, error) {
	var c Classification
	err := r.db.QueryRow(ctx, `SELECT id, transaction_id, rule_id, rule_version, account_id, tags, status, superseded_by_id, created_at
FROM transaction_classifications WHERE transaction_id=$1 AND status='APPLIED'`, transactionID).
		Scan(&c.ID, &c.TransactionID, &c.RuleID, &c.RuleVersion, &c.AccountID, &c.Tags, &c.Status, &c.SupersededByID, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Classification{}, false, nil
		}
		return Classification{}, false, err
	}
	return c, true, nil
}

func (r *repository) InsertClassification(ctx context.Context, c Classification) (Classification, error) {
	err := r.db.QueryRow(ctx, `INSERT INTO transaction_classifications (transaction_id, rule_id, rule_version, account_id, tags, status)
VALUES ($1,$2,$3,$4,$5,$6) RETURNING id, created_at`,
		c.TransactionID, c.RuleID, c.RuleVersion, c.AccountID, c.Tags, c.Status).
		Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		return Classification{}, err
	}
	return c, nil
}

func (r *repository) SupersedeClassification(ctx context.Context, oldID, newID int64) error {
	_, err := r.db.Exec(ctx, `UPDATE transaction_classifications SET status='SUPERSEDED', superseded_by_id=$2 WHERE id=$1`, oldID, newID)
	return err
}
