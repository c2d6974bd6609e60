package classify

import "time"

// RuleType discriminates rule matching strategies. Only keyword rules are
// implemented; the other declared types are reserved extension points.
type RuleType string

const (
	RuleTypeKeyword RuleType = "KEYWORD"
	RuleTypeRegex   RuleType = "REGEX"
	RuleTypeModel   RuleType = "MODEL"
)

// Rule is one immutable version of a classification rule. "Updating" a rule
// creates a new row with version_number+1 under the same name.
type Rule struct {
	ID              int64
	OwnerID         int64
	Name            string
	VersionNumber   int
	Type            RuleType
	Keywords        []string
	TargetAccountID int64
	Tags            []string
	EffectiveDate   time.Time
	IsActive        bool
	CreatedAt       time.Time
}

// ClassificationStatus tracks whether a classification is current.
type ClassificationStatus string

const (
	ClassificationApplied    ClassificationStatus = "APPLIED"
	ClassificationSuperseded ClassificationStatus = "SUPERSEDED"
)

// Classification links a transaction to the rule version that classified it.
// Re-applying rules supersedes the prior row instead of overwriting it.
type Classification struct {
	ID             int64
	TransactionID  int64
	RuleID         int64
	RuleVersion    int
	AccountID      int64
	Tags           []string
	Status         ClassificationStatus
	SupersededByID *int64
	CreatedAt      time.Time
}
