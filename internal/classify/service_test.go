package classify

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/finbook/finbook/internal/ingest"
)

type memoryClassifyRepo struct {
	rules           map[int64]Rule
	classifications map[int64]Classification
	nextID          int64
}

func newMemoryClassifyRepo() *memoryClassifyRepo {
	return &memoryClassifyRepo{
		rules:           make(map[int64]Rule),
		classifications: make(map[int64]Classification),
	}
}

func (r *memoryClassifyRepo) ListActiveRules(ctx context.Context, ownerID int64) ([]Rule, error) {
	var out []Rule
	for _, rule := range r.rules {
		if rule.OwnerID == ownerID && rule.IsActive {
			out = append(out, rule)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].VersionNumber != out[j].VersionNumber {
			return out[i].VersionNumber > out[j].VersionNumber
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *memoryClassifyRepo) MaxRuleVersion(ctx context.Context, ownerID int64, name string) (int, error) {
	max := 0
	for _, rule := range r.rules {
		if rule.OwnerID == ownerID && rule.Name == name && rule.VersionNumber > max {
			max = rule.VersionNumber
		}
	}
	return max, nil
}

func (r *memoryClassifyRepo) InsertRule(ctx context.Context, rule Rule) (Rule, error) {
	r.nextID++
	rule.ID = r.nextID
	rule.CreatedAt = time.Now()
	r.rules[rule.ID] = rule
	return rule, nil
}

func (r *memoryClassifyRepo) FindAppliedClassification(ctx context.Context, transactionID int64) (Classification, bool, error) {
	for _, c := range r.classifications {
		if c.TransactionID == transactionID && c.Status == ClassificationApplied {
			return c, true, nil
		}
	}
	return Classification{}, false, nil
}

func (r *memoryClassifyRepo) InsertClassification(ctx context.Context, c Classification) (Classification, error) {
	r.nextID++
	c.ID = r.nextID
	c.CreatedAt = time.Now()
	r.classifications[c.ID] = c
	return c, nil
}

func (r *memoryClassifyRepo) SupersedeClassification(ctx context.Context, oldID, newID int64) error {
	c, ok := r.classifications[oldID]
	if !ok {
		return ErrRuleNotFound
	}
	c.Status = ClassificationSuperseded
	c.SupersededByID = &newID
	r.classifications[oldID] = c
	return nil
}

func keywordRule(name string, keywords []string, accountID int64) RuleInput {
	return RuleInput{
		OwnerID:         7,
		Name:            name,
		Type:            RuleTypeKeyword,
		Keywords:        keywords,
		TargetAccountID: accountID,
		EffectiveDate:   time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func atomicTx(id int64, description string) ingest.AtomicTransaction {
	return ingest.AtomicTransaction{
		ID:          id,
		OwnerID:     7,
		Date:        time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC),
		Amount:      decimal.RequireFromString("12.00"),
		Direction:   ingest.DirectionOut,
		Description: description,
	}
}

func TestCreateRuleVersionsAreImmutable(t *testing.T) {
	repo := newMemoryClassifyRepo()
	svc := NewService(repo, slog.New(slog.NewTextHandler(io.Discard, nil)))

	v1, err := svc.CreateRule(context.Background(), keywordRule("dining", []string{"coffee"}, 100))
	require.NoError(t, err)
	require.Equal(t, 1, v1.VersionNumber)

	v2, err := svc.CreateRule(context.Background(), keywordRule("dining", []string{"coffee", "restaurant"}, 101))
	require.NoError(t, err)
	require.Equal(t, 2, v2.VersionNumber)
	require.NotEqual(t, v1.ID, v2.ID)

	// The first version still exists untouched.
	stored := repo.rules[v1.ID]
	require.Equal(t, []string{"coffee"}, stored.Keywords)
	require.Equal(t, int64(100), stored.TargetAccountID)
}

func TestCreateRuleRejectsUnsupportedTypes(t *testing.T) {
	svc := NewService(newMemoryClassifyRepo(), slog.New(slog.NewTextHandler(io.Discard, nil)))

	in := keywordRule("dining", nil, 100)
	in.Type = RuleTypeRegex
	_, err := svc.CreateRule(context.Background(), in)
	require.ErrorIs(t, err, ErrRuleTypeUnsupported)

	in.Type = RuleTypeModel
	_, err = svc.CreateRule(context.Background(), in)
	require.ErrorIs(t, err, ErrRuleTypeUnsupported)
}

func TestApplyRulesNewestVersionWins(t *testing.T) {
	repo := newMemoryClassifyRepo()
	svc := NewService(repo, slog.New(slog.NewTextHandler(io.Discard, nil)))

	_, err := svc.CreateRule(context.Background(), keywordRule("dining", []string{"coffee"}, 100))
	require.NoError(t, err)
	v2, err := svc.CreateRule(context.Background(), keywordRule("dining", []string{"coffee"}, 200))
	require.NoError(t, err)

	applied, err := svc.ApplyRules(context.Background(), 7, []ingest.AtomicTransaction{atomicTx(1, "COFFEE SHOP")})
	require.NoError(t, err)
	require.Len(t, applied, 1)
	require.Equal(t, v2.ID, applied[0].RuleID)
	require.Equal(t, int64(200), applied[0].AccountID)
	require.Equal(t, 2, applied[0].RuleVersion)
}

func TestApplyRulesSupersedesPriorClassification(t *testing.T) {
	repo := newMemoryClassifyRepo()
	svc := NewService(repo, slog.New(slog.NewTextHandler(io.Discard, nil)))

	_, err := svc.CreateRule(context.Background(), keywordRule("dining", []string{"coffee"}, 100))
	require.NoError(t, err)

	tx := atomicTx(1, "COFFEE SHOP")
	first, err := svc.ApplyRules(context.Background(), 7, []ingest.AtomicTransaction{tx})
	require.NoError(t, err)
	require.Len(t, first, 1)

	_, err = svc.CreateRule(context.Background(), keywordRule("dining", []string{"coffee"}, 200))
	require.NoError(t, err)

	second, err := svc.ApplyRules(context.Background(), 7, []ingest.AtomicTransaction{tx})
	require.NoError(t, err)
	require.Len(t, second, 1)

	prior := repo.classifications[first[0].ID]
	require.Equal(t, ClassificationSuperseded, prior.Status)
	require.NotNil(t, prior.SupersededByID)
	require.Equal(t, second[0].ID, *prior.SupersededByID)
	require.Equal(t, ClassificationApplied, repo.classifications[second[0].ID].Status)
}

func TestApplyRulesSameRuleIsIdempotent(t *testing.T) {
	repo := newMemoryClassifyRepo()
	svc := NewService(repo, slog.New(slog.NewTextHandler(io.Discard, nil)))

	_, err := svc.CreateRule(context.Background(), keywordRule("dining", []string{"coffee"}, 100))
	require.NoError(t, err)

	tx := atomicTx(1, "COFFEE SHOP")
	first, err := svc.ApplyRules(context.Background(), 7, []ingest.AtomicTransaction{tx})
	require.NoError(t, err)
	require.Len(t, first, 1)

	second, err := svc.ApplyRules(context.Background(), 7, []ingest.AtomicTransaction{tx})
	require.NoError(t, err)
	require.Empty(t, second)
	require.Len(t, repo.classifications, 1)
}

func TestApplyRulesNoMatchLeavesUnclassified(t *testing.T) {
	repo := newMemoryClassifyRepo()
	svc := NewService(repo, slog.New(slog.NewTextHandler(io.Discard, nil)))

	_, err := svc.CreateRule(context.Background(), keywordRule("dining", []string{"coffee"}, 100))
	require.NoError(t, err)

	applied, err := svc.ApplyRules(context.Background(), 7, []ingest.AtomicTransaction{atomicTx(1, "MRT TOPUP")})
	require.NoError(t, err)
	require.Empty(t, applied)
}

func TestMatchRuleIsCaseInsensitive(t *testing.T) {
	rule := Rule{Type: RuleTypeKeyword, Keywords: []string{"Coffee"}}
	matched, err := matchRule(rule, ingest.NormalizeDescription("COFFEE SHOP ORCHARD"))
	require.NoError(t, err)
	require.True(t, matched)
}
