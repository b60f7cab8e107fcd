package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openctemio/observe/pkg/domain/observation"
	"github.com/openctemio/observe/pkg/domain/product"
	"github.com/openctemio/observe/pkg/domain/rule"
	"github.com/openctemio/observe/pkg/logger"
)

func newRuleService(t *testing.T) (*RuleService, *mockRuleRepo, *mockProductRepo, *mockObservationRepo, *mockLogRepo) {
	t.Helper()
	ruleRepo := newMockRuleRepo()
	productRepo := newMockProductRepo()
	obsRepo := newMockObservationRepo()
	logRepo := &mockLogRepo{}
	ruleApply := NewRuleApplyService(ruleRepo, productRepo, obsRepo, logRepo, logger.NewNop())
	svc := NewRuleService(ruleRepo, ruleApply, logger.NewNop())
	return svc, ruleRepo, productRepo, obsRepo, logRepo
}

func TestCreateRuleSavesWithNeedsApproval(t *testing.T) {
	svc, ruleRepo, productRepo, _, _ := newRuleService(t)
	p, err := product.NewProduct("shop-backend")
	require.NoError(t, err)
	require.NoError(t, productRepo.Save(context.Background(), p))

	r, err := svc.CreateRule(context.Background(), CreateRuleInput{
		Name:      "downgrade dev findings",
		ProductID: p.ID().String(),
		Matchers:  rule.Matchers{Title: "^CVE-2024"},
		NewStatus: "false_positive",
	})

	require.NoError(t, err)
	assert.Equal(t, rule.ApprovalStatusNeedsApproval, r.ApprovalStatus())
	require.NotNil(t, r.ProductID())
	assert.True(t, r.ProductID().Equals(p.ID()))
	assert.Len(t, ruleRepo.byID, 1)
}

func TestCreateRuleRejectsBadPattern(t *testing.T) {
	svc, ruleRepo, _, _, _ := newRuleService(t)

	_, err := svc.CreateRule(context.Background(), CreateRuleInput{
		Name:     "broken",
		Matchers: rule.Matchers{Title: "("},
	})

	require.Error(t, err)
	assert.Empty(t, ruleRepo.byID)
}

func TestCreateRuleRejectsMalformedProductID(t *testing.T) {
	svc, _, _, _, _ := newRuleService(t)

	_, err := svc.CreateRule(context.Background(), CreateRuleInput{
		Name:      "scoped",
		ProductID: "not-a-uuid",
	})

	require.Error(t, err)
}

func TestSetApprovalStatusReappliesProductRules(t *testing.T) {
	svc, _, productRepo, obsRepo, logRepo := newRuleService(t)
	p, err := product.NewProduct("shop-backend")
	require.NoError(t, err)
	require.NoError(t, productRepo.Save(context.Background(), p))

	o := newOpenObservation(t, p.ID(), "CVE-2024-0001 in openssl")
	require.NoError(t, obsRepo.Save(context.Background(), o))

	r, err := svc.CreateRule(context.Background(), CreateRuleInput{
		Name:        "mute openssl noise",
		ProductID:   p.ID().String(),
		Matchers:    rule.Matchers{Title: "^CVE-2024"},
		NewSeverity: "low",
		NewStatus:   "false_positive",
	})
	require.NoError(t, err)

	// Unapproved rules do not participate, so the observation is untouched.
	assert.Equal(t, observation.StatusOpen, o.CurrentStatus())

	_, err = svc.SetApprovalStatus(context.Background(), r.ID().String(), rule.ApprovalStatusApproved)
	require.NoError(t, err)

	assert.Equal(t, observation.SeverityLow, o.CurrentSeverity())
	assert.Equal(t, observation.StatusFalsePositive, o.CurrentStatus())
	require.Len(t, logRepo.entries, 1)
	assert.Equal(t, "rule_engine", logRepo.entries[0].Actor())
}

func TestSetApprovalStatusRejectsInvalidStatus(t *testing.T) {
	svc, _, _, _, _ := newRuleService(t)

	r, err := svc.CreateRule(context.Background(), CreateRuleInput{Name: "general"})
	require.NoError(t, err)

	_, err = svc.SetApprovalStatus(context.Background(), r.ID().String(), rule.ApprovalStatus("blessed"))

	require.Error(t, err)
}
