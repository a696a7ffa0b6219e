package membership

import (
	"testing"

	"member-portal/internal/common/config"
	"member-portal/internal/common/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fullTable() *PlanTable {
	return NewPlanTable(map[Plan]PlanEntry{
		OneYearBasic:       {RemoteID: "P-1YB", Price: "50.00"},
		OneYearSponsoring:  {RemoteID: "P-1YS", Price: "100.00"},
		FiveYearBasic:      {RemoteID: "P-5YB", Price: "225.00"},
		FiveYearSponsoring: {RemoteID: "P-5YS", Price: "450.00"},
		LifetimeBasic:      {RemoteID: "P-LTB", Price: "750.00"},
		LifetimeSponsoring: {RemoteID: "P-LTS", Price: "1500.00"},
	})
}

func TestParsePlan(t *testing.T) {
	for _, p := range AllPlans {
		got, err := ParsePlan(p.String())
		require.NoError(t, err)
		assert.Equal(t, p, got)
	}

	for _, bad := range []string{"", "free", "two-year-basic", "Lifetime-Basic", "lifetime-sponsor"} {
		_, err := ParsePlan(bad)
		assert.Equal(t, errors.ErrCodePlanNotConfigured, errors.CodeOf(err), bad)
	}
}

func TestPlanTable_RemoteIDIsTotalOverPlans(t *testing.T) {
	table := fullTable()
	seen := map[string]bool{}
	for _, p := range AllPlans {
		id, err := table.RemoteID(p)
		require.NoError(t, err, p.String())
		assert.NotEmpty(t, id)
		assert.False(t, seen[id], "remote ids are distinct")
		seen[id] = true
	}
	assert.Empty(t, table.Missing())

	for _, p := range []Plan{PlanUnknown, Plan(42), Plan(-1)} {
		_, err := table.RemoteID(p)
		assert.Equal(t, errors.ErrCodePlanNotConfigured, errors.CodeOf(err))
	}
}

func TestPlanTable_MissingEntry(t *testing.T) {
	table := NewPlanTable(map[Plan]PlanEntry{OneYearBasic: {RemoteID: "P-1YB"}, OneYearSponsoring: {}})

	_, err := table.RemoteID(LifetimeBasic)
	assert.Error(t, err)
	_, err = table.RemoteID(OneYearSponsoring)
	assert.Error(t, err)
	assert.Len(t, table.Missing(), 5)
}

func TestPlanTableFromConfig(t *testing.T) {
	table, err := PlanTableFromConfig(map[string]config.PlanConfig{
		"five-year-sponsoring": {RemoteID: "P-5YS", Price: "450.00"},
	})
	require.NoError(t, err)
	id, err := table.RemoteID(FiveYearSponsoring)
	require.NoError(t, err)
	assert.Equal(t, "P-5YS", id)
	entry, ok := table.Entry(FiveYearSponsoring)
	assert.True(t, ok)
	assert.Equal(t, "450.00", entry.Price)

	table, err = PlanTableFromConfig(map[string]config.PlanConfig{
		"lifetime-basic": {RemoteID: "${PAYPAL_PLAN_LIFETIME_BASIC}"},
	})
	require.NoError(t, err)
	_, err = table.RemoteID(LifetimeBasic)
	assert.Error(t, err)

	_, err = PlanTableFromConfig(map[string]config.PlanConfig{"monthly-basic": {RemoteID: "P-M"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not available")
}

func TestDeriveTier(t *testing.T) {
	want := map[Plan]Tier{
		OneYearBasic:       TierBasic,
		OneYearSponsoring:  TierSponsoring,
		FiveYearBasic:      TierBasic,
		FiveYearSponsoring: TierSponsoring,
		LifetimeBasic:      TierBasic,
		LifetimeSponsoring: TierSponsoring,
	}
	for _, p := range AllPlans {
		t.Run(p.String(), func(t *testing.T) {
			assert.Equal(t, want[p], DeriveTier(ChoicePaid, p))
			assert.Equal(t, TierFree, DeriveTier(ChoiceFree, p))
			assert.Equal(t, TierFree, DeriveTier(ChoiceNone, p))
		})
	}
	assert.Equal(t, TierFree, DeriveTier(ChoiceFree, PlanUnknown))
}

func TestPaymentTypeFor(t *testing.T) {
	assert.Equal(t, PaymentNone, PaymentTypeFor(TierFree))
	assert.Equal(t, PaymentPayPal, PaymentTypeFor(TierBasic))
	assert.Equal(t, PaymentPayPal, PaymentTypeFor(TierSponsoring))
}
