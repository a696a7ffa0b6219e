// Package membership implements plan selection and the enrollment flow that
// crosses the payment provider redirect.
package membership

import (
	"sort"
	"strings"

	"member-portal/internal/common/config"
	"member-portal/internal/common/errors"
)

// Plan is one of the six paid membership plans.
type Plan int

const (
	PlanUnknown Plan = iota
	OneYearBasic
	OneYearSponsoring
	FiveYearBasic
	FiveYearSponsoring
	LifetimeBasic
	LifetimeSponsoring
)

// AllPlans lists every paid plan in display order.
var AllPlans = []Plan{
	OneYearBasic, OneYearSponsoring,
	FiveYearBasic, FiveYearSponsoring,
	LifetimeBasic, LifetimeSponsoring,
}

var planNames = map[Plan]string{
	OneYearBasic:       "one-year-basic",
	OneYearSponsoring:  "one-year-sponsoring",
	FiveYearBasic:      "five-year-basic",
	FiveYearSponsoring: "five-year-sponsoring",
	LifetimeBasic:      "lifetime-basic",
	LifetimeSponsoring: "lifetime-sponsoring",
}

func (p Plan) String() string {
	if name, ok := planNames[p]; ok {
		return name
	}
	return "unknown"
}

func (p Plan) Valid() bool {
	_, ok := planNames[p]
	return ok
}

// Sponsoring reports whether the identifier carries the sponsoring marker.
func (p Plan) Sponsoring() bool {
	return p.Valid() && strings.Contains(p.String(), "sponsor")
}

// ParsePlan accepts exactly the six plan identifiers.
func ParsePlan(s string) (Plan, error) {
	for p, name := range planNames {
		if name == s {
			return p, nil
		}
	}
	return PlanUnknown, errors.NewPlanNotConfiguredError(s)
}

// PlanEntry is the provider-side data for one plan. Price is informational.
type PlanEntry struct {
	RemoteID string
	Price    string
}

// PlanTable maps each plan to the payment provider's billing plan.
type PlanTable struct {
	entries map[Plan]PlanEntry
}

func NewPlanTable(entries map[Plan]PlanEntry) *PlanTable {
	t := &PlanTable{entries: make(map[Plan]PlanEntry, len(entries))}
	for p, e := range entries {
		if p.Valid() {
			t.entries[p] = e
		}
	}
	return t
}

// PlanTableFromConfig builds the table from membership.plans. Keys that are
// not plan identifiers are returned as an error.
func PlanTableFromConfig(cfg map[string]config.PlanConfig) (*PlanTable, error) {
	entries := make(map[Plan]PlanEntry, len(cfg))
	var unknown []string
	for key, pc := range cfg {
		p, err := ParsePlan(key)
		if err != nil {
			unknown = append(unknown, key)
			continue
		}
		remote := strings.TrimSpace(pc.RemoteID)
		if strings.Contains(remote, "${") {
			// unresolved placeholder: the plan stays unconfigured
			remote = ""
		}
		entries[p] = PlanEntry{RemoteID: remote, Price: pc.Price}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, errors.NewPlanNotConfiguredError(strings.Join(unknown, ","))
	}
	return NewPlanTable(entries), nil
}

// RemoteID returns the provider plan id. Anything outside the six plans, or a
// plan with no configured id, is a PLAN_NOT_CONFIGURED error.
func (t *PlanTable) RemoteID(p Plan) (string, error) {
	e, ok := t.entries[p]
	if !ok || e.RemoteID == "" {
		return "", errors.NewPlanNotConfiguredError(p.String())
	}
	return e.RemoteID, nil
}

func (t *PlanTable) Entry(p Plan) (PlanEntry, bool) {
	e, ok := t.entries[p]
	return e, ok
}

// Missing lists plans without a remote id, for startup checks.
func (t *PlanTable) Missing() []Plan {
	var out []Plan
	for _, p := range AllPlans {
		if e, ok := t.entries[p]; !ok || e.RemoteID == "" {
			out = append(out, p)
		}
	}
	return out
}
