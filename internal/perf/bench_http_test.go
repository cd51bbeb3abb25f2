package perf

import (
	"sort"
	"testing"
	"time"

	"github.com/meridian-compliance/meridian/internal/authz"
)

// Decision evaluation sits on every request path, so a p95 regression here
// shows up as API latency across the whole platform.
func TestDecisionLatencyTargets(t *testing.T) {
	tenant := int64(1)
	client := int64(42)
	assigned := make([]int64, 0, 50)
	for i := int64(1); i <= 50; i++ {
		assigned = append(assigned, i)
	}

	scenarios := []struct {
		name      string
		actor     authz.Actor
		req       authz.Request
		threshold time.Duration
	}{
		{
			name:      "staff",
			actor:     authz.Actor{UserID: "3", Role: authz.RoleFirmAdmin, TenantID: 1},
			req:       authz.Request{Module: authz.ModuleClients, Action: authz.ActionEdit, ResourceTenantID: &tenant},
			threshold: 2 * time.Millisecond,
		},
		{
			name:      "portal",
			actor:     authz.Actor{UserID: "9", Role: authz.RoleClientPortalUser, TenantID: 1},
			req:       authz.Request{Module: authz.ModuleDocuments, Action: authz.ActionView, ResourceTenantID: &tenant, ClientID: &client, AssignedClientIDs: assigned},
			threshold: 2 * time.Millisecond,
		},
	}

	for _, scenario := range scenarios {
		samples := make([]time.Duration, 0, 2000)
		for i := 0; i < 2000; i++ {
			start := time.Now()
			if err := authz.Authorize(scenario.actor, scenario.req); err != nil {
				t.Fatalf("%s evaluation unexpectedly denied: %v", scenario.name, err)
			}
			samples = append(samples, time.Since(start))
		}
		p95 := percentile95(samples)
		if p95 > scenario.threshold {
			t.Fatalf("%s decision latency regression: p95=%s threshold=%s", scenario.name, p95, scenario.threshold)
		}
	}
}

func percentile95(samples []time.Duration) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	sorted := append([]time.Duration(nil), samples...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	index := int(float64(len(sorted)-1) * 0.95)
	if index < 0 {
		index = 0
	}
	if index >= len(sorted) {
		index = len(sorted) - 1
	}
	return sorted[index]
}
