package policy_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/govtrack/backend/internal/models"
	"github.com/govtrack/backend/internal/policy"
)

func TestPolicyRules(t *testing.T) {
	p := policy.New("Admin@Example.com")

	admin := &models.Identity{UID: "admin_user", Email: "admin@example.com"}
	alice := &models.Identity{UID: "alice", Email: "alice@example.com"}
	var anon *models.Identity

	verified := policy.Resource{Collection: policy.Opportunities, ID: "o1", Verified: models.Verified}
	unverified := policy.Resource{Collection: policy.Opportunities, ID: "o2", Verified: models.Unverified}
	source := policy.Resource{Collection: policy.Sources, ID: "s1"}
	aliceRow := policy.Resource{Collection: policy.Tracking, ID: "alice_o1", OwnerID: "alice"}
	bobRow := policy.Resource{Collection: policy.Tracking, ID: "bob_o1", OwnerID: "bob"}
	aliceProfile := policy.Resource{Collection: policy.Users, ID: "alice"}
	bobProfile := policy.Resource{Collection: policy.Users, ID: "bob"}

	tests := []struct {
		name   string
		actor  *models.Identity
		action policy.Action
		res    policy.Resource
		want   bool
	}{
		{"public reads verified opportunity", anon, policy.Read, verified, true},
		{"public cannot read unverified opportunity", anon, policy.Read, unverified, false},
		{"user cannot read unverified opportunity", alice, policy.Read, unverified, false},
		{"admin reads unverified opportunity", admin, policy.Read, unverified, true},
		{"admin writes opportunity", admin, policy.Write, unverified, true},
		{"user cannot write opportunity", alice, policy.Write, verified, false},
		{"public cannot write opportunity", anon, policy.Write, verified, false},
		{"admin reads sources", admin, policy.Read, source, true},
		{"admin writes sources", admin, policy.Write, source, true},
		{"user cannot read sources", alice, policy.Read, source, false},
		{"user writes own tracking", alice, policy.Write, aliceRow, true},
		{"user reads own tracking", alice, policy.Read, aliceRow, true},
		{"user cannot write others tracking", alice, policy.Write, bobRow, false},
		{"user cannot read others tracking", alice, policy.Read, bobRow, false},
		{"public cannot read tracking", anon, policy.Read, aliceRow, false},
		{"user owns profile", alice, policy.Write, aliceProfile, true},
		{"user cannot write others profile", alice, policy.Write, bobProfile, false},
		{"unknown collection", admin, policy.Read, policy.Resource{Collection: "audit"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, p.Allow(tt.actor, tt.action, tt.res))
		})
	}
}

func TestPolicyWithoutAdminEmailHasNoAdmin(t *testing.T) {
	p := policy.New("")
	require.False(t, p.IsAdmin(&models.Identity{UID: "x", Email: ""}))
	require.ErrorIs(t, p.Check(&models.Identity{UID: "x"}, policy.Write, policy.Resource{Collection: policy.Sources}), policy.ErrForbidden)
}
