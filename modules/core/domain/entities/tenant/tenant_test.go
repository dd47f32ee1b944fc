package tenant_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rescueranger/rescueranger/modules/core/domain/entities/tenant"
)

func TestNew_DefaultsToProvisioning(t *testing.T) {
	tn := tenant.New("Acme Rescue", "ACME")
	assert.Equal(t, tenant.StatusProvisioning, tn.Status())
	assert.Equal(t, "acme", tn.Subdomain(), "subdomain should be normalized")
	assert.True(t, tn.CanAccess())
	assert.Equal(t, 25, tn.Config().MaxUsers)
}

func TestTransitionTo(t *testing.T) {
	t.Run("Provisioning_To_Active", func(t *testing.T) {
		tn := tenant.New("Acme Rescue", "acme")
		require.NoError(t, tn.TransitionTo(tenant.StatusActive, ""))
		assert.Equal(t, tenant.StatusActive, tn.Status())
		assert.NotNil(t, tn.ActivatedAt())
	})

	t.Run("Active_To_Suspended_Records_Reason", func(t *testing.T) {
		tn := tenant.New("Acme Rescue", "acme", tenant.WithStatus(tenant.StatusActive))
		require.NoError(t, tn.TransitionTo(tenant.StatusSuspended, "nonpayment"))
		assert.Equal(t, "nonpayment", tn.StatusReason())
		assert.NotNil(t, tn.SuspendedAt())
		assert.False(t, tn.CanAccess())
	})

	t.Run("Suspended_Back_To_Active_Clears_Reason", func(t *testing.T) {
		tn := tenant.New("Acme Rescue", "acme", tenant.WithStatus(tenant.StatusSuspended), tenant.WithStatusReason("nonpayment"))
		require.NoError(t, tn.TransitionTo(tenant.StatusActive, ""))
		assert.Empty(t, tn.StatusReason())
		assert.Nil(t, tn.SuspendedAt())
	})

	t.Run("PendingDeletion_Is_Terminal", func(t *testing.T) {
		tn := tenant.New("Acme Rescue", "acme", tenant.WithStatus(tenant.StatusPendingDeletion))
		assert.Error(t, tn.TransitionTo(tenant.StatusActive, ""))
	})

	t.Run("Provisioning_Cannot_Suspend", func(t *testing.T) {
		tn := tenant.New("Acme Rescue", "acme")
		assert.Error(t, tn.TransitionTo(tenant.StatusSuspended, "x"))
	})

	t.Run("Unknown_Status_Rejected", func(t *testing.T) {
		tn := tenant.New("Acme Rescue", "acme")
		assert.Error(t, tn.TransitionTo(tenant.Status("bogus"), ""))
	})
}

func TestStatus_CanAccess(t *testing.T) {
	cases := []struct {
		status tenant.Status
		want   bool
	}{
		{tenant.StatusActive, true},
		{tenant.StatusProvisioning, true},
		{tenant.StatusSuspended, false},
		{tenant.StatusInactive, false},
		{tenant.StatusPendingDeletion, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, tc.status.CanAccess(), "status %s", tc.status)
	}
}

func TestValidateSubdomain(t *testing.T) {
	valid := []string{"acme", "acme-rescue", "a1", "1a", "x"}
	for _, s := range valid {
		assert.NoError(t, tenant.ValidateSubdomain(s), "subdomain %q", s)
	}

	invalid := []string{"", "-acme", "acme-", "Ac me", "acme_rescue", "acme.rescue",
		"aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"}
	for _, s := range invalid {
		assert.Error(t, tenant.ValidateSubdomain(s), "subdomain %q", s)
	}

	// Uppercase input is normalized before matching.
	assert.NoError(t, tenant.ValidateSubdomain("ACME"))
}
