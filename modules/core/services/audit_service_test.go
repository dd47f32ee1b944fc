package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/rescueranger/rescueranger/modules/core/domain/entities/audit"
	"github.com/rescueranger/rescueranger/pkg/configuration"
	"github.com/rescueranger/rescueranger/pkg/logging"
)

func newTestAuditService(bufferSize int) *AuditService {
	return NewAuditService(nil, logging.ConsoleLogger(logrus.ErrorLevel), configuration.AuditOptions{
		RecentWindow:     time.Hour,
		RecentBufferSize: bufferSize,
	})
}

func accessEvent(tenantID uuid.UUID, succeeded bool, duration time.Duration) *audit.Event {
	e := audit.New(audit.EventAccess)
	e.TenantID = tenantID
	e.Succeeded = succeeded
	e.Duration = duration
	return e
}

func TestAuditService_RollingMetricsPerTenant(t *testing.T) {
	svc := newTestAuditService(64)
	tenantA := uuid.New()
	tenantB := uuid.New()

	svc.RecordAccess(context.Background(), accessEvent(tenantA, true, 10*time.Millisecond))
	svc.RecordAccess(context.Background(), accessEvent(tenantA, false, 30*time.Millisecond))
	svc.RecordAccess(context.Background(), accessEvent(tenantB, true, 5*time.Millisecond))

	blocked := accessEvent(tenantA, false, 0)
	svc.RecordCrossTenantAttempt(context.Background(), blocked, true)

	m := svc.GetRollingMetrics(context.Background(), tenantA)
	require.Equal(t, int64(3), m.Requests)
	require.Equal(t, int64(2), m.Failures)
	require.Equal(t, int64(1), m.Blocked)
	require.Equal(t, int64(1), m.CrossTenantAttempts)

	other := svc.GetRollingMetrics(context.Background(), tenantB)
	require.Equal(t, int64(1), other.Requests)
	require.Zero(t, other.Failures)
}

func TestAuditService_RollingMetricsExcludeOldEvents(t *testing.T) {
	svc := newTestAuditService(64)
	tenantID := uuid.New()

	stale := accessEvent(tenantID, true, time.Millisecond)
	stale.CreatedAt = time.Now().Add(-2 * time.Hour)
	svc.RecordAccess(context.Background(), stale)
	svc.RecordAccess(context.Background(), accessEvent(tenantID, true, time.Millisecond))

	m := svc.GetRollingMetrics(context.Background(), tenantID)
	require.Equal(t, int64(1), m.Requests)
}

func TestAuditService_BufferIsBounded(t *testing.T) {
	svc := newTestAuditService(4)
	tenantID := uuid.New()

	for i := 0; i < 10; i++ {
		svc.RecordAccess(context.Background(), accessEvent(tenantID, true, 0))
	}

	svc.mu.RLock()
	defer svc.mu.RUnlock()
	require.Len(t, svc.recent, 4)
}

func TestAuditService_CrossTenantAttemptIsMarked(t *testing.T) {
	svc := newTestAuditService(8)
	e := accessEvent(uuid.New(), false, 0)

	svc.RecordCrossTenantAttempt(context.Background(), e, true)

	require.Equal(t, audit.EventCrossTenant, e.Type)
	require.True(t, e.Blocked)
}

// Recording must never surface storage errors: the context here carries no
// database at all.
func TestAuditService_StorageFailureIsSwallowed(t *testing.T) {
	svc := newTestAuditService(8)

	require.NotPanics(t, func() {
		svc.RecordAccess(context.Background(), accessEvent(uuid.New(), true, 0))
		svc.RecordAllTenantsQuery(context.Background(), "horses.report")
	})
}
