package tenant

// Status is the lifecycle state of a tenant. Tenants are soft-deleted, never
// hard-deleted while owned data still references them.
type Status string

const (
	StatusProvisioning    Status = "provisioning"
	StatusActive          Status = "active"
	StatusSuspended       Status = "suspended"
	StatusInactive        Status = "inactive"
	StatusPendingDeletion Status = "pending_deletion"
)

var transitions = map[Status][]Status{
	StatusProvisioning: {StatusActive, StatusPendingDeletion},
	StatusActive:       {StatusSuspended, StatusInactive, StatusPendingDeletion},
	StatusSuspended:    {StatusActive, StatusPendingDeletion},
	StatusInactive:     {StatusActive, StatusPendingDeletion},
}

func (s Status) IsValid() bool {
	switch s {
	case StatusProvisioning, StatusActive, StatusSuspended, StatusInactive, StatusPendingDeletion:
		return true
	}
	return false
}

// CanTransitionTo reports whether the lifecycle allows moving to the target
// status. PendingDeletion is terminal.
func (s Status) CanTransitionTo(target Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// CanAccess reports whether requests may be served for a tenant in this
// status. Provisioning tenants are accessible so onboarding flows can finish
// setup before activation.
func (s Status) CanAccess() bool {
	return s == StatusActive || s == StatusProvisioning
}

func (s Status) String() string {
	return string(s)
}
