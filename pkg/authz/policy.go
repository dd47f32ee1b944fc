package authz

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/rescueranger/rescueranger/pkg/serrors"
)

// Policy is a named AND-composition of requirements, attached declaratively
// to operations at registration time.
type Policy struct {
	name         string
	requirements []Requirement
}

func NewPolicy(name string, requirements ...Requirement) *Policy {
	return &Policy{name: name, requirements: requirements}
}

func (p *Policy) Name() string {
	return p.name
}

// Recorder receives denial and bypass notifications for the audit trail.
// Recording failures never block authorization.
type Recorder interface {
	RecordPolicyDenied(ctx context.Context, policy string, principal *Principal, cause error)
	RecordAdminBypass(ctx context.Context, policy string, principal *Principal)
}

// Engine evaluates registered policies. Tenant-membership requirements run
// before anything else so a membership denial is reported ahead of
// finer-grained failures.
type Engine struct {
	logger   *logrus.Logger
	recorder Recorder

	mu       sync.RWMutex
	policies map[string]*Policy
}

func NewEngine(logger *logrus.Logger, recorder Recorder) *Engine {
	return &Engine{
		logger:   logger,
		recorder: recorder,
		policies: map[string]*Policy{},
	}
}

func (e *Engine) Register(policies ...*Policy) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, p := range policies {
		e.policies[p.name] = p
	}
}

func (e *Engine) Policy(name string) (*Policy, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	p, ok := e.policies[name]
	return p, ok
}

// Authorize evaluates the named policy for the given principal. Every denial
// and every system-admin bypass is logged with the acting principal.
func (e *Engine) Authorize(ctx context.Context, policyName string, principal *Principal) error {
	p, ok := e.Policy(policyName)
	if !ok {
		return fmt.Errorf("authz: policy %q is not registered", policyName)
	}
	return e.evaluate(ctx, p, principal)
}

func (e *Engine) evaluate(ctx context.Context, p *Policy, principal *Principal) error {
	ordered := make([]Requirement, 0, len(p.requirements))
	for _, req := range p.requirements {
		if _, ok := req.(TenantMembership); ok {
			ordered = append(ordered, req)
		}
	}
	for _, req := range p.requirements {
		if _, ok := req.(TenantMembership); !ok {
			ordered = append(ordered, req)
		}
	}

	for _, req := range ordered {
		bypassed, err := req.Evaluate(ctx, principal)
		if err != nil {
			e.logDenial(ctx, p.name, req.Name(), principal, err)
			return err
		}
		if bypassed {
			e.logBypass(ctx, p.name, req.Name(), principal)
		}
	}
	return nil
}

func (e *Engine) logDenial(ctx context.Context, policy, requirement string, principal *Principal, cause error) {
	e.logger.WithFields(logrus.Fields{
		"policy":      policy,
		"requirement": requirement,
		"principal":   principalField(principal),
	}).WithError(cause).Warn("authorization denied")
	if e.recorder != nil {
		e.recorder.RecordPolicyDenied(ctx, policy, principal, cause)
	}
}

func (e *Engine) logBypass(ctx context.Context, policy, requirement string, principal *Principal) {
	e.logger.WithFields(logrus.Fields{
		"policy":      policy,
		"requirement": requirement,
		"principal":   principalField(principal),
	}).Info("system admin bypass")
	if e.recorder != nil {
		e.recorder.RecordAdminBypass(ctx, policy, principal)
	}
}

func principalField(p *Principal) string {
	if p == nil {
		return "anonymous"
	}
	return p.Email
}

// PermissionDenied builds the standard denial error for ad hoc checks
// outside registered policies.
func PermissionDenied(name string) error {
	return serrors.NewPermissionDeniedError(name)
}
