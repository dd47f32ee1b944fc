package serrors

import "fmt"

// BaseError is a coded error carried across service boundaries. The code is
// stable and safe to expose to API clients; Message is operator-facing.
type BaseError struct {
	Code         string
	Message      string
	TemplateData map[string]string
}

func NewError(code, message string) *BaseError {
	return &BaseError{
		Code:    code,
		Message: message,
	}
}

func (e *BaseError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *BaseError) WithTemplateData(data map[string]string) *BaseError {
	e.TemplateData = data
	return e
}

// Error codes for the tenant resolution and isolation taxonomy. Each maps to
// exactly one HTTP status in httpapi.
const (
	CodeMalformedTenant     = "TENANT_MALFORMED"
	CodeTenantNotFound      = "TENANT_NOT_FOUND"
	CodeTenantAccessDenied  = "TENANT_ACCESS_DENIED"
	CodeCrossTenantBlocked  = "CROSS_TENANT_BLOCKED"
	CodePermissionDenied    = "AUTHZ_FORBIDDEN"
	CodeSubdomainConflict   = "TENANT_SUBDOMAIN_CONFLICT"
	CodeTenantLimitExceeded = "TENANT_LIMIT_EXCEEDED"
	CodeInternal            = "INTERNAL"
)

func NewMalformedSubdomainError(candidate string) *BaseError {
	return NewError(CodeMalformedTenant, "malformed tenant subdomain").WithTemplateData(map[string]string{
		"subdomain": candidate,
	})
}

func NewTenantNotFoundError(candidate string) *BaseError {
	return NewError(CodeTenantNotFound, "tenant not found").WithTemplateData(map[string]string{
		"candidate": candidate,
	})
}

func NewTenantAccessDeniedError(subdomain, status string) *BaseError {
	return NewError(CodeTenantAccessDenied, "tenant is not accessible").WithTemplateData(map[string]string{
		"subdomain": subdomain,
		"status":    status,
	})
}

func NewCrossTenantViolationError(operation string) *BaseError {
	return NewError(CodeCrossTenantBlocked, "cross-tenant operation blocked").WithTemplateData(map[string]string{
		"operation": operation,
	})
}

func NewPermissionDeniedError(policy string) *BaseError {
	return NewError(CodePermissionDenied, "permission denied").WithTemplateData(map[string]string{
		"policy": policy,
	})
}

func NewSubdomainConflictError(subdomain string) *BaseError {
	return NewError(CodeSubdomainConflict, "subdomain is already taken").WithTemplateData(map[string]string{
		"subdomain": subdomain,
	})
}

func NewTenantLimitExceededError(limit string) *BaseError {
	return NewError(CodeTenantLimitExceeded, "tenant limit exceeded").WithTemplateData(map[string]string{
		"limit": limit,
	})
}

func NewInternalError() *BaseError {
	return NewError(CodeInternal, "internal error")
}
