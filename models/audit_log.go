package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AuditAction represents the type of access event being audited
type AuditAction string

const (
	AuditActionLoginRedirect      AuditAction = "login_redirect"
	AuditActionRestrictedRedirect AuditAction = "restricted_redirect"
	AuditActionReadOnlyLockdown   AuditAction = "read_only_lockdown"
	AuditActionActionDenied       AuditAction = "action_denied"
	AuditActionSignOut            AuditAction = "sign_out"
	AuditActionMalformedSession   AuditAction = "malformed_session"
)

// AuditLog represents one access-control event on a page load or capability check
type AuditLog struct {
	ID        uuid.UUID       `json:"id" db:"id"`
	Action    AuditAction     `json:"action" db:"action"`
	Page      string          `json:"page" db:"page"`
	Target    string          `json:"target,omitempty" db:"target"` // redirect target, when any
	UserName  *string         `json:"user_name,omitempty" db:"user_name"`
	Role      *Role           `json:"role,omitempty" db:"role"`
	Details   json.RawMessage `json:"details" db:"details"`
	IPAddress string          `json:"ip_address" db:"ip_address"`
	UserAgent string          `json:"user_agent" db:"user_agent"`
	RequestID string          `json:"request_id" db:"request_id"`
	Timestamp time.Time       `json:"timestamp" db:"timestamp"`
}

// NewAuditLog creates a new AuditLog instance
func NewAuditLog(action AuditAction, page string) *AuditLog {
	return &AuditLog{
		ID:        uuid.New(),
		Action:    action,
		Page:      page,
		Details:   json.RawMessage(`{}`),
		Timestamp: time.Now().UTC(),
	}
}

// WithSession records who triggered the event. A nil session leaves the
// identity columns empty.
func (a *AuditLog) WithSession(s *Session) *AuditLog {
	if s == nil {
		return a
	}
	name := s.Name
	role := s.Role
	a.UserName = &name
	a.Role = &role
	return a
}

// WithTarget sets the redirect target
func (a *AuditLog) WithTarget(target string) *AuditLog {
	a.Target = target
	return a
}

// WithDetails sets the details
func (a *AuditLog) WithDetails(details interface{}) *AuditLog {
	if data, err := json.Marshal(details); err == nil {
		a.Details = data
	}
	return a
}

// WithRequest sets request metadata
func (a *AuditLog) WithRequest(requestID, ipAddress, userAgent string) *AuditLog {
	a.RequestID = requestID
	a.IPAddress = ipAddress
	a.UserAgent = userAgent
	return a
}

// RequestInfo identifies the HTTP request behind an audit event
type RequestInfo struct {
	RequestID string
	IPAddress string
	UserAgent string
}

// WithRequestInfo sets request metadata from info
func (a *AuditLog) WithRequestInfo(info RequestInfo) *AuditLog {
	return a.WithRequest(info.RequestID, info.IPAddress, info.UserAgent)
}
