package models

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRole(t *testing.T) {
	assert.True(t, RoleAdministrator.IsValid())
	assert.True(t, RoleReadOnly.IsValid())
	assert.False(t, Role("administrador").IsValid())
	assert.False(t, Role("").IsValid())

	assert.Equal(t, "Administrator", RoleAdministrator.Label(false))
	assert.Equal(t, "Admin", RoleAdministrator.Label(true))
	assert.Equal(t, "Read-only", RoleReadOnly.Label(false))
	assert.Equal(t, "Read-only", RoleReadOnly.Label(true))
}

func TestSession_RoleChecks(t *testing.T) {
	admin := &Session{Name: "Marta", Role: RoleAdministrator}
	reader := &Session{Name: "Ana", Role: RoleReadOnly}
	var absent *Session

	assert.True(t, admin.IsAdministrator())
	assert.False(t, admin.IsReadOnly())
	assert.True(t, reader.IsReadOnly())
	assert.False(t, reader.IsAdministrator())
	assert.False(t, absent.IsAdministrator())
	assert.False(t, absent.IsReadOnly())
}

func TestSession_JSONShape(t *testing.T) {
	data, err := json.Marshal(Session{Name: "Ana", Role: RoleReadOnly})
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"Ana","role":"read-only"}`, string(data))
}

func TestNewAuditLog(t *testing.T) {
	log := NewAuditLog(AuditActionLoginRedirect, "consulta.html")

	assert.NotEqual(t, uuid.Nil, log.ID)
	assert.Equal(t, AuditActionLoginRedirect, log.Action)
	assert.Equal(t, "consulta.html", log.Page)
	assert.False(t, log.Timestamp.IsZero())
	assert.JSONEq(t, `{}`, string(log.Details))
	assert.Nil(t, log.UserName)
	assert.Nil(t, log.Role)
}

func TestAuditLog_Builders(t *testing.T) {
	log := NewAuditLog(AuditActionRestrictedRedirect, "index.html").
		WithSession(&Session{Name: "Ana", Role: RoleReadOnly}).
		WithTarget("consulta.html").
		WithDetails(map[string]string{"reason": "role"}).
		WithRequest("req-1", "10.0.0.1", "curl/8")

	require.NotNil(t, log.UserName)
	require.NotNil(t, log.Role)
	assert.Equal(t, "Ana", *log.UserName)
	assert.Equal(t, RoleReadOnly, *log.Role)
	assert.Equal(t, "consulta.html", log.Target)
	assert.JSONEq(t, `{"reason":"role"}`, string(log.Details))
	assert.Equal(t, "req-1", log.RequestID)
	assert.Equal(t, "10.0.0.1", log.IPAddress)
	assert.Equal(t, "curl/8", log.UserAgent)
}

func TestAuditLog_WithNilSession(t *testing.T) {
	log := NewAuditLog(AuditActionLoginRedirect, "index.html").WithSession(nil)
	assert.Nil(t, log.UserName)
	assert.Nil(t, log.Role)
}
