package gate

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/upb/ugc-pageguard/internal/observability"
	"github.com/upb/ugc-pageguard/models"
	"github.com/upb/ugc-pageguard/services/session"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// MockMetrics is a mock implementation of Metrics
type MockMetrics struct {
	mock.Mock
}

func (m *MockMetrics) RecordAuthorization(outcome string) { m.Called(outcome) }
func (m *MockMetrics) RecordSignOut(confirmed bool)        { m.Called(confirmed) }

// MockNavigator is a mock implementation of Navigator
type MockNavigator struct {
	mock.Mock
}

func (m *MockNavigator) Navigate(ctx context.Context, target string) error {
	return m.Called(ctx, target).Error(0)
}

type captureAuditor struct {
	logs []*models.AuditLog
}

func (c *captureAuditor) Record(log *models.AuditLog) { c.logs = append(c.logs, log) }

var (
	ana   = &models.Session{Name: "Ana", Role: models.RoleReadOnly}
	marta = &models.Session{Name: "Marta", Role: models.RoleAdministrator}
)

func newGate(t *testing.T, s *models.Session, confirm bool) (*Gate, *session.MemoryStore, *Effects) {
	t.Helper()
	store := session.NewMemoryStore()
	if s != nil {
		require.NoError(t, store.Save(context.Background(), s))
	}
	effects := &Effects{}
	g := New(store, effects, effects, Answer(confirm), Options{
		LoginPage: "login.html",
		Contact:   "the UGC",
		Page:      "consulta.html",
	}, zap.NewNop())
	return g, store, effects
}

func TestSignOut_Declined(t *testing.T) {
	g, store, effects := newGate(t, ana, false)

	signedOut, err := g.SignOut(context.Background())
	require.NoError(t, err)
	assert.False(t, signedOut)

	s, err := store.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ana, s)
	assert.Empty(t, effects.Target())
}

func TestSignOut_Confirmed(t *testing.T) {
	g, store, effects := newGate(t, ana, true)

	signedOut, err := g.SignOut(context.Background())
	require.NoError(t, err)
	assert.True(t, signedOut)

	s, err := store.Read(context.Background())
	require.NoError(t, err)
	assert.Nil(t, s)
	assert.Equal(t, "login.html", effects.Target())
}

func TestSignOut_AskedWithPrompt(t *testing.T) {
	store := session.NewMemoryStore()
	var asked string
	confirmer := ConfirmFunc(func(_ context.Context, prompt string) bool {
		asked = prompt
		return false
	})
	g := New(store, &Effects{}, &Effects{}, confirmer, Options{LoginPage: "login.html"}, zap.NewNop())

	_, err := g.SignOut(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SignOutPrompt, asked)
}

func TestSignOut_WithoutSessionIsIdempotent(t *testing.T) {
	g, _, effects := newGate(t, nil, true)

	signedOut, err := g.SignOut(context.Background())
	require.NoError(t, err)
	assert.True(t, signedOut)
	assert.Equal(t, "login.html", effects.Target())
}

func TestSignOut_NavigationFailure(t *testing.T) {
	nav := new(MockNavigator)
	nav.On("Navigate", mock.Anything, "login.html").Return(errors.New("closed"))

	g := New(session.NewMemoryStore(), nav, &Effects{}, Answer(true), Options{LoginPage: "login.html"}, zap.NewNop())

	signedOut, err := g.SignOut(context.Background())
	assert.True(t, signedOut)
	assert.Error(t, err)
	nav.AssertExpectations(t)
}

// unreadableStore fails every read with a storage error
type unreadableStore struct{}

func (unreadableStore) Read(context.Context) (*models.Session, error) {
	return nil, errors.New("storage unavailable")
}

func (unreadableStore) Destroy(context.Context) error { return nil }

func TestSignOut_UnreadableSessionIsLogged(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	effects := &Effects{}
	g := New(unreadableStore{}, effects, effects, Answer(true), Options{LoginPage: "login.html"}, zap.New(core))

	signedOut, err := g.SignOut(context.Background())
	require.NoError(t, err)
	assert.True(t, signedOut)
	assert.Equal(t, "login.html", effects.Target())

	entries := logs.FilterMessage("session unreadable before sign-out").All()
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].ContextMap()["error"], "storage unavailable")
}

func TestSignOut_MetricsAndAudit(t *testing.T) {
	metrics := new(MockMetrics)
	metrics.On("RecordSignOut", true).Once()
	auditor := &captureAuditor{}

	store := session.NewMemoryStore()
	require.NoError(t, store.Save(context.Background(), marta))
	g := New(store, &Effects{}, &Effects{}, Answer(true), Options{
		LoginPage: "login.html",
		Page:      "index.html",
		Request:   models.RequestInfo{RequestID: "req-7"},
		Metrics:   metrics,
		Auditor:   auditor,
	}, zap.NewNop())

	_, err := g.SignOut(context.Background())
	require.NoError(t, err)

	metrics.AssertExpectations(t)
	require.Len(t, auditor.logs, 1)
	assert.Equal(t, models.AuditActionSignOut, auditor.logs[0].Action)
	assert.Equal(t, "Marta", *auditor.logs[0].UserName)
	assert.Equal(t, "req-7", auditor.logs[0].RequestID)
}

func TestCurrentUserAndIsAdministrator(t *testing.T) {
	tests := []struct {
		name      string
		session   *models.Session
		wantAdmin bool
	}{
		{"anonymous", nil, false},
		{"read-only", ana, false},
		{"administrator", marta, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, _, _ := newGate(t, tt.session, false)

			s, err := g.CurrentUser(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.session, s)
			assert.Equal(t, tt.wantAdmin, g.IsAdministrator(context.Background()))
		})
	}
}

func TestCurrentUser_MalformedReadsAsAbsent(t *testing.T) {
	store := session.NewMemoryStore()
	store.SetRaw("???")
	g := New(store, &Effects{}, &Effects{}, Answer(false), Options{LoginPage: "login.html"}, zap.NewNop())

	s, err := g.CurrentUser(context.Background())
	require.NoError(t, err)
	assert.Nil(t, s)
	assert.False(t, g.IsAdministrator(context.Background()))
}

func TestAuthorizeAction(t *testing.T) {
	t.Run("no session notifies and navigates to login", func(t *testing.T) {
		g, _, effects := newGate(t, nil, false)

		assert.False(t, g.AuthorizeAction(context.Background(), "delete"))
		assert.Equal(t, "login.html", effects.Target())
		require.Len(t, effects.Notices(), 1)
		assert.Equal(t, models.LoginRequiredNotice(), effects.Notices()[0])
	})

	t.Run("read-only is denied with the contact", func(t *testing.T) {
		g, store, effects := newGate(t, ana, false)

		assert.False(t, g.AuthorizeAction(context.Background(), "delete"))
		assert.Empty(t, effects.Target())
		require.Len(t, effects.Notices(), 1)
		assert.Contains(t, effects.Notices()[0].Contact, "the UGC")

		// the session is untouched
		s, err := store.Read(context.Background())
		require.NoError(t, err)
		assert.Equal(t, ana, s)
	})

	t.Run("administrator is allowed silently", func(t *testing.T) {
		g, _, effects := newGate(t, marta, false)

		assert.True(t, g.AuthorizeAction(context.Background(), "delete"))
		assert.Empty(t, effects.Target())
		assert.Empty(t, effects.Notices())
	})
}

func TestAuthorizeAction_Metrics(t *testing.T) {
	for _, tt := range []struct {
		session *models.Session
		outcome string
	}{
		{nil, observability.OutcomeLoginRequired},
		{ana, observability.OutcomeDenied},
		{marta, observability.OutcomeAllowed},
	} {
		metrics := new(MockMetrics)
		metrics.On("RecordAuthorization", tt.outcome).Once()

		store := session.NewMemoryStore()
		if tt.session != nil {
			require.NoError(t, store.Save(context.Background(), tt.session))
		}
		g := New(store, &Effects{}, &Effects{}, Answer(false), Options{LoginPage: "login.html", Metrics: metrics}, zap.NewNop())

		g.AuthorizeAction(context.Background(), "save")
		metrics.AssertExpectations(t)
	}
}

func TestBuilder(t *testing.T) {
	auditor := &captureAuditor{}
	b := NewBuilder(Options{
		LoginPage: "login.html",
		Page:      "ignored.html",
		Auditor:   auditor,
	}, zap.NewNop())
	assert.Equal(t, "login.html", b.LoginPage())

	effects := &Effects{}
	g := b.Build(session.NewMemoryStore(), effects, Answer(false), "consulta.html", models.RequestInfo{RequestID: "req-9"})

	assert.False(t, g.AuthorizeAction(context.Background(), "delete"))
	assert.Equal(t, "login.html", effects.Target())
	require.Len(t, auditor.logs, 1)
	assert.Equal(t, "consulta.html", auditor.logs[0].Page)
	assert.Equal(t, "req-9", auditor.logs[0].RequestID)
}
