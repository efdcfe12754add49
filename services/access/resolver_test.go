package access

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/ugc-pageguard/models"
	"github.com/upb/ugc-pageguard/services/session"
	"go.uber.org/zap"
)

var testPages = Pages{
	Login:      "login.html",
	Admin:      "index.html",
	Restricted: "consulta.html",
	Default:    "index.html",
}

var (
	admin  = &models.Session{Name: "Marta", Role: models.RoleAdministrator}
	reader = &models.Session{Name: "Ana", Role: models.RoleReadOnly}
)

func newResolver() *Resolver {
	return NewResolver(testPages, zap.NewNop())
}

func TestPageFromPath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/consulta.html", "consulta.html"},
		{"/ugc/app/index.html", "index.html"},
		{"/", "index.html"},
		{"/ugc/", "index.html"},
		{"", "index.html"},
		{"/Consulta.html", "Consulta.html"},
		{"login.html", "login.html"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, PageFromPath(tt.path, "index.html"))
		})
	}
}

func TestDecide_DecisionTable(t *testing.T) {
	r := newResolver()

	tests := []struct {
		name        string
		page        string
		session     *models.Session
		wantAction  Action
		wantTarget  string
		wantSession *models.Session
	}{
		{"login page anonymous", "login.html", nil, Allow, "", nil},
		{"login page administrator", "login.html", admin, Allow, "", nil},
		{"login page read-only", "login.html", reader, Allow, "", nil},
		{"admin page anonymous", "index.html", nil, RedirectLogin, "login.html", nil},
		{"restricted page anonymous", "consulta.html", nil, RedirectLogin, "login.html", nil},
		{"other page anonymous", "reportes.html", nil, RedirectLogin, "login.html", nil},
		{"admin page read-only", "index.html", reader, RedirectRestricted, "consulta.html", reader},
		{"admin page administrator", "index.html", admin, Allow, "", admin},
		{"restricted page administrator", "consulta.html", admin, Allow, "", admin},
		{"restricted page read-only", "consulta.html", reader, Allow, "", reader},
		{"other page read-only", "reportes.html", reader, Allow, "", reader},
		{"case mismatch is a different page", "Index.html", reader, Allow, "", reader},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := r.Decide(tt.page, tt.session)
			assert.Equal(t, tt.wantAction, d.Action)
			assert.Equal(t, tt.wantTarget, d.Target)
			assert.Equal(t, tt.wantSession, d.Session)
			assert.Equal(t, tt.page, d.Page)
			assert.Equal(t, tt.wantAction != Allow, d.Redirect())
		})
	}
}

func TestDecide_Properties(t *testing.T) {
	r := newResolver()
	pages := []string{"login.html", "index.html", "consulta.html", "reportes.html", "x"}
	sessions := []*models.Session{nil, admin, reader}

	for _, page := range pages {
		for _, s := range sessions {
			d := r.Decide(page, s)

			if page == testPages.Login {
				assert.Equal(t, Allow, d.Action, "login page always allowed")
				continue
			}
			if s == nil {
				assert.Equal(t, RedirectLogin, d.Action, "anonymous visitors go to login")
				continue
			}
			if s.IsAdministrator() {
				assert.Equal(t, Allow, d.Action, "administrators are never redirected")
			}
			if page == testPages.Admin && s.IsReadOnly() {
				assert.Equal(t, RedirectRestricted, d.Action)
			}
		}
	}
}

func TestResolve(t *testing.T) {
	ctx := context.Background()
	r := newResolver()

	t.Run("stored read-only session on admin page redirects", func(t *testing.T) {
		store := session.NewMemoryStore()
		require.NoError(t, store.Save(ctx, reader))

		d, err := r.Resolve(ctx, "index.html", store)
		require.NoError(t, err)
		assert.Equal(t, RedirectRestricted, d.Action)
		assert.Equal(t, "consulta.html", d.Target)
	})

	t.Run("login page never reads the slot", func(t *testing.T) {
		store := session.NewMemoryStore()
		store.SetRaw("corrupt")

		d, err := r.Resolve(ctx, "login.html", store)
		require.NoError(t, err)
		assert.Equal(t, Allow, d.Action)

		// the corrupt value is still there: nothing touched it
		_, readErr := store.Read(ctx)
		assert.Error(t, readErr)
	})

	t.Run("malformed record fails open to login", func(t *testing.T) {
		store := session.NewMemoryStore()
		store.SetRaw("corrupt")

		d, err := r.Resolve(ctx, "consulta.html", store)
		require.NoError(t, err)
		assert.Equal(t, RedirectLogin, d.Action)
		assert.Equal(t, "login.html", d.Target)
		assert.True(t, d.Discarded)

		s, readErr := store.Read(ctx)
		assert.NoError(t, readErr)
		assert.Nil(t, s)
	})
}

func TestAction_String(t *testing.T) {
	assert.Equal(t, "allow", Allow.String())
	assert.Equal(t, "redirect_login", RedirectLogin.String())
	assert.Equal(t, "redirect_restricted", RedirectRestricted.String())
	assert.Equal(t, "action(9)", Action(9).String())
}
