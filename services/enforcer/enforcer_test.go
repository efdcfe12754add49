package enforcer

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/ugc-pageguard/models"
	"go.uber.org/zap"
	"golang.org/x/net/html"
)

const consultaPage = `<!DOCTYPE html>
<html>
<head><title>Consulta</title></head>
<body>
<header class="top"><h1>UGC</h1></header>
<main>
  <input id="buscarNombre" type="text">
  <input id="filtroFecha" type="date">
  <input type="search" name="q">
  <input id="nombre" type="text">
  <textarea id="observaciones"></textarea>
  <select id="tipo"><option>A</option></select>
  <button onclick="guardarRegistro()">Guardar</button>
  <button onclick="Eliminar(3)">Eliminar</button>
  <form><button type="submit">Enviar</button></form>
  <a class="btn-editar" href="#">Editar</a>
  <button data-mutates onclick="archive()">Archivar</button>
  <button onclick="verDetalle()">Ver</button>
</main>
</body>
</html>`

func parse(t *testing.T, src string) *html.Node {
	t.Helper()
	doc, err := Parse(strings.NewReader(src))
	require.NoError(t, err)
	return doc
}

func render(t *testing.T, doc *html.Node) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, doc))
	return buf.String()
}

func countID(doc *html.Node, id string) int {
	count := 0
	walk(doc, func(n *html.Node) bool {
		if n.Type == html.ElementNode {
			if v, _ := getAttr(n, "id"); v == id {
				count++
			}
		}
		return true
	})
	return count
}

func disabled(t *testing.T, doc *html.Node, id string) bool {
	t.Helper()
	n := findByID(doc, id)
	require.NotNil(t, n, "element #%s", id)
	return hasAttr(n, "disabled")
}

func newEnforcer() *Enforcer {
	return New(Options{Contact: "the Convivencia Management Unit (UGC)"}, zap.NewNop())
}

var (
	ana   = &models.Session{Name: "Ana", Role: models.RoleReadOnly}
	marta = &models.Session{Name: "Marta", Role: models.RoleAdministrator}
)

func TestDecorateIdentity_HeaderPlacement(t *testing.T) {
	e := newEnforcer()
	doc := parse(t, consultaPage)

	added, err := e.DecorateIdentity(doc, marta)
	require.NoError(t, err)
	assert.True(t, added)

	block := findByID(doc, IdentityID)
	require.NotNil(t, block)
	assert.Equal(t, "header", block.Parent.Data)

	out := render(t, doc)
	assert.Contains(t, out, "Marta")
	assert.Contains(t, out, "Administrator")
	assert.Contains(t, out, "👑")
	assert.Contains(t, out, "#fbbf24")
	assert.Contains(t, out, `action="/auth/logout"`)
	assert.Contains(t, out, `name="confirm" value="yes"`)
}

func TestDecorateIdentity_OverlayFallback(t *testing.T) {
	e := newEnforcer()
	doc := parse(t, `<html><body><p>no header here</p></body></html>`)

	added, err := e.DecorateIdentity(doc, marta)
	require.NoError(t, err)
	assert.True(t, added)

	block := findByID(doc, IdentityID)
	require.NotNil(t, block)
	assert.Equal(t, "body", block.Parent.Data)

	style, _ := getAttr(block, "style")
	assert.Contains(t, style, "position: fixed")

	out := render(t, doc)
	assert.Contains(t, out, ">Admin<")
	assert.NotContains(t, out, "Administrator")
}

func TestDecorateIdentity_ReadOnlyMarker(t *testing.T) {
	e := newEnforcer()
	doc := parse(t, consultaPage)

	_, err := e.DecorateIdentity(doc, ana)
	require.NoError(t, err)

	out := render(t, doc)
	assert.Contains(t, out, "👤")
	assert.Contains(t, out, "#60a5fa")
	assert.Contains(t, out, "Read-only")
	assert.NotContains(t, out, "👑")
}

func TestDecorateIdentity_HeaderClassVariants(t *testing.T) {
	for _, class := range []string{"header", "navbar", "top-bar"} {
		t.Run(class, func(t *testing.T) {
			e := newEnforcer()
			doc := parse(t, `<html><body><div class="`+class+`">nav</div></body></html>`)

			_, err := e.DecorateIdentity(doc, ana)
			require.NoError(t, err)

			block := findByID(doc, IdentityID)
			require.NotNil(t, block)
			cls, _ := getAttr(block.Parent, "class")
			assert.Equal(t, class, cls)
		})
	}
}

func TestDecorateIdentity_EscapesName(t *testing.T) {
	e := newEnforcer()
	doc := parse(t, consultaPage)

	_, err := e.DecorateIdentity(doc, &models.Session{Name: `<script>alert(1)</script>`, Role: models.RoleReadOnly})
	require.NoError(t, err)

	out := render(t, doc)
	assert.NotContains(t, out, "<script>alert(1)</script>")
	assert.Contains(t, out, "&lt;script&gt;")
}

func TestDecorateIdentity_Idempotent(t *testing.T) {
	e := newEnforcer()
	doc := parse(t, consultaPage)

	added, err := e.DecorateIdentity(doc, ana)
	require.NoError(t, err)
	assert.True(t, added)

	added, err = e.DecorateIdentity(doc, ana)
	require.NoError(t, err)
	assert.False(t, added)

	assert.Equal(t, 1, countID(doc, IdentityID))
}

func TestDecorateIdentity_RequiresSession(t *testing.T) {
	e := newEnforcer()
	_, err := e.DecorateIdentity(parse(t, consultaPage), nil)
	assert.Error(t, err)
}

func TestLockdown(t *testing.T) {
	e := newEnforcer()
	doc := parse(t, consultaPage)

	report := e.Lockdown(doc)
	assert.Equal(t, 5, report.Buttons)
	assert.Equal(t, 3, report.Fields)

	assert.True(t, disabled(t, doc, "nombre"))
	assert.True(t, disabled(t, doc, "observaciones"))
	assert.True(t, disabled(t, doc, "tipo"))
	assert.False(t, disabled(t, doc, "buscarNombre"))
	assert.False(t, disabled(t, doc, "filtroFecha"))

	for _, n := range e.catalog.MatchAll(doc) {
		assert.True(t, hasAttr(n, "disabled"))
		assert.True(t, hasAttr(n, LockedAttr))

		style, _ := getAttr(n, "style")
		assert.Contains(t, style, "opacity: 0.4")
		assert.Contains(t, style, "cursor: not-allowed")

		title, _ := getAttr(n, "title")
		assert.Equal(t, lockedTooltip, title)

		onclick, _ := getAttr(n, "onclick")
		assert.Contains(t, onclick, "preventDefault")
		assert.Contains(t, onclick, "alert(")
		assert.Contains(t, onclick, "Convivencia Management Unit")
	}

	field := findByID(doc, "nombre")
	style, _ := getAttr(field, "style")
	assert.Equal(t, "cursor: not-allowed; background: #f3f4f6", style)

	out := render(t, doc)
	assert.Contains(t, out, `<button onclick="verDetalle()">Ver</button>`)
	assert.Contains(t, out, `<input type="search" name="q"/>`)
}

func TestLockdown_Idempotent(t *testing.T) {
	e := newEnforcer()
	doc := parse(t, consultaPage)

	first := e.Lockdown(doc)
	before := render(t, doc)

	second := e.Lockdown(doc)
	assert.NotZero(t, first.Buttons)
	assert.Equal(t, LockdownReport{}, second)
	assert.Equal(t, before, render(t, doc))
}

func TestLockdown_SkipsIdentityBlock(t *testing.T) {
	e := newEnforcer()
	doc := parse(t, consultaPage)

	_, err := e.DecorateIdentity(doc, ana)
	require.NoError(t, err)
	e.Lockdown(doc)

	block := findByID(doc, IdentityID)
	require.NotNil(t, block)
	walk(block, func(n *html.Node) bool {
		if n.Type == html.ElementNode {
			assert.False(t, hasAttr(n, "disabled"), "<%s> inside identity block", n.Data)
		}
		return true
	})
}

func TestLockdown_MergesExistingStyle(t *testing.T) {
	e := newEnforcer()
	doc := parse(t, `<html><body><button class="btn-guardar" style="color: red; opacity: 1">Guardar</button></body></html>`)

	e.Lockdown(doc)

	btn := e.catalog.MatchAll(doc)[0]
	style, _ := getAttr(btn, "style")
	assert.Equal(t, "color: red; opacity: 0.4; cursor: not-allowed", style)
}

func TestLockdown_CustomMarkers(t *testing.T) {
	e := New(Options{SearchFieldMarkers: []string{"lookup"}}, zap.NewNop())
	doc := parse(t, `<html><body><input id="lookupCode"><input id="buscarNombre"></body></html>`)

	report := e.Lockdown(doc)
	assert.Equal(t, 1, report.Fields)
	assert.False(t, disabled(t, doc, "lookupCode"))
	assert.True(t, disabled(t, doc, "buscarNombre"))
}

func TestShowBanner(t *testing.T) {
	e := newEnforcer()
	doc := parse(t, consultaPage)

	added, err := e.ShowBanner(doc)
	require.NoError(t, err)
	assert.True(t, added)

	added, err = e.ShowBanner(doc)
	require.NoError(t, err)
	assert.False(t, added)

	assert.Equal(t, 1, countID(doc, BannerID))
	assert.Equal(t, 1, countID(doc, bannerStyleID))

	body := findByID(doc, BannerID).Parent
	assert.Equal(t, "body", body.Data)
	assert.Equal(t, BannerID, func() string {
		v, _ := getAttr(firstElement(body), "id")
		return v
	}())

	out := render(t, doc)
	assert.Contains(t, out, "READ-ONLY MODE")
	assert.Contains(t, out, "contact the Convivencia Management Unit (UGC)")
	assert.Contains(t, out, "@keyframes pageguardSlideDown")
}

func firstElement(n *html.Node) *html.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			return c
		}
	}
	return nil
}

// Read-only user on the restricted page: every catalog button disabled,
// exactly one banner, search field still enabled.
func TestReadOnlyScenario(t *testing.T) {
	e := newEnforcer()
	doc := parse(t, consultaPage)

	for i := 0; i < 2; i++ {
		_, err := e.DecorateIdentity(doc, ana)
		require.NoError(t, err)
		e.Lockdown(doc)
		_, err = e.ShowBanner(doc)
		require.NoError(t, err)
	}

	assert.Equal(t, 1, countID(doc, IdentityID))
	assert.Equal(t, 1, countID(doc, BannerID))
	assert.False(t, disabled(t, doc, "buscarNombre"))

	for _, n := range e.catalog.MatchAll(doc) {
		if isInside(n, findByID(doc, IdentityID)) {
			continue
		}
		assert.True(t, hasAttr(n, "disabled"))
	}
}

func TestCatalog(t *testing.T) {
	c := DefaultCatalog()
	assert.Len(t, c.Selectors(), 15)

	_, err := NewCatalog("button[")
	assert.Error(t, err)

	custom, err := NewCatalog(".danger")
	require.NoError(t, err)
	doc := parse(t, `<html><body><button class="danger">x</button><button class="btn-guardar">y</button><span data-mutates>z</span></body></html>`)
	assert.Len(t, custom.MatchAll(doc), 2)
}

func TestNotice(t *testing.T) {
	n := newEnforcer().Notice()
	assert.Contains(t, n.Text(), "READ-ONLY")
	assert.Contains(t, n.Contact, "Convivencia Management Unit")
}
