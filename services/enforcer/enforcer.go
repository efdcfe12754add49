// Package enforcer decorates an allowed page: it displays the signed-in
// identity and, for read-only sessions, locks the mutating controls and shows
// the read-only banner. Every operation is idempotent on the same document.
package enforcer

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"github.com/andybalholm/cascadia"
	"github.com/upb/ugc-pageguard/models"
	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const (
	// IdentityID is the id of the identity display block
	IdentityID = "pageguard-user"
	// BannerID is the id of the read-only banner
	BannerID = "pageguard-readonly-banner"
	// LockedAttr marks controls the lockdown has disabled
	LockedAttr = "data-pageguard-locked"

	bannerStyleID = "pageguard-banner-style"

	lockedTooltip = "🔒 Action not allowed - read-only user"
	signOutPrompt = "Are you sure you want to sign out?"
)

var (
	headerSel = cascadia.MustCompile("header, .header, .navbar, .top-bar")
	fieldSel  = cascadia.MustCompile(`input:not([type="search"]), textarea, select`)
)

// DefaultSearchFieldMarkers flag fields that stay enabled in read-only mode
// when their id contains one of them.
var DefaultSearchFieldMarkers = []string{"buscar", "filtro", "search", "filter"}

// Options configures an Enforcer
type Options struct {
	// Contact names who to ask for elevated access
	Contact            string
	SearchFieldMarkers []string
	SignOutPath        string
	// Catalog defaults to DefaultCatalog
	Catalog *Catalog
}

// LockdownReport counts the controls disabled by one Lockdown pass
type LockdownReport struct {
	Buttons int
	Fields  int
}

// Enforcer applies the UI policy to parsed documents
type Enforcer struct {
	opts    Options
	catalog *Catalog
	logger  *zap.Logger
}

// New creates an Enforcer
func New(opts Options, logger *zap.Logger) *Enforcer {
	if opts.Catalog == nil {
		opts.Catalog = DefaultCatalog()
	}
	if opts.SearchFieldMarkers == nil {
		opts.SearchFieldMarkers = DefaultSearchFieldMarkers
	}
	if opts.SignOutPath == "" {
		opts.SignOutPath = "/auth/logout"
	}
	return &Enforcer{opts: opts, catalog: opts.Catalog, logger: logger}
}

// Notice returns the permission-denied notice shown by locked controls
func (e *Enforcer) Notice() models.Notice {
	return models.PermissionDeniedNotice(e.opts.Contact)
}

// DecorateIdentity adds the identity block for s. It reports false when the
// block is already present.
func (e *Enforcer) DecorateIdentity(doc *html.Node, s *models.Session) (bool, error) {
	if s == nil {
		return false, fmt.Errorf("session is required to decorate identity")
	}
	if findByID(doc, IdentityID) != nil {
		return false, nil
	}

	parent := cascadia.Query(doc, headerSel)
	tmpl := identityHeaderTmpl
	short := false
	if parent == nil {
		parent = findElement(doc, atom.Body)
		tmpl = identityOverlayTmpl
		short = true
	}
	if parent == nil {
		return false, fmt.Errorf("document has no body")
	}

	var buf bytes.Buffer
	err := tmpl.Execute(&buf, identityView{
		Name:        s.Name,
		RoleLabel:   s.Role.Label(short),
		Admin:       s.IsAdministrator(),
		SignOutPath: e.opts.SignOutPath,
		ConfirmText: signOutPrompt,
	})
	if err != nil {
		return false, fmt.Errorf("failed to render identity block: %w", err)
	}

	nodes, err := fragment(buf.String(), parent)
	if err != nil {
		return false, err
	}
	for _, n := range nodes {
		parent.AppendChild(n)
	}

	e.logger.Debug("identity block added",
		zap.String("placement", placement(short)),
		zap.String("role", string(s.Role)),
	)
	return true, nil
}

func placement(overlay bool) string {
	if overlay {
		return "overlay"
	}
	return "header"
}

// Lockdown disables every mutating control and every non-search field.
// Controls inside the identity block are left alone so sign-out keeps working.
func (e *Enforcer) Lockdown(doc *html.Node) LockdownReport {
	var report LockdownReport
	identity := findByID(doc, IdentityID)
	handler := "event.preventDefault(); event.stopPropagation(); alert('" +
		template.JSEscapeString(e.Notice().Text()) + "'); return false;"

	for _, n := range e.catalog.MatchAll(doc) {
		if isInside(n, identity) || hasAttr(n, LockedAttr) {
			continue
		}
		setAttr(n, "disabled", "")
		setStyle(n, [2]string{"opacity", "0.4"}, [2]string{"cursor", "not-allowed"})
		setAttr(n, "title", lockedTooltip)
		setAttr(n, "onclick", handler)
		setAttr(n, LockedAttr, "")
		report.Buttons++
	}

	for _, n := range cascadia.QueryAll(doc, fieldSel) {
		if isInside(n, identity) || hasAttr(n, LockedAttr) || e.isSearchField(n) {
			continue
		}
		setAttr(n, "disabled", "")
		setStyle(n, [2]string{"cursor", "not-allowed"}, [2]string{"background", "#f3f4f6"})
		setAttr(n, LockedAttr, "")
		report.Fields++
	}

	e.logger.Debug("read-only lockdown applied",
		zap.Int("buttons", report.Buttons),
		zap.Int("fields", report.Fields),
	)
	return report
}

func (e *Enforcer) isSearchField(n *html.Node) bool {
	id, ok := getAttr(n, "id")
	if !ok || id == "" {
		return false
	}
	for _, marker := range e.opts.SearchFieldMarkers {
		if marker != "" && strings.Contains(id, marker) {
			return true
		}
	}
	return false
}

// ShowBanner inserts the read-only banner as the first child of body. It
// reports false when the banner is already present.
func (e *Enforcer) ShowBanner(doc *html.Node) (bool, error) {
	if findByID(doc, BannerID) != nil {
		return false, nil
	}
	body := findElement(doc, atom.Body)
	if body == nil {
		return false, fmt.Errorf("document has no body")
	}

	var buf bytes.Buffer
	if err := bannerTmpl.Execute(&buf, bannerView{Contact: e.opts.Contact}); err != nil {
		return false, fmt.Errorf("failed to render banner: %w", err)
	}
	nodes, err := fragment(buf.String(), body)
	if err != nil {
		return false, err
	}
	first := body.FirstChild
	for _, n := range nodes {
		body.InsertBefore(n, first)
	}

	if head := findElement(doc, atom.Head); head != nil && findByID(doc, bannerStyleID) == nil {
		style := &html.Node{
			Type:     html.ElementNode,
			Data:     "style",
			DataAtom: atom.Style,
			Attr:     []html.Attribute{{Key: "id", Val: bannerStyleID}},
		}
		style.AppendChild(&html.Node{Type: html.TextNode, Data: bannerKeyframes})
		head.AppendChild(style)
	}
	return true, nil
}
