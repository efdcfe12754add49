package enforcer

import (
	"fmt"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

// CapabilityAttr tags a control as mutating at render time. Tagged controls
// are locked whether or not a catalog selector matches them.
const CapabilityAttr = "data-mutates"

// DefaultSelectors is the catalog of selectors associated with mutating
// controls: action names in click handlers, generic submits and action classes.
var DefaultSelectors = []string{
	`button[onclick*="guardar"]`,
	`button[onclick*="Guardar"]`,
	`button[onclick*="eliminar"]`,
	`button[onclick*="Eliminar"]`,
	`button[onclick*="editar"]`,
	`button[onclick*="Editar"]`,
	`button[onclick*="crear"]`,
	`button[onclick*="Crear"]`,
	`button[onclick*="registrar"]`,
	`button[onclick*="Registrar"]`,
	`button[type="submit"]`,
	`.btn-guardar`,
	`.btn-eliminar`,
	`.btn-editar`,
	`.btn-crear`,
}

// Catalog is a compiled set of selectors for mutating controls
type Catalog struct {
	selectors []string
	group     cascadia.SelectorGroup
}

// NewCatalog compiles the given selectors
func NewCatalog(selectors ...string) (*Catalog, error) {
	c := &Catalog{selectors: append([]string(nil), selectors...)}
	for _, s := range selectors {
		sel, err := cascadia.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("invalid selector %q: %w", s, err)
		}
		c.group = append(c.group, sel)
	}
	return c, nil
}

// DefaultCatalog returns the built-in catalog
func DefaultCatalog() *Catalog {
	c, err := NewCatalog(DefaultSelectors...)
	if err != nil {
		panic(err)
	}
	return c
}

// Selectors returns the source selectors
func (c *Catalog) Selectors() []string {
	return append([]string(nil), c.selectors...)
}

// Match reports whether n is a mutating control, either by selector or by
// capability tag.
func (c *Catalog) Match(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	if hasAttr(n, CapabilityAttr) {
		return true
	}
	return c.group.Match(n)
}

// MatchAll returns every mutating control under root in document order
func (c *Catalog) MatchAll(root *html.Node) []*html.Node {
	var out []*html.Node
	walk(root, func(n *html.Node) bool {
		if c.Match(n) {
			out = append(out, n)
		}
		return true
	})
	return out
}
