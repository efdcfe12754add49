package middleware

import (
	"bytes"
	"net/http"
	"path"
	"strings"

	"github.com/upb/ugc-pageguard/internal/observability"
	"github.com/upb/ugc-pageguard/services/access"
	"github.com/upb/ugc-pageguard/services/enforcer"
	"github.com/upb/ugc-pageguard/services/guard"
	"github.com/upb/ugc-pageguard/services/session"
	"github.com/upb/ugc-pageguard/utils"
	"go.uber.org/zap"
)

// PageGuard runs the access check and UI enforcement on every page request
// it wraps. Non-page requests (scripts, styles, images) pass through.
type PageGuard struct {
	guard  *guard.Guard
	cookie session.CookieOptions
	logger *zap.Logger
}

// NewPageGuard creates a new PageGuard
func NewPageGuard(g *guard.Guard, cookie session.CookieOptions, logger *zap.Logger) *PageGuard {
	return &PageGuard{
		guard:  g,
		cookie: cookie,
		logger: logger,
	}
}

// Handler wraps next, normally a file server for the page directory
func (m *PageGuard) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !isPageRequest(r) {
			next.ServeHTTP(w, r)
			return
		}

		ctx := r.Context()
		reqPath := cleanPath(r.URL.Path)
		page := access.PageFromPath(reqPath, m.guard.Resolver().Pages().Default)
		logger := observability.FromContext(ctx, m.logger).With(zap.String("page", page))

		store := session.NewCookieStore(m.cookie, r, w)
		load := m.guard.NewPageLoad(page, store, RequestInfo(r))

		d, err := load.Check(ctx)
		if err != nil {
			logger.Error("page access check failed", zap.Error(err))
			_ = utils.WriteInternalServerError(w, "Failed to check page access")
			return
		}

		if d.Redirect() {
			target := redirectTarget(reqPath, d.Target)
			logger.Info("redirecting page request",
				zap.String("decision", d.Action.String()),
				zap.String("target", target))
			w.Header().Set("Cache-Control", "no-store")
			http.Redirect(w, r, target, http.StatusFound)
			return
		}

		ctx = WithPage(ctx, page)
		if d.Session == nil {
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}
		ctx = WithSession(ctx, d.Session)

		// decorated output depends on the session, so it is never revalidated
		// against the file on disk
		inner := r.Clone(ctx)
		inner.Header.Del("If-Modified-Since")
		inner.Header.Del("If-None-Match")

		if r.Method == http.MethodHead {
			buf := newBufferedResponse()
			next.ServeHTTP(buf, inner)
			m.writeBuffered(w, buf, nil, logger)
			return
		}

		buf := newBufferedResponse()
		next.ServeHTTP(buf, inner)

		body := buf.body.Bytes()
		if buf.decoratable() {
			decorated, err := m.decorate(load, inner, body)
			if err != nil {
				logger.Warn("serving page undecorated", zap.Error(err))
			} else {
				body = decorated
			}
		}

		m.writeBuffered(w, buf, body, logger)
	})
}

// writeBuffered copies the buffered response to w. Validators and length
// describe the file on disk, not the decorated page, so they are dropped.
func (m *PageGuard) writeBuffered(w http.ResponseWriter, buf *bufferedResponse, body []byte, logger *zap.Logger) {
	header := w.Header()
	for k, v := range buf.header {
		header[k] = v
	}
	header.Del("Content-Length")
	header.Del("Last-Modified")
	header.Del("ETag")
	header.Set("Cache-Control", "no-store")
	w.WriteHeader(buf.status)
	if len(body) == 0 {
		return
	}
	if _, err := w.Write(body); err != nil {
		logger.Debug("failed to write page", zap.Error(err))
	}
}

func (m *PageGuard) decorate(load *guard.PageLoad, r *http.Request, body []byte) ([]byte, error) {
	doc, err := enforcer.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	if err := load.Decorate(r.Context(), doc); err != nil {
		return nil, err
	}
	var out bytes.Buffer
	if err := enforcer.Render(&out, doc); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// isPageRequest reports whether r asks for an HTML page: a GET or HEAD whose
// cleaned last path segment is empty or ends in .html or .htm.
func isPageRequest(r *http.Request) bool {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		return false
	}
	p := cleanPath(r.URL.Path)
	if strings.HasSuffix(p, "/") {
		return true
	}
	switch strings.ToLower(path.Ext(p)) {
	case ".html", ".htm":
		return true
	}
	return false
}

// cleanPath returns the path the file server will actually open, so dot
// segments cannot disguise a page as an asset. A trailing slash is kept
// because it names a directory index.
func cleanPath(p string) string {
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	cleaned := path.Clean(p)
	if strings.HasSuffix(p, "/") && cleaned != "/" {
		cleaned += "/"
	}
	return cleaned
}

// redirectTarget resolves a page name against the directory of the request
// path, so pages keep working when mounted below the root.
func redirectTarget(requestPath, page string) string {
	dir := requestPath[:strings.LastIndex(requestPath, "/")+1]
	if dir == "" {
		dir = "/"
	}
	return dir + page
}

// bufferedResponse holds a page response until it has been decorated
type bufferedResponse struct {
	header      http.Header
	status      int
	wroteHeader bool
	body        bytes.Buffer
}

func newBufferedResponse() *bufferedResponse {
	return &bufferedResponse{header: make(http.Header), status: http.StatusOK}
}

func (b *bufferedResponse) Header() http.Header {
	return b.header
}

func (b *bufferedResponse) WriteHeader(code int) {
	if b.wroteHeader {
		return
	}
	b.wroteHeader = true
	b.status = code
}

func (b *bufferedResponse) Write(p []byte) (int, error) {
	if !b.wroteHeader {
		b.WriteHeader(http.StatusOK)
	}
	return b.body.Write(p)
}

// decoratable reports whether the buffered response is a plain HTML page
func (b *bufferedResponse) decoratable() bool {
	if b.status != http.StatusOK || b.header.Get("Content-Encoding") != "" {
		return false
	}
	ct := b.header.Get("Content-Type")
	if ct == "" {
		ct = http.DetectContentType(b.body.Bytes())
	}
	return strings.HasPrefix(ct, "text/html")
}
