// Package session owns the single client-held session slot: reading it,
// writing it for the login collaborator, and destroying it on sign-out.
//
// The record is unsigned and readable by any page script on the same origin.
// It identifies the user for UI purposes only.
package session

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/upb/ugc-pageguard/models"
	"github.com/upb/ugc-pageguard/services"
	"github.com/upb/ugc-pageguard/utils"
	"go.uber.org/zap"
)

// Provider is the read/destroy view of the session slot handed to the
// access resolver, the UI enforcer and the session gate.
type Provider interface {
	// Read returns the stored session, or nil when the slot is empty.
	// A value that cannot be decoded yields an error matching
	// services.ErrMalformedSession.
	Read(ctx context.Context) (*models.Session, error)
	// Destroy empties the slot. Destroying an empty slot is not an error.
	Destroy(ctx context.Context) error
}

// Store is a Provider that can also create the record
type Store interface {
	Provider
	Save(ctx context.Context, s *models.Session) error
}

// Encode serializes a session into the slot value
func Encode(s *models.Session) (string, error) {
	if s == nil {
		return "", fmt.Errorf("session is nil")
	}
	if err := utils.ValidateStruct(s); err != nil {
		return "", fmt.Errorf("invalid session: %w", err)
	}
	data, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("failed to marshal session: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(data), nil
}

// Decode parses a slot value. Any failure is reported as a malformed session.
func Decode(value string) (*models.Session, error) {
	data, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return nil, services.WrapError(services.ErrorTypeMalformedSession, "session value is not base64url", err)
	}

	var s models.Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, services.WrapError(services.ErrorTypeMalformedSession, "session value is not a JSON record", err)
	}
	if err := utils.ValidateStruct(&s); err != nil {
		return nil, services.WrapError(services.ErrorTypeMalformedSession, "session record failed validation", err)
	}
	return &s, nil
}

// Load reads the provider and applies the malformed-record policy: an
// unreadable record is logged, destroyed and treated as absent, so the
// visitor lands on the login page instead of a broken page. discarded
// reports whether that happened.
func Load(ctx context.Context, p Provider, logger *zap.Logger) (s *models.Session, discarded bool, err error) {
	s, err = p.Read(ctx)
	if err == nil {
		return s, false, nil
	}
	if !errors.Is(err, services.ErrMalformedSession) {
		return nil, false, err
	}

	logger.Warn("discarding malformed session record", zap.Error(err))
	if derr := p.Destroy(ctx); derr != nil {
		return nil, false, fmt.Errorf("failed to destroy malformed session: %w", derr)
	}
	return nil, true, nil
}

// CookieOptions describes the cookie that holds the record
type CookieOptions struct {
	Name   string
	Path   string
	Secure bool
	MaxAge int
}

// CookieStore is a request-scoped Store backed by one cookie. After Save or
// Destroy, later reads in the same request see the new state.
type CookieStore struct {
	opts CookieOptions
	r    *http.Request
	w    http.ResponseWriter

	mu      sync.Mutex
	written bool
	value   string
}

// NewCookieStore binds the slot to one request/response pair
func NewCookieStore(opts CookieOptions, r *http.Request, w http.ResponseWriter) *CookieStore {
	if opts.Path == "" {
		opts.Path = "/"
	}
	return &CookieStore{opts: opts, r: r, w: w}
}

// Read implements Provider
func (c *CookieStore) Read(ctx context.Context) (*models.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	value := c.value
	if !c.written {
		cookie, err := c.r.Cookie(c.opts.Name)
		if errors.Is(err, http.ErrNoCookie) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read session cookie: %w", err)
		}
		value = cookie.Value
	}
	if value == "" {
		return nil, nil
	}
	return Decode(value)
}

// Save implements Store
func (c *CookieStore) Save(ctx context.Context, s *models.Session) error {
	value, err := Encode(s)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	http.SetCookie(c.w, c.cookie(value, c.opts.MaxAge))
	c.written = true
	c.value = value
	return nil
}

// Destroy implements Provider
func (c *CookieStore) Destroy(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.written && c.value == "" {
		return nil
	}
	http.SetCookie(c.w, c.cookie("", -1))
	c.written = true
	c.value = ""
	return nil
}

// The record must stay readable by page scripts, so the cookie is not HttpOnly.
func (c *CookieStore) cookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     c.opts.Name,
		Value:    value,
		Path:     c.opts.Path,
		MaxAge:   maxAge,
		HttpOnly: false,
		Secure:   c.opts.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// MemoryStore keeps the record in process memory
type MemoryStore struct {
	mu    sync.RWMutex
	value string
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// SetRaw stores an undecoded value, bypassing Encode
func (m *MemoryStore) SetRaw(value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.value = value
}

// Read implements Provider
func (m *MemoryStore) Read(ctx context.Context) (*models.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.value == "" {
		return nil, nil
	}
	return Decode(m.value)
}

// Save implements Store
func (m *MemoryStore) Save(ctx context.Context, s *models.Session) error {
	value, err := Encode(s)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.value = value
	return nil
}

// Destroy implements Provider
func (m *MemoryStore) Destroy(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.value = ""
	return nil
}
