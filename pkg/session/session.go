package session

import (
	"net/http"
	"strings"
	"sync/atomic"
	"time"
)

// DefaultMaxAge is how long a Session is trusted before the client logs in again.
const DefaultMaxAge = 5 * time.Minute

// Session is an immutable snapshot of login state.
type Session struct {
	cookies       []*http.Cookie
	vehicleKeys   map[string]string
	establishedAt time.Time
}

// New builds a Session. The cookies and keys are copied.
func New(cookies []*http.Cookie, vehicleKeys map[string]string, establishedAt time.Time) *Session {
	s := &Session{
		cookies:       make([]*http.Cookie, 0, len(cookies)),
		vehicleKeys:   make(map[string]string, len(vehicleKeys)),
		establishedAt: establishedAt,
	}
	for _, c := range cookies {
		if c == nil {
			continue
		}
		cc := *c
		s.cookies = append(s.cookies, &cc)
	}
	for vin, key := range vehicleKeys {
		s.vehicleKeys[vin] = key
	}
	return s
}

// EstablishedAt returns the time of the login that produced s.
func (s *Session) EstablishedAt() time.Time {
	return s.establishedAt
}

// VehicleKey returns the capability key for vin.
func (s *Session) VehicleKey(vin string) (string, bool) {
	key, ok := s.vehicleKeys[vin]
	return key, ok
}

// VINs returns the vehicles addressable in this session.
func (s *Session) VINs() []string {
	vins := make([]string, 0, len(s.vehicleKeys))
	for vin := range s.vehicleKeys {
		vins = append(vins, vin)
	}
	return vins
}

// CookieHeader returns the value of the Cookie header for requests made in this session.
func (s *Session) CookieHeader() string {
	pairs := make([]string, 0, len(s.cookies))
	for _, c := range s.cookies {
		pairs = append(pairs, c.Name+"="+c.Value)
	}
	return strings.Join(pairs, "; ")
}

// Store holds the current Session. The zero value is not usable; call NewStore.
type Store struct {
	// MaxAge is the staleness window. It must not be changed concurrently with IsFresh.
	MaxAge  time.Duration
	current atomic.Pointer[Session]
}

// NewStore returns an empty Store. A non-positive maxAge selects DefaultMaxAge.
func NewStore(maxAge time.Duration) *Store {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	return &Store{MaxAge: maxAge}
}

// Current returns the current Session, or nil if there is none.
func (st *Store) Current() *Session {
	return st.current.Load()
}

// IsFresh returns true if s was established less than MaxAge before now.
func (st *Store) IsFresh(s *Session, now time.Time) bool {
	if s == nil {
		return false
	}
	return now.Sub(s.establishedAt) < st.MaxAge
}

// Replace makes s the current Session.
func (st *Store) Replace(s *Session) {
	st.current.Store(s)
}

// Invalidate clears the store if s is still the current Session. It returns false if another
// Session has replaced s in the meantime.
func (st *Store) Invalidate(s *Session) bool {
	if s == nil {
		return false
	}
	return st.current.CompareAndSwap(s, nil)
}
