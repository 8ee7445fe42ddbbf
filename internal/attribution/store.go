package attribution

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/securecookie"

	"gitlab.com/timkado/api/affiliate-lead-service/internal/config"
	"gitlab.com/timkado/api/affiliate-lead-service/pkg/utils"
)

const (
	DefaultCookieName = "affiliate_id"
	DefaultTTL        = 30 * 24 * time.Hour
)

// cookiePayload is what gets signed into the attribution cookie.
type cookiePayload struct {
	AffiliateID string `json:"aid"`
	IssuedAt    int64  `json:"iat"`
}

// CookieStore keeps the attributed affiliate id in a signed client-side cookie.
type CookieStore struct {
	codec  *securecookie.SecureCookie
	name   string
	ttl    time.Duration
	secure bool
	now    func() time.Time
}

// NewCookieStore builds a store from the attribution config. A block key
// enables encryption on top of signing and must be 16, 24 or 32 bytes.
func NewCookieStore(cfg config.AttributionConfig) (*CookieStore, error) {
	if len(cfg.HashKey) < 32 {
		return nil, errors.New("attribution hash key must be at least 32 bytes")
	}
	var blockKey []byte
	if cfg.BlockKey != "" {
		switch len(cfg.BlockKey) {
		case 16, 24, 32:
			blockKey = []byte(cfg.BlockKey)
		default:
			return nil, errors.New("attribution block key must be 16, 24 or 32 bytes")
		}
	}

	name := cfg.CookieName
	if name == "" {
		name = DefaultCookieName
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	codec := securecookie.New([]byte(cfg.HashKey), blockKey)
	codec.MaxAge(int(ttl.Seconds()))
	codec.SetSerializer(securecookie.JSONEncoder{})

	return &CookieStore{
		codec:  codec,
		name:   name,
		ttl:    ttl,
		secure: cfg.Secure,
		now:    utils.Now,
	}, nil
}

// Name returns the cookie name.
func (s *CookieStore) Name() string {
	return s.name
}

// Attach writes the attribution cookie, replacing any existing one.
func (s *CookieStore) Attach(w http.ResponseWriter, affiliateID string) error {
	encoded, err := s.codec.Encode(s.name, cookiePayload{
		AffiliateID: affiliateID,
		IssuedAt:    s.now().Unix(),
	})
	if err != nil {
		return err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     s.name,
		Value:    encoded,
		Path:     "/",
		MaxAge:   int(s.ttl.Seconds()),
		Expires:  s.now().Add(s.ttl),
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Read returns the attributed affiliate id. Missing, tampered and expired
// cookies all report ok=false.
func (s *CookieStore) Read(r *http.Request) (string, bool) {
	cookie, err := r.Cookie(s.name)
	if err != nil || cookie.Value == "" {
		return "", false
	}

	var payload cookiePayload
	if err := s.codec.Decode(s.name, cookie.Value, &payload); err != nil {
		return "", false
	}
	if payload.AffiliateID == "" {
		return "", false
	}
	issued := time.Unix(payload.IssuedAt, 0)
	if s.now().Sub(issued) > s.ttl {
		return "", false
	}
	return payload.AffiliateID, true
}

// Clear expires the attribution cookie.
func (s *CookieStore) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
}
