package cart

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	SessionCookie = "tg_session"
	sessionIssuer = "storefront"
)

var ErrInvalidSession = errors.New("invalid session token")

type ctxKey string

const sessionKey ctxKey = "session_id"

func SessionFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(sessionKey).(string)
	return v, ok && v != ""
}

func WithSession(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionKey, id)
}

// Sessions issues signed session tokens. The token only carries the session
// id; the cart itself lives in the slot.
type Sessions struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewSessions(secret string, ttl time.Duration) *Sessions {
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &Sessions{secret: []byte(secret), ttl: ttl, now: time.Now}
}

func (s *Sessions) New() (id, token string, err error) {
	id = uuid.NewString()
	now := s.now()

	claims := jwt.RegisteredClaims{
		ID:        id,
		Subject:   id,
		Issuer:    sessionIssuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}

	token, err = jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", "", err
	}
	return id, token, nil
}

func (s *Sessions) Parse(token string) (string, error) {
	var c jwt.RegisteredClaims

	parsed, err := jwt.ParseWithClaims(token, &c, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	},
		jwt.WithIssuer(sessionIssuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || parsed == nil || !parsed.Valid || c.Subject == "" {
		return "", ErrInvalidSession
	}
	return c.Subject, nil
}

// Middleware resolves the caller's session from the cookie, minting a new one
// when it is missing, expired or forged.
func (s *Sessions) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ck, err := r.Cookie(SessionCookie); err == nil {
			if id, err := s.Parse(ck.Value); err == nil {
				next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), id)))
				return
			}
		}

		id, token, err := s.New()
		if err != nil {
			http.Error(w, "session error", http.StatusInternalServerError)
			return
		}

		http.SetCookie(w, &http.Cookie{
			Name:     SessionCookie,
			Value:    token,
			Path:     "/",
			MaxAge:   int(s.ttl.Seconds()),
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
			Secure:   r.TLS != nil,
		})
		next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), id)))
	})
}
