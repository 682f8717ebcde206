package app

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/louisbranch/study.space/internal/platform/errors"
)

const (
	// RoleAdmin grants access to the admin routes.
	RoleAdmin = "admin"

	userIDHeader = "X-User-ID"
	roleHeader   = "X-User-Role"
)

var errUnauthenticated = apperrors.New(apperrors.CodeUnauthenticated, "authentication required")

// Identity is the authenticated caller.
type Identity struct {
	UserID string
	Admin  bool
}

// Authenticator resolves the caller of a request.
type Authenticator interface {
	Authenticate(r *http.Request) (Identity, error)
}

// HeaderAuthenticator trusts identity headers set by a fronting proxy.
type HeaderAuthenticator struct{}

// Authenticate reads X-User-ID and X-User-Role.
func (HeaderAuthenticator) Authenticate(r *http.Request) (Identity, error) {
	userID := strings.TrimSpace(r.Header.Get(userIDHeader))
	if userID == "" {
		return Identity{}, errUnauthenticated
	}
	return Identity{
		UserID: userID,
		Admin:  strings.EqualFold(strings.TrimSpace(r.Header.Get(roleHeader)), RoleAdmin),
	}, nil
}

type tokenClaims struct {
	jwt.RegisteredClaims
	Role string `json:"role,omitempty"`
}

// JWTAuthenticator verifies HS256 bearer tokens. The subject is the user id.
type JWTAuthenticator struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// NewJWTAuthenticator builds a verifier for tokens signed with secret.
func NewJWTAuthenticator(secret, issuer string, now func() time.Time) (*JWTAuthenticator, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errors.New("jwt secret is required")
	}
	if now == nil {
		now = time.Now
	}
	return &JWTAuthenticator{secret: []byte(secret), issuer: strings.TrimSpace(issuer), now: now}, nil
}

// Authenticate reads the bearer token from the Authorization header, or
// the token query parameter for websocket upgrades.
func (a *JWTAuthenticator) Authenticate(r *http.Request) (Identity, error) {
	raw := bearerToken(r)
	if raw == "" {
		return Identity{}, errUnauthenticated
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(a.now),
		jwt.WithExpirationRequired(),
	}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}
	var claims tokenClaims
	if _, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}, opts...); err != nil {
		return Identity{}, mapJWTError(err)
	}

	userID := strings.TrimSpace(claims.Subject)
	if userID == "" {
		return Identity{}, apperrors.New(apperrors.CodeUnauthenticated, "token subject is required")
	}
	return Identity{UserID: userID, Admin: claims.Role == RoleAdmin}, nil
}

// Sign issues a token for userID that expires after ttl.
func (a *JWTAuthenticator) Sign(userID string, admin bool, ttl time.Duration) (string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", errors.New("user id is required")
	}
	if ttl <= 0 {
		return "", errors.New("ttl must be positive")
	}
	now := a.now()
	claims := tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    a.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	if admin {
		claims.Role = RoleAdmin
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return strings.TrimSpace(r.URL.Query().Get("token"))
}

func mapJWTError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return apperrors.Wrap(apperrors.CodeUnauthenticated, "token is expired", err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return apperrors.Wrap(apperrors.CodeUnauthenticated, "token signature is invalid", err)
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return apperrors.Wrap(apperrors.CodeUnauthenticated, "token issuer mismatch", err)
	default:
		return apperrors.Wrap(apperrors.CodeUnauthenticated, "token is invalid", err)
	}
}
