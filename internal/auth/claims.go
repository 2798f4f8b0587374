package auth

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Scope limits what a token holder may do through the API.
type Scope string

const (
	// ScopeRead allows state, history and notification stream access.
	ScopeRead Scope = "read"

	// ScopeControl additionally allows toggle requests.
	ScopeControl Scope = "control"
)

// DefaultTTL is used when a token is generated without an explicit lifetime.
const DefaultTTL = 24 * time.Hour

// Valid reports whether s is a known scope.
func (s Scope) Valid() bool {
	return s == ScopeRead || s == ScopeControl
}

// Allows reports whether a token with scope s may act with scope required.
func (s Scope) Allows(required Scope) bool {
	if s == ScopeControl {
		return required.Valid()
	}
	return s == required
}

// ParseScope converts a case-insensitive scope name.
func ParseScope(raw string) (Scope, error) {
	s := Scope(strings.ToLower(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidScope, raw)
	}
	return s, nil
}

// Claims extends the registered JWT claims with the token scope.
type Claims struct {
	jwt.RegisteredClaims
	Scope Scope `json:"scope"`
}

// GenerateToken creates a signed HS256 token.
//
// Parameters:
//   - subject: Free-form holder name (e.g. "waybar", "home-assistant")
//   - scope: Permission scope carried by the token
//   - secret: HMAC signing secret (api.jwt_secret)
//   - ttl: Token lifetime; zero or negative means DefaultTTL
//
// Returns:
//   - string: The signed token
//   - error: If the inputs are invalid or signing fails
func GenerateToken(subject string, scope Scope, secret string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", ErrSecretRequired
	}
	if subject == "" {
		return "", fmt.Errorf("%w: missing subject", ErrTokenInvalid)
	}
	if !scope.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidScope, scope)
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
		Scope: scope,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// ParseToken validates a token's signature, expiry and required fields.
func ParseToken(tokenString, secret string) (*Claims, error) {
	if secret == "" {
		return nil, ErrSecretRequired
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(_ *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}

	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrTokenInvalid)
	}
	if !claims.Scope.Valid() {
		return nil, fmt.Errorf("%w: missing scope", ErrTokenInvalid)
	}

	return claims, nil
}

// ExtractBearer returns the token from an "Authorization: Bearer <token>"
// header value, or false when the header has another form.
func ExtractBearer(header string) (string, bool) {
	const prefix = "bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}
