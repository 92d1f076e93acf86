package identity

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrInvalidToken = errors.New("invalid or expired token")

// Principal is the verified account identity behind a request or
// connection. A nil *Principal means anonymous.
type Principal struct {
	UserID uuid.UUID
	Email  string
}

// Resolver verifies bearer credentials and maps them to a Principal.
type Resolver struct {
	secret []byte
}

func NewResolver(secret string) *Resolver {
	return &Resolver{secret: []byte(secret)}
}

// FromRequest resolves the principal for a request. The credential is read
// from the Authorization header first, then from the token query parameter.
// The query fallback exists because WebSocket upgrade requests from
// browsers cannot carry custom headers. An absent credential resolves to
// (nil, nil): anonymous connections are allowed, and handlers decide per
// action whether anonymity is acceptable.
func (r *Resolver) FromRequest(c *fiber.Ctx) (*Principal, error) {
	raw := bearerToken(c.Get(fiber.HeaderAuthorization))
	if raw == "" {
		raw = c.Query("token")
	}
	if raw == "" {
		return nil, nil
	}
	return r.Parse(raw)
}

// Parse verifies a raw JWT and extracts the principal from its claims.
func (r *Resolver) Parse(raw string) (*Principal, error) {
	token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return r.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}

	sub, _ := claims["sub"].(string)
	userID, err := uuid.Parse(sub)
	if err != nil {
		return nil, ErrInvalidToken
	}

	email, _ := claims["email"].(string)
	return &Principal{UserID: userID, Email: email}, nil
}

// FromContext extracts the principal from a request that already passed
// the JWT middleware (jwtware stores the parsed token in locals).
func FromContext(c *fiber.Ctx) (*Principal, error) {
	token, ok := c.Locals("user").(*jwt.Token)
	if !ok || token == nil {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}

	sub, _ := claims["sub"].(string)
	userID, err := uuid.Parse(sub)
	if err != nil {
		return nil, ErrInvalidToken
	}

	email, _ := claims["email"].(string)
	return &Principal{UserID: userID, Email: email}, nil
}

func bearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}
