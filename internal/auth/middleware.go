package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/aldoetobex/rentify-backend/pkg/models"
)

/* ============================== JWT Claims ============================== */

// Claims represents the JWT payload we issue and expect.
type Claims struct {
	Sub  string `json:"sub"`  // user ID
	Role string `json:"role"` // "user" | "renter" | "admin"
	jwt.RegisteredClaims
}

/* ============================== JWT Helpers ============================= */

// IssueToken signs an HS256 JWT for the given user and role.
func IssueToken(secret string, ttl time.Duration, userID, role string) (string, error) {
	if secret == "" {
		return "", errors.New("jwt secret is empty")
	}
	now := time.Now()
	claims := &Claims{
		Sub:  userID,
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString([]byte(secret))
}

// ParseToken verifies the signature and expiry and returns the claims.
func ParseToken(secret, tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Sub == "" {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}

/* ============================== Middleware ============================== */

// Locals keys set by RequireAuth.
const (
	LocalUserID = "userID"
	LocalRole   = "role"
)

// RequireAuth validates a Bearer JWT and injects userID and role into the context.
func RequireAuth(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		h := c.Get(fiber.HeaderAuthorization)
		if !strings.HasPrefix(h, "Bearer ") {
			return fiber.ErrUnauthorized
		}
		claims, err := ParseToken(secret, strings.TrimPrefix(h, "Bearer "))
		if err != nil {
			return fiber.ErrUnauthorized
		}

		c.Locals(LocalUserID, claims.Sub)
		c.Locals(LocalRole, claims.Role)
		return c.Next()
	}
}

// MustUserID reads the authenticated user ID from context or panics (programming error).
func MustUserID(c *fiber.Ctx) string {
	if v, ok := c.Locals(LocalUserID).(string); ok {
		return v
	}
	panic(errors.New("user not in context"))
}

// MustRole reads the authenticated user role from context or panics (programming error).
func MustRole(c *fiber.Ctx) string {
	if v, ok := c.Locals(LocalRole).(string); ok {
		return v
	}
	panic(errors.New("role not in context"))
}

// Identity returns the authenticated caller. A subject that is not a UUID is
// treated as unauthenticated.
func Identity(c *fiber.Ctx) (uuid.UUID, models.Role, error) {
	id, err := uuid.Parse(MustUserID(c))
	if err != nil {
		return uuid.Nil, "", fiber.ErrUnauthorized
	}
	return id, models.Role(MustRole(c)), nil
}

// RequireRole lets the request through when the caller has one of roles.
func RequireRole(roles ...models.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		have := models.Role(MustRole(c))
		for _, r := range roles {
			if have == r {
				return c.Next()
			}
		}
		return fiber.ErrForbidden
	}
}

/* =========================== Error Formatting =========================== */

// httpCodeToString converts an HTTP status code to a short, stable string.
func httpCodeToString(code int) string {
	switch code {
	case fiber.StatusBadRequest:
		return "BAD_REQUEST"
	case fiber.StatusUnauthorized:
		return "UNAUTHORIZED"
	case fiber.StatusForbidden:
		return "FORBIDDEN"
	case fiber.StatusNotFound:
		return "NOT_FOUND"
	case fiber.StatusMethodNotAllowed:
		return "METHOD_NOT_ALLOWED"
	case fiber.StatusConflict:
		return "CONFLICT"
	case fiber.StatusUnprocessableEntity:
		return "UNPROCESSABLE_ENTITY"
	case fiber.StatusRequestEntityTooLarge:
		return "PAYLOAD_TOO_LARGE"
	default:
		return "INTERNAL_SERVER_ERROR"
	}
}

// ErrorHandler is a global Fiber error handler that returns a consistent JSON shape.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	msg := fiber.ErrInternalServerError.Message

	// Fiber errors carry status codes; anything else stays a bare 500.
	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
		if strings.TrimSpace(e.Message) != "" {
			msg = e.Message
		} else {
			msg = fiber.NewError(code).Message
		}
	}

	return c.Status(code).JSON(models.ErrorResponse{
		Success: false,
		Error:   true,
		Message: msg,
		Code:    httpCodeToString(code),
	})
}
