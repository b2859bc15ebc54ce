package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/vibast-solutions/ms-go-fps-payments/app/types"
)

const userContextKey = "auth_user"

var (
	ErrMissingToken = errors.New("missing authorization header")
	ErrInvalidToken = errors.New("invalid or expired token")
	ErrNoSubject    = errors.New("token has no subject")
)

// User is the authenticated caller extracted from a Supabase access token.
type User struct {
	ID    string
	Email string
	Role  string
}

type supabaseClaims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

type SupabaseMiddleware struct {
	secret []byte
}

func NewSupabaseMiddleware(jwtSecret string) *SupabaseMiddleware {
	return &SupabaseMiddleware{secret: []byte(jwtSecret)}
}

// Authenticate parses and verifies an HS256 access token.
func (m *SupabaseMiddleware) Authenticate(tokenString string) (*User, error) {
	if len(m.secret) == 0 {
		return nil, ErrInvalidToken
	}

	claims := &supabaseClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil || token == nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, ErrNoSubject
	}

	return &User{
		ID:    claims.Subject,
		Email: claims.Email,
		Role:  claims.Role,
	}, nil
}

// RequireUser rejects requests without a valid user token.
func (m *SupabaseMiddleware) RequireUser() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			tokenString, err := bearerToken(ctx)
			if err != nil {
				return ctx.JSON(http.StatusUnauthorized, &types.ErrorResponse{Error: "Missing authorization header"})
			}
			user, err := m.Authenticate(tokenString)
			if err != nil {
				return ctx.JSON(http.StatusUnauthorized, &types.ErrorResponse{Error: "Unauthorized"})
			}
			SetUser(ctx, user)
			return next(ctx)
		}
	}
}

// OptionalUser attaches the user when the token is a valid user token. Anonymous
// keys and missing headers fall through without a user.
func (m *SupabaseMiddleware) OptionalUser() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			if tokenString, err := bearerToken(ctx); err == nil {
				if user, err := m.Authenticate(tokenString); err == nil {
					SetUser(ctx, user)
				}
			}
			return next(ctx)
		}
	}
}

func SetUser(ctx echo.Context, user *User) {
	ctx.Set(userContextKey, user)
}

func UserFromContext(ctx echo.Context) (*User, bool) {
	user, ok := ctx.Get(userContextKey).(*User)
	return user, ok && user != nil
}

func bearerToken(ctx echo.Context) (string, error) {
	header := strings.TrimSpace(ctx.Request().Header.Get(echo.HeaderAuthorization))
	if header == "" {
		return "", ErrMissingToken
	}
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", ErrMissingToken
	}
	return strings.TrimSpace(header[len(prefix):]), nil
}
