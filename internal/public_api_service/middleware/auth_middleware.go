package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ContextKey is a custom type for context keys to avoid collisions.
type ContextKey string

const (
	AuthenticatedVendorContextKey = ContextKey("authenticatedVendor")
)

// AuthenticatedVendor is the operator behind a request.
type AuthenticatedVendor struct {
	ID uuid.UUID
}

// ErrTokenInvalid is returned for tokens that fail parsing or validation.
var ErrTokenInvalid = errors.New("invalid or expired token")

// AuthMiddleware authenticates operators with an HS256 bearer token whose
// subject is the vendor id.
func AuthMiddleware(jwtSecret string, logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				logger.WarnContext(r.Context(), "Authorization header missing")
				http.Error(w, "Authorization header required", http.StatusUnauthorized)
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				logger.WarnContext(r.Context(), "Invalid Authorization header format")
				http.Error(w, "Invalid Authorization header format", http.StatusUnauthorized)
				return
			}

			vendorID, err := ParseToken(jwtSecret, parts[1])
			if err != nil {
				logger.WarnContext(r.Context(), "Token validation failed", "error", err)
				http.Error(w, "Invalid or expired token", http.StatusUnauthorized)
				return
			}

			ctx := WithVendor(r.Context(), AuthenticatedVendor{ID: vendorID})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ParseToken validates tokenString and returns the vendor id in its subject.
func ParseToken(secret, tokenString string) (uuid.UUID, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return uuid.Nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	sub, err := token.Claims.GetSubject()
	if err != nil || sub == "" {
		return uuid.Nil, fmt.Errorf("%w: missing subject", ErrTokenInvalid)
	}
	vendorID, err := uuid.Parse(sub)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: subject is not a vendor id", ErrTokenInvalid)
	}
	return vendorID, nil
}

// IssueToken signs an operator token for vendorID.
func IssueToken(secret string, vendorID uuid.UUID, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": vendorID.String(),
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// WithVendor stores v in ctx.
func WithVendor(ctx context.Context, v AuthenticatedVendor) context.Context {
	return context.WithValue(ctx, AuthenticatedVendorContextKey, v)
}

// VendorFromContext returns the authenticated vendor, if any.
func VendorFromContext(ctx context.Context) (AuthenticatedVendor, bool) {
	v, ok := ctx.Value(AuthenticatedVendorContextKey).(AuthenticatedVendor)
	return v, ok && v.ID != uuid.Nil
}
