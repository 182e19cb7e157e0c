package auth

import (
	"context"
	"crypto/subtle"
	"fmt"
	"time"

	"pelorus/internal/domain"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the bearer-token payload issued by the identity provider.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
}

// TokenValidator resolves inbound credentials to an Identity. A bearer JWT
// is checked against the shared signing secret; the service header is
// compared in constant time. Provider failures of any kind reject the
// request, the caller retries the whole call.
type TokenValidator struct {
	secret       []byte
	serviceToken string
	leeway       time.Duration
}

func NewTokenValidator(secret, serviceToken string) *TokenValidator {
	return &TokenValidator{
		secret:       []byte(secret),
		serviceToken: serviceToken,
		leeway:       time.Minute,
	}
}

func (v *TokenValidator) Authenticate(ctx context.Context, creds domain.Credentials) (domain.Identity, error) {
	if err := ctx.Err(); err != nil {
		return domain.Identity{}, fmt.Errorf("%w: %v", domain.ErrUnauthenticated, err)
	}
	if creds.BearerToken != "" {
		return v.validateBearer(creds.BearerToken)
	}
	if creds.ServiceToken != "" {
		return v.validateService(creds.ServiceToken)
	}
	return domain.Identity{}, domain.ErrUnauthenticated
}

func (v *TokenValidator) validateBearer(token string) (domain.Identity, error) {
	if len(v.secret) == 0 {
		return domain.Identity{}, fmt.Errorf("%w: invalid token", domain.ErrUnauthenticated)
	}
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return v.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(v.leeway),
	)
	if err != nil || !parsed.Valid {
		return domain.Identity{}, fmt.Errorf("%w: invalid token", domain.ErrUnauthenticated)
	}
	id := claims.UserID
	if id == "" {
		id = claims.Subject
	}
	if id == "" {
		return domain.Identity{}, fmt.Errorf("%w: invalid token", domain.ErrUnauthenticated)
	}
	identity := domain.Identity{
		ID:    id,
		Email: claims.Email,
		Role:  claims.Role,
	}
	if claims.IssuedAt != nil {
		identity.IssuedAt = claims.IssuedAt.Time
	}
	return identity, nil
}

func (v *TokenValidator) validateService(token string) (domain.Identity, error) {
	if v.serviceToken == "" ||
		subtle.ConstantTimeCompare([]byte(token), []byte(v.serviceToken)) != 1 {
		return domain.Identity{}, fmt.Errorf("%w: invalid token", domain.ErrUnauthenticated)
	}
	return domain.Identity{ID: "service", Role: "service", Service: true}, nil
}
