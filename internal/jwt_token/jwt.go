package jwttoken

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"truconn/pkg/domain"
	dErrors "truconn/pkg/domain-errors"
)

// Claims are the access token claims issued by the session boundary.
// Subject carries the principal id.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// JWTService signs and validates HS256 access tokens.
type JWTService struct {
	signingKey []byte
	issuer     string
	now        func() time.Time
}

func NewJWTService(signingKey string, issuer string) *JWTService {
	return &JWTService{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		now:        time.Now,
	}
}

// GenerateAccessToken issues a token for the principal. Used by tooling and
// tests; production tokens come from the identity provider sharing the key.
func (s *JWTService) GenerateAccessToken(principal domain.Principal, expiresIn time.Duration) (string, error) {
	if principal.IsZero() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "principal is required")
	}
	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Role: string(principal.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   principal.ID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiresIn)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    s.issuer,
			ID:        uuid.NewString(),
		},
	})
	return token.SignedString(s.signingKey)
}

// ValidateToken verifies signature, expiry and issuer, and resolves the
// principal. Satisfies the auth middleware's TokenValidator.
func (s *JWTService) ValidateToken(tokenString string) (domain.Principal, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	}, jwt.WithIssuer(s.issuer), jwt.WithExpirationRequired(), jwt.WithTimeFunc(s.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return domain.Principal{}, dErrors.New(dErrors.CodeUnauthorized, "token has expired")
		}
		return domain.Principal{}, dErrors.Wrap(err, dErrors.CodeUnauthorized, "invalid token")
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return domain.Principal{}, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}

	id, err := uuid.Parse(claims.Subject)
	if err != nil || id == uuid.Nil {
		return domain.Principal{}, dErrors.New(dErrors.CodeUnauthorized, "invalid subject")
	}
	role, err := domain.ParseRole(claims.Role)
	if err != nil {
		return domain.Principal{}, dErrors.Wrap(err, dErrors.CodeUnauthorized, "invalid role")
	}
	return domain.Principal{ID: id, Role: role}, nil
}
