package jwttoken

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"truconn/pkg/domain"
	dErrors "truconn/pkg/domain-errors"
)

func newService() *JWTService {
	return NewJWTService("test-signing-key", "truconn-test")
}

func TestGenerateAndValidate(t *testing.T) {
	svc := newService()
	principal := domain.Principal{ID: uuid.New(), Role: domain.RoleOrganization}

	token, err := svc.GenerateAccessToken(principal, time.Hour)
	require.NoError(t, err)

	got, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, principal, got)
}

func TestGenerateRequiresPrincipal(t *testing.T) {
	_, err := newService().GenerateAccessToken(domain.Principal{}, time.Hour)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func TestValidateRejects(t *testing.T) {
	svc := newService()
	principal := domain.Principal{ID: uuid.New(), Role: domain.RoleCitizen}

	sign := func(key string, claims Claims) string {
		t.Helper()
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
		require.NoError(t, err)
		return token
	}
	valid := func() Claims {
		return Claims{
			Role: string(principal.Role),
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   principal.ID.String(),
				Issuer:    "truconn-test",
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
		}
	}

	expired := valid()
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
	wrongIssuer := valid()
	wrongIssuer.Issuer = "someone-else"
	badRole := valid()
	badRole.Role = "admin"
	badSubject := valid()
	badSubject.Subject = "not-a-uuid"
	noExpiry := valid()
	noExpiry.ExpiresAt = nil

	cases := map[string]string{
		"garbage":      "not.a.token",
		"wrong key":    sign("other-key", valid()),
		"expired":      sign("test-signing-key", expired),
		"wrong issuer": sign("test-signing-key", wrongIssuer),
		"bad role":     sign("test-signing-key", badRole),
		"bad subject":  sign("test-signing-key", badSubject),
		"no expiry":    sign("test-signing-key", noExpiry),
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.ValidateToken(token)
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
		})
	}
}

func TestValidateUsesClock(t *testing.T) {
	svc := newService()
	issuedAt := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return issuedAt }
	token, err := svc.GenerateAccessToken(domain.Principal{ID: uuid.New(), Role: domain.RoleOversight}, time.Minute)
	require.NoError(t, err)

	svc.now = func() time.Time { return issuedAt.Add(2 * time.Minute) }
	_, err = svc.ValidateToken(token)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	assert.Contains(t, err.Error(), "expired")
}
