package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/helloviza/approvals/internal/domain/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testActor = entity.Actor{
	ID:         "u-1",
	Email:      "riya@acme.test",
	Name:       "Riya",
	Role:       entity.RoleRequester,
	CustomerID: "ws-1",
}

func TestIssueVerify(t *testing.T) {
	issuer, err := NewIssuer("secret", time.Hour)
	require.NoError(t, err)

	token, err := issuer.Issue(testActor)
	require.NoError(t, err)

	claims, err := issuer.Verify("Bearer " + token)
	require.NoError(t, err)
	assert.Equal(t, testActor, claims.Actor())
}

func TestVerify_Rejects(t *testing.T) {
	issuer, err := NewIssuer("secret", time.Hour)
	require.NoError(t, err)
	other, err := NewIssuer("other", time.Hour)
	require.NoError(t, err)

	foreign, err := other.Issue(testActor)
	require.NoError(t, err)

	expiring, err := NewIssuer("secret", time.Minute)
	require.NoError(t, err)
	expiring.nowFn = func() time.Time { return time.Now().Add(-time.Hour) }
	expired, err := expiring.Issue(testActor)
	require.NoError(t, err)

	badRole, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Role: "L9",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "approvals",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "not-a-token"},
		{"wrong secret", foreign},
		{"expired", expired},
		{"unknown role", badRole},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := issuer.Verify(tt.token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestIssue_InvalidRole(t *testing.T) {
	issuer, err := NewIssuer("secret", 0)
	require.NoError(t, err)

	_, err = issuer.Issue(entity.Actor{ID: "x", Role: "admin"})
	assert.Error(t, err)
}

func TestNewIssuer_RequiresSecret(t *testing.T) {
	_, err := NewIssuer("", time.Hour)
	assert.Error(t, err)
}

func TestActorLabel(t *testing.T) {
	assert.Equal(t, "Riya", testActor.Label())
	assert.Equal(t, "x@y.test", entity.Actor{Email: "x@y.test"}.Label())
}
