package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssuer_RoundTrip(t *testing.T) {
	iss, err := NewIssuer("s3cret", "guildfm", time.Hour)
	require.NoError(t, err)

	token, err := iss.GenerateToken("alice", []string{"g1"})
	require.NoError(t, err)

	claims, err := iss.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Username)
	assert.True(t, claims.CanAccess("g1"))
	assert.False(t, claims.CanAccess("g2"))
}

func TestIssuer_Rejects(t *testing.T) {
	iss, _ := NewIssuer("s3cret", "guildfm", time.Hour)
	other, _ := NewIssuer("different", "guildfm", time.Hour)
	expired, _ := NewIssuer("s3cret", "guildfm", -time.Minute)
	foreign, _ := NewIssuer("s3cret", "someone-else", time.Hour)

	cases := map[string]*Issuer{"wrong secret": other, "expired": expired, "wrong issuer": foreign}
	for name, signer := range cases {
		t.Run(name, func(t *testing.T) {
			token, err := signer.GenerateToken("bob", nil)
			require.NoError(t, err)

			_, err = iss.ParseToken(token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestIssuer_RejectsNoneAlgorithm(t *testing.T) {
	iss, _ := NewIssuer("s3cret", "guildfm", time.Hour)
	token := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{Username: "mallory"})
	signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = iss.ParseToken(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestNewIssuer_RequiresSecret(t *testing.T) {
	_, err := NewIssuer("", "guildfm", time.Hour)
	assert.ErrorIs(t, err, ErrMissingSecret)
}

func TestClaims_EmptyTenantsAllowsAll(t *testing.T) {
	c := &Claims{}
	assert.True(t, c.CanAccess("anything"))
}
