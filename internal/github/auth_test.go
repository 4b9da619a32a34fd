package github

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ghtesting "github.com/cexll/coverage-comment/internal/github/testing"
)

func testKey(t *testing.T) (*rsa.PrivateKey, string) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	block := &pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)}
	return key, string(pem.EncodeToMemory(block))
}

func TestGenerateJWT(t *testing.T) {
	key, pemKey := testKey(t)
	now := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	auth := &AppAuth{AppID: "123456", PrivateKey: pemKey, now: func() time.Time { return now }}

	signed, err := auth.GenerateJWT()
	require.NoError(t, err)

	claims := &jwt.RegisteredClaims{}
	_, err = jwt.ParseWithClaims(signed, claims, func(token *jwt.Token) (interface{}, error) {
		return &key.PublicKey, nil
	}, jwt.WithTimeFunc(func() time.Time { return now }))
	require.NoError(t, err)

	assert.Equal(t, "123456", claims.Issuer)
	assert.Equal(t, now.Add(-time.Minute).Unix(), claims.IssuedAt.Unix())
	assert.Equal(t, now.Add(9*time.Minute).Unix(), claims.ExpiresAt.Unix())
}

func TestGenerateJWT_Errors(t *testing.T) {
	_, pemKey := testKey(t)

	_, err := (&AppAuth{AppID: "not-a-number", PrivateKey: pemKey}).GenerateJWT()
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "invalid app ID"))

	_, err = (&AppAuth{AppID: "1", PrivateKey: "not a pem"}).GenerateJWT()
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "failed to parse private key"))
}

func TestInstallationToken(t *testing.T) {
	srv := ghtesting.NewServer()
	defer srv.Close()

	_, pemKey := testKey(t)
	auth := &AppAuth{AppID: "42", PrivateKey: pemKey, APIURL: srv.URL}

	token, err := auth.InstallationToken(context.Background(), "octo", "widgets")
	require.NoError(t, err)
	assert.Equal(t, "ghs_installation", token.Token)
	assert.True(t, token.ExpiresAt.After(time.Now()))
	assert.Equal(t, 1, srv.TokenCalls)

	require.NotEmpty(t, srv.AuthHeaders)
	assert.True(t, strings.HasPrefix(srv.AuthHeaders[0], "Bearer ey"), "JWT bearer expected, got %q", srv.AuthHeaders[0])
}

func TestInstallationToken_BadKeyIsInputError(t *testing.T) {
	auth := &AppAuth{AppID: "42", PrivateKey: "garbage"}
	_, err := auth.InstallationToken(context.Background(), "octo", "widgets")
	require.Error(t, err)
	assert.Equal(t, KindInput, KindOf(err))
}
