package services

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-for-jwt-signing-32-chars"

func createTestTokenService(t *testing.T, accessTTL time.Duration) TokenService {
	t.Helper()
	svc, err := NewTokenService(accessTTL, 24*time.Hour, "test-issuer", "test-audience", false, "", "", testSecret, NewMemoryRevocationStore())
	require.NoError(t, err)
	return svc
}

func rsaKeyPair(t *testing.T) (string, string) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	priv := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	pubBytes, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	pub := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubBytes})
	return string(priv), string(pub)
}

func TestNewTokenService(t *testing.T) {
	priv, pub := rsaKeyPair(t)

	tests := []struct {
		name        string
		useRSAKeys  bool
		privateKey  string
		publicKey   string
		secretKey   string
		expectError bool
	}{
		{name: "symmetric key", secretKey: testSecret},
		{name: "missing secret key", expectError: true},
		{name: "rsa keys", useRSAKeys: true, privateKey: priv, publicKey: pub},
		{name: "rsa without public key", useRSAKeys: true, privateKey: priv, expectError: true},
		{name: "rsa with garbage", useRSAKeys: true, privateKey: "nope", publicKey: "nope", expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := NewTokenService(15*time.Minute, time.Hour, "iss", "aud", tt.useRSAKeys, tt.privateKey, tt.publicKey, tt.secretKey, nil)
			if tt.expectError {
				assert.Error(t, err)
				assert.Nil(t, svc)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, 15*time.Minute, svc.AccessTokenTTL())
		})
	}
}

func TestGenerateAndValidateTokens(t *testing.T) {
	ctx := context.Background()
	svc := createTestTokenService(t, 15*time.Minute)

	access, refresh, err := svc.GenerateTokens(SubjectPartner, 42)
	require.NoError(t, err)
	assert.NotEqual(t, access, refresh)

	claims, err := svc.ValidateToken(ctx, access)
	require.NoError(t, err)
	assert.Equal(t, SubjectPartner, claims.SubjectType)
	assert.Equal(t, uint(42), claims.SubjectID)
	assert.Equal(t, TokenTypeAccess, claims.TokenType)
	assert.NotEmpty(t, claims.TokenID)
	assert.WithinDuration(t, claims.IssuedAt.Add(15*time.Minute), claims.ExpiresAt, time.Second)

	refreshClaims, err := svc.ValidateToken(ctx, refresh)
	require.NoError(t, err)
	assert.Equal(t, TokenTypeRefresh, refreshClaims.TokenType)
	assert.NotEqual(t, claims.TokenID, refreshClaims.TokenID)
}

func TestValidateTokenRejects(t *testing.T) {
	ctx := context.Background()
	svc := createTestTokenService(t, 15*time.Minute)

	other, err := NewTokenService(15*time.Minute, time.Hour, "test-issuer", "other-audience", false, "", "", testSecret, nil)
	require.NoError(t, err)
	foreignAudience, _, err := other.GenerateTokens(SubjectUser, 1)
	require.NoError(t, err)

	wrongKey, err := NewTokenService(15*time.Minute, time.Hour, "test-issuer", "test-audience", false, "", "", "another-secret-key-of-sufficient-size", nil)
	require.NoError(t, err)
	forged, _, err := wrongKey.GenerateTokens(SubjectUser, 1)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
		want  error
	}{
		{"empty", "", ErrTokenInvalid},
		{"garbage", "not.a.jwt", ErrTokenInvalid},
		{"wrong audience", foreignAudience, ErrTokenInvalid},
		{"wrong signing key", forged, ErrTokenInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.ValidateToken(ctx, tt.token)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestExpiredToken(t *testing.T) {
	ctx := context.Background()
	svc := createTestTokenService(t, -time.Minute)

	access, _, err := svc.GenerateTokens(SubjectUser, 7)
	require.NoError(t, err)

	_, err = svc.ValidateToken(ctx, access)
	assert.ErrorIs(t, err, ErrTokenExpired)

	// nothing to revoke once expired
	assert.NoError(t, svc.RevokeToken(ctx, access))
}

func TestRefreshTokenRotation(t *testing.T) {
	ctx := context.Background()
	svc := createTestTokenService(t, 15*time.Minute)

	access, refresh, err := svc.GenerateTokens(SubjectUser, 9)
	require.NoError(t, err)

	_, _, err = svc.RefreshToken(ctx, access)
	assert.ErrorIs(t, err, ErrTokenInvalid, "access token cannot refresh")

	newAccess, newRefresh, err := svc.RefreshToken(ctx, refresh)
	require.NoError(t, err)
	assert.NotEmpty(t, newAccess)
	assert.NotEqual(t, refresh, newRefresh)

	_, _, err = svc.RefreshToken(ctx, refresh)
	assert.ErrorIs(t, err, ErrTokenRevoked, "refresh tokens are single use")

	claims, err := svc.ValidateToken(ctx, newRefresh)
	require.NoError(t, err)
	assert.Equal(t, uint(9), claims.SubjectID)
}

func TestRevokeToken(t *testing.T) {
	ctx := context.Background()
	svc := createTestTokenService(t, 15*time.Minute)

	access, refresh, err := svc.GenerateTokens(SubjectPartner, 3)
	require.NoError(t, err)

	require.NoError(t, svc.RevokeToken(ctx, access))
	_, err = svc.ValidateToken(ctx, access)
	assert.ErrorIs(t, err, ErrTokenRevoked)

	_, err = svc.ValidateToken(ctx, refresh)
	assert.NoError(t, err, "revoking the access token leaves the refresh token alone")

	assert.ErrorIs(t, svc.RevokeToken(ctx, "garbage"), ErrTokenInvalid)
}

func TestRSATokens(t *testing.T) {
	ctx := context.Background()
	priv, pub := rsaKeyPair(t)

	svc, err := NewTokenService(time.Minute, time.Hour, "iss", "", true, priv, pub, "", nil)
	require.NoError(t, err)

	access, _, err := svc.GenerateTokens(SubjectUser, 11)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(ctx, access)
	require.NoError(t, err)
	assert.Equal(t, uint(11), claims.SubjectID)

	hmac := createTestTokenService(t, time.Minute)
	_, err = hmac.ValidateToken(ctx, access)
	assert.ErrorIs(t, err, ErrTokenInvalid, "algorithm must match the configured method")
}

func TestMemoryRevocationStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryRevocationStore()

	revoked, err := store.IsRevoked(ctx, "a")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, store.Revoke(ctx, "a", time.Now().Add(-time.Minute)))
	require.NoError(t, store.Revoke(ctx, "b", time.Now().Add(time.Hour)))

	revoked, _ = store.IsRevoked(ctx, "b")
	assert.True(t, revoked)
	// expired entries are pruned on the next write
	store.mu.RLock()
	_, stillThere := store.revoked["a"]
	store.mu.RUnlock()
	assert.False(t, stillThere)
}
