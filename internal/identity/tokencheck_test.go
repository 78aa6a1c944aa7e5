package identity

import (
	"encoding/base64"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tasksuite/addin-auth/internal/autherr"
	"github.com/tasksuite/addin-auth/internal/models"
)

// makeJWT builds an unsigned compact JWT carrying the given claims. The
// validator never verifies signatures, so a placeholder suffices.
func makeJWT(t *testing.T, claims map[string]any) string {
	t.Helper()

	header, err := json.Marshal(map[string]string{"alg": "HS256", "typ": "JWT"})
	require.NoError(t, err)

	payload, err := json.Marshal(claims)
	require.NoError(t, err)

	enc := base64.RawURLEncoding

	return enc.EncodeToString(header) + "." + enc.EncodeToString(payload) + "." + enc.EncodeToString([]byte("sig"))
}

func TestValidateTokenResult_EmptyToken(t *testing.T) {
	err := validateTokenResult(models.TokenResult{ExpiresOn: time.Now().Add(time.Hour)}, time.Now())

	assert.True(t, autherr.Is(err, autherr.CodeTokenInvalid))
}

func TestValidateTokenResult_AlreadyExpired(t *testing.T) {
	now := time.Now()
	res := models.TokenResult{
		AccessToken: "opaque-token",
		ExpiresOn:   now.Add(-time.Minute),
	}

	err := validateTokenResult(res, now)

	assert.True(t, autherr.Is(err, autherr.CodeTokenInvalid))
}

func TestValidateTokenResult_OpaqueTokenAccepted(t *testing.T) {
	res := models.TokenResult{
		AccessToken: "not-a-jwt-at-all",
		ExpiresOn:   time.Now().Add(time.Hour),
	}

	assert.NoError(t, validateTokenResult(res, time.Now()))
}

func TestValidateTokenResult_JWTExpiryAgrees(t *testing.T) {
	now := time.Now()
	exp := now.Add(time.Hour)
	res := models.TokenResult{
		AccessToken: makeJWT(t, map[string]any{"exp": exp.Unix()}),
		ExpiresOn:   exp,
	}

	assert.NoError(t, validateTokenResult(res, now))
}

func TestValidateTokenResult_ReportedExpiryOverstatesClaim(t *testing.T) {
	now := time.Now()
	res := models.TokenResult{
		AccessToken: makeJWT(t, map[string]any{"exp": now.Add(time.Hour).Unix()}),
		ExpiresOn:   now.Add(2 * time.Hour),
	}

	err := validateTokenResult(res, now)

	assert.True(t, autherr.Is(err, autherr.CodeTokenInvalid))
}

func TestValidateTokenResult_SlackTolerated(t *testing.T) {
	now := time.Now()
	exp := now.Add(time.Hour)
	res := models.TokenResult{
		AccessToken: makeJWT(t, map[string]any{"exp": exp.Unix()}),
		ExpiresOn:   exp.Add(expiryClaimSlack - time.Minute),
	}

	assert.NoError(t, validateTokenResult(res, now))
}

func TestValidateTokenResult_JWTWithoutExpClaim(t *testing.T) {
	res := models.TokenResult{
		AccessToken: makeJWT(t, map[string]any{"sub": "user"}),
		ExpiresOn:   time.Now().Add(time.Hour),
	}

	assert.NoError(t, validateTokenResult(res, time.Now()))
}
