package mockbackend

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/require"
)

func TestCreatingJwt(t *testing.T) {
	jc, err := NewHmacJwtCreator("test-secret", "elife-mock", time.Hour)
	require.NoError(t, err)

	token, err := jc.CreateToken(42)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := jc.ParseToken(token)
	require.NoError(t, err)
	require.Equal(t, 42, claims.UserID)
	require.Equal(t, "elife-mock", claims.Issuer)
	require.Equal(t, "42", claims.Subject)
	require.NotEmpty(t, claims.ID)
}

func TestDecodeUnverifiedJwtPayload(t *testing.T) {
	jc, err := NewHmacJwtCreator("test-secret", "elife-mock", time.Hour)
	require.NoError(t, err)

	token, err := jc.CreateToken(7)
	require.NoError(t, err)

	// clients read the payload without the secret
	claims := &Claims{}
	_, _, err = jwt.NewParser().ParseUnverified(token, claims)
	require.NoError(t, err)
	require.Equal(t, 7, claims.UserID)
	require.True(t, claims.ExpiresAt.After(time.Now()))
}

func TestParseTokenRejectsWrongSecret(t *testing.T) {
	issuer, err := NewHmacJwtCreator("secret-a", "elife-mock", time.Hour)
	require.NoError(t, err)
	verifier, err := NewHmacJwtCreator("secret-b", "elife-mock", time.Hour)
	require.NoError(t, err)

	token, err := issuer.CreateToken(1)
	require.NoError(t, err)

	_, err = verifier.ParseToken(token)
	require.Error(t, err)
}

func TestParseTokenRejectsExpired(t *testing.T) {
	jc, err := NewHmacJwtCreator("test-secret", "elife-mock", time.Minute)
	require.NoError(t, err)
	jc.now = func() time.Time { return time.Now().Add(-time.Hour) }

	token, err := jc.CreateToken(1)
	require.NoError(t, err)

	_, err = jc.ParseToken(token)
	require.Error(t, err)
}

func TestParseTokenRejectsOtherAlgorithms(t *testing.T) {
	jc, err := NewHmacJwtCreator("test-secret", "elife-mock", time.Hour)
	require.NoError(t, err)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: 1}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = jc.ParseToken(unsigned)
	require.Error(t, err)
}

func TestNewHmacJwtCreatorRequiresSecret(t *testing.T) {
	_, err := NewHmacJwtCreator("", "elife-mock", time.Hour)
	require.Error(t, err)
}
