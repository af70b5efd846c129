package providersdk

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseCallbackFragment(t *testing.T) {
	t.Parallel()

	t.Run("access and refresh token", func(t *testing.T) {
		pair, err := ParseCallbackFragment("access_token=AAA&refresh_token=BBB")
		require.NoError(t, err)
		require.Equal(t, "AAA", pair.AccessToken)
		require.Equal(t, "BBB", pair.RefreshToken)
	})

	t.Run("pair order does not matter", func(t *testing.T) {
		pair, err := ParseCallbackFragment("refresh_token=BBB&access_token=AAA")
		require.NoError(t, err)
		require.Equal(t, "AAA", pair.AccessToken)
		require.Equal(t, "BBB", pair.RefreshToken)
	})

	t.Run("refresh token optional", func(t *testing.T) {
		pair, err := ParseCallbackFragment("access_token=AAA&token_type=bearer")
		require.NoError(t, err)
		require.Equal(t, "AAA", pair.AccessToken)
		require.Empty(t, pair.RefreshToken)
	})

	t.Run("expires_in read when present", func(t *testing.T) {
		pair, err := ParseCallbackFragment("access_token=AAA&expires_in=3600")
		require.NoError(t, err)
		require.Equal(t, 3600, pair.ExpiresIn)
	})

	t.Run("missing access_token", func(t *testing.T) {
		_, err := ParseCallbackFragment("refresh_token=BBB")
		require.ErrorIs(t, err, ErrNoAccessToken)
	})

	t.Run("empty fragment", func(t *testing.T) {
		_, err := ParseCallbackFragment("")
		require.ErrorIs(t, err, ErrNoAccessToken)
	})

	t.Run("provider error pair", func(t *testing.T) {
		_, err := ParseCallbackFragment("error=access_denied&error_description=User+denied+access")
		require.Error(t, err)

		var perr *ProviderError
		require.ErrorAs(t, err, &perr)
		require.Equal(t, "access_denied", perr.Code)
		require.Equal(t, "User denied access", perr.Description)
	})

	t.Run("malformed pairs skipped", func(t *testing.T) {
		pair, err := ParseCallbackFragment("junk&=nothing&access_token=AAA")
		require.NoError(t, err)
		require.Equal(t, "AAA", pair.AccessToken)
	})
}

func TestParseCallback(t *testing.T) {
	t.Parallel()

	t.Run("tokens in fragment", func(t *testing.T) {
		pair, err := ParseCallback("parley://auth/callback#access_token=AAA&refresh_token=BBB")
		require.NoError(t, err)
		require.Equal(t, "AAA", pair.AccessToken)
		require.Equal(t, "BBB", pair.RefreshToken)
	})

	t.Run("tokens re-delivered as query", func(t *testing.T) {
		pair, err := ParseCallback("http://127.0.0.1:4317/auth/complete?access_token=AAA&refresh_token=BBB")
		require.NoError(t, err)
		require.Equal(t, "AAA", pair.AccessToken)
		require.Equal(t, "BBB", pair.RefreshToken)
	})

	t.Run("unparseable URL", func(t *testing.T) {
		_, err := ParseCallback("://bad")
		require.Error(t, err)
	})
}
