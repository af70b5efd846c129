package cryptox

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSealOpenRoundTrip(t *testing.T) {
	ResetMasterKeyForTesting()
	t.Setenv("PARLEY_MASTER_KEY", "test-master-key")

	plaintext := []byte("refresh-token-material")

	sealed, err := Seal(plaintext)
	require.NoError(t, err)
	require.NotEqual(t, plaintext, sealed)

	opened, err := Open(sealed)
	require.NoError(t, err)
	require.Equal(t, plaintext, opened)
}

func TestSealUniqueNonces(t *testing.T) {
	ResetMasterKeyForTesting()
	t.Setenv("PARLEY_MASTER_KEY", "test-master-key")

	a, err := Seal([]byte("same input"))
	require.NoError(t, err)
	b, err := Seal([]byte("same input"))
	require.NoError(t, err)

	// Random nonce per call means identical plaintexts never produce
	// identical ciphertexts.
	require.NotEqual(t, a, b)
}

func TestOpenRejectsTamperedData(t *testing.T) {
	ResetMasterKeyForTesting()
	t.Setenv("PARLEY_MASTER_KEY", "test-master-key")

	sealed, err := Seal([]byte("access-token"))
	require.NoError(t, err)

	sealed[len(sealed)-1] ^= 0xff
	_, err = Open(sealed)
	require.Error(t, err)
}

func TestOpenRejectsShortCiphertext(t *testing.T) {
	ResetMasterKeyForTesting()
	t.Setenv("PARLEY_MASTER_KEY", "test-master-key")

	_, err := Open([]byte("short"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "too short")
}
