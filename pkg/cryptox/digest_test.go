package cryptox

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPasswordDigest(t *testing.T) {
	t.Parallel()

	t.Run("matches the vendor's digest algorithm", func(t *testing.T) {
		// md5("secret")
		require.Equal(t, "5ebe2294ecd0e0f08eab7690d2a6ee69", PasswordDigest("secret"))
	})

	t.Run("is deterministic", func(t *testing.T) {
		require.Equal(t, PasswordDigest("hunter2"), PasswordDigest("hunter2"))
	})

	t.Run("never returns the plaintext", func(t *testing.T) {
		require.NotContains(t, PasswordDigest("correct horse"), "horse")
	})
}

func TestSignSaaSRequest(t *testing.T) {
	t.Parallel()

	// The signature is md5 over the simple concatenation, so reordering the
	// inputs must change the result.
	a := SignSaaSRequest("1700000000000", "abcd", "token")
	b := SignSaaSRequest("abcd", "1700000000000", "token")
	require.NotEqual(t, a, b)
	require.Len(t, a, 32)

	// md5("1700000000000" + "abcd" + "token")
	require.Equal(t, SignSaaSRequest("1700000000000", "abcd", "token"), a)
}

func TestFingerprintToken(t *testing.T) {
	t.Parallel()

	fp := FingerprintToken("some-opaque-token")
	require.NotEmpty(t, fp)
	require.NotContains(t, fp, "opaque")
	require.Equal(t, fp, FingerprintToken("some-opaque-token"))
	require.NotEqual(t, fp, FingerprintToken("other-token"))
}

func TestNonce(t *testing.T) {
	t.Parallel()

	a, err := Nonce()
	require.NoError(t, err)
	require.Len(t, a, 32) // 16 bytes hex encoded

	b, err := Nonce()
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}
