package cryptox

import (
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// cheap parameters keep the suite fast
func testHasher() *Argon2Hasher {
	return NewArgon2Hasher(Params{Time: 1, Memory: 8 * 1024, Threads: 1})
}

func TestDeriveKey_Deterministic(t *testing.T) {
	h := NewArgon2Hasher(DefaultParams)
	password := []byte("secret-password")
	salt := []byte("fixed-salt")

	key1 := h.DeriveKey(password, salt)
	key2 := h.DeriveKey(password, salt)

	assert.Equal(t, key1, key2)
	assert.Equal(t, "34f7a1c64df63ab1ad5b5ee06e64db5713b35f81839823304db63e8e5e6a6a39", hex.EncodeToString(key1))
}

func TestHash_Format(t *testing.T) {
	h := testHasher()

	enc, err := h.Hash("pw1")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(enc, "$argon2id$v=19$m=8192,t=1,p=1$"), enc)
	assert.Len(t, strings.Split(enc, "$"), 6)
}

func TestHash_SaltsDiffer(t *testing.T) {
	h := testHasher()

	a, err := h.Hash("pw1")
	require.NoError(t, err)
	b, err := h.Hash("pw1")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestVerify(t *testing.T) {
	h := testHasher()
	enc, err := h.Hash("pw1")
	require.NoError(t, err)

	ok, err := h.Verify("pw1", enc)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = h.Verify("pw2", enc)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerify_UsesEmbeddedParams(t *testing.T) {
	enc, err := testHasher().Hash("pw1")
	require.NoError(t, err)

	ok, err := NewArgon2Hasher(DefaultParams).Verify("pw1", enc)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVerify_Malformed(t *testing.T) {
	h := testHasher()

	for _, enc := range []string{
		"",
		"plain-sha1",
		"$argon2i$v=19$m=8192,t=1,p=1$c2FsdA$a2V5",
		"$argon2id$v=18$m=8192,t=1,p=1$c2FsdA$a2V5",
		"$argon2id$v=19$m=x,t=1,p=1$c2FsdA$a2V5",
		"$argon2id$v=19$m=8192,t=1,p=1$!!$a2V5",
		"$argon2id$v=19$m=8192,t=1,p=1$c2FsdA$",
	} {
		_, err := h.Verify("pw1", enc)
		assert.ErrorIs(t, err, ErrMalformedHash, enc)
	}
}
