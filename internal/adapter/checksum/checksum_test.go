package checksum

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stagehand/internal/domain"
)

const (
	helloSHA256     = "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"
	helloSHA512     = "9b71d224bd62f3785d96d46ad3ea3d73319bfbc2890caadae2dff72519673ca72323c3d99ba5c11d7c7acc6e14b8c5da0c4663475c2e5c3adef46f73bcdec043"
	helloSHA512B64  = "m3HSJL1i83hdltRq0+o9czGb+8KJDKra4t/3JRlnPKcjI8PZm6XBHXx6zG4UuMXaDEZjR1wuXDre9G9zvN7AQw=="
	helloBLAKE2b256 = "324dcf027dd4a30a932c441f365a25e86b173defa4b8e58948253471b81b72cf"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "hello.txt")
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestFile(t *testing.T) {
	p := writeFile(t, "hello")

	tests := map[string]string{
		SHA256:     helloSHA256,
		SHA512:     helloSHA512,
		"SHA-512":  helloSHA512,
		BLAKE2b256: helloBLAKE2b256,
	}
	for alg, want := range tests {
		got, err := File(p, alg)
		require.NoError(t, err, alg)
		assert.Equal(t, want, got, alg)
	}
}

func TestFile_UnsupportedAlgorithm(t *testing.T) {
	p := writeFile(t, "hello")
	_, err := File(p, "md5")
	require.ErrorIs(t, err, domain.ErrUnsupportedAlgorithm)
	assert.Contains(t, err.Error(), "sha512")
}

func TestFile_Missing(t *testing.T) {
	_, err := File(filepath.Join(t.TempDir(), "nope"), SHA256)
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestNormalize(t *testing.T) {
	got, err := Normalize(strings.ToUpper(helloSHA256), SHA256)
	require.NoError(t, err)
	assert.Equal(t, helloSHA256, got)

	got, err = Normalize(helloSHA512B64, SHA512)
	require.NoError(t, err)
	assert.Equal(t, helloSHA512, got)

	_, err = Normalize("deadbeef", SHA512)
	assert.Error(t, err)

	_, err = Normalize(helloSHA256, SHA512)
	assert.Error(t, err, "sha256 digest is the wrong length for sha512")
}

func TestVerify(t *testing.T) {
	p := writeFile(t, "hello")

	got, err := Verify(p, SHA512, helloSHA512B64)
	require.NoError(t, err)
	assert.Equal(t, helloSHA512, got)

	wrong := strings.Repeat("0", 128)
	got, err = Verify(p, SHA512, wrong)
	require.ErrorIs(t, err, domain.ErrIntegrity)
	assert.Equal(t, helloSHA512, got)

	var ie *domain.IntegrityError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, wrong, ie.Expected)
	assert.Equal(t, helloSHA512, ie.Actual)
	assert.Equal(t, SHA512, ie.Algorithm)
}

func TestAlgorithmsSorted(t *testing.T) {
	algs := Algorithms()
	assert.Contains(t, algs, SHA512)
	assert.Contains(t, algs, BLAKE2b512)
	assert.IsIncreasing(t, algs)
}

func TestCanonical(t *testing.T) {
	assert.Equal(t, SHA256, Canonical(" SHA-256 "))
	assert.Equal(t, BLAKE2b512, Canonical("blake2b"))
	assert.Equal(t, SHA512, Canonical("sha512"))
}
