// Package checksum computes and compares file digests.
package checksum

import (
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"sort"
	"strings"

	"golang.org/x/crypto/blake2b"

	"stagehand/internal/domain"
)

const (
	SHA1       = "sha1"
	SHA256     = "sha256"
	SHA384     = "sha384"
	SHA512     = "sha512"
	BLAKE2b256 = "blake2b-256"
	BLAKE2b512 = "blake2b-512"
)

var constructors = map[string]func() hash.Hash{
	SHA1:   sha1.New,
	SHA256: sha256.New,
	SHA384: sha512.New384,
	SHA512: sha512.New,
	BLAKE2b256: func() hash.Hash {
		h, _ := blake2b.New256(nil)
		return h
	},
	BLAKE2b512: func() hash.Hash {
		h, _ := blake2b.New512(nil)
		return h
	},
}

// Algorithms lists the supported algorithm names, sorted.
func Algorithms() []string {
	names := make([]string, 0, len(constructors))
	for name := range constructors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Canonical lower-cases an algorithm name and accepts a few common spellings
// ("SHA-512", "blake2b" for blake2b-512).
func Canonical(algorithm string) string {
	a := strings.ToLower(strings.TrimSpace(algorithm))
	switch a {
	case "sha-1":
		return SHA1
	case "sha-256":
		return SHA256
	case "sha-384":
		return SHA384
	case "sha-512":
		return SHA512
	case "blake2b", "b2":
		return BLAKE2b512
	}
	return a
}

// New returns a fresh hash for algorithm.
func New(algorithm string) (hash.Hash, error) {
	ctor, ok := constructors[Canonical(algorithm)]
	if !ok {
		return nil, fmt.Errorf("%w: %q (supported: %s)", domain.ErrUnsupportedAlgorithm, algorithm, strings.Join(Algorithms(), ", "))
	}
	return ctor(), nil
}

// Size returns the digest length in bytes for algorithm.
func Size(algorithm string) (int, error) {
	h, err := New(algorithm)
	if err != nil {
		return 0, err
	}
	return h.Size(), nil
}

// Reader hashes everything readable from r and returns the lowercase hex digest.
func Reader(r io.Reader, algorithm string) (string, error) {
	h, err := New(algorithm)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// File hashes the file at path.
func File(path, algorithm string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return Reader(f, algorithm)
}

// Normalize converts a digest written as hex (any case) or standard base64
// into lowercase hex, checking its length against algorithm.
func Normalize(value, algorithm string) (string, error) {
	size, err := Size(algorithm)
	if err != nil {
		return "", err
	}
	v := strings.TrimSpace(value)

	if len(v) == size*2 {
		if raw, err := hex.DecodeString(v); err == nil {
			return hex.EncodeToString(raw), nil
		}
	}
	if raw, err := base64.StdEncoding.DecodeString(v); err == nil && len(raw) == size {
		return hex.EncodeToString(raw), nil
	}
	return "", fmt.Errorf("invalid %s digest %q: expected %d hex characters or base64", Canonical(algorithm), value, size*2)
}

// Verify hashes the file at path and compares it to expected. It returns
// the actual digest and a *domain.IntegrityError on mismatch.
func Verify(path, algorithm, expected string) (string, error) {
	want, err := Normalize(expected, algorithm)
	if err != nil {
		return "", err
	}
	got, err := File(path, algorithm)
	if err != nil {
		return "", err
	}
	if got != want {
		return got, &domain.IntegrityError{
			Path:      path,
			Algorithm: Canonical(algorithm),
			Expected:  want,
			Actual:    got,
		}
	}
	return got, nil
}
