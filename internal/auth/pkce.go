package auth

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"golang.org/x/oauth2"
)

// randomAlphabet is the character set for random strings. Alphanumeric only,
// which keeps the output valid both as a PKCE verifier (RFC 7636 §4.1) and as
// a URL query value without escaping.
const randomAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// verifierLength is the PKCE verifier length. RFC 7636 allows 43-128; 64
// gives a comfortable margin over the minimum.
const verifierLength = 64

// GenerateRandomString returns a string of length characters drawn from the
// alphanumeric alphabet using crypto/rand. rand.Int avoids modulo bias.
func GenerateRandomString(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("auth: random string length must be positive, got %d", length)
	}
	max := big.NewInt(int64(len(randomAlphabet)))
	out := make([]byte, length)
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("auth: rand read: %w", err)
		}
		out[i] = randomAlphabet[n.Int64()]
	}
	return string(out), nil
}

// PKCEChallenge is a verifier/challenge pair for one authorization attempt.
type PKCEChallenge struct {
	Verifier  string
	Challenge string
}

// GeneratePKCEChallenge generates a fresh PKCE pair. The challenge is
// base64url(SHA-256(verifier)) without padding, per RFC 7636 S256.
func GeneratePKCEChallenge() (PKCEChallenge, error) {
	verifier, err := GenerateRandomString(verifierLength)
	if err != nil {
		return PKCEChallenge{}, err
	}
	return PKCEChallenge{
		Verifier:  verifier,
		Challenge: GenerateCodeChallenge(verifier),
	}, nil
}

// GenerateCodeChallenge computes the S256 challenge for a verifier. Pure
// function: same verifier, same challenge.
func GenerateCodeChallenge(verifier string) string {
	return oauth2.S256ChallengeFromVerifier(verifier)
}
