package services

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// CredentialIssuer produces temporary trip credentials.
type CredentialIssuer interface {
	Issue() (username, password string, err error)
}

// RandomCredentialIssuer draws credentials from crypto/rand: a 64-bit
// username suffix and a 96-bit password.
type RandomCredentialIssuer struct{}

func (RandomCredentialIssuer) Issue() (string, string, error) {
	user, err := randomHex(8)
	if err != nil {
		return "", "", err
	}
	pass, err := randomHex(12)
	if err != nil {
		return "", "", err
	}
	return "temp_" + user, pass, nil
}

func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
