// Package accountauth implements account credential hashing and the
// signed session cookie described in §6: PBKDF2-HMAC-SHA1 password
// hashing, and an HMAC-SHA1-signed cookie carrying the account id and
// username so re-authentication doesn't need a database round trip.
package accountauth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/crypto/pbkdf2"
)

const (
	pbkdf2Iterations = 4096
	pbkdf2KeyLen     = 32
	saltLen          = 16
)

// HashPassword derives a PBKDF2-HMAC-SHA1 key from password with a fresh
// random salt, returning both base64-encoded for storage.
func HashPassword(password string) (hash, salt string, err error) {
	saltBytes := make([]byte, saltLen)
	if _, err := rand.Read(saltBytes); err != nil {
		return "", "", fmt.Errorf("generate salt: %w", err)
	}
	derived := pbkdf2.Key([]byte(password), saltBytes, pbkdf2Iterations, pbkdf2KeyLen, sha1.New)
	return base64.StdEncoding.EncodeToString(derived), base64.StdEncoding.EncodeToString(saltBytes), nil
}

// VerifyPassword reports whether password matches a previously stored
// hash/salt pair, in constant time.
func VerifyPassword(password, hash, salt string) (bool, error) {
	saltBytes, err := base64.StdEncoding.DecodeString(salt)
	if err != nil {
		return false, fmt.Errorf("decode salt: %w", err)
	}
	wantBytes, err := base64.StdEncoding.DecodeString(hash)
	if err != nil {
		return false, fmt.Errorf("decode hash: %w", err)
	}
	got := pbkdf2.Key([]byte(password), saltBytes, pbkdf2Iterations, pbkdf2KeyLen, sha1.New)
	return subtle.ConstantTimeCompare(got, wantBytes) == 1, nil
}

// ValidUsername enforces §6's account charset rule: ASCII letters, digits,
// and underscore, 3-20 characters.
func ValidUsername(u string) bool {
	if len(u) < 3 || len(u) > 20 {
		return false
	}
	for _, r := range u {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '_') {
			return false
		}
	}
	return true
}

// ValidPassword enforces §6's password charset rule: 8-40 characters,
// letters, digits, punctuation, or space, but never a newline.
func ValidPassword(p string) bool {
	if len(p) < 8 || len(p) > 40 {
		return false
	}
	for _, r := range p {
		if r == '\n' || r == '\r' {
			return false
		}
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && !unicode.IsPunct(r) && !unicode.IsSymbol(r) && r != ' ' {
			return false
		}
	}
	return true
}

// Signer issues and verifies session cookies with a process-local HMAC
// key (regenerated each process start, per §6: losing it just means every
// connected client re-authenticates).
type Signer struct {
	key []byte
}

// NewSigner generates a fresh random 32-byte signing key.
func NewSigner() (*Signer, error) {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate signing key: %w", err)
	}
	return &Signer{key: key}, nil
}

// NewSignerFromKey builds a Signer from an existing key (loaded from
// disk, so restarts can keep issued cookies valid — see cmd/mudctl
// keygen).
func NewSignerFromKey(key []byte) *Signer {
	return &Signer{key: append([]byte(nil), key...)}
}

// Issue produces the cookie value: base64("accountID|username|sig"),
// where sig is base64(HMAC-SHA1("accountID|username")).
func (s *Signer) Issue(accountID int64, username string) string {
	payload := fmt.Sprintf("%d|%s", accountID, username)
	mac := hmac.New(sha1.New, s.key)
	mac.Write([]byte(payload))
	sig := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return base64.StdEncoding.EncodeToString([]byte(payload + "|" + sig))
}

// Verify decodes and checks a cookie value produced by Issue.
func (s *Signer) Verify(cookie string) (accountID int64, username string, ok bool) {
	raw, err := base64.StdEncoding.DecodeString(cookie)
	if err != nil {
		return 0, "", false
	}
	parts := strings.SplitN(string(raw), "|", 3)
	if len(parts) != 3 {
		return 0, "", false
	}
	id, sig := parts[0], parts[2]
	payload := parts[0] + "|" + parts[1]
	mac := hmac.New(sha1.New, s.key)
	mac.Write([]byte(payload))
	want := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	if subtle.ConstantTimeCompare([]byte(sig), []byte(want)) != 1 {
		return 0, "", false
	}
	accountIDNum, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return 0, "", false
	}
	return accountIDNum, parts[1], true
}
