// Package credential loads the validator identity and renders its private
// key as PEM text.
package credential

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"regexp"
	"strings"

	"golang.org/x/crypto/ssh"
)

// ValidatorIdentity is the credential a new node uses to register itself the
// first time. A nil *ValidatorIdentity means no validator is configured.
type ValidatorIdentity struct {
	Name string
	Key  crypto.PrivateKey
}

// Complete reports whether both name and key are present.
func (v *ValidatorIdentity) Complete() bool {
	return v != nil && strings.TrimSpace(v.Name) != "" && v.Key != nil
}

// ParseKey accepts PKCS#1, PKCS#8, SEC 1 and OpenSSH private keys.
func ParseKey(pemBytes []byte) (crypto.PrivateKey, error) {
	key, err := ssh.ParseRawPrivateKey(pemBytes)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	if k, ok := key.(*ed25519.PrivateKey); ok {
		return *k, nil
	}
	return key, nil
}

// LoadKeyFile reads and parses a private key file.
func LoadKeyFile(path string) (crypto.PrivateKey, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read private key %s: %w", path, err)
	}
	key, err := ParseKey(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return key, nil
}

// PEM encodes key the way the provisioning agent expects: RSA keys as
// PKCS#1 "RSA PRIVATE KEY", EC keys as SEC 1, anything else as PKCS#8.
func PEM(key crypto.PrivateKey) (string, error) {
	var block *pem.Block
	switch k := key.(type) {
	case *rsa.PrivateKey:
		block = &pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(k)}
	case *ecdsa.PrivateKey:
		der, err := x509.MarshalECPrivateKey(k)
		if err != nil {
			return "", fmt.Errorf("marshal ec key: %w", err)
		}
		block = &pem.Block{Type: "EC PRIVATE KEY", Bytes: der}
	case nil:
		return "", fmt.Errorf("no private key")
	default:
		der, err := x509.MarshalPKCS8PrivateKey(key)
		if err != nil {
			return "", fmt.Errorf("marshal pkcs8 key: %w", err)
		}
		block = &pem.Block{Type: "PRIVATE KEY", Bytes: der}
	}
	return string(pem.EncodeToMemory(block)), nil
}

var newLine = regexp.MustCompile(`\r\n|\n`)

// Lines splits text on CRLF or LF. A terminator at the very end does not
// produce an empty last element.
func Lines(text string) []string {
	if text == "" {
		return nil
	}
	lines := newLine.Split(text, -1)
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
