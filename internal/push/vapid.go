package push

import (
	"bytes"
	"crypto/ecdh"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// GenerateVAPIDKeys generates a new ECDSA P-256 key pair for VAPID.
func GenerateVAPIDKeys() (publicKey, privateKey string, err error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return "", "", fmt.Errorf("generate ECDSA key: %w", err)
	}
	ecdhKey, err := key.ECDH()
	if err != nil {
		return "", "", fmt.Errorf("convert key: %w", err)
	}

	publicKey = base64.RawURLEncoding.EncodeToString(ecdhKey.PublicKey().Bytes())
	privateKey = base64.RawURLEncoding.EncodeToString(ecdhKey.Bytes())
	return publicKey, privateKey, nil
}

// NormalizeVAPIDKey trims whitespace and surrounding quotes, and unwraps a
// JSON object of the form {"private_key": "..."}.
func NormalizeVAPIDKey(v string) string {
	v = strings.TrimSpace(v)
	v = strings.Trim(v, `"'`)
	if strings.HasPrefix(v, "{") {
		var obj struct {
			PrivateKey string `json:"private_key"`
		}
		if err := json.Unmarshal([]byte(v), &obj); err == nil {
			v = strings.TrimSpace(obj.PrivateKey)
		}
	}
	return v
}

// VAPIDKeysMatch reports whether the public key is the one derived from the
// private key.
func VAPIDKeysMatch(publicKey, privateKey string) (bool, error) {
	priv, err := decodeKey(privateKey)
	if err != nil {
		return false, fmt.Errorf("decode private key: %w", err)
	}
	pub, err := decodeKey(publicKey)
	if err != nil {
		return false, fmt.Errorf("decode public key: %w", err)
	}
	key, err := ecdh.P256().NewPrivateKey(priv)
	if err != nil {
		return false, fmt.Errorf("parse private key: %w", err)
	}
	return bytes.Equal(key.PublicKey().Bytes(), pub), nil
}

// decodeKey accepts base64url or standard base64, padded or not.
func decodeKey(s string) ([]byte, error) {
	s = strings.TrimRight(strings.TrimSpace(s), "=")
	s = strings.NewReplacer("+", "-", "/", "_").Replace(s)
	return base64.RawURLEncoding.DecodeString(s)
}
