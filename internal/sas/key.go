package sas

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strings"
)

// ValidatePrimaryKey checks that primaryKey is usable for signing. It
// returns nil when the key is valid, a *KeyDecodeError when it is not
// base64, or ErrKeyLengthInvalid when it decodes to nothing.
func ValidatePrimaryKey(primaryKey string) error {
	_, err := decodePrimaryKey(primaryKey)
	return err
}

// decodePrimaryKey accepts standard base64 either correctly padded or with
// no padding at all; hub portals hand out both forms.
func decodePrimaryKey(primaryKey string) ([]byte, error) {
	enc := base64.RawStdEncoding
	if strings.Contains(primaryKey, "=") {
		enc = base64.StdEncoding
	}
	raw, err := enc.DecodeString(primaryKey)
	if err != nil {
		return nil, &KeyDecodeError{Err: err}
	}
	if len(raw) == 0 {
		return nil, ErrKeyLengthInvalid
	}
	return raw, nil
}

func sign(key []byte, resource string, expiry int64) string {
	mac := hmac.New(sha256.New, key)
	_, _ = mac.Write([]byte(stringToSign(resource, expiry)))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
