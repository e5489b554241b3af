package sas

import (
	"crypto/subtle"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Parse splits a rendered token back into its fields. Fields may appear in
// any order; sr is kept exactly as rendered.
func Parse(s string) (*Token, error) {
	rest, ok := strings.CutPrefix(s, prefix)
	if !ok {
		return nil, fmt.Errorf("%w: missing %q prefix", ErrMalformedToken, strings.TrimSpace(prefix))
	}

	fields := make(map[string]string, 4)
	for _, pair := range strings.Split(rest, "&") {
		k, v, ok := strings.Cut(pair, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("%w: bad field %q", ErrMalformedToken, pair)
		}
		if _, dup := fields[k]; dup {
			return nil, fmt.Errorf("%w: duplicate field %q", ErrMalformedToken, k)
		}
		fields[k] = v
	}

	for _, name := range []string{"sr", "sig", "se"} {
		if fields[name] == "" {
			return nil, fmt.Errorf("%w: missing %s", ErrMalformedToken, name)
		}
	}

	sig, err := url.QueryUnescape(fields["sig"])
	if err != nil {
		return nil, fmt.Errorf("%w: sig: %v", ErrMalformedToken, err)
	}
	expiry, err := strconv.ParseInt(fields["se"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: se: %v", ErrMalformedToken, err)
	}
	keyName, err := url.QueryUnescape(fields["skn"])
	if err != nil {
		return nil, fmt.Errorf("%w: skn: %v", ErrMalformedToken, err)
	}

	return &Token{
		Resource:  fields["sr"],
		Expiry:    expiry,
		Signature: sig,
		KeyName:   keyName,
	}, nil
}

// Verify checks that token was signed with primaryKey and has not expired
// at now.
func Verify(token *Token, primaryKey string, now time.Time) error {
	key, err := decodePrimaryKey(primaryKey)
	if err != nil {
		return &PrimaryKeyInvalidError{Err: err}
	}
	expected := sign(key, token.Resource, token.Expiry)
	if subtle.ConstantTimeCompare([]byte(expected), []byte(token.Signature)) != 1 {
		return ErrSignatureMismatch
	}
	if token.Expiry < now.Unix() {
		return fmt.Errorf("%w at %s", ErrTokenExpired, token.ExpiresAt().Format(time.RFC3339))
	}
	return nil
}
