package sas

import (
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	hubDomain = "azure-devices.net"
	prefix    = "SharedAccessSignature "
)

// Kind selects the resource a token is scoped to. It is implemented by
// Device and Service, in value or pointer form.
type Kind interface {
	// resource returns the resource string that gets signed, as it appears in sr.
	resource(hub string) (string, error)
	// keyName returns the skn value, or "" when the token carries none.
	keyName() string
}

// Device scopes a token to a single device identity.
type Device struct {
	ID string
}

func (d Device) resource(hub string) (string, error) {
	if d.ID == "" {
		return "", &MissingFieldError{Kind: "device", Field: "device id"}
	}
	return hubHost(hub) + "%2Fdevices%2F" + url.QueryEscape(d.ID), nil
}

func (Device) keyName() string { return "" }

// Service scopes a token to the hub-wide shared access policy. The policy
// travels as skn and is not part of the signed resource.
type Service struct {
	Policy string
}

func (s Service) resource(hub string) (string, error) {
	if s.Policy == "" {
		return "", &MissingFieldError{Kind: "service", Field: "policy name"}
	}
	return hubHost(hub), nil
}

// hubHost escapes hub so that sr never carries a raw token delimiter.
func hubHost(hub string) string {
	return url.QueryEscape(hub) + "." + hubDomain
}

func (s Service) keyName() string { return s.Policy }

// Token is a signed shared access signature.
type Token struct {
	Resource  string
	Expiry    int64
	Signature string // base64, not URL-escaped
	KeyName   string
}

// String renders the token in the form consumed by the hub.
func (t *Token) String() string {
	var b strings.Builder
	b.WriteString(prefix)
	b.WriteString("sr=")
	b.WriteString(t.Resource)
	b.WriteString("&sig=")
	b.WriteString(url.QueryEscape(t.Signature))
	b.WriteString("&se=")
	b.WriteString(strconv.FormatInt(t.Expiry, 10))
	if t.KeyName != "" {
		b.WriteString("&skn=")
		b.WriteString(url.QueryEscape(t.KeyName))
	}
	return b.String()
}

// ExpiresAt returns the expiry as a UTC time.
func (t *Token) ExpiresAt() time.Time {
	return time.Unix(t.Expiry, 0).UTC()
}

// Builder creates tokens. The zero value reads the wall clock.
type Builder struct {
	Now func() time.Time
}

// Create validates primaryKey, derives the resource for kind and signs it
// with an expiry daysValid calendar days from now. daysValid may be zero or
// negative.
func (b Builder) Create(kind Kind, primaryKey string, daysValid int, hub string) (*Token, error) {
	key, err := decodePrimaryKey(primaryKey)
	if err != nil {
		return nil, &PrimaryKeyInvalidError{Err: err}
	}
	if kind == nil {
		return nil, &MissingFieldError{Kind: "unknown", Field: "token kind"}
	}
	if hub == "" {
		return nil, &MissingFieldError{Kind: kindName(kind), Field: "hub name"}
	}
	resource, err := kind.resource(hub)
	if err != nil {
		return nil, err
	}

	expiry := b.now().UTC().AddDate(0, 0, daysValid).Unix()

	return &Token{
		Resource:  resource,
		Expiry:    expiry,
		Signature: sign(key, resource, expiry),
		KeyName:   kind.keyName(),
	}, nil
}

func (b Builder) now() time.Time {
	if b.Now == nil {
		return time.Now()
	}
	return b.Now()
}

// Create builds a token using the wall clock.
func Create(kind Kind, primaryKey string, daysValid int, hub string) (*Token, error) {
	return Builder{}.Create(kind, primaryKey, daysValid, hub)
}

func stringToSign(resource string, expiry int64) string {
	return resource + "\n" + strconv.FormatInt(expiry, 10)
}

func kindName(kind Kind) string {
	switch kind.(type) {
	case Device, *Device:
		return "device"
	case Service, *Service:
		return "service"
	}
	return "unknown"
}
