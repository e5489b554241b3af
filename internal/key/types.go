package key

import (
	"context"
	"errors"

	"github.com/zarvd/iothub-sas-signer/internal/sas"
)

var ErrValidityTooLong = errors.New("requested validity exceeds the configured maximum")

// Request describes one token to issue. Policy applies to service tokens
// only and falls back to the issuer's key name when empty.
type Request struct {
	Kind      string
	DeviceID  string
	Policy    string
	DaysValid int
}

const (
	KindDevice  = "device"
	KindService = "service"
)

// StaticKey is a validated primary key together with the name of the shared
// access policy it belongs to.
type StaticKey struct {
	PrimaryKey string
	KeyName    string
}

type Issuer interface {
	Issue(ctx context.Context, req Request) (*sas.Token, error)
	Hub() string
	KeyName() string
	MaxDaysValid() int
}
