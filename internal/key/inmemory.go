package key

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/zarvd/iothub-sas-signer/internal/sas"
)

var _ Issuer = (*inMemoryIssuer)(nil)

type inMemoryIssuer struct {
	logger *slog.Logger

	hub          string
	static       *StaticKey
	maxDaysValid int
	builder      sas.Builder
}

func NewInMemoryIssuer(
	logger *slog.Logger,
	hub string,
	staticKey *StaticKey,
	maxDaysValid int,
) (Issuer, error) {
	k, err := newInMemoryIssuer(logger, hub, staticKey, maxDaysValid, time.Now)
	if err != nil {
		return nil, err
	}
	return k, nil
}

func newInMemoryIssuer(
	logger *slog.Logger,
	hub string,
	staticKey *StaticKey,
	maxDaysValid int,
	now func() time.Time,
) (*inMemoryIssuer, error) {
	if hub == "" {
		return nil, errors.New("hub name is required")
	}
	if staticKey == nil {
		return nil, errors.New("primary key is required")
	}
	if maxDaysValid <= 0 {
		return nil, fmt.Errorf("max days valid must be positive, got %d", maxDaysValid)
	}
	return &inMemoryIssuer{
		logger:       logger,
		hub:          hub,
		static:       staticKey,
		maxDaysValid: maxDaysValid,
		builder:      sas.Builder{Now: now},
	}, nil
}

func (s *inMemoryIssuer) Issue(ctx context.Context, req Request) (*sas.Token, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if req.DaysValid > s.maxDaysValid {
		return nil, fmt.Errorf("%w: %d > %d days", ErrValidityTooLong, req.DaysValid, s.maxDaysValid)
	}

	var kind sas.Kind
	switch req.Kind {
	case KindDevice:
		kind = sas.Device{ID: req.DeviceID}
	case KindService:
		policy := req.Policy
		if policy == "" {
			policy = s.static.KeyName
		}
		kind = sas.Service{Policy: policy}
	default:
		return nil, fmt.Errorf("unknown token kind %q", req.Kind)
	}

	token, err := s.builder.Create(kind, s.static.PrimaryKey, req.DaysValid, s.hub)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s token: %w", req.Kind, err)
	}

	s.logger.Debug("Issued token",
		slog.String("kind", req.Kind),
		slog.String("resource", token.Resource),
		slog.Time("expiry", token.ExpiresAt()),
	)
	return token, nil
}

func (s *inMemoryIssuer) Hub() string {
	return s.hub
}

func (s *inMemoryIssuer) KeyName() string {
	return s.static.KeyName
}

func (s *inMemoryIssuer) MaxDaysValid() int {
	return s.maxDaysValid
}
