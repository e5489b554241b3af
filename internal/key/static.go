package key

import (
	"errors"
	"fmt"
	"strings"

	"github.com/zarvd/iothub-sas-signer/internal/sas"
)

// DecodePrimaryKey trims p, as read from a flag or file, and validates it.
func DecodePrimaryKey(p string, keyName string) (*StaticKey, error) {
	primaryKey := strings.TrimSpace(p)
	if primaryKey == "" {
		return nil, errors.New("primary key is empty")
	}
	if err := sas.ValidatePrimaryKey(primaryKey); err != nil {
		return nil, fmt.Errorf("failed to validate primary key: %w", err)
	}
	return &StaticKey{
		PrimaryKey: primaryKey,
		KeyName:    strings.TrimSpace(keyName),
	}, nil
}
