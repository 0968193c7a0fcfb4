package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

const (
	keyringService = "rednote"
	keyringPrefix  = "cookies_"
)

// KeyringStore keeps the cookie jar in the system keychain, one entry per
// profile.
type KeyringStore struct {
	profile string
}

// NewKeyringStore probes the keychain and returns ErrStoreUnavailable
// when it cannot be used.
func NewKeyringStore(profile string) (*KeyringStore, error) {
	const probe = "availability_probe"
	if err := keyring.Set(keyringService, probe, "ok"); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	_ = keyring.Delete(keyringService, probe)

	if profile == "" {
		profile = "default"
	}
	return &KeyringStore{profile: profile}, nil
}

func (k *KeyringStore) key() string {
	return keyringPrefix + k.profile
}

func (k *KeyringStore) Load(ctx context.Context) ([]Cookie, error) {
	data, err := keyring.Get(keyringService, k.key())
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return []Cookie{}, nil
		}
		return nil, fmt.Errorf("failed to read keyring: %w", err)
	}

	var cookies []Cookie
	if err := json.Unmarshal([]byte(data), &cookies); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cookies: %w", err)
	}
	if cookies == nil {
		cookies = []Cookie{}
	}
	return cookies, nil
}

func (k *KeyringStore) Save(ctx context.Context, cookies []Cookie) error {
	data, err := json.Marshal(Normalize(cookies))
	if err != nil {
		return fmt.Errorf("failed to marshal cookies: %w", err)
	}

	if err := keyring.Set(keyringService, k.key(), string(data)); err != nil {
		return fmt.Errorf("failed to store in keyring: %w", err)
	}
	return nil
}

func (k *KeyringStore) Clear(ctx context.Context) error {
	err := keyring.Delete(keyringService, k.key())
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("failed to delete from keyring: %w", err)
	}
	return nil
}
