package auth

import (
	"context"
	"errors"
	"fmt"
)

// ChainStore tries several stores in order: Load returns the first
// non-empty jar, Save writes to the first store that accepts it, and Clear
// clears every store.
type ChainStore struct {
	stores []CookieStore
}

// NewChainStore builds a fallback chain. Nil stores are skipped.
func NewChainStore(stores ...CookieStore) *ChainStore {
	c := &ChainStore{}
	for _, s := range stores {
		if s != nil {
			c.stores = append(c.stores, s)
		}
	}
	return c
}

func (c *ChainStore) Load(ctx context.Context) ([]Cookie, error) {
	var errs []error
	for _, s := range c.stores {
		cookies, err := s.Load(ctx)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if len(cookies) > 0 {
			return cookies, nil
		}
	}
	if len(errs) == len(c.stores) && len(errs) > 0 {
		return nil, fmt.Errorf("failed to load cookies: %w", errors.Join(errs...))
	}
	return []Cookie{}, nil
}

func (c *ChainStore) Save(ctx context.Context, cookies []Cookie) error {
	var errs []error
	for _, s := range c.stores {
		err := s.Save(ctx, cookies)
		if err == nil {
			return nil
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return ErrStoreUnavailable
	}
	return fmt.Errorf("failed to save cookies: %w", errors.Join(errs...))
}

func (c *ChainStore) Clear(ctx context.Context) error {
	var errs []error
	for _, s := range c.stores {
		if err := s.Clear(ctx); err != nil && !errors.Is(err, ErrReadOnlyStore) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
