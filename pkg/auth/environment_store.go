package auth

import (
	"context"
	"os"
	"strings"
)

const cookieEnv = "REDNOTE_COOKIES"

// EnvironmentStore reads a jar from REDNOTE_COOKIES, formatted like a
// Cookie request header ("a=1; b=2"). It is read-only and meant for CI
// or containers where a jar was captured elsewhere.
type EnvironmentStore struct {
	domain string
}

// NewEnvironmentStore scopes parsed cookies to domain.
func NewEnvironmentStore(domain string) *EnvironmentStore {
	return &EnvironmentStore{domain: domain}
}

func (e *EnvironmentStore) Load(ctx context.Context) ([]Cookie, error) {
	return ParseCookieHeader(os.Getenv(cookieEnv), e.domain), nil
}

func (e *EnvironmentStore) Save(ctx context.Context, cookies []Cookie) error {
	return ErrReadOnlyStore
}

func (e *EnvironmentStore) Clear(ctx context.Context) error {
	return ErrReadOnlyStore
}

// ParseCookieHeader turns "a=1; b=2" into session cookies for domain.
func ParseCookieHeader(header, domain string) []Cookie {
	cookies := []Cookie{}
	for _, part := range strings.Split(header, ";") {
		name, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok || name == "" {
			continue
		}
		cookies = append(cookies, Cookie{
			Name:    strings.TrimSpace(name),
			Value:   strings.TrimSpace(value),
			Domain:  domain,
			Path:    "/",
			Expires: -1,
		})
	}
	return Normalize(cookies)
}
