package auth

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Cookie is one persisted credential record. The JSON layout matches the
// cookie export format used by browser automation tools, so jars exported
// from a browser can be imported directly.
type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires"` // unix seconds, -1 for session cookies
	HTTPOnly bool    `json:"httpOnly"`
	Secure   bool    `json:"secure"`
	SameSite string  `json:"sameSite,omitempty"`
}

// Key returns the identity of a cookie in a jar.
func (c Cookie) Key() string {
	return c.Name + "\x00" + c.Domain + "\x00" + c.Path
}

// IsSession reports whether the cookie has no expiry.
func (c Cookie) IsSession() bool {
	return c.Expires <= 0
}

// Expired reports whether a persistent cookie has passed its expiry.
func (c Cookie) Expired(now time.Time) bool {
	if c.IsSession() {
		return false
	}
	return float64(now.Unix()) >= c.Expires
}

// CookieStore persists a whole cookie jar. Load returns an empty slice and
// no error when nothing has been saved. Save replaces the whole jar.
type CookieStore interface {
	Load(ctx context.Context) ([]Cookie, error)
	Save(ctx context.Context, cookies []Cookie) error
	Clear(ctx context.Context) error
}

// Errors
var (
	ErrStoreUnavailable = errors.New("cookie store unavailable")
	ErrReadOnlyStore    = errors.New("cookie store is read-only")
)

// Normalize returns cookies unique by (name, domain, path). A later
// duplicate overwrites the earlier one but keeps the earlier position.
// Records are otherwise kept as they are.
func Normalize(cookies []Cookie) []Cookie {
	out := make([]Cookie, 0, len(cookies))
	index := make(map[string]int, len(cookies))
	for _, c := range cookies {
		if i, ok := index[c.Key()]; ok {
			out[i] = c
			continue
		}
		index[c.Key()] = len(out)
		out = append(out, c)
	}
	return out
}

// Sanitize returns a copy of the jar with values masked, for display.
func Sanitize(cookies []Cookie) []Cookie {
	out := make([]Cookie, len(cookies))
	for i, c := range cookies {
		c.Value = maskString(c.Value)
		out[i] = c
	}
	return out
}

// maskString masks all but the first 4 and last 4 characters of a string
func maskString(s string) string {
	if len(s) <= 8 {
		return "********"
	}
	return s[:4] + "..." + s[len(s)-4:]
}

// writeFileAtomic writes data next to path and renames it into place.
func writeFileAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to replace file: %w", err)
	}
	return nil
}

func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
