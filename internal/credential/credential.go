// Package credential supplies the upstream provider API key to the
// integrations. Keys are resolved lazily and at most once per process.
package credential

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// ErrMissing reports that no API key is configured.
var ErrMissing = errors.New("credential: api key is not configured")

// Source resolves an API key.
type Source interface {
	Resolve(ctx context.Context) (string, error)
}

// TokenGetter reads a token from a parameter store.
type TokenGetter interface {
	GetToken(ctx context.Context, name string) (string, error)
}

type staticSource string

func (s staticSource) Resolve(context.Context) (string, error) {
	return string(s), nil
}

// Static returns a Source for a key already known at startup, typically read
// from the environment. An empty key is rejected immediately.
func Static(key string) (Source, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, ErrMissing
	}
	return staticSource(key), nil
}

// ParamStoreSource fetches the key from a parameter store on first use and
// caches the result for the lifetime of the process. A lookup cut short by its
// context is not cached; the next call tries again.
type ParamStoreSource struct {
	getter TokenGetter
	name   string

	mu   sync.Mutex
	done bool
	key  string
	err  error
}

// FromParamStore returns a Source backed by the named parameter.
func FromParamStore(getter TokenGetter, name string) (*ParamStoreSource, error) {
	if getter == nil {
		return nil, errors.New("credential: token getter must not be nil")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrMissing
	}
	return &ParamStoreSource{getter: getter, name: name}, nil
}

func (s *ParamStoreSource) Resolve(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return s.key, s.err
	}

	key, err := s.getter.GetToken(ctx, s.name)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "", fmt.Errorf("credential: %s: %w", s.name, err)
		}
		s.err = fmt.Errorf("%w: %s: %w", ErrMissing, s.name, err)
	} else {
		s.key = key
	}
	s.done = true
	return s.key, s.err
}
