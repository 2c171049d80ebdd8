package parcoursup

import (
	"context"
	"crypto/sha256"
	"time"

	"parcoursup-client/internal/components/telemetry"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// ClientFactory creates an authenticated Client for a set of credentials.
type ClientFactory func(ctx context.Context, username, password string) (*Client, error)

// NewClientFactory returns a ClientFactory calling NewClient with `base`, only the
// credentials are replaced.
func NewClientFactory(base ClientOptions) ClientFactory {
	return func(ctx context.Context, username, password string) (*Client, error) {
		opts := base
		opts.Username = username
		opts.Password = password
		return NewClient(ctx, opts)
	}
}

type cachedClient struct {
	client *Client
	digest [sha256.Size]byte
}

// SessionCache keeps authenticated clients around for a while so logging into both
// channels does not have to happen on every use of an account.
type SessionCache struct {
	cache   *expirable.LRU[string, cachedClient]
	factory ClientFactory
	tel     telemetry.API
}

// NewSessionCache creates a SessionCache holding at most `size` clients for `ttl` each.
// A nil factory logs in with the default options, a nil `tel` reports through slog.
func NewSessionCache(size int, ttl time.Duration, factory ClientFactory, tel telemetry.API) *SessionCache {
	if factory == nil {
		factory = NewClientFactory(ClientOptions{})
	}
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &SessionCache{
		cache:   expirable.NewLRU[string, cachedClient](size, nil, ttl),
		factory: factory,
		tel:     scopedTelemetry(tel),
	}
}

// Get returns the cached client of `username`, logging in again when there is none,
// when it expired or when `password` differs from the one it was created with.
func (s *SessionCache) Get(ctx context.Context, username, password string) (*Client, error) {
	digest := sha256.Sum256([]byte(password))

	cached, hit := s.cache.Get(username)
	if hit && cached.digest == digest {
		return cached.client, nil
	}

	client, err := s.factory(ctx, username, password)
	if err != nil {
		s.tel.ReportBroken(report_session_cache_get, err)
		return nil, err
	}
	s.cache.Add(username, cachedClient{client: client, digest: digest})
	s.tel.ReportCount(report_session_cache_get, int64(s.cache.Len()))
	return client, nil
}

// Evict forgets the client of `username`.
func (s *SessionCache) Evict(username string) {
	s.cache.Remove(username)
}
