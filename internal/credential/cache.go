package credential

import (
	"context"
	"errors"
	"sync"
	"time"

	"aircall-sync/internal/domain"
	"aircall-sync/internal/observability/logger"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// DefaultSafetyMargin is used when CacheConfig.Margin is zero.
const DefaultSafetyMargin = 60 * time.Second

// ErrEmptyToken is returned by a provider that answered without an access token.
var ErrEmptyToken = errors.New("authorization endpoint returned an empty access token")

// AuthProvider exchanges the long-lived refresh credential for a short-lived bearer credential.
type AuthProvider interface {
	Refresh(ctx context.Context) (domain.Credential, error)
}

// RefreshRecorder receives one observation per refresh attempt.
type RefreshRecorder interface {
	RecordRefresh(backend string, success bool, duration time.Duration)
}

// CacheConfig configures a Cache. Store, Logger and Recorder are optional.
type CacheConfig struct {
	Backend  string
	Provider AuthProvider
	Store    Store
	Margin   time.Duration
	Logger   *logger.Logger
	Recorder RefreshRecorder
	Now      func() time.Time
}

// Cache holds the bearer credential of one backend.
//
// Concurrent callers that find no usable credential share a single refresh.
// The cached credential is only replaced by a successful refresh, a load from
// the Store, or Invalidate/Reject.
type Cache struct {
	backend  string
	provider AuthProvider
	store    Store
	margin   time.Duration
	log      *logger.Logger
	recorder RefreshRecorder
	now      func() time.Time

	group singleflight.Group

	mu        sync.RWMutex
	current   domain.Credential
	skipStore bool
}

// NewCache creates a credential cache for one backend.
func NewCache(cfg CacheConfig) *Cache {
	c := &Cache{
		backend:  cfg.Backend,
		provider: cfg.Provider,
		store:    cfg.Store,
		margin:   cfg.Margin,
		log:      cfg.Logger,
		recorder: cfg.Recorder,
		now:      cfg.Now,
	}
	if c.margin <= 0 {
		c.margin = DefaultSafetyMargin
	}
	if c.log == nil {
		c.log = logger.Nop()
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c
}

// Backend returns the backend name this cache serves.
func (c *Cache) Backend() string {
	return c.backend
}

// GetValid returns a credential valid for at least the safety margin,
// refreshing it first when needed. Refresh failures surface as *domain.AuthError.
//
// The refresh itself is detached from ctx cancellation: a caller giving up
// must not fail the refresh for the other callers waiting on it.
func (c *Cache) GetValid(ctx context.Context) (domain.Credential, error) {
	if cred, ok := c.cached(); ok {
		return cred, nil
	}

	v, err, _ := c.group.Do("refresh", func() (interface{}, error) {
		return c.refresh(context.WithoutCancel(ctx))
	})
	if err != nil {
		return domain.Credential{}, err
	}
	return v.(domain.Credential), nil
}

// Invalidate drops the cached credential so the next GetValid refreshes.
// A persisted copy is ignored until the next successful refresh.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.current = domain.Credential{}
	c.skipStore = true
	c.mu.Unlock()
}

// Reject invalidates the cache only if token is still the cached one.
// Requests that were rejected with an already replaced token therefore reuse
// the new credential instead of forcing another refresh. The persisted copy is
// deleted when it holds the rejected token, so restarts and other replicas stop
// loading it.
func (c *Cache) Reject(ctx context.Context, token string) {
	c.mu.Lock()
	if c.current.Token != "" && c.current.Token != token {
		c.mu.Unlock()
		return
	}
	c.current = domain.Credential{}
	c.skipStore = true
	c.mu.Unlock()

	if c.store == nil || token == "" {
		return
	}
	persisted, found, err := c.store.Load(ctx, c.backend)
	if err == nil && found && persisted.Token == token {
		err = c.store.Delete(ctx, c.backend)
	}
	if err != nil {
		c.log.Warn(ctx, "failed to drop rejected credential from store",
			logger.Module("credential"),
			logger.Action("store_delete"),
			logger.Backend(c.backend),
			zap.Error(err),
		)
	}
}

// Status describes the cached credential without exposing the token.
type Status struct {
	Backend   string    `json:"backend"`
	Cached    bool      `json:"cached"`
	Usable    bool      `json:"usable"`
	ExpiresAt time.Time `json:"expiresAt,omitempty"`
}

// Status reports the current cache state. It never triggers a refresh.
func (c *Cache) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	st := Status{Backend: c.backend}
	if c.current.Token != "" {
		st.Cached = true
		st.ExpiresAt = c.current.ExpiresAt
		st.Usable = c.current.ValidFor(c.now(), c.margin)
	}
	return st
}

func (c *Cache) cached() (domain.Credential, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.current.ValidFor(c.now(), c.margin) {
		return c.current, true
	}
	return domain.Credential{}, false
}

func (c *Cache) refresh(ctx context.Context) (domain.Credential, error) {
	// A refresh that finished between the caller's check and Do already did the work.
	if cred, ok := c.cached(); ok {
		return cred, nil
	}

	if cred, ok := c.loadFromStore(ctx); ok {
		return cred, nil
	}

	start := c.now()
	c.log.Debug(ctx, "refreshing credential",
		logger.Module("credential"),
		logger.Action("refresh"),
		logger.Backend(c.backend),
	)

	cred, err := c.provider.Refresh(ctx)
	if err == nil && cred.Token == "" {
		err = ErrEmptyToken
	}
	if err == nil && !cred.ValidFor(c.now(), c.margin) {
		err = errors.New("authorization endpoint returned a credential expiring within the safety margin")
	}
	elapsed := c.now().Sub(start)

	if err != nil {
		if c.recorder != nil {
			c.recorder.RecordRefresh(c.backend, false, elapsed)
		}
		// Um token anterior ainda não expirado continua servindo até a próxima tentativa.
		c.mu.RLock()
		prior := c.current
		c.mu.RUnlock()
		if prior.Token != "" && !prior.Expired(c.now()) {
			c.log.Warn(ctx, "credential refresh failed, serving unexpired credential",
				logger.Module("credential"),
				logger.Action("refresh"),
				logger.Backend(c.backend),
				zap.Time("expires_at", prior.ExpiresAt),
				zap.Duration("duration", elapsed),
				zap.Error(err),
			)
			return prior, nil
		}

		c.log.Error(ctx, "credential refresh failed",
			logger.Module("credential"),
			logger.Action("refresh"),
			logger.Backend(c.backend),
			zap.Duration("duration", elapsed),
			zap.Error(err),
		)
		return domain.Credential{}, domain.NewAuthError(c.backend, domain.AuthFailureRefresh, err)
	}

	if c.recorder != nil {
		c.recorder.RecordRefresh(c.backend, true, elapsed)
	}

	c.mu.Lock()
	c.current = cred
	c.skipStore = false
	c.mu.Unlock()

	c.log.Info(ctx, "credential refreshed",
		logger.Module("credential"),
		logger.Action("refresh"),
		logger.Backend(c.backend),
		zap.Time("expires_at", cred.ExpiresAt),
		zap.Duration("duration", elapsed),
	)

	if c.store != nil {
		if err := c.store.Save(ctx, c.backend, cred); err != nil {
			c.log.Warn(ctx, "failed to persist credential",
				logger.Module("credential"),
				logger.Action("store_save"),
				logger.Backend(c.backend),
				zap.Error(err),
			)
		}
	}

	return cred, nil
}

func (c *Cache) loadFromStore(ctx context.Context) (domain.Credential, bool) {
	c.mu.RLock()
	skip := c.skipStore
	c.mu.RUnlock()
	if c.store == nil || skip {
		return domain.Credential{}, false
	}

	cred, found, err := c.store.Load(ctx, c.backend)
	if err != nil {
		c.log.Warn(ctx, "failed to load persisted credential",
			logger.Module("credential"),
			logger.Action("store_load"),
			logger.Backend(c.backend),
			zap.Error(err),
		)
		return domain.Credential{}, false
	}
	if !found || !cred.ValidFor(c.now(), c.margin) {
		return domain.Credential{}, false
	}

	c.mu.Lock()
	c.current = cred
	c.mu.Unlock()

	c.log.Debug(ctx, "credential loaded from store",
		logger.Module("credential"),
		logger.Action("store_load"),
		logger.Backend(c.backend),
		zap.Time("expires_at", cred.ExpiresAt),
	)
	return cred, true
}
