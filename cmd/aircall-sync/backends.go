package main

import (
	"context"

	"aircall-sync/internal/activity"
	"aircall-sync/internal/backend"
	"aircall-sync/internal/config"
	"aircall-sync/internal/contact"
	"aircall-sync/internal/credential"
	"aircall-sync/internal/http/client"
	"aircall-sync/internal/http/handler"
	"aircall-sync/internal/integrations/oggo"
	"aircall-sync/internal/integrations/zoho"
	"aircall-sync/internal/observability/logger"
	"aircall-sync/internal/service"
)

// backendSet reúne tudo o que foi montado para os backends habilitados.
type backendSet struct {
	targets []service.Target
	caches  []*credential.Cache
	checks  []handler.Check
}

func (s backendSet) inspectors() []handler.CredentialInspector {
	out := make([]handler.CredentialInspector, 0, len(s.caches))
	for _, c := range s.caches {
		out = append(out, c)
	}
	return out
}

// buildBackends wires cache, client, resolver and writer for every enabled
// backend. store and recorder may be nil.
func buildBackends(cfg *config.Config, log *logger.Logger, store credential.Store, recorder credential.RefreshRecorder) backendSet {
	var set backendSet

	newCache := func(name string, b config.BackendConfig) *credential.Cache {
		provider := credential.NewRefreshTokenProvider(
			client.NewCustomHTTPClient(cfg.RequestTimeout(b)),
			b.TokenURL, b.ClientID, b.ClientSecret, b.RefreshToken,
		)
		cc := credential.CacheConfig{
			Backend:  name,
			Provider: provider,
			Margin:   cfg.SafetyMargin(),
			Logger:   log,
			Store:    store,
			Recorder: recorder,
		}
		return credential.NewCache(cc)
	}

	newClient := func(name, scheme string, b config.BackendConfig, cache *credential.Cache) *backend.Client {
		return backend.NewClient(backend.Config{
			Name:        name,
			BaseURL:     b.BaseURL,
			HTTPClient:  client.NewBackendHTTPClient(name, cfg.RequestTimeout(b)),
			Credentials: cache,
			AuthScheme:  scheme,
			Timeout:     cfg.RequestTimeout(b),
			Logger:      log,
		})
	}

	if cfg.Oggo.Enabled {
		cache := newCache(oggo.Backend, cfg.Oggo)
		api := newClient(oggo.Backend, "Bearer", cfg.Oggo, cache)

		build := oggo.ProjectBuilder(cfg.OggoInsuranceType)
		if cfg.Oggo.ActivityType == "task" {
			build = oggo.TaskBuilder()
		}

		set.caches = append(set.caches, cache)
		set.targets = append(set.targets, service.Target{
			Name:     oggo.Backend,
			Resolver: contact.NewResolver(oggo.Backend, oggo.NewContactStore(api), oggo.PhoneNormalizer(cfg.DefaultCountryCode), log),
			Writer:   activity.NewWriter(oggo.Backend, oggo.NewActivityStore(api), build, log),
		})
		set.checks = append(set.checks, handler.Check{
			Name:  oggo.Backend,
			Probe: func(ctx context.Context) error { return oggo.Ping(ctx, api) },
		})
	}

	if cfg.Zoho.Enabled {
		cache := newCache(zoho.Backend, cfg.Zoho)
		api := newClient(zoho.Backend, zoho.AuthScheme, cfg.Zoho, cache)

		build := zoho.CallBuilder()
		if cfg.Zoho.ActivityType == "task" {
			build = zoho.TaskBuilder()
		}

		set.caches = append(set.caches, cache)
		set.targets = append(set.targets, service.Target{
			Name:     zoho.Backend,
			Resolver: contact.NewResolver(zoho.Backend, zoho.NewLeadStore(api), zoho.PhoneNormalizer, log),
			Writer:   activity.NewWriter(zoho.Backend, zoho.NewActivityStore(api), build, log),
		})
		set.checks = append(set.checks, handler.Check{
			Name:  zoho.Backend,
			Probe: func(ctx context.Context) error { return zoho.Ping(ctx, api) },
		})
	}

	return set
}
