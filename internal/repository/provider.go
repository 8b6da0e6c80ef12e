package repository

import (
	"sync"
	"time"

	"github.com/AndrewKorobchuk/tsd/pkg/api"
	"github.com/AndrewKorobchuk/tsd/pkg/settings"

	"go.uber.org/zap"
)

// ClientSource hands out the backend client built from the current settings
type ClientSource interface {
	Client() (*api.Client, error)
}

// ClientProvider lazily builds an api.Client from the stored connection
// settings and keeps it until Reset. Callers holding an older client keep
// using it; only calls made after Reset see the new settings.
type ClientProvider struct {
	settings *settings.Store
	timeout  time.Duration
	log      *zap.Logger

	mu     sync.Mutex
	client *api.Client
}

// NewClientProvider creates a provider reading connection settings from store
func NewClientProvider(store *settings.Store, timeout time.Duration, log *zap.Logger) *ClientProvider {
	if log == nil {
		log = zap.NewNop()
	}
	return &ClientProvider{
		settings: store,
		timeout:  timeout,
		log:      log,
	}
}

// Client returns the current client, building it on first use. It fails with
// settings.ErrNotConfigured before any network call when no server is set.
func (p *ClientProvider) Client() (*api.Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.client != nil {
		return p.client, nil
	}

	cs := p.settings.ConnectionSettings()
	baseURL := cs.FullURL()
	if baseURL == "" {
		return nil, settings.ErrNotConfigured
	}

	p.client = api.NewClient(api.Config{
		BaseURL: baseURL,
		APIKey:  cs.APIKey,
		Timeout: p.timeout,
	}, p.log)
	p.log.Info("Backend client created", zap.String("base_url", baseURL))

	return p.client, nil
}

// Reset drops the cached client so the next Client call reads the settings again
func (p *ClientProvider) Reset() {
	p.mu.Lock()
	p.client = nil
	p.mu.Unlock()
}
