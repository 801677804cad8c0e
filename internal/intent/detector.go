package intent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/wolfman30/whatsapp-leadbot/pkg/logging"
)

// DefaultCacheTTL is how long a loaded catalog is served before reloading.
const DefaultCacheTTL = 5 * time.Minute

// CatalogLoader loads the active intent definitions.
type CatalogLoader interface {
	LoadActiveIntents(ctx context.Context) ([]Definition, error)
}

// ReloadObserver records catalog reload outcomes.
type ReloadObserver interface {
	ObserveCatalogReload(status string, intents int)
}

// Detector serves detection from a TTL-cached catalog.
type Detector struct {
	loader   CatalogLoader
	ttl      time.Duration
	now      func() time.Time
	logger   *logging.Logger
	observer ReloadObserver

	mu       sync.RWMutex
	matcher  *Matcher
	loadedAt time.Time
}

// DetectorOption customizes a Detector.
type DetectorOption func(*Detector)

// WithTTL overrides DefaultCacheTTL.
func WithTTL(ttl time.Duration) DetectorOption {
	return func(d *Detector) {
		if ttl > 0 {
			d.ttl = ttl
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) DetectorOption {
	return func(d *Detector) {
		if now != nil {
			d.now = now
		}
	}
}

// WithReloadObserver attaches a metrics sink for reloads.
func WithReloadObserver(o ReloadObserver) DetectorOption {
	return func(d *Detector) { d.observer = o }
}

// NewDetector builds a detector. A nil loader yields a detector that only
// serves catalogs given to Load.
func NewDetector(loader CatalogLoader, logger *logging.Logger, opts ...DetectorOption) *Detector {
	if logger == nil {
		logger = logging.Default()
	}
	d := &Detector{
		loader: loader,
		ttl:    DefaultCacheTTL,
		now:    time.Now,
		logger: logger,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Load installs a catalog directly, bypassing the loader.
func (d *Detector) Load(defs []Definition) {
	m := NewMatcher(defs, nil)
	d.mu.Lock()
	d.matcher = m
	d.loadedAt = d.now()
	d.mu.Unlock()
}

// Detect classifies message, reloading the catalog first when it was never
// loaded or has gone stale.
func (d *Detector) Detect(ctx context.Context, message string) (Result, error) {
	m, err := d.current(ctx)
	if err != nil {
		return Result{}, err
	}
	return m.Detect(message), nil
}

// Refresh reloads the catalog unconditionally.
func (d *Detector) Refresh(ctx context.Context) error {
	if d.loader == nil {
		return fmt.Errorf("intent: refresh: %w", ErrNotInitialized)
	}
	_, err := d.reload(ctx)
	return err
}

// IntentByName looks up an active definition in the cached catalog.
func (d *Detector) IntentByName(name string) (Definition, bool) {
	d.mu.RLock()
	m := d.matcher
	d.mu.RUnlock()
	if m == nil {
		return Definition{}, false
	}
	return m.Definition(name)
}

// ActiveIntents returns the cached active definitions.
func (d *Detector) ActiveIntents() []Definition {
	d.mu.RLock()
	m := d.matcher
	d.mu.RUnlock()
	if m == nil {
		return nil
	}
	return m.Definitions()
}

func (d *Detector) current(ctx context.Context) (*Matcher, error) {
	d.mu.RLock()
	m := d.matcher
	stale := d.now().Sub(d.loadedAt) > d.ttl
	d.mu.RUnlock()

	if m != nil && (!stale || d.loader == nil) {
		return m, nil
	}
	if d.loader == nil {
		return nil, ErrNotInitialized
	}

	fresh, err := d.reload(ctx)
	if err != nil {
		if m != nil {
			d.logger.Warn("intent catalog reload failed, serving stale catalog", "error", err)
			return m, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrNotInitialized, err)
	}
	return fresh, nil
}

func (d *Detector) reload(ctx context.Context) (*Matcher, error) {
	defs, err := d.loader.LoadActiveIntents(ctx)
	if err != nil {
		d.observe("error", 0)
		return nil, fmt.Errorf("intent: load catalog: %w", err)
	}
	m := NewMatcher(defs, nil)

	d.mu.Lock()
	d.matcher = m
	d.loadedAt = d.now()
	d.mu.Unlock()

	d.observe("success", len(defs))
	d.logger.Info("intent catalog loaded", "intents", len(defs))
	return m, nil
}

func (d *Detector) observe(status string, n int) {
	if d.observer != nil {
		d.observer.ObserveCatalogReload(status, n)
	}
}
