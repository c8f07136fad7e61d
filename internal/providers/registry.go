package providers

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/JustinTDCT/MediaForge/internal/breaker"
	"github.com/JustinTDCT/MediaForge/internal/models"
	"github.com/JustinTDCT/MediaForge/internal/ratelimit"
)

// Factory builds a raw adapter from its config.
type Factory func(cfg *models.ProviderConfig) Adapter

// Registry maps provider names to factories and capabilities, and caches
// built instances keyed by config identity. One registry per process; a
// handle is passed through the job context rather than accessed ambiently.
type Registry struct {
	mu           sync.RWMutex
	factories    map[string]Factory
	capabilities map[string]Capabilities
	configs      map[string]*models.ProviderConfig
	instances    map[string]Adapter // key: name + config fingerprint

	limiter         *ratelimit.Limiter
	breakers        *breaker.Breakers
	webhookReserved int
}

func NewRegistry(limiter *ratelimit.Limiter, breakers *breaker.Breakers, webhookReserved int) *Registry {
	return &Registry{
		factories:       make(map[string]Factory),
		capabilities:    make(map[string]Capabilities),
		configs:         make(map[string]*models.ProviderConfig),
		instances:       make(map[string]Adapter),
		limiter:         limiter,
		breakers:        breakers,
		webhookReserved: webhookReserved,
	}
}

// RegisterFactory installs a provider class. Capabilities are captured once
// from a zero-config instance; they are static per class.
func (r *Registry) RegisterFactory(name string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
	r.capabilities[name] = factory(&models.ProviderConfig{ProviderName: name}).Capabilities()
}

// SetConfig installs or updates a provider's config and invalidates any
// cached instance built from the previous config.
func (r *Registry) SetConfig(cfg *models.ProviderConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.configs[cfg.ProviderName] = cfg
	for key := range r.instances {
		if strings.HasPrefix(key, cfg.ProviderName+"|") {
			delete(r.instances, key)
		}
	}
}

// Invalidate drops all cached instances (e.g. after bulk config reload).
func (r *Registry) Invalidate() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.instances = make(map[string]Adapter)
}

func configFingerprint(cfg *models.ProviderConfig) string {
	if cfg == nil {
		return "default"
	}
	opts := ""
	if cfg.Options != nil {
		opts = *cfg.Options
	}
	return fmt.Sprintf("%s|%s|%s|%s", cfg.EffectiveKey(), cfg.Language, cfg.Region, opts)
}

// Get returns a guarded adapter instance for the provider at the given
// priority class, building and caching it on first use.
func (r *Registry) Get(name string, priority Priority) (Adapter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	factory, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("unknown provider %q", name)
	}
	cfg := r.configs[name]
	key := name + "|" + priority.Name + "|" + configFingerprint(cfg)
	if inst, ok := r.instances[key]; ok {
		return inst, nil
	}
	if cfg == nil {
		cfg = &models.ProviderConfig{ProviderName: name, Enabled: true}
	}
	inst := NewGuard(factory(cfg), r.limiter, r.breakers, priority, r.webhookReserved)
	r.instances[key] = inst
	return inst, nil
}

// Enabled returns the names of all registered providers whose config is
// present and enabled, sorted for deterministic fan-out order.
func (r *Registry) Enabled() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var names []string
	for name := range r.factories {
		if cfg, ok := r.configs[name]; ok && cfg.Enabled {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// ──────────────────── Capability Queries ────────────────────

// SupportingEntity lists enabled providers that handle the entity type.
func (r *Registry) SupportingEntity(t models.MediaType) []string {
	return r.filter(func(c Capabilities) bool { return c.SupportsEntity(t) })
}

// SupportingAsset lists enabled providers serving an asset type for an entity.
func (r *Registry) SupportingAsset(t models.MediaType, a models.AssetType) []string {
	return r.filter(func(c Capabilities) bool { return c.SupportsAsset(t, a) })
}

// SupportingField lists enabled providers supplying a metadata field.
func (r *Registry) SupportingField(t models.MediaType, f MetadataField) []string {
	return r.filter(func(c Capabilities) bool { return c.SupportsField(t, f) })
}

// SupportingLookup lists enabled providers resolving an external-ID key.
func (r *Registry) SupportingLookup(key string) []string {
	return r.filter(func(c Capabilities) bool { return c.SupportsLookup(key) })
}

// CapabilitiesOf returns the static capabilities for a provider class.
func (r *Registry) CapabilitiesOf(name string) (Capabilities, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.capabilities[name]
	return c, ok
}

func (r *Registry) filter(pred func(Capabilities) bool) []string {
	names := r.Enabled()
	var out []string
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, name := range names {
		if pred(r.capabilities[name]) {
			out = append(out, name)
		}
	}
	return out
}
