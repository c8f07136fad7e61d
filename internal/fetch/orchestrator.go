package fetch

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/JustinTDCT/MediaForge/internal/models"
	"github.com/JustinTDCT/MediaForge/internal/providers"
)

// ProviderData is what one provider contributed for an entity.
type ProviderData struct {
	Metadata *providers.Metadata
	Assets   []*models.AssetCandidate
}

// Failure records a provider that produced no data.
type Failure struct {
	Name      string
	Err       error
	Retryable bool
}

// Results aggregates the fan-out outcome. Partial success is the normal
// case: downstream stages consume whatever is present.
type Results struct {
	Providers map[string]*ProviderData
	Completed []string
	Failed    []Failure
	TimedOut  []string
}

// AllFailed is true iff no provider produced any data.
func (r *Results) AllFailed() bool {
	return len(r.Providers) == 0
}

// Progress carries boundary callbacks for the websocket surface. Any field
// may be nil.
type Progress struct {
	OnStart    func(provider string)
	OnComplete func(provider string)
	OnTimeout  func(provider string)
	OnFailure  func(provider string, err error)
}

func (p *Progress) start(name string) {
	if p != nil && p.OnStart != nil {
		p.OnStart(name)
	}
}
func (p *Progress) complete(name string) {
	if p != nil && p.OnComplete != nil {
		p.OnComplete(name)
	}
}
func (p *Progress) timeout(name string) {
	if p != nil && p.OnTimeout != nil {
		p.OnTimeout(name)
	}
}
func (p *Progress) failure(name string, err error) {
	if p != nil && p.OnFailure != nil {
		p.OnFailure(name, err)
	}
}

// Request describes one fan-out.
type Request struct {
	Movie        *models.Movie
	EntityType   models.MediaType
	Priority     providers.Priority
	WantMetadata bool
	AssetTypes   []models.AssetType
	Progress     *Progress
}

// Orchestrator fans an entity out across all capable providers.
type Orchestrator struct {
	registry *providers.Registry
}

func NewOrchestrator(registry *providers.Registry) *Orchestrator {
	return &Orchestrator{registry: registry}
}

// Fetch runs the concurrent fan-out. Provider failures never propagate as a
// fetch failure; they are recorded in Results.Failed.
func (o *Orchestrator) Fetch(ctx context.Context, req Request) *Results {
	names := o.registry.SupportingEntity(req.EntityType)
	results := &Results{Providers: make(map[string]*ProviderData)}
	if len(names) == 0 {
		return results
	}

	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, name := range names {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			req.Progress.start(name)

			data, err := o.fetchOne(ctx, name, req)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil && data != nil:
				results.Providers[name] = data
				results.Completed = append(results.Completed, name)
				req.Progress.complete(name)
			case isTimeout(err):
				results.TimedOut = append(results.TimedOut, name)
				req.Progress.timeout(name)
				log.Printf("Fetch: provider %s timed out", name)
			default:
				results.Failed = append(results.Failed, Failure{
					Name:      name,
					Err:       err,
					Retryable: providers.IsRetryable(err),
				})
				req.Progress.failure(name, err)
				log.Printf("Fetch: provider %s failed: %v", name, err)
			}
		}(name)
	}

	wg.Wait()
	return results
}

// fetchOne resolves the provider-specific ID and pulls metadata then assets.
// The whole per-provider call races against the priority's timeout.
func (o *Orchestrator) fetchOne(ctx context.Context, name string, req Request) (*ProviderData, error) {
	adapter, err := o.registry.Get(name, req.Priority)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, req.Priority.Timeout)
	defer cancel()

	id, err := o.resolveID(ctx, adapter, req)
	if err != nil {
		return nil, err
	}
	if id == "" {
		return nil, fmt.Errorf("no usable external ID for provider %s", name)
	}

	caps := adapter.Capabilities()
	data := &ProviderData{}

	// Metadata first: when it is authoritatively missing there is no point
	// burning an asset call.
	if req.WantMetadata && caps.ProvidesMetadata {
		meta, err := adapter.GetMetadata(ctx, id, req.EntityType)
		if err != nil {
			return nil, err
		}
		data.Metadata = meta
	}

	if len(req.AssetTypes) > 0 && caps.ProvidesAssets {
		supported := make([]models.AssetType, 0, len(req.AssetTypes))
		for _, t := range req.AssetTypes {
			if caps.SupportsAsset(req.EntityType, t) {
				supported = append(supported, t)
			}
		}
		if len(supported) > 0 {
			assets, err := adapter.GetAssets(ctx, id, req.EntityType, supported)
			if err != nil {
				// Keep metadata when only the asset call failed.
				if data.Metadata == nil {
					return nil, err
				}
				log.Printf("Fetch: provider %s asset call failed, keeping metadata: %v", name, err)
			}
			for _, a := range assets {
				a.MovieID = req.Movie.ID
			}
			data.Assets = assets
		}
	}

	if data.Metadata == nil && len(data.Assets) == 0 {
		return nil, fmt.Errorf("provider %s produced no data", name)
	}
	return data, nil
}

// resolveID finds the provider's own ID for the entity: the native ID when
// the movie carries one under the provider's name, otherwise a lookup through
// the provider's externalIdLookup keys.
func (o *Orchestrator) resolveID(ctx context.Context, adapter providers.Adapter, req Request) (string, error) {
	if id := req.Movie.ExternalID(adapter.Name()); id != "" {
		return id, nil
	}

	caps := adapter.Capabilities()
	for _, key := range caps.ExternalIDLookup {
		extID := req.Movie.ExternalID(key)
		if extID == "" {
			continue
		}
		matches, err := adapter.Search(ctx, providers.Query{
			ExternalKey: key,
			ExternalID:  extID,
			EntityType:  req.EntityType,
		})
		if err != nil {
			if providers.IsNotFound(err) {
				continue
			}
			return "", err
		}
		if len(matches) > 0 {
			return matches[0].ProviderResultID, nil
		}
	}
	return "", nil
}

// isTimeout separates a per-provider deadline breach from a genuine failure.
func isTimeout(err error) bool {
	return err != nil && errors.Is(err, context.DeadlineExceeded)
}
