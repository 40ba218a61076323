package extractor

import (
	"context"
	"fmt"

	"github.com/maastricht-university/interview-pipeline/clients"
	"github.com/maastricht-university/interview-pipeline/config"
	"github.com/maastricht-university/interview-pipeline/fallback"
	"github.com/maastricht-university/interview-pipeline/logging"
)

// Loaded is the backend that won the chain.
type Loaded struct {
	Extractor
	Backend string
}

// Load tries the configured backends in order. When none comes up the error
// wraps ErrLoadFailure and callers run without analysis.
func Load(ctx context.Context, c config.Extractor, h *clients.HTTP) (*Loaded, error) {
	log := logging.Component("extractor")

	providers := make([]fallback.Provider[Extractor], 0, len(c.Backends))
	for _, name := range c.Backends {
		switch name {
		case "local":
			providers = append(providers, fallback.Provider[Extractor]{
				Name: name,
				Load: func(ctx context.Context) (Extractor, error) {
					l, err := LoadLocal(ctx, clients.NewFaceAPI(h, c.Local.URL), c.Local.ModelSources)
					if err != nil {
						return nil, err
					}
					log.WithField("source", l.Source).Info("local models loaded")
					return l, nil
				},
			})
		case "remote":
			providers = append(providers, fallback.Provider[Extractor]{
				Name: name,
				Load: func(context.Context) (Extractor, error) {
					api, err := clients.NewFacePlusPlus(h, c.Remote.URL, c.Remote.APIKey, c.Remote.APISecret)
					if err != nil {
						return nil, err
					}
					return NewRemote(api), nil
				},
			})
		default:
			return nil, fmt.Errorf("extractor: unknown backend %q", name)
		}
	}

	ex, idx, err := fallback.First(ctx, providers...)
	if err != nil {
		log.WithError(err).Warn("no extractor backend available, proceeding without face analysis")
		return nil, fmt.Errorf("%w: %w", ErrLoadFailure, err)
	}
	log.WithField("backend", providers[idx].Name).Info("extractor ready")
	return &Loaded{Extractor: ex, Backend: providers[idx].Name}, nil
}
