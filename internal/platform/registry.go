package platform

import (
	"fmt"

	"github.com/maheshrc27/postflow/internal/models"
)

// Registry maps each platform tag to its adapter. It is built once at startup
// and read-only afterwards.
type Registry struct {
	adapters map[models.Platform]Adapter
}

func NewRegistry(adapters ...Adapter) (*Registry, error) {
	r := &Registry{adapters: make(map[models.Platform]Adapter, len(adapters))}
	for _, a := range adapters {
		p := a.Platform()
		if !p.Valid() {
			return nil, fmt.Errorf("adapter registered for unknown platform %q", p)
		}
		if _, dup := r.adapters[p]; dup {
			return nil, fmt.Errorf("adapter for %s registered twice", p)
		}
		r.adapters[p] = a
	}
	return r, nil
}

func (r *Registry) Get(p models.Platform) (Adapter, error) {
	a, ok := r.adapters[p]
	if !ok {
		return nil, NewError(ErrUnsupportedPlatform, p, "lookup", nil)
	}
	return a, nil
}

func (r *Registry) Platforms() []models.Platform {
	out := make([]models.Platform, 0, len(r.adapters))
	for _, p := range models.Platforms {
		if _, ok := r.adapters[p]; ok {
			out = append(out, p)
		}
	}
	return out
}
