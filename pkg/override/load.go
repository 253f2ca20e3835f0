package override

import (
	"fmt"

	"github.com/raywall/spec-emulator/pkg/rules"
	"github.com/rs/zerolog/log"
)

// FromRoutes monta um registro com as rotas declaradas. Rotas com o mesmo skeleton:
// a última vence, como em Register.
func FromRoutes(routes []Route, rm *rules.RuleManager) (*Registry, error) {
	reg := NewRegistry()
	if err := reg.AddRoutes(routes, rm); err != nil {
		return nil, err
	}
	return reg, nil
}

// AddRoutes compila e registra as rotas declaradas.
func (r *Registry) AddRoutes(routes []Route, rm *rules.RuleManager) error {
	for i, route := range routes {
		h, err := NewDeclared(route, rm)
		if err != nil {
			return fmt.Errorf("overrides[%d]: %w", i, err)
		}
		if err := r.Register(route.Method, route.Path, h, Options{RequireAuth: route.RequireAuth, Source: SourceConfig}); err != nil {
			return fmt.Errorf("overrides[%d]: %w", i, err)
		}
		log.Debug().Str("method", route.Method).Str("path", route.Path).Str("name", route.Name).Msg("Override declarado registrado")
	}
	return nil
}

// Clone copia o registro, para que overrides programáticos sobrevivam a um reload.
func (r *Registry) Clone() *Registry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := NewRegistry()
	for _, sk := range r.order {
		e := *r.entries[sk]
		out.entries[sk] = &e
		out.order = append(out.order, sk)
	}
	return out
}
