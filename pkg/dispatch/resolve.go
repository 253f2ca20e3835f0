package dispatch

import (
	"github.com/raywall/spec-emulator/pkg/catalog"
	"github.com/raywall/spec-emulator/pkg/generic"
	"github.com/raywall/spec-emulator/pkg/override"
	"github.com/raywall/spec-emulator/pkg/router"
	"github.com/raywall/spec-emulator/pkg/stateful"
	"github.com/raywall/spec-emulator/pkg/types"
)

// Kind é a estratégia escolhida para uma requisição. O conjunto é fechado.
type Kind int

const (
	KindNotFound Kind = iota
	KindMethodNotAllowed
	KindOverride
	KindStateful
	KindGeneric
)

func (k Kind) String() string {
	switch k {
	case KindOverride:
		return "override"
	case KindStateful:
		return "stateful"
	case KindGeneric:
		return "generic"
	case KindMethodNotAllowed:
		return "method_not_allowed"
	default:
		return "not_found"
	}
}

// Resolution é o resultado de Resolve.
type Resolution struct {
	Kind     Kind
	Endpoint *router.Endpoint
	Handler  types.Handler
	// Params são as capturas nomeadas pelo template da estratégia escolhida.
	Params map[string]string
	// RequireAuth indica que um token bearer deve ser validado antes de invocar Handler.
	RequireAuth bool
	// Allowed lista os métodos aceitos quando Kind é KindMethodNotAllowed.
	Allowed []string
}

// Routing é um snapshot imutável do roteamento: tabela e estratégias.
type Routing struct {
	Table     *router.Table
	Overrides *override.Registry
	Stateful  *stateful.Registry
	generic   map[router.Skeleton]*generic.Handler
}

// NewRouting monta a tabela com catálogo, overrides e handlers stateful (nil no modo stateless).
// Skeletons duplicados no catálogo resultam em BuildError.
func NewRouting(cat *catalog.Catalog, overrides *override.Registry, handlers *stateful.Registry) (*Routing, error) {
	if overrides == nil {
		overrides = override.NewRegistry()
	}

	var extras []router.Declaration
	extras = append(extras, overrides.Declarations()...)
	if handlers != nil {
		extras = append(extras, handlers.Declarations()...)
	}

	table, err := router.Build(cat, extras...)
	if err != nil {
		return nil, err
	}

	r := &Routing{
		Table:     table,
		Overrides: overrides,
		Stateful:  handlers,
		generic:   make(map[router.Skeleton]*generic.Handler),
	}
	for _, ep := range table.Endpoints() {
		if ep.Operation != nil {
			r.generic[ep.Skeleton] = generic.New(ep.Operation)
		}
	}
	return r, nil
}

// Resolve escolhe a estratégia: override, stateful (se habilitado), exemplo genérico, not-found.
// Não tem efeitos colaterais.
func (r *Routing) Resolve(method, path string) Resolution {
	m := r.Table.Match(method, path)
	switch m.Outcome {
	case router.NotFound:
		return Resolution{Kind: KindNotFound}
	case router.MethodNotAllowed:
		return Resolution{Kind: KindMethodNotAllowed, Allowed: m.Allowed}
	}

	ep := m.Endpoint
	catalogAuth := ep.Operation != nil && ep.Operation.RequiresAuth

	if entry, ok := r.Overrides.Lookup(ep.Skeleton); ok {
		return Resolution{
			Kind:        KindOverride,
			Endpoint:    ep,
			Handler:     entry.Handler,
			Params:      entry.Bind(m.Captures),
			RequireAuth: catalogAuth || entry.RequireAuth,
		}
	}

	if route, ok := r.statefulRoute(ep.Skeleton); ok {
		// rotas públicas (emissão de token) não exigem bearer mesmo que o catálogo declare segurança
		return Resolution{
			Kind:        KindStateful,
			Endpoint:    ep,
			Handler:     route.Handler,
			Params:      route.Bind(m.Captures),
			RequireAuth: route.RequiresAuth(),
		}
	}

	if h, ok := r.generic[ep.Skeleton]; ok {
		return Resolution{
			Kind:        KindGeneric,
			Endpoint:    ep,
			Handler:     h,
			Params:      ep.Template.Bind(m.Captures),
			RequireAuth: catalogAuth,
		}
	}
	return Resolution{Kind: KindNotFound, Endpoint: ep}
}

// RouteInfo descreve uma rota da tabela e a estratégia que a atende.
type RouteInfo struct {
	Method      string   `json:"method"`
	Template    string   `json:"template"`
	Origins     []string `json:"origins"`
	Strategy    string   `json:"strategy"`
	RequireAuth bool     `json:"requireAuth"`
}

// Routes lista as rotas na ordem de registro, com a estratégia que Resolve escolheria.
func (r *Routing) Routes() []RouteInfo {
	endpoints := r.Table.Endpoints()
	out := make([]RouteInfo, 0, len(endpoints))
	for _, ep := range endpoints {
		info := RouteInfo{
			Method:   ep.Method,
			Template: ep.Template.Raw,
			Origins:  append([]string(nil), ep.Origins...),
			Strategy: KindNotFound.String(),
		}
		catalogAuth := ep.Operation != nil && ep.Operation.RequiresAuth
		if entry, ok := r.Overrides.Lookup(ep.Skeleton); ok {
			info.Strategy, info.RequireAuth = KindOverride.String(), catalogAuth || entry.RequireAuth
		} else if route, ok := r.statefulRoute(ep.Skeleton); ok {
			info.Strategy, info.RequireAuth = KindStateful.String(), route.RequiresAuth()
		} else if _, ok := r.generic[ep.Skeleton]; ok {
			info.Strategy, info.RequireAuth = KindGeneric.String(), catalogAuth
		}
		out = append(out, info)
	}
	return out
}

// CountByOrigin conta as rotas por origem (uma rota pode ter várias).
func (r *Routing) CountByOrigin() map[string]int {
	counts := make(map[string]int)
	for _, ep := range r.Table.Endpoints() {
		for _, o := range ep.Origins {
			counts[o]++
		}
	}
	return counts
}

func (r *Routing) statefulRoute(sk router.Skeleton) (*stateful.Route, bool) {
	if r.Stateful == nil {
		return nil, false
	}
	return r.Stateful.Lookup(sk)
}
