package stateful

import (
	"fmt"
	"strings"
	"sync"

	"github.com/raywall/spec-emulator/pkg/faults"
	"github.com/raywall/spec-emulator/pkg/router"
	"github.com/raywall/spec-emulator/pkg/types"
)

// Definition descreve um handler stateful.
type Definition struct {
	Name     string
	Method   string
	Template string
	// Public dispensa o token bearer (endpoints de autenticação).
	Public  bool
	Handler types.Handler
}

// Route é uma Definition já validada.
type Route struct {
	Definition
	Skeleton router.Skeleton
	tpl      *router.Template
}

// Bind nomeia as capturas segundo o template do handler. Assim um catálogo que usa
// {bucket} em vez de {bucketKey} continua servido pelo mesmo handler.
func (r *Route) Bind(captures []string) map[string]string {
	return r.tpl.Bind(captures)
}

func (r *Route) RequiresAuth() bool {
	return !r.Public
}

// Registry guarda os handlers stateful por skeleton.
type Registry struct {
	mu     sync.RWMutex
	routes map[router.Skeleton]*Route
	order  []router.Skeleton
}

func NewRegistry() *Registry {
	return &Registry{routes: make(map[router.Skeleton]*Route)}
}

// Register adiciona um handler. Dois handlers com o mesmo skeleton são um erro de construção.
func (r *Registry) Register(def Definition) error {
	if def.Handler == nil {
		return faults.NewTypedError(faults.BuildError, fmt.Sprintf("handler stateful '%s' sem implementação", def.Name), nil)
	}
	tpl, err := router.ParseTemplate(def.Template)
	if err != nil {
		return err
	}
	def.Method = strings.ToUpper(def.Method)
	route := &Route{Definition: def, Skeleton: tpl.Skeleton(def.Method), tpl: tpl}

	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, ok := r.routes[route.Skeleton]; ok {
		return faults.NewTypedError(faults.BuildError,
			fmt.Sprintf("handlers stateful '%s' e '%s' têm o mesmo skeleton %s", prev.Name, def.Name, route.Skeleton), nil)
	}
	r.routes[route.Skeleton] = route
	r.order = append(r.order, route.Skeleton)
	return nil
}

func (r *Registry) Lookup(skeleton router.Skeleton) (*Route, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	route, ok := r.routes[skeleton]
	return route, ok
}

func (r *Registry) Routes() []*Route {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Route, 0, len(r.order))
	for _, sk := range r.order {
		out = append(out, r.routes[sk])
	}
	return out
}

// Declarations descreve as rotas para a construção da tabela.
func (r *Registry) Declarations() []router.Declaration {
	routes := r.Routes()
	out := make([]router.Declaration, 0, len(routes))
	for _, route := range routes {
		out = append(out, router.Declaration{Method: route.Method, Template: route.Template, Origin: router.OriginStateful})
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.routes)
}
