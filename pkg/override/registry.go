package override

import (
	"sort"
	"strings"
	"sync"

	"github.com/raywall/spec-emulator/pkg/router"
	"github.com/raywall/spec-emulator/pkg/types"
	"github.com/rs/zerolog/log"
)

// Origens de um override.
const (
	SourceCode   = "code"
	SourceConfig = "config"
)

// Entry é um handler registrado para um skeleton.
type Entry struct {
	Method   string
	Skeleton router.Skeleton
	// Template é o template do registro; os parâmetros são nomeados por ele, não pelo catálogo.
	Template    *router.Template
	Handler     types.Handler
	RequireAuth bool
	Source      string
}

// Bind nomeia as capturas de path segundo o template do override.
func (e *Entry) Bind(captures []string) map[string]string {
	return e.Template.Bind(captures)
}

// Options ajusta um registro.
type Options struct {
	RequireAuth bool
	Source      string
}

// Registry guarda overrides por skeleton. A busca é uma leitura de mapa.
type Registry struct {
	mu      sync.RWMutex
	entries map[router.Skeleton]*Entry
	order   []router.Skeleton
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[router.Skeleton]*Entry)}
}

// Register associa o handler ao método + template. Um segundo registro para o mesmo
// skeleton substitui o anterior.
func (r *Registry) Register(method, template string, h types.Handler, opts Options) error {
	tpl, err := router.ParseTemplate(template)
	if err != nil {
		return err
	}
	method = strings.ToUpper(method)
	if opts.Source == "" {
		opts.Source = SourceCode
	}

	entry := &Entry{
		Method:      method,
		Skeleton:    tpl.Skeleton(method),
		Template:    tpl,
		Handler:     h,
		RequireAuth: opts.RequireAuth,
		Source:      opts.Source,
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.entries[entry.Skeleton]; ok {
		log.Warn().
			Str("skeleton", string(entry.Skeleton)).
			Str("previous_source", prev.Source).
			Str("source", entry.Source).
			Msg("Override substituído por registro posterior")
	} else {
		r.order = append(r.order, entry.Skeleton)
	}
	r.entries[entry.Skeleton] = entry
	return nil
}

// RegisterFunc é um atalho para funções.
func (r *Registry) RegisterFunc(method, template string, fn types.HandlerFunc, opts Options) error {
	return r.Register(method, template, fn, opts)
}

func (r *Registry) Lookup(skeleton router.Skeleton) (*Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[skeleton]
	return e, ok
}

// Entries devolve os registros na ordem do primeiro registro de cada skeleton.
func (r *Registry) Entries() []*Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Entry, 0, len(r.order))
	for _, sk := range r.order {
		out = append(out, r.entries[sk])
	}
	return out
}

// Declarations descreve as rotas dos overrides para a construção da tabela.
func (r *Registry) Declarations() []router.Declaration {
	entries := r.Entries()
	out := make([]router.Declaration, 0, len(entries))
	for _, e := range entries {
		out = append(out, router.Declaration{Method: e.Method, Template: e.Template.Raw, Origin: router.OriginOverride})
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Skeletons lista os skeletons ordenados, usado em logs e no endpoint administrativo.
func (r *Registry) Skeletons() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.entries))
	for sk := range r.entries {
		out = append(out, string(sk))
	}
	sort.Strings(out)
	return out
}
