package router

import (
	"sort"
	"strings"

	"github.com/raywall/spec-emulator/pkg/catalog"
)

// Origens possíveis de uma rota.
const (
	OriginCatalog  = "catalog"
	OriginOverride = "override"
	OriginStateful = "stateful"
)

// Endpoint é a entrada da tabela para um skeleton (método + forma).
type Endpoint struct {
	Method   string
	Skeleton Skeleton
	// Template é o primeiro template registrado para o skeleton.
	Template *Template
	// Operation é nil quando a rota existe apenas por override ou handler stateful.
	Operation *catalog.Operation
	Origins   []string
}

func (e *Endpoint) addOrigin(origin string) {
	for _, o := range e.Origins {
		if o == origin {
			return
		}
	}
	e.Origins = append(e.Origins, origin)
}

type affixEdge struct {
	prefix string
	suffix string
	child  *node
}

type node struct {
	literals  map[string]*node
	affixes   []*affixEdge
	capture   *node
	endpoints map[string]*Endpoint
}

func newNode() *node {
	return &node{literals: make(map[string]*node)}
}

func (n *node) child(seg Segment) *node {
	switch seg.Kind {
	case Literal:
		next, ok := n.literals[seg.Value]
		if !ok {
			next = newNode()
			n.literals[seg.Value] = next
		}
		return next
	case Capture:
		if n.capture == nil {
			n.capture = newNode()
		}
		return n.capture
	default:
		for _, edge := range n.affixes {
			if edge.prefix == seg.Prefix && edge.suffix == seg.Suffix {
				return edge.child
			}
		}
		edge := &affixEdge{prefix: seg.Prefix, suffix: seg.Suffix, child: newNode()}
		n.affixes = append(n.affixes, edge)
		// afixos mais longos primeiro
		sort.SliceStable(n.affixes, func(i, j int) bool {
			return len(n.affixes[i].prefix)+len(n.affixes[i].suffix) > len(n.affixes[j].prefix)+len(n.affixes[j].suffix)
		})
		return edge.child
	}
}

// Table é a tabela de despacho imutável gerada pelo Builder.
type Table struct {
	root      *node
	endpoints map[Skeleton]*Endpoint
	order     []Skeleton
}

// Builder acumula rotas. Duplicidade entre operações do catálogo é erro de construção;
// rotas de override e stateful se fundem às existentes.
type Builder struct {
	table *Table
}

func NewBuilder() *Builder {
	return &Builder{table: &Table{root: newNode(), endpoints: make(map[Skeleton]*Endpoint)}}
}

// AddOperation registra uma operação do catálogo.
func (b *Builder) AddOperation(op *catalog.Operation) error {
	tpl, err := ParseTemplate(op.Path)
	if err != nil {
		return err
	}

	skeleton := tpl.Skeleton(op.Method)
	if existing, ok := b.table.endpoints[skeleton]; ok && existing.Operation != nil {
		return buildError("skeleton duplicado '%s': '%s %s' (%s) conflita com '%s %s' (%s)",
			skeleton,
			op.Method, op.Path, op.Source,
			existing.Operation.Method, existing.Operation.Path, existing.Operation.Source)
	}

	ep := b.insert(op.Method, tpl)
	ep.Operation = op
	ep.addOrigin(OriginCatalog)
	return nil
}

// AddRoute registra uma rota vinda de override ou handler stateful.
func (b *Builder) AddRoute(method, template, origin string) error {
	tpl, err := ParseTemplate(template)
	if err != nil {
		return err
	}
	b.insert(method, tpl).addOrigin(origin)
	return nil
}

func (b *Builder) insert(method string, tpl *Template) *Endpoint {
	method = strings.ToUpper(method)
	skeleton := tpl.Skeleton(method)
	if ep, ok := b.table.endpoints[skeleton]; ok {
		return ep
	}

	current := b.table.root
	for _, seg := range tpl.Segments {
		current = current.child(seg)
	}
	if current.endpoints == nil {
		current.endpoints = make(map[string]*Endpoint)
	}

	ep := &Endpoint{Method: method, Skeleton: skeleton, Template: tpl}
	current.endpoints[method] = ep
	b.table.endpoints[skeleton] = ep
	b.table.order = append(b.table.order, skeleton)
	return ep
}

// Table devolve a tabela construída. O Builder não deve ser reutilizado.
func (b *Builder) Table() *Table {
	return b.table
}

// Build monta a tabela a partir do catálogo mais rotas extras.
func Build(cat *catalog.Catalog, extras ...Declaration) (*Table, error) {
	b := NewBuilder()
	for _, op := range cat.Operations() {
		if err := b.AddOperation(op); err != nil {
			return nil, err
		}
	}
	for _, d := range extras {
		if err := b.AddRoute(d.Method, d.Template, d.Origin); err != nil {
			return nil, err
		}
	}
	return b.Table(), nil
}

// Declaration descreve uma rota extra para Build.
type Declaration struct {
	Method   string
	Template string
	Origin   string
}

type Outcome int

const (
	Found Outcome = iota
	NotFound
	MethodNotAllowed
)

// Match é o resultado da busca de um path concreto.
type Match struct {
	Outcome  Outcome
	Endpoint *Endpoint
	// Captures são os valores dos parâmetros na ordem dos segmentos.
	Captures []string
	// Allowed lista os métodos aceitos quando Outcome é MethodNotAllowed.
	Allowed []string
}

// Match procura a rota. Literais têm prioridade sobre afixos, que têm prioridade sobre capturas.
func (t *Table) Match(method, path string) Match {
	method = strings.ToUpper(method)
	segments := SplitPath(path)

	// métodos de todos os terminais que casam com o path, para o Allow do 405
	allowedSet := make(map[string]struct{})
	var found *node
	var captures []string

	var walk func(n *node, depth int, acc []string) bool
	walk = func(n *node, depth int, acc []string) bool {
		if depth == len(segments) {
			if len(n.endpoints) == 0 {
				return false
			}
			if _, ok := n.endpoints[method]; ok {
				found = n
				captures = append([]string(nil), acc...)
				return true
			}
			for m := range n.endpoints {
				allowedSet[m] = struct{}{}
			}
			return false
		}

		value := segments[depth]
		if next, ok := n.literals[value]; ok && walk(next, depth+1, acc) {
			return true
		}
		for _, edge := range n.affixes {
			seg := Segment{Kind: AffixCapture, Prefix: edge.prefix, Suffix: edge.suffix}
			if inner, ok := seg.match(value); ok && walk(edge.child, depth+1, append(acc, inner)) {
				return true
			}
		}
		if n.capture != nil && value != "" && walk(n.capture, depth+1, append(acc, value)) {
			return true
		}
		return false
	}

	if walk(t.root, 0, nil) {
		return Match{Outcome: Found, Endpoint: found.endpoints[method], Captures: captures}
	}
	if len(allowedSet) > 0 {
		allowed := make([]string, 0, len(allowedSet))
		for m := range allowedSet {
			allowed = append(allowed, m)
		}
		sort.Strings(allowed)
		return Match{Outcome: MethodNotAllowed, Allowed: allowed}
	}
	return Match{Outcome: NotFound}
}

// Lookup devolve o endpoint de um skeleton.
func (t *Table) Lookup(skeleton Skeleton) (*Endpoint, bool) {
	ep, ok := t.endpoints[skeleton]
	return ep, ok
}

// Endpoints devolve as rotas na ordem de registro.
func (t *Table) Endpoints() []*Endpoint {
	out := make([]*Endpoint, 0, len(t.order))
	for _, sk := range t.order {
		out = append(out, t.endpoints[sk])
	}
	return out
}

func (t *Table) Len() int {
	return len(t.order)
}
