package state

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/raywall/spec-emulator/pkg/faults"
)

type Kind string

const (
	KindHub     Kind = "hubs"
	KindProject Kind = "projects"
	KindFolder  Kind = "folders"
	KindItem    Kind = "items"
	KindVersion Kind = "versions"
)

// allowedParents define a árvore hub -> project -> folder -> item -> version.
var allowedParents = map[Kind][]Kind{
	KindHub:     nil,
	KindProject: {KindHub},
	KindFolder:  {KindProject, KindFolder},
	KindItem:    {KindFolder, KindProject},
	KindVersion: {KindItem},
}

// IDs dos dados iniciais.
const (
	DefaultHubID     = "b.default-hub"
	DefaultProjectID = "b.default-project"
	DefaultFolderID  = "urn:adsk.wipprod:fs.folder:co.default-root"
)

// Node é um recurso da hierarquia. O pai é referenciado apenas por id e tipo.
type Node struct {
	ID         string                 `json:"id"`
	Kind       Kind                   `json:"type"`
	ParentID   string                 `json:"parentId,omitempty"`
	ParentKind Kind                   `json:"parentType,omitempty"`
	Name       string                 `json:"name"`
	Attributes map[string]interface{} `json:"attributes,omitempty"`
	CreatedAt  time.Time              `json:"createdAt"`
	UpdatedAt  time.Time              `json:"updatedAt"`
}

func (n Node) clone() Node {
	if n.Attributes != nil {
		attrs := make(map[string]interface{}, len(n.Attributes))
		for k, v := range n.Attributes {
			attrs[k] = v
		}
		n.Attributes = attrs
	}
	return n
}

type ref struct {
	kind Kind
	id   string
}

// Hierarchy guarda hubs, projetos, pastas, itens e versões.
// IDs são únicos por tipo. A política de remoção é configurável (padrão: recusar quando há filhos).
type Hierarchy struct {
	mu       sync.RWMutex
	nodes    map[Kind]*Collection[Node]
	children map[ref][]ref
	policy   DeletePolicy
	now      func() time.Time
	newID    func() string
	// issues é ligado pelo Store. Remover um projeto consulta as issues dele (ordem: hierarquia -> issues).
	issues *Issues
}

func newHierarchy(opts Options) *Hierarchy {
	h := &Hierarchy{policy: opts.HierarchyDelete, now: opts.Clock, newID: opts.NewID}
	h.reset()
	return h
}

func (h *Hierarchy) reset() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nodes = make(map[Kind]*Collection[Node])
	for kind := range allowedParents {
		h.nodes[kind] = NewCollection[Node]()
	}
	h.children = make(map[ref][]ref)
}

func (h *Hierarchy) seed() {
	_, _ = h.Create(KindHub, "", Node{ID: DefaultHubID, Name: "Default Hub",
		Attributes: map[string]interface{}{"region": "US", "extension": map[string]interface{}{"type": "hubs:autodesk.bim360:Account"}}})
	_, _ = h.Create(KindProject, DefaultHubID, Node{ID: DefaultProjectID, Name: "Default Project"})
	_, _ = h.Create(KindFolder, DefaultProjectID, Node{ID: DefaultFolderID, Name: "Project Files"})
}

// Create valida o tipo do pai e insere o nó. ID vazio é gerado.
func (h *Hierarchy) Create(kind Kind, parentID string, node Node) (Node, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.createLocked(kind, parentID, node)
}

// CreateItem insere o item e sua primeira versão na mesma seção crítica.
// Se a versão falhar, o item não fica no store.
func (h *Hierarchy) CreateItem(parentID string, item, version Node) (Node, Node, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	created, err := h.createLocked(KindItem, parentID, item)
	if err != nil {
		return Node{}, Node{}, err
	}
	if version.Name == "" {
		version.Name = created.Name
	}
	first, err := h.createLocked(KindVersion, created.ID, version)
	if err != nil {
		h.detachLocked(created)
		return Node{}, Node{}, err
	}
	return created, first, nil
}

func (h *Hierarchy) createLocked(kind Kind, parentID string, node Node) (Node, error) {
	parents, ok := allowedParents[kind]
	if !ok {
		return Node{}, faults.Validation(fmt.Sprintf("tipo de recurso desconhecido '%s'", kind))
	}
	if node.Name == "" && kind != KindVersion {
		return Node{}, faults.Validation("name é obrigatório")
	}

	node.Kind = kind
	if len(parents) == 0 {
		if parentID != "" {
			return Node{}, faults.Referential(fmt.Sprintf("%s não aceita pai", kind))
		}
	} else {
		parentKind, found := h.findLocked(parentID, parents)
		if !found {
			return Node{}, faults.Referential(fmt.Sprintf("pai '%s' não existe ou não pode conter %s", parentID, kind))
		}
		node.ParentID = parentID
		node.ParentKind = parentKind
	}

	if node.ID == "" {
		node.ID = h.generateIDLocked(kind, parentID)
	}

	now := h.now()
	node.CreatedAt, node.UpdatedAt = now, now
	node = node.clone()

	if !h.nodes[kind].Insert(node.ID, node) {
		return Node{}, faults.Conflict(fmt.Sprintf("%s '%s' já existe", kind, node.ID))
	}
	if node.ParentID != "" {
		parent := ref{node.ParentKind, node.ParentID}
		h.children[parent] = append(h.children[parent], ref{kind, node.ID})
	}
	return node.clone(), nil
}

func (h *Hierarchy) generateIDLocked(kind Kind, parentID string) string {
	short := h.newID()
	switch kind {
	case KindHub, KindProject:
		return "b." + short
	case KindFolder:
		return "urn:adsk.wipprod:fs.folder:co." + short
	case KindItem:
		return "urn:adsk.wipprod:dm.lineage:" + short
	default:
		lineage := parentID[strings.LastIndex(parentID, ":")+1:]
		for n := len(h.children[ref{KindItem, parentID}]) + 1; ; n++ {
			id := fmt.Sprintf("urn:adsk.wipprod:fs.file:vf.%s?version=%d", lineage, n)
			if !h.nodes[KindVersion].Has(id) {
				return id
			}
		}
	}
}

func (h *Hierarchy) findLocked(id string, kinds []Kind) (Kind, bool) {
	for _, kind := range kinds {
		if h.nodes[kind].Has(id) {
			return kind, true
		}
	}
	return "", false
}

func (h *Hierarchy) Get(kind Kind, id string) (Node, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	col, ok := h.nodes[kind]
	if !ok {
		return Node{}, faults.Validation(fmt.Sprintf("tipo de recurso desconhecido '%s'", kind))
	}
	node, ok := col.Get(id)
	if !ok {
		return Node{}, faults.NotFound(fmt.Sprintf("%s '%s' não encontrado", kind, id))
	}
	return node.clone(), nil
}

// Exists informa se o nó existe.
func (h *Hierarchy) Exists(kind Kind, id string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.existsLocked(kind, id)
}

func (h *Hierarchy) existsLocked(kind Kind, id string) bool {
	col, ok := h.nodes[kind]
	return ok && col.Has(id)
}

// List devolve todos os nós de um tipo em ordem de criação.
func (h *Hierarchy) List(kind Kind) []Node {
	h.mu.RLock()
	defer h.mu.RUnlock()

	col, ok := h.nodes[kind]
	if !ok {
		return nil
	}
	out := col.Values()
	for i := range out {
		out[i] = out[i].clone()
	}
	return out
}

// Children devolve os filhos diretos em ordem de criação. childKind vazio devolve todos os tipos.
func (h *Hierarchy) Children(kind Kind, id string, childKind Kind) ([]Node, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if !h.existsLocked(kind, id) {
		return nil, faults.NotFound(fmt.Sprintf("%s '%s' não encontrado", kind, id))
	}
	out := []Node{}
	for _, child := range h.children[ref{kind, id}] {
		if childKind != "" && child.kind != childKind {
			continue
		}
		node, _ := h.nodes[child.kind].Get(child.id)
		out = append(out, node.clone())
	}
	return out, nil
}

// Update aplica fn sobre uma cópia do nó. ID, tipo e pai não podem ser alterados.
func (h *Hierarchy) Update(kind Kind, id string, fn func(*Node)) (Node, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	col, ok := h.nodes[kind]
	if !ok {
		return Node{}, faults.Validation(fmt.Sprintf("tipo de recurso desconhecido '%s'", kind))
	}
	current, ok := col.Get(id)
	if !ok {
		return Node{}, faults.NotFound(fmt.Sprintf("%s '%s' não encontrado", kind, id))
	}

	updated := current.clone()
	fn(&updated)
	updated.ID, updated.Kind = current.ID, current.Kind
	updated.ParentID, updated.ParentKind = current.ParentID, current.ParentKind
	updated.CreatedAt = current.CreatedAt
	updated.UpdatedAt = h.now()

	col.Put(id, updated.clone())
	return updated, nil
}

// Delete remove o nó de acordo com a política configurada.
func (h *Hierarchy) Delete(kind Kind, id string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.existsLocked(kind, id) {
		return faults.NotFound(fmt.Sprintf("%s '%s' não encontrado", kind, id))
	}
	target := ref{kind, id}
	if h.policy != CascadeDelete {
		if n := len(h.children[target]); n > 0 {
			return faults.Conflict(fmt.Sprintf("%s '%s' possui %d filho(s)", kind, id, n))
		}
		if n := h.issueCountLocked(target); n > 0 {
			return faults.Conflict(fmt.Sprintf("%s '%s' possui %d issue(s)", kind, id, n))
		}
	}

	node, _ := h.nodes[kind].Get(id)
	h.detachLocked(node)
	return nil
}

// detachLocked tira o nó da lista de filhos do pai e remove a subárvore.
func (h *Hierarchy) detachLocked(node Node) {
	target := ref{node.Kind, node.ID}
	if node.ParentID != "" {
		parent := ref{node.ParentKind, node.ParentID}
		siblings := h.children[parent]
		for i, s := range siblings {
			if s == target {
				h.children[parent] = append(siblings[:i:i], siblings[i+1:]...)
				break
			}
		}
	}
	h.removeLocked(target)
}

func (h *Hierarchy) removeLocked(target ref) {
	for _, child := range h.children[target] {
		h.removeLocked(child)
	}
	delete(h.children, target)
	h.nodes[target.kind].Delete(target.id)
	if target.kind == KindProject && h.issues != nil {
		h.issues.dropProject(target.id)
	}
}

func (h *Hierarchy) issueCountLocked(target ref) int {
	if target.kind != KindProject || h.issues == nil {
		return 0
	}
	return h.issues.countProject(target.id)
}
