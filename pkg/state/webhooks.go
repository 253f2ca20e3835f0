package state

import (
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/raywall/spec-emulator/pkg/faults"
)

const (
	HookActive   = "active"
	HookInactive = "inactive"
)

type WebhookScope struct {
	Folder  string `json:"folder,omitempty"`
	Project string `json:"project,omitempty"`
}

type Webhook struct {
	HookID      string                 `json:"hookId"`
	System      string                 `json:"system"`
	Event       string                 `json:"event"`
	Tenant      string                 `json:"tenant,omitempty"`
	CallbackURL string                 `json:"callbackUrl"`
	Scope       WebhookScope           `json:"scope"`
	Status      string                 `json:"status"`
	Filter      string                 `json:"filter,omitempty"`
	Attributes  map[string]interface{} `json:"hookAttribute,omitempty"`
	CreatedAt   time.Time              `json:"createdDate"`
}

func (w Webhook) key() string {
	return w.System + "|" + w.Event + "|" + w.CallbackURL + "|" + w.Scope.Folder + "|" + w.Scope.Project
}

// WebhookPatch contém os campos alteráveis de um webhook.
type WebhookPatch struct {
	Status     *string                `json:"status"`
	Filter     *string                `json:"filter"`
	Attributes map[string]interface{} `json:"hookAttribute"`
}

// Webhooks guarda registros de webhook indexados por id e por sistema.
// A combinação (system, event, callbackUrl, scope) é única.
type Webhooks struct {
	mu       sync.RWMutex
	hooks    *Collection[Webhook]
	bySystem map[string][]string
	unique   map[string]string
	now      func() time.Time
	newID    func() string
}

func newWebhooks(opts Options) *Webhooks {
	w := &Webhooks{now: opts.Clock, newID: opts.NewID}
	w.reset()
	return w
}

func (w *Webhooks) reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.hooks = NewCollection[Webhook]()
	w.bySystem = make(map[string][]string)
	w.unique = make(map[string]string)
}

// Create registra o webhook. Duplicata da mesma combinação resulta em ConflictError.
func (w *Webhooks) Create(hook Webhook) (Webhook, error) {
	if hook.System == "" || hook.Event == "" {
		return Webhook{}, faults.Validation("system e event são obrigatórios")
	}
	u, err := url.Parse(hook.CallbackURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return Webhook{}, faults.Validation(fmt.Sprintf("callbackUrl inválida '%s'", hook.CallbackURL))
	}
	if hook.Status == "" {
		hook.Status = HookActive
	}
	if hook.Status != HookActive && hook.Status != HookInactive {
		return Webhook{}, faults.Validation(fmt.Sprintf("status de webhook inválido '%s'", hook.Status))
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if existing, ok := w.unique[hook.key()]; ok {
		return Webhook{}, faults.Conflict(fmt.Sprintf("webhook equivalente já registrado (%s)", existing))
	}
	if hook.HookID == "" {
		hook.HookID = w.newID()
	}
	hook.CreatedAt = w.now()
	if !w.hooks.Insert(hook.HookID, hook) {
		return Webhook{}, faults.Conflict(fmt.Sprintf("webhook '%s' já existe", hook.HookID))
	}
	w.bySystem[hook.System] = append(w.bySystem[hook.System], hook.HookID)
	w.unique[hook.key()] = hook.HookID
	return hook, nil
}

// Get exige que o webhook pertença ao sistema/evento informados.
func (w *Webhooks) Get(system, event, hookID string) (Webhook, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.getLocked(system, event, hookID)
}

func (w *Webhooks) getLocked(system, event, hookID string) (Webhook, error) {
	hook, ok := w.hooks.Get(hookID)
	if !ok || hook.System != system || (event != "" && hook.Event != event) {
		return Webhook{}, faults.NotFound(fmt.Sprintf("webhook '%s' não encontrado", hookID))
	}
	return hook, nil
}

// ListBySystem usa o índice por sistema; não percorre todos os registros.
func (w *Webhooks) ListBySystem(system string) []Webhook {
	return w.List(system, "")
}

// List devolve os webhooks do sistema (e evento, se informado) em ordem de criação.
func (w *Webhooks) List(system, event string) []Webhook {
	w.mu.RLock()
	defer w.mu.RUnlock()

	out := []Webhook{}
	for _, id := range w.bySystem[system] {
		hook, _ := w.hooks.Get(id)
		if event == "" || hook.Event == event {
			out = append(out, hook)
		}
	}
	return out
}

// All devolve todos os webhooks em ordem de criação.
func (w *Webhooks) All() []Webhook {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.hooks.Values()
}

// Update altera status, filtro ou atributos.
func (w *Webhooks) Update(system, event, hookID string, patch WebhookPatch) (Webhook, error) {
	if patch.Status != nil && *patch.Status != HookActive && *patch.Status != HookInactive {
		return Webhook{}, faults.Validation(fmt.Sprintf("status de webhook inválido '%s'", *patch.Status))
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	hook, err := w.getLocked(system, event, hookID)
	if err != nil {
		return Webhook{}, err
	}
	if patch.Status != nil {
		hook.Status = *patch.Status
	}
	if patch.Filter != nil {
		hook.Filter = *patch.Filter
	}
	if patch.Attributes != nil {
		hook.Attributes = patch.Attributes
	}
	w.hooks.Put(hookID, hook)
	return hook, nil
}

func (w *Webhooks) Delete(system, event, hookID string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	hook, err := w.getLocked(system, event, hookID)
	if err != nil {
		return err
	}
	w.hooks.Delete(hookID)
	delete(w.unique, hook.key())

	ids := w.bySystem[system]
	for i, id := range ids {
		if id == hookID {
			w.bySystem[system] = append(ids[:i:i], ids[i+1:]...)
			break
		}
	}
	if len(w.bySystem[system]) == 0 {
		delete(w.bySystem, system)
	}
	return nil
}
