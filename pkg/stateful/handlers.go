package stateful

import (
	"net/http"

	"github.com/raywall/spec-emulator/pkg/faults"
	"github.com/raywall/spec-emulator/pkg/identity"
	"github.com/raywall/spec-emulator/pkg/state"
	"github.com/raywall/spec-emulator/pkg/types"
)

// Handlers expõe os módulos de estado via HTTP. O store e o serviço de identidade são
// recebidos na construção e compartilhados por todos os handlers.
type Handlers struct {
	store *state.Store
	ids   *identity.Service
}

func New(store *state.Store, ids *identity.Service) *Handlers {
	return &Handlers{store: store, ids: ids}
}

type handlerFunc = types.HandlerFunc

func def(name, method, template string, fn handlerFunc) Definition {
	return Definition{Name: name, Method: method, Template: template, Handler: fn}
}

func public(name, method, template string, fn handlerFunc) Definition {
	d := def(name, method, template, fn)
	d.Public = true
	return d
}

// Definitions lista todos os handlers stateful padrão.
func (h *Handlers) Definitions() []Definition {
	var defs []Definition
	defs = append(defs, h.authDefinitions()...)
	defs = append(defs, h.ossDefinitions()...)
	defs = append(defs, h.projectDefinitions()...)
	defs = append(defs, h.dataDefinitions()...)
	defs = append(defs, h.derivativeDefinitions()...)
	defs = append(defs, h.issueDefinitions()...)
	defs = append(defs, h.webhookDefinitions()...)
	return defs
}

// NewDefaultRegistry registra todos os handlers padrão.
func NewDefaultRegistry(store *state.Store, ids *identity.Service) (*Registry, error) {
	reg := NewRegistry()
	for _, d := range New(store, ids).Definitions() {
		if err := reg.Register(d); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

func ok(body interface{}) (*types.Response, error) {
	return types.JSON(http.StatusOK, body), nil
}

func created(body interface{}) (*types.Response, error) {
	return types.JSON(http.StatusCreated, body), nil
}

func noContent() (*types.Response, error) {
	return types.Empty(http.StatusNoContent), nil
}

// decode lê o corpo JSON. Corpo vazio ou inválido é ValidationError.
func decode(req *types.Request, v interface{}) error {
	if err := req.DecodeJSON(v); err != nil {
		return faults.NewTypedError(faults.ValidationError, err.Error(), err)
	}
	return nil
}

func items(list interface{}) map[string]interface{} {
	return map[string]interface{}{"items": list}
}
