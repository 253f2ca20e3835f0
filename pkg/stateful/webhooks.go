package stateful

import (
	"context"

	"github.com/raywall/spec-emulator/pkg/state"
	"github.com/raywall/spec-emulator/pkg/types"
)

func (h *Handlers) webhookDefinitions() []Definition {
	const hooks = "/webhooks/v1/systems/{system}/events/{event}/hooks"
	return []Definition{
		def("webhooks.all", "GET", "/webhooks/v1/hooks", h.allHooks),
		def("webhooks.system", "GET", "/webhooks/v1/systems/{system}/hooks", h.systemHooks),
		def("webhooks.list", "GET", hooks, h.eventHooks),
		def("webhooks.create", "POST", hooks, h.createHook),
		def("webhooks.get", "GET", hooks+"/{hookId}", h.getHook),
		def("webhooks.update", "PATCH", hooks+"/{hookId}", h.updateHook),
		def("webhooks.delete", "DELETE", hooks+"/{hookId}", h.deleteHook),
	}
}

func hookPage(list []state.Webhook) map[string]interface{} {
	return map[string]interface{}{"links": map[string]interface{}{"next": nil}, "data": list}
}

func (h *Handlers) allHooks(ctx context.Context, req *types.Request) (*types.Response, error) {
	return ok(hookPage(h.store.Webhooks.All()))
}

func (h *Handlers) systemHooks(ctx context.Context, req *types.Request) (*types.Response, error) {
	return ok(hookPage(h.store.Webhooks.ListBySystem(req.Param("system"))))
}

func (h *Handlers) eventHooks(ctx context.Context, req *types.Request) (*types.Response, error) {
	return ok(hookPage(h.store.Webhooks.List(req.Param("system"), req.Param("event"))))
}

type hookRequest struct {
	CallbackURL   string                 `json:"callbackUrl"`
	Scope         state.WebhookScope     `json:"scope"`
	Filter        string                 `json:"filter"`
	HookAttribute map[string]interface{} `json:"hookAttribute"`
	Tenant        string                 `json:"tenant"`
	Status        string                 `json:"status"`
}

func (h *Handlers) createHook(ctx context.Context, req *types.Request) (*types.Response, error) {
	var in hookRequest
	if err := decode(req, &in); err != nil {
		return nil, err
	}
	hook, err := h.store.Webhooks.Create(state.Webhook{
		System:      req.Param("system"),
		Event:       req.Param("event"),
		Tenant:      in.Tenant,
		CallbackURL: in.CallbackURL,
		Scope:       in.Scope,
		Status:      in.Status,
		Filter:      in.Filter,
		Attributes:  in.HookAttribute,
	})
	if err != nil {
		return nil, err
	}
	resp := types.JSON(201, hook)
	resp.Headers = map[string]string{
		"Location": "/webhooks/v1/systems/" + hook.System + "/events/" + hook.Event + "/hooks/" + hook.HookID,
	}
	return resp, nil
}

func (h *Handlers) getHook(ctx context.Context, req *types.Request) (*types.Response, error) {
	hook, err := h.store.Webhooks.Get(req.Param("system"), req.Param("event"), req.Param("hookId"))
	if err != nil {
		return nil, err
	}
	return ok(hook)
}

func (h *Handlers) updateHook(ctx context.Context, req *types.Request) (*types.Response, error) {
	var patch state.WebhookPatch
	if err := decode(req, &patch); err != nil {
		return nil, err
	}
	hook, err := h.store.Webhooks.Update(req.Param("system"), req.Param("event"), req.Param("hookId"), patch)
	if err != nil {
		return nil, err
	}
	return ok(hook)
}

func (h *Handlers) deleteHook(ctx context.Context, req *types.Request) (*types.Response, error) {
	if err := h.store.Webhooks.Delete(req.Param("system"), req.Param("event"), req.Param("hookId")); err != nil {
		return nil, err
	}
	return noContent()
}
