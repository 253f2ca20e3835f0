package stateful

import (
	"context"

	"github.com/raywall/spec-emulator/pkg/state"
	"github.com/raywall/spec-emulator/pkg/types"
)

func (h *Handlers) issueDefinitions() []Definition {
	const base = "/construction/issues/v1/projects/{projectId}/issues"
	return []Definition{
		def("issues.list", "GET", base, h.listIssues),
		def("issues.create", "POST", base, h.createIssue),
		def("issues.get", "GET", base+"/{issueId}", h.getIssue),
		def("issues.update", "PATCH", base+"/{issueId}", h.updateIssue),
		def("issues.delete", "DELETE", base+"/{issueId}", h.deleteIssue),
	}
}

func (h *Handlers) listIssues(ctx context.Context, req *types.Request) (*types.Response, error) {
	list, err := h.store.Issues.List(req.Param("projectId"), req.Query.Get("filter[status]"))
	if err != nil {
		return nil, err
	}
	return ok(map[string]interface{}{
		"pagination": map[string]interface{}{"limit": len(list), "offset": 0, "totalResults": len(list)},
		"results":    list,
	})
}

func (h *Handlers) createIssue(ctx context.Context, req *types.Request) (*types.Response, error) {
	var in state.Issue
	if err := decode(req, &in); err != nil {
		return nil, err
	}
	in.ID = ""
	issue, err := h.store.Issues.Create(req.Param("projectId"), in)
	if err != nil {
		return nil, err
	}
	return created(issue)
}

func (h *Handlers) getIssue(ctx context.Context, req *types.Request) (*types.Response, error) {
	issue, err := h.store.Issues.Get(req.Param("projectId"), req.Param("issueId"))
	if err != nil {
		return nil, err
	}
	return ok(issue)
}

func (h *Handlers) updateIssue(ctx context.Context, req *types.Request) (*types.Response, error) {
	var patch state.IssuePatch
	if err := decode(req, &patch); err != nil {
		return nil, err
	}
	issue, err := h.store.Issues.Update(req.Param("projectId"), req.Param("issueId"), patch)
	if err != nil {
		return nil, err
	}
	return ok(issue)
}

func (h *Handlers) deleteIssue(ctx context.Context, req *types.Request) (*types.Response, error) {
	if err := h.store.Issues.Delete(req.Param("projectId"), req.Param("issueId")); err != nil {
		return nil, err
	}
	return noContent()
}
