package stateful

import (
	"context"
	"time"

	"github.com/raywall/spec-emulator/pkg/faults"
	"github.com/raywall/spec-emulator/pkg/state"
	"github.com/raywall/spec-emulator/pkg/types"
)

func (h *Handlers) projectDefinitions() []Definition {
	return []Definition{
		def("project.hubs.list", "GET", "/project/v1/hubs", h.listHubs),
		def("project.hubs.create", "POST", "/project/v1/hubs", h.createHub),
		def("project.hubs.get", "GET", "/project/v1/hubs/{hubId}", h.getHub),
		def("project.projects.list", "GET", "/project/v1/hubs/{hubId}/projects", h.listProjects),
		def("project.projects.create", "POST", "/project/v1/hubs/{hubId}/projects", h.createProject),
		def("project.projects.get", "GET", "/project/v1/hubs/{hubId}/projects/{projectId}", h.getProject),
		def("project.projects.delete", "DELETE", "/project/v1/hubs/{hubId}/projects/{projectId}", h.deleteProject),
		def("project.topfolders", "GET", "/project/v1/hubs/{hubId}/projects/{projectId}/topFolders", h.topFolders),
	}
}

func (h *Handlers) dataDefinitions() []Definition {
	return []Definition{
		def("data.folders.create", "POST", "/data/v1/projects/{projectId}/folders", h.createFolder),
		def("data.folders.get", "GET", "/data/v1/projects/{projectId}/folders/{folderId}", h.getFolder),
		def("data.folders.update", "PATCH", "/data/v1/projects/{projectId}/folders/{folderId}", h.updateFolder),
		def("data.folders.delete", "DELETE", "/data/v1/projects/{projectId}/folders/{folderId}", h.deleteFolder),
		def("data.folders.contents", "GET", "/data/v1/projects/{projectId}/folders/{folderId}/contents", h.folderContents),
		def("data.items.create", "POST", "/data/v1/projects/{projectId}/items", h.createItem),
		def("data.items.get", "GET", "/data/v1/projects/{projectId}/items/{itemId}", h.getItem),
		def("data.items.delete", "DELETE", "/data/v1/projects/{projectId}/items/{itemId}", h.deleteItem),
		def("data.items.versions", "GET", "/data/v1/projects/{projectId}/items/{itemId}/versions", h.itemVersions),
		def("data.versions.create", "POST", "/data/v1/projects/{projectId}/versions", h.createVersion),
		def("data.versions.get", "GET", "/data/v1/projects/{projectId}/versions/{versionId}", h.getVersion),
	}
}

// Documento JSON:API recebido nas criações.
type jsonAPIRef struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

type jsonAPIResource struct {
	Type          string                               `json:"type"`
	ID            string                               `json:"id"`
	Attributes    map[string]interface{}               `json:"attributes"`
	Relationships map[string]struct{ Data jsonAPIRef } `json:"relationships"`
}

type jsonAPIDocument struct {
	Data     jsonAPIResource   `json:"data"`
	Included []jsonAPIResource `json:"included"`
}

func (r jsonAPIResource) relationship(name string) string {
	if rel, ok := r.Relationships[name]; ok {
		return rel.Data.ID
	}
	return ""
}

func (r jsonAPIResource) name() string {
	for _, key := range []string{"name", "displayName"} {
		if s, ok := r.Attributes[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// node converte o recurso recebido em nó, sem os atributos de nome (guardados em Name).
func (r jsonAPIResource) node() state.Node {
	attrs := make(map[string]interface{})
	for k, v := range r.Attributes {
		if k != "name" && k != "displayName" {
			attrs[k] = v
		}
	}
	if len(attrs) == 0 {
		attrs = nil
	}
	return state.Node{ID: r.ID, Name: r.name(), Attributes: attrs}
}

var relationshipName = map[state.Kind]string{
	state.KindProject: "hub",
	state.KindFolder:  "parent",
	state.KindItem:    "parent",
	state.KindVersion: "item",
}

// resource serializa o nó no formato JSON:API.
func resource(n state.Node) map[string]interface{} {
	attrs := map[string]interface{}{
		"name":             n.Name,
		"createTime":       n.CreatedAt.UTC().Format(time.RFC3339Nano),
		"lastModifiedTime": n.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
	if n.Kind == state.KindItem || n.Kind == state.KindVersion {
		attrs["displayName"] = n.Name
	}
	for k, v := range n.Attributes {
		attrs[k] = v
	}

	res := map[string]interface{}{
		"type":       string(n.Kind),
		"id":         n.ID,
		"attributes": attrs,
	}
	if n.ParentID != "" {
		res["relationships"] = map[string]interface{}{
			relationshipName[n.Kind]: map[string]interface{}{
				"data": map[string]interface{}{"type": string(n.ParentKind), "id": n.ParentID},
			},
		}
	}
	return res
}

func document(data interface{}) map[string]interface{} {
	return map[string]interface{}{
		"jsonapi": map[string]interface{}{"version": "1.0"},
		"data":    data,
	}
}

func resources(nodes []state.Node) []interface{} {
	out := make([]interface{}, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, resource(n))
	}
	return out
}

func (h *Handlers) getNode(kind state.Kind, id string) (*types.Response, error) {
	n, err := h.store.Hierarchy.Get(kind, id)
	if err != nil {
		return nil, err
	}
	return ok(document(resource(n)))
}

func (h *Handlers) children(kind state.Kind, id string, childKind state.Kind) (*types.Response, error) {
	nodes, err := h.store.Hierarchy.Children(kind, id, childKind)
	if err != nil {
		return nil, err
	}
	return ok(document(resources(nodes)))
}

func (h *Handlers) createNode(req *types.Request, kind state.Kind, parentID string) (*types.Response, error) {
	var doc jsonAPIDocument
	if err := decode(req, &doc); err != nil {
		return nil, err
	}
	n, err := h.store.Hierarchy.Create(kind, parentID, doc.Data.node())
	if err != nil {
		return nil, err
	}
	return created(document(resource(n)))
}

func (h *Handlers) listHubs(ctx context.Context, req *types.Request) (*types.Response, error) {
	return ok(document(resources(h.store.Hierarchy.List(state.KindHub))))
}

func (h *Handlers) createHub(ctx context.Context, req *types.Request) (*types.Response, error) {
	return h.createNode(req, state.KindHub, "")
}

func (h *Handlers) getHub(ctx context.Context, req *types.Request) (*types.Response, error) {
	return h.getNode(state.KindHub, req.Param("hubId"))
}

func (h *Handlers) listProjects(ctx context.Context, req *types.Request) (*types.Response, error) {
	return h.children(state.KindHub, req.Param("hubId"), state.KindProject)
}

func (h *Handlers) createProject(ctx context.Context, req *types.Request) (*types.Response, error) {
	return h.createNode(req, state.KindProject, req.Param("hubId"))
}

// projectInHub exige que o projeto pertença ao hub do path.
func (h *Handlers) projectInHub(req *types.Request) (state.Node, error) {
	project, err := h.store.Hierarchy.Get(state.KindProject, req.Param("projectId"))
	if err != nil {
		return state.Node{}, err
	}
	if project.ParentID != req.Param("hubId") {
		return state.Node{}, faults.NotFound("projeto '" + project.ID + "' não pertence ao hub '" + req.Param("hubId") + "'")
	}
	return project, nil
}

func (h *Handlers) getProject(ctx context.Context, req *types.Request) (*types.Response, error) {
	project, err := h.projectInHub(req)
	if err != nil {
		return nil, err
	}
	return ok(document(resource(project)))
}

func (h *Handlers) deleteProject(ctx context.Context, req *types.Request) (*types.Response, error) {
	project, err := h.projectInHub(req)
	if err != nil {
		return nil, err
	}
	if err := h.store.Hierarchy.Delete(state.KindProject, project.ID); err != nil {
		return nil, err
	}
	return noContent()
}

func (h *Handlers) topFolders(ctx context.Context, req *types.Request) (*types.Response, error) {
	project, err := h.projectInHub(req)
	if err != nil {
		return nil, err
	}
	return h.children(state.KindProject, project.ID, state.KindFolder)
}

// parentOr devolve o pai declarado em relationships.parent ou o valor padrão.
func parentOr(doc jsonAPIDocument, fallback string) string {
	if id := doc.Data.relationship("parent"); id != "" {
		return id
	}
	return fallback
}

func (h *Handlers) createFolder(ctx context.Context, req *types.Request) (*types.Response, error) {
	var doc jsonAPIDocument
	if err := decode(req, &doc); err != nil {
		return nil, err
	}
	n, err := h.store.Hierarchy.Create(state.KindFolder, parentOr(doc, req.Param("projectId")), doc.Data.node())
	if err != nil {
		return nil, err
	}
	return created(document(resource(n)))
}

func (h *Handlers) getFolder(ctx context.Context, req *types.Request) (*types.Response, error) {
	return h.getNode(state.KindFolder, req.Param("folderId"))
}

func (h *Handlers) updateFolder(ctx context.Context, req *types.Request) (*types.Response, error) {
	var doc jsonAPIDocument
	if err := decode(req, &doc); err != nil {
		return nil, err
	}
	patch := doc.Data.node()
	n, err := h.store.Hierarchy.Update(state.KindFolder, req.Param("folderId"), func(n *state.Node) {
		if patch.Name != "" {
			n.Name = patch.Name
		}
		for k, v := range patch.Attributes {
			if n.Attributes == nil {
				n.Attributes = make(map[string]interface{})
			}
			n.Attributes[k] = v
		}
	})
	if err != nil {
		return nil, err
	}
	return ok(document(resource(n)))
}

func (h *Handlers) deleteFolder(ctx context.Context, req *types.Request) (*types.Response, error) {
	if err := h.store.Hierarchy.Delete(state.KindFolder, req.Param("folderId")); err != nil {
		return nil, err
	}
	return noContent()
}

func (h *Handlers) folderContents(ctx context.Context, req *types.Request) (*types.Response, error) {
	return h.children(state.KindFolder, req.Param("folderId"), "")
}

// createItem cria o item e sua primeira versão. A versão pode vir em included.
func (h *Handlers) createItem(ctx context.Context, req *types.Request) (*types.Response, error) {
	var doc jsonAPIDocument
	if err := decode(req, &doc); err != nil {
		return nil, err
	}
	first := state.Node{}
	for _, inc := range doc.Included {
		if inc.Type == string(state.KindVersion) {
			first = inc.node()
			break
		}
	}
	item, version, err := h.store.Hierarchy.CreateItem(parentOr(doc, req.Param("projectId")), doc.Data.node(), first)
	if err != nil {
		return nil, err
	}

	body := document(resource(item))
	body["included"] = []interface{}{resource(version)}
	return created(body)
}

func (h *Handlers) getItem(ctx context.Context, req *types.Request) (*types.Response, error) {
	return h.getNode(state.KindItem, req.Param("itemId"))
}

func (h *Handlers) deleteItem(ctx context.Context, req *types.Request) (*types.Response, error) {
	if err := h.store.Hierarchy.Delete(state.KindItem, req.Param("itemId")); err != nil {
		return nil, err
	}
	return noContent()
}

func (h *Handlers) itemVersions(ctx context.Context, req *types.Request) (*types.Response, error) {
	return h.children(state.KindItem, req.Param("itemId"), state.KindVersion)
}

func (h *Handlers) createVersion(ctx context.Context, req *types.Request) (*types.Response, error) {
	var doc jsonAPIDocument
	if err := decode(req, &doc); err != nil {
		return nil, err
	}
	itemID := doc.Data.relationship("item")
	if itemID == "" {
		return nil, faults.Validation("relationships.item.data.id é obrigatório")
	}
	n, err := h.store.Hierarchy.Create(state.KindVersion, itemID, doc.Data.node())
	if err != nil {
		return nil, err
	}
	return created(document(resource(n)))
}

func (h *Handlers) getVersion(ctx context.Context, req *types.Request) (*types.Response, error) {
	return h.getNode(state.KindVersion, req.Param("versionId"))
}
