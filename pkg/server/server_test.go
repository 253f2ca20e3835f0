package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/raywall/spec-emulator/pkg/catalog"
	"github.com/raywall/spec-emulator/pkg/config"
	"github.com/raywall/spec-emulator/pkg/dispatch"
	"github.com/raywall/spec-emulator/pkg/override"
	"github.com/raywall/spec-emulator/pkg/state"
	"github.com/raywall/spec-emulator/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hubOp() *catalog.Operation {
	return &catalog.Operation{
		ID:           "getHub",
		Method:       "GET",
		Path:         "/project/v1/hubs/{hub_id}",
		RequiresAuth: true,
		Responses: map[string]*catalog.Response{
			"200": {Content: map[string]*catalog.MediaType{
				"application/json": {Example: map[string]interface{}{"id": "example-hub"}, HasExample: true},
			}},
		},
	}
}

func newServer(t *testing.T, mode string, opts Options) *Server {
	t.Helper()
	cfg := config.Default()
	cfg.Server.Mode = mode
	if opts.Catalog == nil {
		opts.Catalog = catalog.New(hubOp())
	}
	srv, err := New(context.Background(), cfg, opts)
	require.NoError(t, err)
	return srv
}

func send(t *testing.T, h http.Handler, method, target, body string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func jsonBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func token(t *testing.T, h http.Handler, clientID string) string {
	t.Helper()
	rec := send(t, h, "POST", "/authentication/v2/token",
		"grant_type=client_credentials&client_id="+clientID+"&client_secret=s",
		map[string]string{"Content-Type": "application/x-www-form-urlencoded"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return jsonBody(t, rec)["access_token"].(string)
}

func bearer(tok string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + tok}
}

func TestServer_StatelessServesExamples(t *testing.T) {
	srv := newServer(t, dispatch.ModeStateless, Options{})
	h := srv.Handler()

	rec := send(t, h, "GET", "/project/v1/hubs/h1", "", bearer("qualquer-coisa"))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "generic", rec.Header().Get(dispatch.HeaderStrategy))
	assert.Equal(t, "example-hub", jsonBody(t, rec)["id"])
	assert.NotEmpty(t, rec.Header().Get("X-Correlation-ID"))

	rec = send(t, h, "GET", "/project/v1/hubs/h1", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "AUTH-001", jsonBody(t, rec)["errorCode"])

	// sem handlers stateful, a rota de token não existe
	rec = send(t, h, "POST", "/authentication/v2/token", "client_id=a", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_ItemNeedsProject(t *testing.T) {
	srv := newServer(t, dispatch.ModeStateful, Options{})
	h := srv.Handler()
	auth := bearer(token(t, h, "app"))
	item := `{"data":{"type":"items","id":"it1","attributes":{"displayName":"planta.dwg"}}}`

	rec := send(t, h, "POST", "/data/v1/projects/b.p1/items", item, auth)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "STATE-422", jsonBody(t, rec)["errorCode"])

	rec = send(t, h, "POST", "/project/v1/hubs/"+state.DefaultHubID+"/projects", `{"data":{"id":"b.p1","attributes":{"name":"Obra"}}}`, auth)
	require.Less(t, rec.Code, 300, rec.Body.String())

	rec = send(t, h, "POST", "/data/v1/projects/b.p1/items", item, auth)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "stateful", rec.Header().Get(dispatch.HeaderStrategy))
}

func TestServer_TokensCoexist(t *testing.T) {
	srv := newServer(t, dispatch.ModeStateful, Options{})
	h := srv.Handler()

	first := token(t, h, "app")
	second := token(t, h, "app")
	assert.NotEqual(t, first, second)

	for _, tok := range []string{first, second} {
		rec := send(t, h, "GET", "/oss/v2/buckets", "", bearer(tok))
		assert.Equal(t, http.StatusOK, rec.Code)
	}

	rec := send(t, h, "GET", "/oss/v2/buckets", "", bearer("desconhecido"))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestServer_ConcurrentBucketCreate(t *testing.T) {
	srv := newServer(t, dispatch.ModeStateful, Options{})
	h := srv.Handler()
	auth := bearer(token(t, h, "app"))

	var wg sync.WaitGroup
	codes := make([]int, 2)
	for i := range codes {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			codes[i] = send(t, h, "POST", "/oss/v2/buckets", `{"bucketKey":"disputado"}`, auth).Code
		}(i)
	}
	wg.Wait()

	sort.Ints(codes)
	assert.Equal(t, []int{http.StatusOK, http.StatusConflict}, codes)
	assert.Len(t, srv.Store().OSS.ListBuckets(), 1)
}

func TestServer_CodeOverrideWins(t *testing.T) {
	srv := newServer(t, dispatch.ModeStateful, Options{})
	h := srv.Handler()

	err := srv.Override("GET", "/project/v1/hubs/{id}", types.HandlerFunc(func(ctx context.Context, req *types.Request) (*types.Response, error) {
		return types.JSON(http.StatusTeapot, map[string]interface{}{"hub": req.Param("id")}), nil
	}), override.Options{})
	require.NoError(t, err)

	rec := send(t, h, "GET", "/project/v1/hubs/h9", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "o catálogo declara segurança na rota")

	rec = send(t, h, "GET", "/project/v1/hubs/h9", "", bearer(token(t, h, "app")))
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, "override", rec.Header().Get(dispatch.HeaderStrategy))
	assert.Equal(t, "h9", jsonBody(t, rec)["hub"])
}

func TestServer_FailedOverrideIsNotKept(t *testing.T) {
	srv := newServer(t, dispatch.ModeStateful, Options{})
	h := srv.Handler()
	teapot := types.HandlerFunc(func(ctx context.Context, req *types.Request) (*types.Response, error) {
		return types.Empty(http.StatusTeapot), nil
	})

	// rota declarada sem response não compila, então o rebuild falha
	srv.Config().Overrides = []override.Route{{Method: "GET", Path: "/quebrada"}}
	err := srv.Override("GET", "/project/v1/hubs/{id}", teapot, override.Options{})
	require.Error(t, err)

	srv.Config().Overrides = nil
	require.NoError(t, srv.Reload(context.Background()))

	rec := send(t, h, "GET", "/project/v1/hubs/h9", "", bearer(token(t, h, "app")))
	assert.NotEqual(t, http.StatusTeapot, rec.Code)
	assert.NotEqual(t, "override", rec.Header().Get(dispatch.HeaderStrategy))
	assert.Zero(t, srv.Engine().Routing().Overrides.Len())
}

func TestServer_Admin(t *testing.T) {
	srv := newServer(t, dispatch.ModeStateful, Options{})
	h := srv.Handler()
	auth := bearer(token(t, h, "app"))

	rec := send(t, h, "GET", "/__admin/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	health := jsonBody(t, rec)
	assert.Equal(t, "ok", health["status"])
	assert.Equal(t, "stateful", health["mode"])

	rec = send(t, h, "GET", "/__admin/routes", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var routes []dispatch.RouteInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &routes))
	assert.Equal(t, srv.Engine().Routing().Table.Len(), len(routes))

	urn := "urn:adsk.objects:os.object:bkt/model.rvt"
	encoded := base64.RawURLEncoding.EncodeToString([]byte(urn))
	job := `{"input":{"urn":"` + encoded + `"},"output":{"formats":[{"type":"svf"}]}}`
	rec = send(t, h, "POST", "/modelderivative/v2/designdata/job", job, auth)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = send(t, h, "PATCH", "/__admin/translations/"+encoded, "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "inprogress", jsonBody(t, rec)["status"])

	rec = send(t, h, "PATCH", "/__admin/translations/"+encoded, `{"status":"success"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "success", jsonBody(t, rec)["status"])

	rec = send(t, h, "PATCH", "/__admin/translations/"+encoded, `{"status":"pending"}`, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = send(t, h, "POST", "/__admin/reset", "", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, srv.Store().Translations.List())

	rec = send(t, h, "GET", "/oss/v2/buckets", "", auth)
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "reset revoga os tokens")
}

const reloadYAML = `
version: "1.0"
server:
  name: aps-emulator
  runtime: local
  port: 8080
  mode: stateful
  openapi_dir: %s
overrides:
  - method: GET
    path: /project/v1/hubs/{hubId}
    response:
      status: 200
      body:
        origem: config
`

func TestServer_Reload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "emulator.yaml")
	require.NoError(t, os.WriteFile(path, []byte(strings.Replace(reloadYAML, "%s", dir, 1)), 0o600))

	cfg, err := config.Load(context.Background(), path)
	require.NoError(t, err)
	cfg.Overrides = nil

	srv, err := New(context.Background(), cfg, Options{ConfigSource: path, Catalog: catalog.New(hubOp())})
	require.NoError(t, err)
	h := srv.Handler()
	auth := bearer(token(t, h, "app"))

	rec := send(t, h, "POST", "/oss/v2/buckets", `{"bucketKey":"persistente"}`, auth)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEqual(t, "override", send(t, h, "GET", "/project/v1/hubs/x", "", auth).Header().Get(dispatch.HeaderStrategy))

	rec = send(t, h, "POST", "/__admin/reload", "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = send(t, h, "GET", "/project/v1/hubs/x", "", auth)
	assert.Equal(t, "override", rec.Header().Get(dispatch.HeaderStrategy))
	assert.Equal(t, "config", jsonBody(t, rec)["origem"])

	// estado e tokens sobrevivem ao reload
	assert.Len(t, srv.Store().OSS.ListBuckets(), 1)

	require.NoError(t, os.WriteFile(path, []byte("version: ["), 0o600))
	rec = send(t, h, "POST", "/__admin/reload", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = send(t, h, "GET", "/project/v1/hubs/x", "", auth)
	assert.Equal(t, "override", rec.Header().Get(dispatch.HeaderStrategy), "snapshot anterior continua ativo")
}

func TestNewTestServer(t *testing.T) {
	srv, ts, err := NewTestServer(context.Background(), nil, Options{Catalog: catalog.New(hubOp())})
	require.NoError(t, err)
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/authentication/v2/token", "application/x-www-form-urlencoded",
		strings.NewReader("client_id=app&client_secret=s"))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "stateful", resp.Header.Get(dispatch.HeaderStrategy))
	assert.Len(t, srv.Identity().Tokens("app"), 1)
}
