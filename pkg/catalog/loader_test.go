package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const objectsDoc = `
openapi: 3.0.3
info: {title: objects, version: "1"}
security:
  - bearer: []
paths:
  /objects/{objectId}:
    parameters:
      - name: objectId
        in: path
    get:
      operationId: getObject
      responses:
        200:
          description: ok
          content:
            application/json:
              schema:
                $ref: '#/components/schemas/Object'
              example: {id: obj1}
        404:
          $ref: '#/components/responses/NotFound'
    delete:
      security: []
      responses:
        "204": {description: removido}
components:
  responses:
    NotFound:
      description: não encontrado
  schemas:
    Object:
      type: object
      properties:
        id: {type: string}
        parent:
          $ref: '#/components/schemas/Object'
`

func TestParse_Operations(t *testing.T) {
	ops, err := Parse([]byte(objectsDoc), "objects.yaml")
	require.NoError(t, err)
	require.Len(t, ops, 2)

	get := ops[0]
	assert.Equal(t, "GET", get.Method)
	assert.Equal(t, "/objects/{objectId}", get.Path)
	assert.Equal(t, "getObject", get.ID)
	assert.True(t, get.RequiresAuth, "segurança do documento deveria ser herdada")
	assert.Equal(t, "objects.yaml", get.Source)

	require.Len(t, get.Parameters, 1)
	assert.Equal(t, "objectId", get.Parameters[0].Name)
	assert.True(t, get.Parameters[0].Required)

	assert.Equal(t, []string{"200", "404"}, get.StatusCodes())
	assert.Equal(t, "não encontrado", get.Responses["404"].Description)

	mt := get.Responses["200"].Content["application/json"]
	require.NotNil(t, mt)
	assert.True(t, mt.HasExample)
	assert.Equal(t, map[string]interface{}{"id": "obj1"}, mt.Example)

	del := ops[1]
	assert.Equal(t, "DELETE", del.Method)
	assert.Equal(t, "DELETE /objects/{objectId}", del.ID)
	assert.False(t, del.RequiresAuth, "security vazio desliga a autenticação")
}

func TestParse_RecursiveSchemaSharesPointer(t *testing.T) {
	ops, err := Parse([]byte(objectsDoc), "objects.yaml")
	require.NoError(t, err)

	schema := ops[0].Responses["200"].Content["application/json"].Schema
	require.NotNil(t, schema)
	assert.Equal(t, "object", schema.Type)
	assert.Same(t, schema, schema.Properties["parent"])
}

func TestParse_NamedExamplesAndJSON(t *testing.T) {
	doc := `{
  "openapi": "3.1.0",
  "paths": {
    "/hello": {
      "get": {
        "responses": {
          "200": {
            "content": {
              "application/json": {
                "examples": {
                  "zeta": {"value": {"msg": "z"}},
                  "alpha": {"value": {"msg": "a"}}
                }
              }
            }
          }
        }
      }
    }
  }
}`
	ops, err := Parse([]byte(doc), "hello.json")
	require.NoError(t, err)
	require.Len(t, ops, 1)

	examples := ops[0].Responses["200"].Content["application/json"].Examples
	assert.Len(t, examples, 2)
	assert.Equal(t, map[string]interface{}{"msg": "a"}, examples["alpha"].Value)
	assert.False(t, ops[0].RequiresAuth)
}

func TestParse_Invalid(t *testing.T) {
	_, err := Parse([]byte("::: not yaml"), "x.yaml")
	assert.Error(t, err)

	_, err = Parse([]byte(`swagger: "2.0"`), "x.yaml")
	assert.ErrorContains(t, err, "swagger")

	_, err = Parse([]byte(`openapi: 3.0.0
paths:
  relative: {get: {responses: {}}}`), "x.yaml")
	assert.Error(t, err)
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "nested"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.yaml"), []byte(objectsDoc), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "nested", "b.yml"), []byte(`openapi: 3.0.0
paths:
  /b: {post: {responses: {"201": {description: criado}}}}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.json"), []byte(`{"openapi":`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte(`# ignorado`), 0o644))

	cat, err := LoadDir(dir)
	require.NoError(t, err)
	assert.Equal(t, 3, cat.Len())

	ops := cat.Operations()
	assert.Equal(t, "/objects/{objectId}", ops[0].Path)
	assert.Equal(t, "/b", ops[2].Path)
}

func TestLoadDir_Missing(t *testing.T) {
	cat, err := LoadDir(filepath.Join(t.TempDir(), "nao-existe"))
	require.NoError(t, err)
	assert.Equal(t, 0, cat.Len())

	cat, err = LoadDir("")
	require.NoError(t, err)
	assert.Equal(t, 0, cat.Len())
}
