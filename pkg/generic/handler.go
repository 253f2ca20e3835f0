package generic

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/raywall/spec-emulator/pkg/catalog"
	"github.com/raywall/spec-emulator/pkg/types"
)

// maxSchemaDepth limita a derivação de schemas recursivos.
const maxSchemaDepth = 8

// Handler devolve a resposta de exemplo de uma operação. Tudo é calculado na construção;
// Handle não toca em estado compartilhado.
type Handler struct {
	op       *catalog.Operation
	response types.Response
}

// New pré-calcula a resposta da operação.
func New(op *catalog.Operation) *Handler {
	h := &Handler{op: op}

	status, key, ok := SuccessStatus(op)
	if !ok {
		h.response = types.Response{
			Status: http.StatusNotImplemented,
			Body: map[string]interface{}{
				"message":     "operação sem resposta de sucesso documentada",
				"operationId": op.ID,
			},
		}
		return h
	}

	h.response = types.Response{Status: status}
	if status == http.StatusNoContent {
		return h
	}

	mediaType, mt := ChooseMediaType(op.Responses[key].Content)
	if mt == nil {
		return h
	}
	body, ok := Example(mt)
	if !ok {
		return h
	}

	h.response.ContentType = mediaType
	if s, isString := body.(string); isString && !isJSON(mediaType) {
		h.response.Body = []byte(s)
	} else {
		h.response.Body = body
	}
	return h
}

func (h *Handler) Handle(ctx context.Context, req *types.Request) (*types.Response, error) {
	resp := h.response
	return &resp, nil
}

// Operation devolve a operação de origem.
func (h *Handler) Operation() *catalog.Operation {
	return h.op
}

// SuccessStatus escolhe o menor 2xx documentado. Sem 2xx, usa "2XX" ou "default" como 200.
func SuccessStatus(op *catalog.Operation) (int, string, bool) {
	best, bestKey := 0, ""
	for key := range op.Responses {
		code, err := strconv.Atoi(key)
		if err != nil || code < 200 || code > 299 {
			continue
		}
		if best == 0 || code < best {
			best, bestKey = code, key
		}
	}
	if best != 0 {
		return best, bestKey, true
	}
	if _, ok := op.Responses["2XX"]; ok {
		return http.StatusOK, "2XX", true
	}
	if _, ok := op.Responses["default"]; ok {
		return http.StatusOK, "default", true
	}
	return 0, "", false
}

// ChooseMediaType prefere application/json, depois application/vnd.api+json,
// depois outros +json e por fim a ordem lexicográfica.
func ChooseMediaType(content map[string]*catalog.MediaType) (string, *catalog.MediaType) {
	if len(content) == 0 {
		return "", nil
	}
	names := make([]string, 0, len(content))
	for name := range content {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		ri, rj := mediaRank(names[i]), mediaRank(names[j])
		if ri != rj {
			return ri < rj
		}
		return names[i] < names[j]
	})
	return names[0], content[names[0]]
}

func mediaRank(name string) int {
	base := strings.TrimSpace(strings.SplitN(name, ";", 2)[0])
	switch {
	case base == "application/json":
		return 0
	case base == "application/vnd.api+json":
		return 1
	case strings.HasSuffix(base, "+json"):
		return 2
	default:
		return 3
	}
}

func isJSON(mediaType string) bool {
	return mediaRank(mediaType) < 3
}

// Example aplica a ordem: example, primeiro de examples (chave lexicográfica), derivado do schema.
func Example(mt *catalog.MediaType) (interface{}, bool) {
	if mt.HasExample {
		return mt.Example, true
	}
	if len(mt.Examples) > 0 {
		keys := make([]string, 0, len(mt.Examples))
		for k := range mt.Examples {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return mt.Examples[keys[0]].Value, true
	}
	if mt.Schema != nil {
		return FromSchema(mt.Schema), true
	}
	return nil, false
}

// FromSchema deriva um valor: example, default, primeiro enum e por fim o padrão do tipo.
func FromSchema(s *catalog.Schema) interface{} {
	return fromSchema(s, 0)
}

func fromSchema(s *catalog.Schema, depth int) interface{} {
	if s == nil || depth > maxSchemaDepth {
		return nil
	}
	if s.HasExample {
		return s.Example
	}
	if s.HasDefault {
		return s.Default
	}
	if len(s.Enum) > 0 {
		return s.Enum[0]
	}

	if len(s.AllOf) > 0 {
		merged := make(map[string]interface{})
		for _, part := range s.AllOf {
			if m, ok := fromSchema(part, depth+1).(map[string]interface{}); ok {
				for k, v := range m {
					merged[k] = v
				}
			}
		}
		if obj, ok := objectFrom(s, depth).(map[string]interface{}); ok {
			for k, v := range obj {
				merged[k] = v
			}
		}
		return merged
	}
	if len(s.OneOf) > 0 {
		return fromSchema(s.OneOf[0], depth+1)
	}
	if len(s.AnyOf) > 0 {
		return fromSchema(s.AnyOf[0], depth+1)
	}

	switch s.Type {
	case "object":
		return objectFrom(s, depth)
	case "array":
		return []interface{}{}
	case "string":
		return ""
	case "integer", "number":
		return 0
	case "boolean":
		return false
	default:
		if len(s.Properties) > 0 {
			return objectFrom(s, depth)
		}
		return nil
	}
}

func objectFrom(s *catalog.Schema, depth int) interface{} {
	obj := make(map[string]interface{}, len(s.Properties))
	for name, prop := range s.Properties {
		obj[name] = fromSchema(prop, depth+1)
	}
	return obj
}

// Describe é usado em logs de inicialização.
func (h *Handler) Describe() string {
	return fmt.Sprintf("%s %s -> %d", h.op.Method, h.op.Path, h.response.Status)
}
