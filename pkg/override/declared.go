package override

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/raywall/spec-emulator/pkg/rules"
	"github.com/raywall/spec-emulator/pkg/types"
)

// Route é um override declarado na configuração.
//
// Sem data e sem mapeamentos de parâmetros, Response é devolvida diretamente (estática).
// Com data, os registros são filtrados pelos parâmetros mapeados: um único resultado vira
// objeto, vários viram lista; ResponseOnMatch e ResponseOnNoMatch definem status e headers.
// Strings com ${expr} em qualquer resposta são avaliadas com CEL.
type Route struct {
	Name              string               `json:"name,omitempty" yaml:"name"`
	Method            string               `json:"method" yaml:"method" validate:"required"`
	Path              string               `json:"path" yaml:"path" validate:"required,startswith=/"`
	RequireAuth       bool                 `json:"require_auth,omitempty" yaml:"require_auth"`
	Response          *types.Response      `json:"response,omitempty" yaml:"response"`
	Data              []interface{}        `json:"data,omitempty" yaml:"data"`
	QueryParams       []types.ParamMapping `json:"query_params,omitempty" yaml:"query_params" validate:"dive"`
	PathParams        []types.ParamMapping `json:"path_params,omitempty" yaml:"path_params" validate:"dive"`
	ResponseOnMatch   *types.Response      `json:"response_on_match,omitempty" yaml:"response_on_match"`
	ResponseOnNoMatch *types.Response      `json:"response_on_no_match,omitempty" yaml:"response_on_no_match"`
}

// Static informa se a rota devolve sempre a mesma resposta (a menos das expressões).
func (r Route) Static() bool {
	return len(r.Data) == 0 && len(r.QueryParams) == 0 && len(r.PathParams) == 0
}

type compiledResponse struct {
	status      int
	contentType string
	headers     map[string]string
	body        *rules.Template
	hasBody     bool
}

// Declared é o handler de uma Route.
type Declared struct {
	route   Route
	data    []map[string]interface{}
	rm      *rules.RuleManager
	static  *compiledResponse
	onMatch *compiledResponse
	noMatch *compiledResponse
}

// NewDeclared compila as expressões da rota. Erros de expressão aparecem aqui, não na requisição.
func NewDeclared(route Route, rm *rules.RuleManager) (*Declared, error) {
	d := &Declared{route: route, rm: rm}

	var err error
	if route.Static() {
		if route.Response == nil {
			return nil, fmt.Errorf("override %s %s: response é obrigatório sem data/params", route.Method, route.Path)
		}
		if d.static, err = d.compile(route.Response, http.StatusOK); err != nil {
			return nil, fmt.Errorf("override %s %s: %w", route.Method, route.Path, err)
		}
		return d, nil
	}

	for i, item := range route.Data {
		m, ok := rules.Sanitize(item).(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("override %s %s: data[%d] não é um objeto", route.Method, route.Path, i)
		}
		d.data = append(d.data, m)
	}

	onMatch := route.ResponseOnMatch
	if onMatch == nil {
		onMatch = &types.Response{Status: http.StatusOK}
	}
	if d.onMatch, err = d.compile(onMatch, http.StatusOK); err != nil {
		return nil, fmt.Errorf("override %s %s (on_match): %w", route.Method, route.Path, err)
	}

	noMatch := route.ResponseOnNoMatch
	if noMatch == nil {
		noMatch = &types.Response{Status: http.StatusNotFound, Body: map[string]interface{}{"error": "Not found"}}
	}
	if d.noMatch, err = d.compile(noMatch, http.StatusNotFound); err != nil {
		return nil, fmt.Errorf("override %s %s (on_no_match): %w", route.Method, route.Path, err)
	}
	return d, nil
}

func (d *Declared) compile(resp *types.Response, defaultStatus int) (*compiledResponse, error) {
	c := &compiledResponse{
		status:      resp.Status,
		contentType: resp.ContentType,
		headers:     resp.Headers,
		hasBody:     resp.Body != nil,
	}
	if c.status == 0 {
		c.status = defaultStatus
	}
	for name, value := range resp.Headers {
		if _, err := d.rm.CompileTemplate(value); err != nil {
			return nil, fmt.Errorf("header '%s': %w", name, err)
		}
	}
	if c.hasBody {
		body, err := d.rm.CompileTemplate(resp.Body)
		if err != nil {
			return nil, err
		}
		c.body = body
	}
	return c, nil
}

func (d *Declared) Route() Route {
	return d.route
}

func (d *Declared) Handle(ctx context.Context, req *types.Request) (*types.Response, error) {
	vars := Vars(req)

	if d.static != nil {
		return d.render(d.static, vars, nil)
	}

	filters := make(map[string]string)
	for _, p := range d.route.PathParams {
		if value := req.Param(p.Name); value != "" {
			filters[p.MapsTo] = value
		}
	}
	for _, p := range d.route.QueryParams {
		if value := req.Query.Get(p.Name); value != "" {
			filters[p.MapsTo] = value
		}
	}

	var matches []interface{}
	for _, item := range d.data {
		match := true
		for field, value := range filters {
			itemValue, exists := item[field]
			if !exists || !valuesMatch(itemValue, value) {
				match = false
				break
			}
		}
		if match {
			matches = append(matches, item)
		}
	}

	vars["matches"] = matches
	if len(matches) == 0 {
		return d.render(d.noMatch, vars, nil)
	}

	var body interface{}
	if len(matches) == 1 {
		body = matches[0]
	} else {
		body = matches
	}
	return d.render(d.onMatch, vars, body)
}

// render monta a resposta. fallback é usado quando a resposta configurada não define body.
func (d *Declared) render(c *compiledResponse, vars map[string]interface{}, fallback interface{}) (*types.Response, error) {
	resp := &types.Response{Status: c.status, ContentType: c.contentType, Body: fallback}

	if c.hasBody {
		body, err := c.body.Render(vars)
		if err != nil {
			return nil, fmt.Errorf("erro ao renderizar body do override: %w", err)
		}
		resp.Body = body
	}

	if len(c.headers) > 0 {
		resp.Headers = make(map[string]string, len(c.headers))
		for name, raw := range c.headers {
			value, err := d.rm.RenderString(raw, vars)
			if err != nil {
				return nil, fmt.Errorf("erro eval header '%s': %w", name, err)
			}
			resp.Headers[name] = value
		}
	}
	return resp, nil
}

// Vars monta as variáveis CEL da requisição.
func Vars(req *types.Request) map[string]interface{} {
	params := make(map[string]interface{}, len(req.Params))
	for k, v := range req.Params {
		params[k] = v
	}
	query := make(map[string]interface{}, len(req.Query))
	for k, v := range req.Query {
		if len(v) > 0 {
			query[k] = v[0]
		}
	}
	header := make(map[string]interface{}, len(req.Header))
	for k, v := range req.Header {
		if len(v) > 0 {
			header[strings.ToLower(k)] = v[0]
		}
	}
	return map[string]interface{}{
		"params":  params,
		"query":   query,
		"header":  header,
		"body":    req.BodyMap(),
		"request": map[string]interface{}{"method": req.Method, "path": req.Path},
	}
}

func valuesMatch(a interface{}, b string) bool {
	switch v := a.(type) {
	case string:
		return v == b
	case float64:
		f, err := strconv.ParseFloat(b, 64)
		return err == nil && v == f
	case int:
		i, err := strconv.Atoi(b)
		return err == nil && v == i
	case int64:
		i, err := strconv.ParseInt(b, 10, 64)
		return err == nil && v == i
	case bool:
		return strings.ToLower(b) == fmt.Sprintf("%v", v)
	default:
		return false
	}
}
