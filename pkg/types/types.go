package types

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// ParamMapping mapeia param da req para campo nos dados
type ParamMapping struct {
	Name   string `json:"name" yaml:"name" validate:"required"`
	MapsTo string `json:"maps_to" yaml:"maps_to" validate:"required"`
}

// Response para status, headers e body.
// Body []byte é escrito cru; qualquer outro valor é serializado como JSON.
type Response struct {
	Status      int               `json:"status" yaml:"status"`
	Headers     map[string]string `json:"headers,omitempty" yaml:"headers"`
	ContentType string            `json:"content_type,omitempty" yaml:"content_type"`
	Body        interface{}       `json:"body,omitempty" yaml:"body"`
}

// JSON monta uma resposta JSON simples.
func JSON(status int, body interface{}) *Response {
	return &Response{Status: status, Body: body}
}

// Empty monta uma resposta sem corpo (ex: 204).
func Empty(status int) *Response {
	return &Response{Status: status}
}

// Request é a visão da requisição HTTP entregue às estratégias de resposta.
type Request struct {
	Method string
	Path   string
	// Params contém os parâmetros de path já nomeados conforme o template do handler.
	Params map[string]string
	Query  url.Values
	Header http.Header
	Body   []byte
	// Token é o valor bearer validado pelo gate de autenticação (vazio se a rota é pública).
	Token string
}

// Param devolve o parâmetro de path ou string vazia.
func (r *Request) Param(name string) string {
	if r.Params == nil {
		return ""
	}
	return r.Params[name]
}

// DecodeJSON faz o parse do corpo em v. Corpo vazio resulta em erro.
func (r *Request) DecodeJSON(v interface{}) error {
	if len(r.Body) == 0 {
		return fmt.Errorf("corpo da requisição vazio")
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("corpo JSON inválido: %w", err)
	}
	return nil
}

// BodyMap devolve o corpo como mapa genérico (vazio quando não é um objeto JSON).
func (r *Request) BodyMap() map[string]interface{} {
	out := make(map[string]interface{})
	if len(r.Body) > 0 {
		_ = json.Unmarshal(r.Body, &out)
	}
	return out
}

// Handler produz a resposta de uma rota.
type Handler interface {
	Handle(ctx context.Context, req *Request) (*Response, error)
}

// HandlerFunc adapta funções comuns para Handler.
type HandlerFunc func(ctx context.Context, req *Request) (*Response, error)

func (f HandlerFunc) Handle(ctx context.Context, req *Request) (*Response, error) {
	return f(ctx, req)
}
