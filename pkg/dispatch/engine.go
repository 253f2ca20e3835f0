package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/raywall/spec-emulator/pkg/faults"
	"github.com/raywall/spec-emulator/pkg/identity"
	"github.com/raywall/spec-emulator/pkg/types"
	"github.com/rs/zerolog"
)

const (
	// HeaderStrategy expõe a estratégia que respondeu a requisição.
	HeaderStrategy = "X-Mock-Strategy"

	ModeStateless = "stateless"
	ModeStateful  = "stateful"

	// DefaultMaxBodyBytes é o limite do corpo quando Options.MaxBodyBytes é zero.
	DefaultMaxBodyBytes = 32 << 20
)

// Options configura o Engine.
type Options struct {
	Mode string
	// Identity valida tokens no modo stateful. Nil aceita qualquer bearer bem formado.
	Identity *identity.Service
	// MaxBodyBytes limita o corpo lido. Acima dele a requisição é recusada com 400.
	MaxBodyBytes int64
}

// Engine é o http.Handler que resolve e invoca a estratégia de cada requisição.
// O snapshot de roteamento é trocado inteiro em Swap; requisições em andamento
// continuam com o snapshot que leram.
type Engine struct {
	routing atomic.Pointer[Routing]
	mode    string
	ids     *identity.Service
	maxBody int64
}

func New(routing *Routing, opts Options) *Engine {
	mode := opts.Mode
	if mode == "" {
		mode = ModeStateful
	}
	maxBody := opts.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = DefaultMaxBodyBytes
	}
	e := &Engine{mode: mode, ids: opts.Identity, maxBody: maxBody}
	e.routing.Store(routing)
	return e
}

func (e *Engine) Mode() string {
	return e.mode
}

// Routing devolve o snapshot atual.
func (e *Engine) Routing() *Routing {
	return e.routing.Load()
}

// Swap publica um novo snapshot de roteamento.
func (e *Engine) Swap(routing *Routing) {
	e.routing.Store(routing)
}

// Resolve expõe a resolução do snapshot atual (sem invocar nada).
func (e *Engine) Resolve(method, path string) Resolution {
	return e.routing.Load().Resolve(method, path)
}

func (e *Engine) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	logger := zerolog.Ctx(r.Context())
	res := e.Resolve(r.Method, r.URL.EscapedPath())

	switch res.Kind {
	case KindNotFound:
		writeError(w, faults.NotFound(fmt.Sprintf("nenhuma rota para %s %s", r.Method, r.URL.Path)))
		return
	case KindMethodNotAllowed:
		allowed := append([]string(nil), res.Allowed...)
		sort.Strings(allowed)
		w.Header().Set("Allow", strings.Join(allowed, ", "))
		writeError(w, faults.NewTypedError(faults.MethodNotAllowedError,
			fmt.Sprintf("método %s não permitido para %s", r.Method, r.URL.Path), nil))
		return
	}

	token := ""
	if res.RequireAuth {
		var err error
		if token, err = e.authenticate(r); err != nil {
			logger.Debug().Err(err).Str("path", r.URL.Path).Msg("Requisição rejeitada no gate de autenticação")
			writeError(w, err)
			return
		}
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, e.maxBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, faults.Validation(fmt.Sprintf("corpo da requisição excede o limite de %d bytes", tooLarge.Limit)))
			return
		}
		writeError(w, faults.NewTypedError(faults.ValidationError, "falha ao ler corpo da requisição", err))
		return
	}

	req := &types.Request{
		Method: r.Method,
		Path:   r.URL.Path,
		Params: res.Params,
		Query:  r.URL.Query(),
		Header: r.Header,
		Body:   body,
		Token:  token,
	}

	w.Header().Set(HeaderStrategy, res.Kind.String())
	resp, err := invoke(r.Context(), res.Handler, req)
	if err != nil {
		if faults.CategoryOf(err) == faults.InternalError {
			logger.Error().Err(err).Str("strategy", res.Kind.String()).Str("path", r.URL.Path).Msg("Falha na estratégia de resposta")
		}
		writeError(w, err)
		return
	}
	writeResponse(w, resp)
}

// authenticate extrai e valida o bearer. No modo stateless qualquer valor bem formado é aceito.
func (e *Engine) authenticate(r *http.Request) (string, error) {
	raw := r.Header.Get("Authorization")
	scheme, value, found := strings.Cut(raw, " ")
	value = strings.TrimSpace(value)
	if !found || !strings.EqualFold(scheme, "Bearer") || value == "" || strings.ContainsAny(value, " \t") {
		return "", faults.Auth("The access token is missing or malformed.")
	}
	if e.mode == ModeStateless || e.ids == nil {
		return value, nil
	}
	if _, err := e.ids.Validate(value); err != nil {
		return "", err
	}
	return value, nil
}

// invoke chama a estratégia uma única vez; panics viram InternalError.
func invoke(ctx context.Context, h types.Handler, req *types.Request) (resp *types.Response, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			resp = nil
			err = faults.NewTypedError(faults.InternalError, fmt.Sprintf("panic na estratégia: %v", rec), nil)
		}
	}()

	resp, err = h.Handle(ctx, req)
	if err == nil && resp == nil {
		err = faults.NewTypedError(faults.InternalError, "estratégia devolveu resposta nula", nil)
	}
	return resp, err
}

func writeError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(faults.HTTPStatus(err))
	_ = json.NewEncoder(w).Encode(faults.ToBody(err))
}

func writeResponse(w http.ResponseWriter, resp *types.Response) {
	for k, v := range resp.Headers {
		w.Header().Set(k, v)
	}
	status := resp.Status
	if status == 0 {
		status = http.StatusOK
	}

	if raw, ok := resp.Body.([]byte); ok {
		if resp.ContentType != "" {
			w.Header().Set("Content-Type", resp.ContentType)
		}
		w.WriteHeader(status)
		_, _ = w.Write(raw)
		return
	}

	if resp.Body == nil || status == http.StatusNoContent || status == http.StatusNotModified {
		w.WriteHeader(status)
		return
	}

	payload, err := json.Marshal(resp.Body)
	if err != nil {
		writeError(w, faults.NewTypedError(faults.InternalError, "erro json marshal", err))
		return
	}
	contentType := resp.ContentType
	if contentType == "" {
		contentType = "application/json"
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	_, _ = w.Write(payload)
}
