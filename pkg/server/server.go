// Package server monta o emulador a partir da configuração: catálogo, store, identidade,
// registros de estratégias, engine de dispatch, API administrativa e transporte HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"

	"github.com/gorilla/mux"
	"github.com/raywall/spec-emulator/pkg/catalog"
	"github.com/raywall/spec-emulator/pkg/config"
	"github.com/raywall/spec-emulator/pkg/dispatch"
	"github.com/raywall/spec-emulator/pkg/identity"
	"github.com/raywall/spec-emulator/pkg/metrics"
	"github.com/raywall/spec-emulator/pkg/override"
	"github.com/raywall/spec-emulator/pkg/rules"
	"github.com/raywall/spec-emulator/pkg/state"
	"github.com/raywall/spec-emulator/pkg/stateful"
	"github.com/raywall/spec-emulator/pkg/transport"
	"github.com/raywall/spec-emulator/pkg/types"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Options complementa a configuração com dependências programáticas.
type Options struct {
	// ConfigSource é relido em Reload. Vazio desabilita o reload de configuração.
	ConfigSource string
	// Catalog substitui a leitura de server.openapi_dir (usado em testes).
	Catalog *catalog.Catalog
	// Overrides registrados em código. Sobrevivem a reloads e vencem overrides da configuração.
	Overrides *override.Registry
	// Stateful são handlers adicionais registrados junto aos padrões.
	Stateful []stateful.Definition
	Metrics  metrics.Provider
	Store    state.Options
	Identity []identity.Option
}

// Server é o emulador montado.
type Server struct {
	reloadMu sync.Mutex
	cfg      *config.EmulatorConfig
	opts     Options

	rm       *rules.RuleManager
	store    *state.Store
	ids      *identity.Service
	stateful *stateful.Registry
	code     *override.Registry
	catalog  *catalog.Catalog
	engine   *dispatch.Engine
	recorder *metrics.Recorder
	handler  http.Handler
	logger   zerolog.Logger
}

// New constrói tudo uma única vez. Erros de construção (templates inválidos, skeletons
// duplicados, expressões que não compilam) abortam a inicialização.
func New(ctx context.Context, cfg *config.EmulatorConfig, opts Options) (*Server, error) {
	cfg.ApplyDefaults()

	rm, err := rules.NewRuleManager()
	if err != nil {
		return nil, fmt.Errorf("falha fatal ao iniciar RuleManager: %w", err)
	}

	storeOpts := opts.Store
	if storeOpts.HierarchyDelete == "" {
		storeOpts.HierarchyDelete = state.DeletePolicy(cfg.State.HierarchyDelete)
	}
	if storeOpts.TranslationStep == 0 {
		storeOpts.TranslationStep = cfg.State.GetTranslationStep()
	}
	storeOpts.SeedDefaults = storeOpts.SeedDefaults || cfg.State.SeedDefaults

	idOpts := []identity.Option{identity.WithTTL(cfg.Auth.GetTokenTTL())}
	if clients := cfg.Auth.ClientMap(); clients != nil {
		idOpts = append(idOpts, identity.WithClients(clients))
	}
	idOpts = append(idOpts, opts.Identity...)

	code := opts.Overrides
	if code == nil {
		code = override.NewRegistry()
	}

	s := &Server{
		cfg:      cfg,
		opts:     opts,
		rm:       rm,
		store:    state.NewStore(storeOpts),
		ids:      identity.NewService(idOpts...),
		code:     code,
		recorder: metrics.NewRecorder(opts.Metrics),
		logger:   log.With().Str("component", "server").Str("service", cfg.Server.Name).Logger(),
	}

	if cfg.Server.Mode == dispatch.ModeStateful {
		reg, err := stateful.NewDefaultRegistry(s.store, s.ids)
		if err != nil {
			return nil, err
		}
		for _, d := range opts.Stateful {
			if err := reg.Register(d); err != nil {
				return nil, err
			}
		}
		s.stateful = reg
	}

	cat, err := s.loadCatalog(ctx, cfg)
	if err != nil {
		return nil, err
	}
	routing, err := s.buildRouting(cfg, cat, s.code)
	if err != nil {
		return nil, err
	}
	s.catalog = cat
	s.engine = dispatch.New(routing, dispatch.Options{
		Mode:         cfg.Server.Mode,
		Identity:     s.ids,
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
	})
	s.recorder.ObserveRoutes(routing.CountByOrigin())
	s.handler = s.routes()

	s.logger.Info().
		Str("mode", cfg.Server.Mode).
		Int("routes", routing.Table.Len()).
		Int("overrides", routing.Overrides.Len()).
		Msg("Emulador montado")
	return s, nil
}

func (s *Server) loadCatalog(ctx context.Context, cfg *config.EmulatorConfig) (*catalog.Catalog, error) {
	if s.opts.Catalog != nil {
		return s.opts.Catalog, nil
	}
	return catalog.Load(ctx, cfg.Server.OpenAPIDir)
}

// buildRouting monta o snapshot de roteamento: overrides da configuração primeiro, depois os de código.
func (s *Server) buildRouting(cfg *config.EmulatorConfig, cat *catalog.Catalog, code *override.Registry) (*dispatch.Routing, error) {
	overrides, err := override.FromRoutes(cfg.Overrides, s.rm)
	if err != nil {
		return nil, err
	}
	for _, e := range code.Entries() {
		if err := overrides.Register(e.Method, e.Template.Raw, e.Handler, override.Options{RequireAuth: e.RequireAuth, Source: e.Source}); err != nil {
			return nil, err
		}
	}

	return dispatch.NewRouting(cat, overrides, s.stateful)
}

// Override registra um override em código e republica o roteamento.
// O registro só é efetivado depois que o novo snapshot foi publicado.
func (s *Server) Override(method, template string, h types.Handler, opts override.Options) error {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	if opts.Source == "" {
		opts.Source = override.SourceCode
	}
	code := s.code.Clone()
	if err := code.Register(method, template, h, opts); err != nil {
		return err
	}
	routing, err := s.buildRouting(s.cfg, s.catalog, code)
	if err != nil {
		return err
	}
	s.engine.Swap(routing)
	s.code = code
	return nil
}

// Reload relê a configuração e o catálogo e troca o snapshot de roteamento inteiro.
// Em caso de erro o snapshot anterior continua servindo. Store e tokens são preservados.
func (s *Server) Reload(ctx context.Context) (err error) {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()
	defer func() { s.recorder.ObserveReload(err) }()

	cfg := s.cfg
	if s.opts.ConfigSource != "" {
		if cfg, err = config.Load(ctx, s.opts.ConfigSource); err != nil {
			return fmt.Errorf("reload: %w", err)
		}
		if cfg.Server.Mode != s.cfg.Server.Mode {
			s.logger.Warn().Str("atual", s.cfg.Server.Mode).Str("novo", cfg.Server.Mode).
				Msg("Troca de modo exige reinício; mantendo o modo atual")
			cfg.Server.Mode = s.cfg.Server.Mode
		}
	}

	cat, err := s.loadCatalog(ctx, cfg)
	if err != nil {
		return fmt.Errorf("reload: %w", err)
	}
	routing, err := s.buildRouting(cfg, cat, s.code)
	if err != nil {
		return fmt.Errorf("reload: %w", err)
	}
	s.engine.Swap(routing)
	s.cfg = cfg
	s.catalog = cat
	s.recorder.ObserveRoutes(routing.CountByOrigin())
	s.logger.Info().Int("routes", routing.Table.Len()).Msg("Roteamento recarregado")
	return nil
}

// Handler devolve o http.Handler completo (middleware + admin + dispatch).
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) Engine() *dispatch.Engine {
	return s.engine
}

func (s *Server) Store() *state.Store {
	return s.store
}

func (s *Server) Identity() *identity.Service {
	return s.ids
}

func (s *Server) Config() *config.EmulatorConfig {
	return s.cfg
}

// LambdaHandler adapta o mesmo handler para o runtime Lambda.
func (s *Server) LambdaHandler() *transport.LambdaHandler {
	return transport.NewLambdaHandler(s.handler)
}

func (s *Server) routes() http.Handler {
	r := mux.NewRouter()
	r.SkipClean(true)
	r.UseEncodedPath()
	r.Use(transport.ObservabilityMiddleware(s.recorder))

	s.registerAdmin(r.PathPrefix(AdminPrefix).Subrouter())
	r.PathPrefix("/").Handler(s.engine)
	return r
}

// Addr é o endereço de escuta configurado.
func (s *Server) Addr() string {
	return net.JoinHostPort(s.cfg.Server.Host, strconv.Itoa(s.cfg.Server.Port))
}

// Start escuta até o contexto ser cancelado e então faz shutdown gracioso.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{Addr: s.Addr(), Handler: s.handler}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", srv.Addr).Msg("Servidor HTTP ouvindo")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.GetShutdownTimeout())
	defer cancel()
	s.logger.Info().Msg("Encerrando servidor HTTP")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// Run executa o servidor e, se configurado, o reloader SQS, até o contexto terminar.
func (s *Server) Run(ctx context.Context, reloader *transport.SQSReloader) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.Start(gctx) })
	if reloader != nil {
		g.Go(func() error { return reloader.Start(gctx) })
	}
	return g.Wait()
}
