package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/raywall/spec-emulator/pkg/config"
	"github.com/raywall/spec-emulator/pkg/logger"
	"github.com/raywall/spec-emulator/pkg/observability"
	"github.com/raywall/spec-emulator/pkg/server"
	"github.com/raywall/spec-emulator/pkg/transport"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// Variáveis injetáveis para mocking
var (
	serverStarter = func(ctx context.Context, srv *server.Server, reloader *transport.SQSReloader) error {
		return srv.Run(ctx, reloader)
	}
	lambdaStarter   = func(handler interface{}) { lambda.Start(handler) }
	reloaderFactory = func(ctx context.Context, queueURL string, r transport.Reloader) (*transport.SQSReloader, error) {
		return transport.NewSQSReloaderFromEnv(ctx, queueURL, r)
	}
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "erro:", err)
		os.Exit(1)
	}
}

// flags compartilhadas pelos subcomandos
type flags struct {
	configPath string
	port       int
	mode       string
	openAPIDir string
	verbose    bool
}

func newRootCommand() *cobra.Command {
	f := &flags{}
	cmd := &cobra.Command{
		Use:   "emulator",
		Short: "Test double HTTP guiado por documentos OpenAPI, com emulação stateful da APS",
		Example: `  # Sobe o emulador stateful com os documentos de ./openapi
  emulator serve --openapi-dir ./openapi

  # Valida uma configuração antes do deploy
  emulator validate --config s3://bucket/emulator.yaml`,
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&f.configPath, "config", "c", os.Getenv("CONFIG_FILE_PATH"), "arquivo YAML, s3://bucket/key ou dynamodb://tabela/id")
	pf.IntVarP(&f.port, "port", "p", 0, "porta HTTP (sobrepõe server.port)")
	pf.StringVar(&f.mode, "mode", "", "stateless ou stateful (sobrepõe server.mode)")
	pf.StringVar(&f.openAPIDir, "openapi-dir", "", "diretório ou prefixo s3:// com os documentos OpenAPI")
	pf.BoolVarP(&f.verbose, "verbose", "v", false, "log em nível debug")

	cmd.AddCommand(newServeCommand(f), newValidateCommand(f), newRoutesCommand(f))
	return cmd
}

// loadConfig lê a configuração (ou usa os defaults) e aplica as flags por cima.
func loadConfig(ctx context.Context, f *flags) (*config.EmulatorConfig, error) {
	cfg := config.Default()
	if f.configPath != "" {
		loaded, err := config.Load(ctx, f.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if f.port != 0 {
		cfg.Server.Port = f.port
	}
	if f.mode != "" {
		cfg.Server.Mode = f.mode
	}
	if f.openAPIDir != "" {
		cfg.Server.OpenAPIDir = f.openAPIDir
	}
	if err := config.NewValidator().Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newServeCommand(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Sobe o emulador (HTTP local ou Lambda, conforme server.runtime)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), f)
		},
	}
}

func serve(ctx context.Context, f *flags) error {
	cfg, err := loadConfig(ctx, f)
	if err != nil {
		return err
	}
	logger.Configure(cfg.Server.Logging, f.verbose)

	provider, err := observability.SetupMetrics(cfg.Server.Metrics, cfg.Server.Name)
	if err != nil {
		return err
	}
	defer provider.Close()

	srv, err := server.New(ctx, cfg, server.Options{ConfigSource: f.configPath, Metrics: provider})
	if err != nil {
		return err
	}

	switch cfg.Server.Runtime {
	case "lambda":
		lambdaStarter(srv.LambdaHandler().Handle)
		return nil
	default:
		var reloader *transport.SQSReloader
		if cfg.Server.ReloadQueue != "" {
			if reloader, err = reloaderFactory(ctx, cfg.Server.ReloadQueue, srv); err != nil {
				return err
			}
			log.Info().Str("queue", cfg.Server.ReloadQueue).Msg("Hot reload via SQS habilitado")
		}
		return serverStarter(ctx, srv, reloader)
	}
}
