package config

import (
	"time"

	"github.com/raywall/spec-emulator/pkg/override"
)

// EmulatorConfig representa a estrutura raiz do arquivo YAML do emulador.
type EmulatorConfig struct {
	Version   string           `yaml:"version" validate:"required"`
	Server    ServerConf       `yaml:"server" validate:"required"`
	Auth      AuthConf         `yaml:"auth"`
	State     StateConf        `yaml:"state"`
	Overrides []override.Route `yaml:"overrides" validate:"dive"`
}

// ServerConf contém os metadados e configurações de runtime do servidor.
type ServerConf struct {
	Name    string `yaml:"name" validate:"required,hostname_rfc1123"`
	Runtime string `yaml:"runtime" validate:"required,oneof=local lambda"`
	Host    string `yaml:"host" env:"EMULATOR_HOST"`
	Port    int    `yaml:"port" env:"EMULATOR_PORT" validate:"required_if=Runtime local,gte=0,lte=65535"`
	// Mode é stateless (somente exemplos do catálogo) ou stateful (emulação APS).
	Mode            string `yaml:"mode" env:"EMULATOR_MODE" validate:"omitempty,oneof=stateless stateful"`
	OpenAPIDir      string `yaml:"openapi_dir" env:"EMULATOR_OPENAPI_DIR" validate:"required"`
	ShutdownTimeout string `yaml:"shutdown_timeout"`
	ReloadQueue     string `yaml:"reload_queue" env:"EMULATOR_RELOAD_QUEUE"`
	// MaxBodyBytes limita o corpo das requisições. Zero usa 32 MiB.
	MaxBodyBytes int64       `yaml:"max_body_bytes" validate:"gte=0"`
	Logging      LoggingConf `yaml:"logging"`
	Metrics      MetricsConf `yaml:"metrics"`
}

type LoggingConf struct {
	Enabled bool   `yaml:"enabled"`
	Level   string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	Format  string `yaml:"format" validate:"omitempty,oneof=json console"`
}

type MetricsConf struct {
	Datadog DatadogConf `yaml:"datadog"`
}

type DatadogConf struct {
	Enabled   bool   `yaml:"enabled" env:"DD_ENABLED"`
	Addr      string `yaml:"addr" env:"DD_AGENT_HOST" validate:"required_if=Enabled true"`
	Namespace string `yaml:"namespace"`
}

// AuthConf configura o serviço de identidade do modo stateful.
type AuthConf struct {
	TokenTTL string `yaml:"token_ttl"`
	// Clients restringe a emissão de tokens a pares client_id/client_secret conhecidos.
	Clients []ClientConf `yaml:"clients" validate:"dive"`
}

type ClientConf struct {
	ID     string `yaml:"id" validate:"required"`
	Secret string `yaml:"secret"`
}

// StateConf ajusta as políticas do store stateful.
type StateConf struct {
	SeedDefaults    bool   `yaml:"seed_defaults"`
	HierarchyDelete string `yaml:"hierarchy_delete" validate:"omitempty,oneof=refuse cascade"`
	TranslationStep string `yaml:"translation_step"`
}

const (
	DefaultPort            = 8080
	DefaultShutdownTimeout = 10 * time.Second
)

// Default devolve uma configuração local mínima, usada quando nenhum arquivo é informado.
func Default() *EmulatorConfig {
	cfg := &EmulatorConfig{
		Version: "1.0",
		Server: ServerConf{
			Name:       "spec-emulator",
			Runtime:    "local",
			Port:       DefaultPort,
			Mode:       "stateful",
			OpenAPIDir: "./openapi",
			Logging:    LoggingConf{Enabled: true, Level: "info", Format: "json"},
		},
		State: StateConf{SeedDefaults: true},
	}
	return cfg
}

// ApplyDefaults completa campos opcionais não informados.
func (c *EmulatorConfig) ApplyDefaults() {
	if c.Server.Mode == "" {
		c.Server.Mode = "stateful"
	}
	if c.Server.Runtime == "" {
		c.Server.Runtime = "local"
	}
	if c.Server.Port == 0 && c.Server.Runtime == "local" {
		c.Server.Port = DefaultPort
	}
}

func (s ServerConf) GetShutdownTimeout() time.Duration {
	d, err := time.ParseDuration(s.ShutdownTimeout)
	if err != nil || d <= 0 {
		return DefaultShutdownTimeout
	}
	return d
}

// GetTokenTTL devolve zero quando não configurado; o serviço de identidade aplica seu default.
func (a AuthConf) GetTokenTTL() time.Duration {
	d, err := time.ParseDuration(a.TokenTTL)
	if err != nil {
		return 0
	}
	return d
}

func (s StateConf) GetTranslationStep() time.Duration {
	d, err := time.ParseDuration(s.TranslationStep)
	if err != nil {
		return 0
	}
	return d
}

// ClientMap devolve os clientes como client_id -> secret.
func (a AuthConf) ClientMap() map[string]string {
	if len(a.Clients) == 0 {
		return nil
	}
	out := make(map[string]string, len(a.Clients))
	for _, c := range a.Clients {
		out[c.ID] = c.Secret
	}
	return out
}
