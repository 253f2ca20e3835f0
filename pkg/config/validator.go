package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/raywall/spec-emulator/pkg/router"
)

var validMethods = map[string]bool{
	"GET": true, "POST": true, "PUT": true, "PATCH": true, "DELETE": true, "HEAD": true, "OPTIONS": true,
}

type ConfigValidator struct {
	validate *validator.Validate
}

// NewValidator cria uma nova instância do validador
func NewValidator() *ConfigValidator {
	return &ConfigValidator{
		validate: validator.New(),
	}
}

// Validate realiza validações estruturais (tags) e semânticas (lógica)
func (cv *ConfigValidator) Validate(cfg *EmulatorConfig) error {
	if err := cv.validate.Struct(cfg); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			var errMsgs []string
			for _, e := range validationErrors {
				errMsgs = append(errMsgs, fmt.Sprintf("Campo '%s' falhou na regra '%s'", e.Namespace(), e.Tag()))
			}
			return fmt.Errorf("erros de validação estrutural:\n- %s", strings.Join(errMsgs, "\n- "))
		}
		return fmt.Errorf("erro de validação estrutural: %w", err)
	}

	if err := cv.validateSemantics(cfg); err != nil {
		return fmt.Errorf("erro de validação semântica: %w", err)
	}

	return nil
}

func (cv *ConfigValidator) validateSemantics(cfg *EmulatorConfig) error {
	durations := map[string]string{
		"server.shutdown_timeout": cfg.Server.ShutdownTimeout,
		"auth.token_ttl":          cfg.Auth.TokenTTL,
		"state.translation_step":  cfg.State.TranslationStep,
	}
	for field, raw := range durations {
		if raw == "" {
			continue
		}
		if d, err := time.ParseDuration(raw); err != nil || d < 0 {
			return fmt.Errorf("duração inválida em '%s': '%s'", field, raw)
		}
	}

	seenClients := make(map[string]bool)
	for _, c := range cfg.Auth.Clients {
		if seenClients[c.ID] {
			return fmt.Errorf("client_id duplicado em auth.clients: '%s'", c.ID)
		}
		seenClients[c.ID] = true
	}

	for i, route := range cfg.Overrides {
		method := strings.ToUpper(route.Method)
		if !validMethods[method] {
			return fmt.Errorf("overrides[%d]: método HTTP inválido '%s'", i, route.Method)
		}
		if _, err := router.ParseTemplate(route.Path); err != nil {
			return fmt.Errorf("overrides[%d]: %w", i, err)
		}
		if route.Response != nil && route.Response.Status != 0 && (route.Response.Status < 100 || route.Response.Status > 599) {
			return fmt.Errorf("overrides[%d]: status inválido %d", i, route.Response.Status)
		}
	}

	return nil
}
