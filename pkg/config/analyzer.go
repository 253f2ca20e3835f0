package config

import (
	"fmt"

	"github.com/raywall/spec-emulator/pkg/override"
	"github.com/raywall/spec-emulator/pkg/router"
	"github.com/raywall/spec-emulator/pkg/rules"
)

// ValidationReport contém o resultado detalhado da análise.
type ValidationReport struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// Analyze realiza uma inspeção profunda na configuração: compila as expressões
// de cada override e aponta overrides que se sobrepõem.
func Analyze(cfg *EmulatorConfig) (*ValidationReport, error) {
	report := &ValidationReport{
		Valid:    true,
		Errors:   []string{},
		Warnings: []string{},
	}

	rm, err := rules.NewRuleManager()
	if err != nil {
		return nil, fmt.Errorf("falha interna ao iniciar analisador de regras: %w", err)
	}

	seen := make(map[router.Skeleton]int)
	for i, route := range cfg.Overrides {
		label := route.Name
		if label == "" {
			label = fmt.Sprintf("%s %s", route.Method, route.Path)
		}

		if _, err := override.NewDeclared(route, rm); err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("Overrides[%d] %s: %v", i, label, err))
			continue
		}

		tpl, err := router.ParseTemplate(route.Path)
		if err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("Overrides[%d] %s: %v", i, label, err))
			continue
		}
		sk := tpl.Skeleton(route.Method)
		if prev, dup := seen[sk]; dup {
			report.Warnings = append(report.Warnings,
				fmt.Sprintf("Overrides[%d] %s substitui Overrides[%d] (mesmo skeleton %s)", i, label, prev, sk))
		}
		seen[sk] = i

		if !route.Static() && len(route.Data) == 0 {
			report.Warnings = append(report.Warnings,
				fmt.Sprintf("Overrides[%d] %s: mapeia parâmetros mas não declara data; sempre responderá no-match", i, label))
		}
	}

	if cfg.Server.Mode == "stateless" && len(cfg.Auth.Clients) > 0 {
		report.Warnings = append(report.Warnings, "auth.clients é ignorado no modo stateless")
	}

	if len(report.Errors) > 0 {
		report.Valid = false
	}
	return report, nil
}
