package config

import (
	"testing"

	"github.com/raywall/spec-emulator/pkg/override"
	"github.com/raywall/spec-emulator/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyze(t *testing.T) {
	t.Run("Overrides válidos", func(t *testing.T) {
		cfg := Default()
		cfg.Overrides = []override.Route{
			{Method: "GET", Path: "/hubs/{hubId}", Response: types.JSON(200, map[string]interface{}{"id": "${params.hubId}"})},
		}
		report, err := Analyze(cfg)
		require.NoError(t, err)
		assert.True(t, report.Valid)
		assert.Empty(t, report.Errors)
	})

	t.Run("Expressão inválida", func(t *testing.T) {
		cfg := Default()
		cfg.Overrides = []override.Route{
			{Name: "quebrado", Method: "GET", Path: "/x", Response: types.JSON(200, "${params.}")},
		}
		report, err := Analyze(cfg)
		require.NoError(t, err)
		assert.False(t, report.Valid)
		require.Len(t, report.Errors, 1)
		assert.Contains(t, report.Errors[0], "quebrado")
	})

	t.Run("Skeleton repetido gera aviso", func(t *testing.T) {
		cfg := Default()
		cfg.Overrides = []override.Route{
			{Method: "GET", Path: "/items/{id}", Response: types.JSON(200, "a")},
			{Method: "get", Path: "/items/{itemId}", Response: types.JSON(200, "b")},
		}
		report, err := Analyze(cfg)
		require.NoError(t, err)
		assert.True(t, report.Valid)
		assert.Len(t, report.Warnings, 1)
	})

	t.Run("Clientes ignorados no modo stateless", func(t *testing.T) {
		cfg := Default()
		cfg.Server.Mode = "stateless"
		cfg.Auth.Clients = []ClientConf{{ID: "app"}}
		report, err := Analyze(cfg)
		require.NoError(t, err)
		assert.Len(t, report.Warnings, 1)
	})
}
