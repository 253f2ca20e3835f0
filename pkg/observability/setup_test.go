package observability

import (
	"testing"

	"github.com/raywall/spec-emulator/pkg/config"
)

func TestSetupMetrics(t *testing.T) {
	t.Run("Disabled returns Noop", func(t *testing.T) {
		cfg := config.MetricsConf{
			Datadog: config.DatadogConf{Enabled: false},
		}

		provider, err := SetupMetrics(cfg, "emulator")
		if err != nil {
			t.Fatalf("Erro setup: %v", err)
		}
		if _, ok := provider.(*NoopProvider); !ok {
			t.Errorf("Esperado NoopProvider, recebido %T", provider)
		}
		if err := provider.Close(); err != nil {
			t.Errorf("Close inesperado: %v", err)
		}
	})

	t.Run("Enabled returns Datadog", func(t *testing.T) {
		cfg := config.MetricsConf{
			Datadog: config.DatadogConf{
				Enabled:   true,
				Addr:      "localhost:8125",
				Namespace: "aps.",
			},
		}

		provider, err := SetupMetrics(cfg, "emulator")
		if err != nil {
			// statsd.New sobre UDP não conecta de fato; localhost costuma passar
			t.Fatalf("Erro setup: %v", err)
		}
		defer provider.Close()

		if _, ok := provider.(*DatadogProvider); !ok {
			t.Errorf("Esperado DatadogProvider, recebido %T", provider)
		}
		if err := provider.Count("emulator.requests", 1, []string{"strategy:generic"}); err != nil {
			t.Errorf("Count falhou: %v", err)
		}
	})
}
