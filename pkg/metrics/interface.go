package metrics

// Provider define o contrato para envio de métricas.
type Provider interface {
	Count(name string, value float64, tags []string) error
	Gauge(name string, value float64, tags []string) error
	Histogram(name string, value float64, tags []string) error
}

// MetricType define os tipos suportados.
type MetricType string

const (
	TypeCount     MetricType = "count"
	TypeGauge     MetricType = "gauge"
	TypeHistogram MetricType = "histogram"
)

// MetricDefinition armazena os metadados da métrica (nome real, tipo).
type MetricDefinition struct {
	Name string
	Type MetricType
}

// Métricas emitidas pelo emulador.
const (
	MetricRequests      = "requests"
	MetricLatency       = "request.latency_ms"
	MetricRoutes        = "routes"
	MetricReloads       = "reloads"
	MetricReloadFailure = "reloads.failed"
)

var definitions = map[string]MetricDefinition{
	MetricRequests:      {Name: "emulator.requests", Type: TypeCount},
	MetricLatency:       {Name: "emulator.request.latency_ms", Type: TypeHistogram},
	MetricRoutes:        {Name: "emulator.routes", Type: TypeGauge},
	MetricReloads:       {Name: "emulator.reloads", Type: TypeCount},
	MetricReloadFailure: {Name: "emulator.reloads.failed", Type: TypeCount},
}
