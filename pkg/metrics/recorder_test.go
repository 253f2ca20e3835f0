package metrics

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	Type  string
	Name  string
	Value float64
	Tags  []string
}

// MockProvider para verificar chamadas
type MockProvider struct {
	mu    sync.Mutex
	Calls []call
	Err   error
}

func (m *MockProvider) record(kind, name string, val float64, tags []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, call{Type: kind, Name: name, Value: val, Tags: tags})
	return m.Err
}

func (m *MockProvider) Count(name string, val float64, tags []string) error {
	return m.record("count", name, val, tags)
}
func (m *MockProvider) Gauge(name string, val float64, tags []string) error {
	return m.record("gauge", name, val, tags)
}
func (m *MockProvider) Histogram(name string, val float64, tags []string) error {
	return m.record("histogram", name, val, tags)
}

func TestRecorder_ObserveRequest(t *testing.T) {
	provider := &MockProvider{}
	rec := NewRecorder(provider, "service:aps")

	rec.ObserveRequest("stateful", "post", 409, 15*time.Millisecond)

	require.Len(t, provider.Calls, 2)
	count, latency := provider.Calls[0], provider.Calls[1]

	assert.Equal(t, "count", count.Type)
	assert.Equal(t, "emulator.requests", count.Name)
	assert.Equal(t, 1.0, count.Value)
	assert.Equal(t, []string{"service:aps", "strategy:stateful", "method:POST", "status:409", "status_class:4xx"}, count.Tags)

	assert.Equal(t, "histogram", latency.Type)
	assert.Equal(t, 15.0, latency.Value)
}

func TestRecorder_RoutesAndReload(t *testing.T) {
	provider := &MockProvider{}
	rec := NewRecorder(provider)

	rec.ObserveRoutes(map[string]int{"catalog": 12})
	rec.ObserveReload(nil)
	rec.ObserveReload(errors.New("yaml inválido"))

	require.Len(t, provider.Calls, 3)
	assert.Equal(t, call{Type: "gauge", Name: "emulator.routes", Value: 12, Tags: []string{"origin:catalog"}}, provider.Calls[0])
	assert.Equal(t, "emulator.reloads", provider.Calls[1].Name)
	assert.Equal(t, "emulator.reloads.failed", provider.Calls[2].Name)
}

func TestRecorder_ProviderErrorIsSwallowed(t *testing.T) {
	provider := &MockProvider{Err: errors.New("statsd down")}
	rec := NewRecorder(provider)

	assert.NotPanics(t, func() { rec.ObserveRequest("generic", "GET", 200, time.Millisecond) })
	assert.Len(t, provider.Calls, 2)
}

func TestRecorder_Nil(t *testing.T) {
	var rec *Recorder
	assert.NotPanics(t, func() {
		rec.ObserveRequest("generic", "GET", 200, 0)
		rec.ObserveRoutes(map[string]int{"x": 1})
		rec.ObserveReload(nil)
	})
}

func TestStatusClass(t *testing.T) {
	assert.Equal(t, "2xx", statusClass(204))
	assert.Equal(t, "5xx", statusClass(500))
	assert.Equal(t, "unknown", statusClass(0))
}
