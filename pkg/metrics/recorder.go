package metrics

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Recorder traduz eventos do emulador nas métricas definidas, enviando-as ao Provider.
// Falhas de envio são registradas em log e nunca interrompem a requisição.
type Recorder struct {
	provider Provider
	tags     []string
}

// NewRecorder cria um Recorder. tags são adicionadas a todas as métricas (ex: "service:aps").
func NewRecorder(provider Provider, tags ...string) *Recorder {
	return &Recorder{provider: provider, tags: tags}
}

// ObserveRequest registra uma requisição respondida.
func (r *Recorder) ObserveRequest(strategy, method string, status int, latency time.Duration) {
	if r == nil || r.provider == nil {
		return
	}
	if strategy == "" {
		strategy = "none"
	}
	tags := r.with(
		"strategy:"+strategy,
		"method:"+strings.ToUpper(method),
		"status:"+strconv.Itoa(status),
		"status_class:"+statusClass(status),
	)
	r.emit(MetricRequests, 1, tags)
	r.emit(MetricLatency, float64(latency.Milliseconds()), tags)
}

// ObserveRoutes registra o tamanho da tabela de rotas por origem.
func (r *Recorder) ObserveRoutes(byOrigin map[string]int) {
	if r == nil || r.provider == nil {
		return
	}
	for origin, n := range byOrigin {
		r.emit(MetricRoutes, float64(n), r.with("origin:"+origin))
	}
}

// ObserveReload registra o resultado de um hot reload.
func (r *Recorder) ObserveReload(err error) {
	if r == nil || r.provider == nil {
		return
	}
	if err != nil {
		r.emit(MetricReloadFailure, 1, r.with())
		return
	}
	r.emit(MetricReloads, 1, r.with())
}

func (r *Recorder) with(extra ...string) []string {
	tags := make([]string, 0, len(r.tags)+len(extra))
	tags = append(tags, r.tags...)
	return append(tags, extra...)
}

func (r *Recorder) emit(id string, value float64, tags []string) {
	def, ok := definitions[id]
	if !ok {
		log.Warn().Str("metric", id).Msg("Métrica não definida")
		return
	}

	var err error
	switch def.Type {
	case TypeCount:
		err = r.provider.Count(def.Name, value, tags)
	case TypeGauge:
		err = r.provider.Gauge(def.Name, value, tags)
	case TypeHistogram:
		err = r.provider.Histogram(def.Name, value, tags)
	default:
		err = fmt.Errorf("tipo de métrica desconhecido: %s", def.Type)
	}
	if err != nil {
		log.Warn().Err(err).Str("metric", def.Name).Msg("Falha ao enviar métrica")
	}
}

func statusClass(status int) string {
	if status < 100 || status > 599 {
		return "unknown"
	}
	return strconv.Itoa(status/100) + "xx"
}
