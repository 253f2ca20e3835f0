package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/url"

	"github.com/gorilla/mux"
	"github.com/raywall/spec-emulator/pkg/faults"
	"github.com/raywall/spec-emulator/pkg/state"
	"github.com/raywall/spec-emulator/pkg/stateful"
	"github.com/rs/zerolog"
)

// AdminPrefix é o prefixo da API administrativa. Rotas do catálogo sob ele ficam inacessíveis.
const AdminPrefix = "/__admin"

type healthResponse struct {
	Status string         `json:"status"`
	Mode   string         `json:"mode"`
	Routes int            `json:"routes"`
	Origin map[string]int `json:"origins"`
}

type statusPatch struct {
	Status   state.TranslationStatus `json:"status"`
	Progress string                  `json:"progress"`
}

func (s *Server) registerAdmin(r *mux.Router) {
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/routes", s.handleRoutes).Methods(http.MethodGet)
	r.HandleFunc("/reset", s.handleReset).Methods(http.MethodPost)
	r.HandleFunc("/reload", s.handleReload).Methods(http.MethodPost)
	r.HandleFunc("/translations/{urn}", s.handleTranslation).Methods(http.MethodPatch)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	routing := s.engine.Routing()
	writeJSON(w, http.StatusOK, healthResponse{
		Status: "ok",
		Mode:   s.engine.Mode(),
		Routes: routing.Table.Len(),
		Origin: routing.CountByOrigin(),
	})
}

func (s *Server) handleRoutes(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Routing().Routes())
}

// handleReset limpa o estado e os tokens emitidos.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.store.Reset()
	s.ids.Reset()
	zerolog.Ctx(r.Context()).Info().Msg("Estado do emulador reiniciado")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	if err := s.Reload(r.Context()); err != nil {
		writeFault(w, faults.Validation(err.Error()))
		return
	}
	s.handleHealth(w, r)
}

// handleTranslation força o andamento de um job. Sem corpo (ou sem status), avança um estágio.
func (s *Server) handleTranslation(w http.ResponseWriter, r *http.Request) {
	raw, err := url.PathUnescape(mux.Vars(r)["urn"])
	if err != nil {
		writeFault(w, faults.Validation("urn mal codificada"))
		return
	}
	urn := stateful.DecodeURN(raw)

	var patch statusPatch
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeFault(w, faults.Validation("corpo ilegível"))
		return
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &patch); err != nil {
			writeFault(w, faults.Validation("corpo JSON inválido: "+err.Error()))
			return
		}
	}

	var job state.TranslationJob
	if patch.Status == "" {
		job, err = s.store.Translations.Advance(urn)
	} else {
		job, err = s.store.Translations.SetStatus(urn, patch.Status, patch.Progress)
	}
	if err != nil {
		writeFault(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeFault(w http.ResponseWriter, err error) {
	writeJSON(w, faults.HTTPStatus(err), faults.ToBody(err))
}
