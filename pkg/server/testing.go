package server

import (
	"context"
	"net/http/httptest"

	"github.com/raywall/spec-emulator/pkg/config"
)

// NewTestServer monta o emulador e o expõe num httptest.Server em porta livre.
// O chamador deve fechar o servidor devolvido.
func NewTestServer(ctx context.Context, cfg *config.EmulatorConfig, opts Options) (*Server, *httptest.Server, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	srv, err := New(ctx, cfg, opts)
	if err != nil {
		return nil, nil, err
	}
	return srv, httptest.NewServer(srv.Handler()), nil
}
