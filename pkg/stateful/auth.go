package stateful

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/url"
	"strings"

	"github.com/raywall/spec-emulator/pkg/faults"
	"github.com/raywall/spec-emulator/pkg/identity"
	"github.com/raywall/spec-emulator/pkg/types"
)

func (h *Handlers) authDefinitions() []Definition {
	return []Definition{
		public("auth.token", "POST", "/authentication/v2/token", h.issueToken),
		public("auth.revoke", "POST", "/authentication/v2/revoke", h.revokeToken),
		public("auth.introspect", "POST", "/authentication/v2/introspect", h.introspectToken),
	}
}

// formValues lê o corpo como formulário ou JSON (campos string).
func formValues(req *types.Request) url.Values {
	values := url.Values{}
	if len(req.Body) == 0 {
		return values
	}
	if strings.HasPrefix(strings.TrimSpace(string(req.Body)), "{") {
		var m map[string]interface{}
		if json.Unmarshal(req.Body, &m) == nil {
			for k, v := range m {
				if s, ok := v.(string); ok {
					values.Set(k, s)
				}
			}
		}
		return values
	}
	if parsed, err := url.ParseQuery(string(req.Body)); err == nil {
		return parsed
	}
	return values
}

// basicCredentials extrai client_id/secret do header Authorization: Basic.
func basicCredentials(req *types.Request) (string, string, bool) {
	raw := req.Header.Get("Authorization")
	if !strings.HasPrefix(raw, "Basic ") {
		return "", "", false
	}
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(raw, "Basic "))
	if err != nil {
		return "", "", false
	}
	id, secret, found := strings.Cut(string(decoded), ":")
	return id, secret, found
}

func tokenBody(tok identity.Token, expiresIn int64) map[string]interface{} {
	body := map[string]interface{}{
		"access_token":  tok.Value,
		"token_type":    tok.Type,
		"expires_in":    expiresIn,
		"refresh_token": tok.RefreshToken,
	}
	if tok.Scope != "" {
		body["scope"] = tok.Scope
	}
	return body
}

func (h *Handlers) issueToken(ctx context.Context, req *types.Request) (*types.Response, error) {
	form := formValues(req)

	var tok identity.Token
	var err error
	switch grant := form.Get("grant_type"); grant {
	case "", "client_credentials":
		creds := identity.Credentials{
			ClientID:     form.Get("client_id"),
			ClientSecret: form.Get("client_secret"),
			Scope:        form.Get("scope"),
		}
		if id, secret, found := basicCredentials(req); found {
			creds.ClientID, creds.ClientSecret = id, secret
		}
		tok, err = h.ids.Issue(creds)
	case "refresh_token":
		tok, err = h.ids.Refresh(form.Get("refresh_token"))
	default:
		return nil, faults.Validation("grant_type não suportado: " + grant)
	}
	if err != nil {
		return nil, err
	}
	return ok(tokenBody(tok, tok.ExpiresIn(tok.IssuedAt)))
}

func (h *Handlers) revokeToken(ctx context.Context, req *types.Request) (*types.Response, error) {
	token := formValues(req).Get("token")
	if token == "" {
		return nil, faults.Validation("token é obrigatório")
	}
	// RFC 7009: revogar token desconhecido também responde 200.
	h.ids.Revoke(token)
	return ok(map[string]interface{}{})
}

func (h *Handlers) introspectToken(ctx context.Context, req *types.Request) (*types.Response, error) {
	token := formValues(req).Get("token")
	if token == "" {
		return nil, faults.Validation("token é obrigatório")
	}
	return ok(h.ids.Introspect(token))
}
