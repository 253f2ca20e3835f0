package identity

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/raywall/spec-emulator/pkg/faults"
	"github.com/rs/zerolog/log"
)

const (
	DefaultTTL         = time.Hour
	defaultMaxAttempts = 8
	TokenType          = "Bearer"
)

// Credentials são os dados apresentados no endpoint de token.
type Credentials struct {
	ClientID     string
	ClientSecret string
	Scope        string
}

// Token é uma credencial emitida. O valor é único entre todos os tokens vivos.
type Token struct {
	Value        string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	Type         string    `json:"token_type"`
	ClientID     string    `json:"client_id"`
	Scope        string    `json:"scope,omitempty"`
	IssuedAt     time.Time `json:"issued_at"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// ExpiresIn devolve os segundos restantes (nunca negativo).
func (t Token) ExpiresIn(now time.Time) int64 {
	left := int64(t.ExpiresAt.Sub(now).Seconds())
	if left < 0 {
		return 0
	}
	return left
}

func (t Token) expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// Introspection segue o formato de introspecção OAuth (RFC 7662).
type Introspection struct {
	Active    bool   `json:"active"`
	ClientID  string `json:"client_id,omitempty"`
	Scope     string `json:"scope,omitempty"`
	TokenType string `json:"token_type,omitempty"`
	Exp       int64  `json:"exp,omitempty"`
}

// Generator produz candidatos a valor de token.
type Generator func() string

type Option func(*Service)

// WithTTL define a validade dos tokens emitidos.
func WithTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

func WithGenerator(gen Generator) Option {
	return func(s *Service) { s.generate = gen }
}

func WithClock(clock func() time.Time) Option {
	return func(s *Service) { s.now = clock }
}

// WithClients restringe a emissão aos pares client_id/secret informados.
func WithClients(clients map[string]string) Option {
	return func(s *Service) {
		s.clients = make(map[string]string, len(clients))
		for id, secret := range clients {
			s.clients[id] = secret
		}
	}
}

// WithInvariantChecks faz toda mutação verificar a consistência entre coleção e índice (panic em divergência).
func WithInvariantChecks() Option {
	return func(s *Service) { s.checks = true }
}

func WithMaxAttempts(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

// Service guarda os tokens emitidos.
// byClient é a coleção primária; index permite validar em O(1).
// As duas estruturas só mudam juntas, sob o mesmo lock.
type Service struct {
	mu       sync.RWMutex
	byClient map[string][]*Token
	index    map[string]*Token
	refresh  map[string]*Token

	ttl         time.Duration
	generate    Generator
	now         func() time.Time
	clients     map[string]string
	checks      bool
	maxAttempts int
}

func NewService(opts ...Option) *Service {
	s := &Service{
		byClient:    make(map[string][]*Token),
		index:       make(map[string]*Token),
		refresh:     make(map[string]*Token),
		ttl:         DefaultTTL,
		generate:    defaultGenerator,
		now:         time.Now,
		maxAttempts: defaultMaxAttempts,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func defaultGenerator() string {
	return "mock_" + uuid.NewString()
}

// Issue emite um novo token. Emissões repetidas para o mesmo cliente geram tokens distintos e todos válidos.
func (s *Service) Issue(creds Credentials) (Token, error) {
	if creds.ClientID == "" {
		return Token{}, faults.Validation("client_id é obrigatório")
	}
	if len(s.clients) > 0 {
		secret, ok := s.clients[creds.ClientID]
		if !ok || secret != creds.ClientSecret {
			return Token{}, faults.Auth("credenciais de cliente inválidas")
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.pruneLocked(creds.ClientID, now)

	value, err := s.uniqueLocked()
	if err != nil {
		return Token{}, err
	}
	refresh, err := s.uniqueLocked()
	if err != nil {
		return Token{}, err
	}

	tok := &Token{
		Value:        value,
		RefreshToken: "refresh_" + refresh,
		Type:         TokenType,
		ClientID:     creds.ClientID,
		Scope:        creds.Scope,
		IssuedAt:     now,
		ExpiresAt:    now.Add(s.ttl),
	}
	s.byClient[tok.ClientID] = append(s.byClient[tok.ClientID], tok)
	s.index[tok.Value] = tok
	s.refresh[tok.RefreshToken] = tok

	s.checkLocked()
	return *tok, nil
}

// Refresh troca um refresh token por um novo token do mesmo cliente. O token antigo é revogado.
func (s *Service) Refresh(refreshToken string) (Token, error) {
	s.mu.Lock()
	old, ok := s.refresh[refreshToken]
	if ok {
		s.removeLocked(old)
		s.checkLocked()
	}
	s.mu.Unlock()

	if !ok {
		return Token{}, faults.Auth("refresh token inválido")
	}
	return s.Issue(Credentials{ClientID: old.ClientID, ClientSecret: s.clients[old.ClientID], Scope: old.Scope})
}

// uniqueLocked gera um valor que não colide com nenhum token vivo.
func (s *Service) uniqueLocked() (string, error) {
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		candidate := s.generate()
		_, live := s.index[candidate]
		_, liveRefresh := s.refresh["refresh_"+candidate]
		if candidate != "" && !live && !liveRefresh {
			return candidate, nil
		}
		log.Debug().Int("attempt", attempt).Msg("Colisão de token detectada, gerando novamente")
	}
	return "", faults.NewTypedError(faults.InternalError,
		fmt.Sprintf("não foi possível gerar token único após %d tentativas", s.maxAttempts), nil)
}

// Validate é uma busca O(1) no índice. Tokens expirados são rejeitados (expiração preguiçosa).
func (s *Service) Validate(value string) (Token, error) {
	s.mu.RLock()
	tok, ok := s.index[value]
	var snapshot Token
	if ok {
		snapshot = *tok
	}
	s.mu.RUnlock()

	if !ok {
		return Token{}, faults.Auth("The access token provided is invalid or has expired.")
	}
	if snapshot.expired(s.now()) {
		return Token{}, faults.Auth("The access token provided is invalid or has expired.")
	}
	return snapshot, nil
}

// Revoke remove o token. Devolve false quando o token não existia.
func (s *Service) Revoke(value string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	tok, ok := s.index[value]
	if !ok {
		tok, ok = s.refresh[value]
	}
	if !ok {
		return false
	}
	s.removeLocked(tok)
	s.checkLocked()
	return true
}

// Introspect descreve o token sem alterá-lo.
func (s *Service) Introspect(value string) Introspection {
	tok, err := s.Validate(value)
	if err != nil {
		return Introspection{Active: false}
	}
	return Introspection{
		Active:    true,
		ClientID:  tok.ClientID,
		Scope:     tok.Scope,
		TokenType: tok.Type,
		Exp:       tok.ExpiresAt.Unix(),
	}
}

// Tokens devolve cópias dos tokens vivos de um cliente, em ordem de emissão.
func (s *Service) Tokens(clientID string) []Token {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Token, 0, len(s.byClient[clientID]))
	for _, tok := range s.byClient[clientID] {
		out = append(out, *tok)
	}
	return out
}

// Reset descarta todos os tokens.
func (s *Service) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.byClient = make(map[string][]*Token)
	s.index = make(map[string]*Token)
	s.refresh = make(map[string]*Token)
}

// Verify confere que coleção primária e índices descrevem o mesmo conjunto de tokens.
func (s *Service) Verify() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.verifyLocked()
}

func (s *Service) verifyLocked() error {
	total := 0
	for clientID, tokens := range s.byClient {
		if len(tokens) == 0 {
			return fmt.Errorf("cliente '%s' sem tokens mantido na coleção", clientID)
		}
		for _, tok := range tokens {
			total++
			if s.index[tok.Value] != tok {
				return fmt.Errorf("token do cliente '%s' ausente do índice", clientID)
			}
			if s.refresh[tok.RefreshToken] != tok {
				return fmt.Errorf("refresh token do cliente '%s' ausente do índice", clientID)
			}
			if tok.ClientID != clientID {
				return fmt.Errorf("token indexado no cliente errado '%s'", clientID)
			}
		}
	}
	if total != len(s.index) || total != len(s.refresh) {
		return fmt.Errorf("divergência: %d tokens na coleção, %d no índice, %d refresh", total, len(s.index), len(s.refresh))
	}
	return nil
}

func (s *Service) checkLocked() {
	if !s.checks {
		return
	}
	if err := s.verifyLocked(); err != nil {
		panic("identity: " + err.Error())
	}
}

func (s *Service) removeLocked(tok *Token) {
	delete(s.index, tok.Value)
	delete(s.refresh, tok.RefreshToken)

	tokens := s.byClient[tok.ClientID]
	for i, t := range tokens {
		if t == tok {
			tokens = append(tokens[:i:i], tokens[i+1:]...)
			break
		}
	}
	if len(tokens) == 0 {
		delete(s.byClient, tok.ClientID)
	} else {
		s.byClient[tok.ClientID] = tokens
	}
}

// pruneLocked remove tokens expirados do cliente.
func (s *Service) pruneLocked(clientID string, now time.Time) {
	for _, tok := range append([]*Token(nil), s.byClient[clientID]...) {
		if tok.expired(now) {
			s.removeLocked(tok)
		}
	}
}
