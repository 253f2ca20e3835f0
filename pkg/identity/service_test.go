package identity

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/raywall/spec-emulator/pkg/faults"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sequence devolve os valores na ordem e depois valores numerados.
func sequence(values ...string) Generator {
	var mu sync.Mutex
	i := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		i++
		if i <= len(values) {
			return values[i-1]
		}
		return fmt.Sprintf("gen-%d", i)
	}
}

func TestIssue_SameCredentialsTwice(t *testing.T) {
	svc := NewService(WithInvariantChecks())
	creds := Credentials{ClientID: "app", ClientSecret: "s3cr3t", Scope: "data:read"}

	first, err := svc.Issue(creds)
	require.NoError(t, err)
	second, err := svc.Issue(creds)
	require.NoError(t, err)

	assert.NotEqual(t, first.Value, second.Value)

	_, err = svc.Validate(first.Value)
	assert.NoError(t, err)
	got, err := svc.Validate(second.Value)
	require.NoError(t, err)
	assert.Equal(t, "app", got.ClientID)
	assert.Equal(t, "data:read", got.Scope)
	assert.Equal(t, TokenType, got.Type)

	assert.Len(t, svc.Tokens("app"), 2)
	assert.NoError(t, svc.Verify())
}

func TestIssue_CollisionRegenerates(t *testing.T) {
	svc := NewService(
		WithInvariantChecks(),
		WithGenerator(sequence("dup", "r1", "dup", "dup", "novo", "r2")),
	)

	a, err := svc.Issue(Credentials{ClientID: "a"})
	require.NoError(t, err)
	b, err := svc.Issue(Credentials{ClientID: "b"})
	require.NoError(t, err)

	assert.Equal(t, "dup", a.Value)
	assert.Equal(t, "novo", b.Value)
	assert.NoError(t, svc.Verify())
}

func TestIssue_CollisionExhausted(t *testing.T) {
	svc := NewService(WithGenerator(func() string { return "sempre-igual" }), WithMaxAttempts(3))

	_, err := svc.Issue(Credentials{ClientID: "a"})
	require.NoError(t, err)

	_, err = svc.Issue(Credentials{ClientID: "a"})
	assert.True(t, faults.IsCategory(err, faults.InternalError))
	assert.NoError(t, svc.Verify())
}

func TestIssue_ClientRegistry(t *testing.T) {
	svc := NewService(WithClients(map[string]string{"app": "certo"}))

	_, err := svc.Issue(Credentials{ClientID: "app", ClientSecret: "errado"})
	assert.True(t, faults.IsCategory(err, faults.AuthError))

	_, err = svc.Issue(Credentials{ClientID: "outro", ClientSecret: "certo"})
	assert.True(t, faults.IsCategory(err, faults.AuthError))

	_, err = svc.Issue(Credentials{ClientID: "app", ClientSecret: "certo"})
	assert.NoError(t, err)

	_, err = svc.Issue(Credentials{})
	assert.True(t, faults.IsCategory(err, faults.ValidationError))
}

func TestValidate_Expiry(t *testing.T) {
	now := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	svc := NewService(WithTTL(time.Minute), WithClock(clock), WithInvariantChecks())

	tok, err := svc.Issue(Credentials{ClientID: "app"})
	require.NoError(t, err)
	assert.Equal(t, int64(60), tok.ExpiresIn(now))

	now = now.Add(59 * time.Second)
	_, err = svc.Validate(tok.Value)
	assert.NoError(t, err)

	now = now.Add(time.Second)
	_, err = svc.Validate(tok.Value)
	assert.True(t, faults.IsCategory(err, faults.AuthError))
	assert.False(t, svc.Introspect(tok.Value).Active)

	// nova emissão descarta o expirado
	_, err = svc.Issue(Credentials{ClientID: "app"})
	require.NoError(t, err)
	assert.Len(t, svc.Tokens("app"), 1)
}

func TestRevokeAndIntrospect(t *testing.T) {
	svc := NewService(WithInvariantChecks())
	tok, err := svc.Issue(Credentials{ClientID: "app", Scope: "data:write"})
	require.NoError(t, err)

	info := svc.Introspect(tok.Value)
	assert.True(t, info.Active)
	assert.Equal(t, "app", info.ClientID)
	assert.Equal(t, "data:write", info.Scope)

	assert.True(t, svc.Revoke(tok.Value))
	assert.False(t, svc.Revoke(tok.Value))

	_, err = svc.Validate(tok.Value)
	assert.Error(t, err)
	assert.Empty(t, svc.Tokens("app"))
	assert.NoError(t, svc.Verify())
}

func TestRefresh(t *testing.T) {
	svc := NewService(WithInvariantChecks())
	tok, err := svc.Issue(Credentials{ClientID: "app", Scope: "data:read"})
	require.NoError(t, err)

	renewed, err := svc.Refresh(tok.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, tok.Value, renewed.Value)
	assert.Equal(t, "data:read", renewed.Scope)

	_, err = svc.Validate(tok.Value)
	assert.Error(t, err, "token antigo deveria ser revogado")

	_, err = svc.Refresh(tok.RefreshToken)
	assert.True(t, faults.IsCategory(err, faults.AuthError))
}

func TestIssue_ConcurrentUniqueness(t *testing.T) {
	svc := NewService(WithInvariantChecks())

	const workers = 50
	values := make(chan string, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tok, err := svc.Issue(Credentials{ClientID: fmt.Sprintf("client-%d", i%5)})
			if err == nil {
				values <- tok.Value
			}
		}(i)
	}
	wg.Wait()
	close(values)

	seen := make(map[string]bool)
	for v := range values {
		assert.False(t, seen[v], "token repetido: %s", v)
		seen[v] = true
	}
	assert.Len(t, seen, workers)
	assert.NoError(t, svc.Verify())
}

func TestReset(t *testing.T) {
	svc := NewService()
	tok, _ := svc.Issue(Credentials{ClientID: "app"})
	svc.Reset()

	_, err := svc.Validate(tok.Value)
	assert.Error(t, err)
	assert.NoError(t, svc.Verify())
}
