package injector_test

import (
	"context"
	"errors"
	"testing"

	"github.com/raywall/spec-emulator/pkg/config/injector"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type TestConfig struct {
	Name        string                 `yaml:"name" env:"SERVICE_NAME"` // Caso 1: Tag
	Port        int                    `env:"SERVICE_PORT"`             // Caso 2: Tag numérica
	Debug       bool                   `env:"SERVICE_DEBUG"`
	APIKey      string                 `yaml:"api_key"`     // Caso 3: Interpolação "${env.KEY}"
	Description string                 `yaml:"description"` // Caso 4: Texto misto
	Meta        map[string]interface{} // Caso 5: Map dinâmico
	Data        []interface{}
	Nested      *NestedConfig
}

type NestedConfig struct {
	URL    string
	Secret string
}

func TestInjector_Inject_Environment(t *testing.T) {
	t.Setenv("SERVICE_NAME", "aps-emulator")
	t.Setenv("SERVICE_PORT", "9090")
	t.Setenv("SERVICE_DEBUG", "true")
	t.Setenv("API_KEY", "12345-abcde")
	t.Setenv("REGION", "us-east-1")
	t.Setenv("DB_HOST", "localhost")

	inj := injector.New().WithResolver("ssm", func(ctx context.Context, key string) (interface{}, error) {
		return "from-ssm:" + key, nil
	})

	target := &TestConfig{
		Name:        "Placeholder",
		APIKey:      "${env.API_KEY}",
		Description: "Emulator running in ${env.REGION}",
		Meta: map[string]interface{}{
			"db_host": "${env.DB_HOST}",
			"timeout": 5000,
			"nested":  map[string]interface{}{"region": "${env.REGION}"},
		},
		Data: []interface{}{
			"${env.REGION}",
			map[string]interface{}{"host": "${env.DB_HOST}"},
		},
		Nested: &NestedConfig{
			URL:    "https://${env.REGION}.api.com",
			Secret: "${ssm./emulator/secret}",
		},
	}

	err := inj.Inject(context.Background(), target)
	require.NoError(t, err)

	assert.Equal(t, "aps-emulator", target.Name, "Tag env não funcionou")
	assert.Equal(t, 9090, target.Port)
	assert.True(t, target.Debug)
	assert.Equal(t, "12345-abcde", target.APIKey, "Interpolação direta falhou")
	assert.Equal(t, "Emulator running in us-east-1", target.Description, "Interpolação mista falhou")
	assert.Equal(t, "localhost", target.Meta["db_host"], "Interpolação em mapa falhou")
	assert.Equal(t, 5000, target.Meta["timeout"])
	assert.Equal(t, "us-east-1", target.Meta["nested"].(map[string]interface{})["region"])
	assert.Equal(t, "us-east-1", target.Data[0])
	assert.Equal(t, "localhost", target.Data[1].(map[string]interface{})["host"])
	assert.Equal(t, "https://us-east-1.api.com", target.Nested.URL, "Interpolação aninhada falhou")
	assert.Equal(t, "from-ssm:/emulator/secret", target.Nested.Secret)
}

func TestInjector_ResolverError(t *testing.T) {
	inj := injector.New().WithResolver("secret", func(ctx context.Context, key string) (interface{}, error) {
		return nil, errors.New("AWS down")
	})

	target := &TestConfig{APIKey: "${secret.clients}"}
	assert.Error(t, inj.Inject(context.Background(), target))
}

func TestInjector_InvalidEnvType(t *testing.T) {
	t.Setenv("SERVICE_PORT", "abc")
	assert.Error(t, injector.New().Inject(context.Background(), &TestConfig{}))
}

func TestInjector_RequiresPointer(t *testing.T) {
	assert.Error(t, injector.New().Inject(context.Background(), TestConfig{}))
}
