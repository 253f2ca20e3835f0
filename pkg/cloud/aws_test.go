package cloud

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
)

// --- Mocks ---

type MockSSM struct {
	GetParameterFunc func(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

func (m *MockSSM) GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	return m.GetParameterFunc(ctx, params, optFns...)
}

type MockSecrets struct {
	GetSecretValueFunc func(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

func (m *MockSecrets) GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	return m.GetSecretValueFunc(ctx, params, optFns...)
}

// --- Testes ---

func TestGetParameter(t *testing.T) {
	t.Run("Sucesso", func(t *testing.T) {
		mockVal := "client-secret"
		mockClient := &MockSSM{
			GetParameterFunc: func(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
				if *params.Name != "/emulator/secret" {
					t.Errorf("Path esperado /emulator/secret, recebido %s", *params.Name)
				}
				if !*params.WithDecryption {
					t.Error("Esperado WithDecryption true")
				}
				return &ssm.GetParameterOutput{Parameter: &types.Parameter{Value: &mockVal}}, nil
			},
		}

		res, err := GetParameter(context.Background(), mockClient, "/emulator/secret", true)
		if err != nil {
			t.Fatalf("Erro inesperado: %v", err)
		}
		if res != mockVal {
			t.Errorf("Valor incorreto: %v", res)
		}
	})

	t.Run("Erro na AWS", func(t *testing.T) {
		mockClient := &MockSSM{
			GetParameterFunc: func(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
				return nil, errors.New("AWS down")
			},
		}
		if _, err := GetParameter(context.Background(), mockClient, "/x", true); err == nil {
			t.Error("Esperava erro, recebido nil")
		}
	})
}

func TestGetSecret(t *testing.T) {
	t.Run("JSON vira mapa", func(t *testing.T) {
		secretJSON := `{"client_id": "app", "client_secret": "s3cr3t"}`
		mockClient := &MockSecrets{
			GetSecretValueFunc: func(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
				return &secretsmanager.GetSecretValueOutput{SecretString: &secretJSON}, nil
			},
		}

		res, err := GetSecret(context.Background(), mockClient, "emulator")
		if err != nil {
			t.Fatalf("Erro inesperado: %v", err)
		}
		if res.(map[string]interface{})["client_secret"] != "s3cr3t" {
			t.Errorf("JSON parse falhou ou valor incorreto")
		}
	})

	t.Run("String pura", func(t *testing.T) {
		secretStr := "just-a-password"
		mockClient := &MockSecrets{
			GetSecretValueFunc: func(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
				return &secretsmanager.GetSecretValueOutput{SecretString: &secretStr}, nil
			},
		}

		res, err := GetSecret(context.Background(), mockClient, "emulator")
		if err != nil {
			t.Fatalf("Erro inesperado: %v", err)
		}
		if res.(string) != "just-a-password" {
			t.Errorf("Deveria retornar string pura se não for JSON")
		}
	})
}

func TestParseS3URI(t *testing.T) {
	bucket, key, err := ParseS3URI("s3://configs/emulator/app.yaml")
	if err != nil || bucket != "configs" || key != "emulator/app.yaml" {
		t.Errorf("parse incorreto: %s %s %v", bucket, key, err)
	}
	if _, _, err := ParseS3URI("http://configs/x"); err == nil {
		t.Error("esquema diferente de s3 deveria falhar")
	}
}
