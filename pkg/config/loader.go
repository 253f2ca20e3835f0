package config

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/raywall/spec-emulator/pkg/cloud"
	"github.com/raywall/spec-emulator/pkg/config/injector"
	"gopkg.in/yaml.v3"
)

// Load é o atalho usado na inicialização e no hot reload.
func Load(ctx context.Context, source string) (*EmulatorConfig, error) {
	return NewUniversalLoader().Load(ctx, source)
}

// --- Interfaces para Mocking ---

type DynamoGetter interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
}

// UniversalLoader suporta múltiplas fontes de configuração (Local, S3, DynamoDB).
type UniversalLoader struct {
	validator *ConfigValidator
	injector  *injector.Injector
	s3        cloud.S3Reader
	dynamo    DynamoGetter
}

func NewUniversalLoader() *UniversalLoader {
	return &UniversalLoader{
		validator: NewValidator(),
		injector:  injector.New(),
	}
}

// WithClients injeta clientes AWS (nil mantém o cliente real, criado sob demanda).
func (ul *UniversalLoader) WithClients(s3Client cloud.S3Reader, dynamo DynamoGetter) *UniversalLoader {
	ul.s3 = s3Client
	ul.dynamo = dynamo
	return ul
}

func (ul *UniversalLoader) WithInjector(inj *injector.Injector) *UniversalLoader {
	ul.injector = inj
	return ul
}

// Load detecta o esquema da fonte e carrega a configuração.
func (ul *UniversalLoader) Load(ctx context.Context, source string) (*EmulatorConfig, error) {
	var rawData []byte
	var err error

	switch {
	case strings.HasPrefix(source, "s3://"):
		rawData, err = ul.loadFromS3(ctx, source)
	case strings.HasPrefix(source, "dynamodb://"):
		rawData, err = ul.loadFromDynamoDB(ctx, source)
	default:
		rawData, err = os.ReadFile(strings.TrimPrefix(source, "file://"))
	}
	if err != nil {
		return nil, fmt.Errorf("falha leitura config (%s): %w", source, err)
	}

	return ul.Parse(ctx, rawData)
}

func (ul *UniversalLoader) loadFromS3(ctx context.Context, uri string) ([]byte, error) {
	bucket, key, err := cloud.ParseS3URI(uri)
	if err != nil {
		return nil, err
	}
	client := ul.s3
	if client == nil {
		if client, err = cloud.NewS3(ctx); err != nil {
			return nil, err
		}
	}
	return cloud.Download(ctx, client, bucket, key)
}

func (ul *UniversalLoader) loadFromDynamoDB(ctx context.Context, uri string) ([]byte, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("URL DynamoDB inválida: %w", err)
	}

	client := ul.dynamo
	if client == nil {
		cfg, err := cloud.AWSConfig(ctx, "")
		if err != nil {
			return nil, err
		}
		client = dynamodb.NewFromConfig(cfg)
	}

	tableName := u.Host
	pkValue := strings.TrimPrefix(u.Path, "/")

	// Query Params opcionais: dynamodb://tabela/chave?col=dado&pk=ServiceName
	colName := u.Query().Get("col")
	if colName == "" {
		colName = "config"
	}
	pkName := u.Query().Get("pk")
	if pkName == "" {
		pkName = "id"
	}

	out, err := client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: &tableName,
		Key: map[string]types.AttributeValue{
			pkName: &types.AttributeValueMemberS{Value: pkValue},
		},
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("item não encontrado no DynamoDB")
	}

	var itemMap map[string]interface{}
	if err := attributevalue.UnmarshalMap(out.Item, &itemMap); err != nil {
		return nil, err
	}

	content, ok := itemMap[colName].(string)
	if !ok {
		return nil, fmt.Errorf("coluna '%s' inválida ou vazia no DynamoDB", colName)
	}
	return []byte(content), nil
}

// Parse converte YAML em configuração: unmarshal, injeção, defaults e validação.
func (ul *UniversalLoader) Parse(ctx context.Context, data []byte) (*EmulatorConfig, error) {
	var cfg EmulatorConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("YAML malformado: %w", err)
	}

	if ul.injector != nil {
		if err := ul.injector.Inject(ctx, &cfg); err != nil {
			return nil, fmt.Errorf("falha na injeção de variáveis: %w", err)
		}
	}

	cfg.ApplyDefaults()

	if ul.validator != nil {
		if err := ul.validator.Validate(&cfg); err != nil {
			return nil, fmt.Errorf("validação da configuração falhou: %w", err)
		}
	}
	return &cfg, nil
}
