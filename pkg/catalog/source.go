package catalog

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/raywall/spec-emulator/pkg/cloud"
	"github.com/rs/zerolog/log"
)

// Load carrega o catálogo de um diretório local ou de um prefixo "s3://bucket/prefixo".
func Load(ctx context.Context, source string) (*Catalog, error) {
	if !strings.HasPrefix(source, "s3://") {
		return LoadDir(strings.TrimPrefix(source, "file://"))
	}
	client, err := cloud.NewS3(ctx)
	if err != nil {
		return nil, fmt.Errorf("falha ao iniciar cliente S3: %w", err)
	}
	return LoadS3(ctx, client, source)
}

// LoadS3 aplica ao prefixo S3 as mesmas regras de LoadDir: ordem lexicográfica das chaves,
// apenas .yaml/.yml/.json, documentos inválidos ignorados com log.
func LoadS3(ctx context.Context, client cloud.S3Reader, uri string) (*Catalog, error) {
	bucket, prefix, err := cloud.ParseS3URI(uri)
	if err != nil {
		return nil, err
	}
	keys, err := cloud.ListKeys(ctx, client, bucket, prefix)
	if err != nil {
		return nil, err
	}

	var ops []*Operation
	for _, key := range keys {
		if !docExtensions[strings.ToLower(path.Ext(key))] {
			continue
		}
		source := "s3://" + bucket + "/" + key
		data, err := cloud.Download(ctx, client, bucket, key)
		if err != nil {
			log.Warn().Err(err).Str("file", source).Msg("Documento OpenAPI ignorado")
			continue
		}
		parsed, err := Parse(data, source)
		if err != nil {
			log.Warn().Err(err).Str("file", source).Msg("Documento OpenAPI ignorado")
			continue
		}
		ops = append(ops, parsed...)
	}
	return New(ops...), nil
}
