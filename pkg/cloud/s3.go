package cloud

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Reader é o subconjunto do cliente S3 usado para baixar configuração e documentos OpenAPI.
type S3Reader interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// NewS3 cria o cliente real a partir da configuração compartilhada.
func NewS3(ctx context.Context) (*s3.Client, error) {
	cfg, err := AWSConfig(ctx, "")
	if err != nil {
		return nil, err
	}
	return s3.NewFromConfig(cfg), nil
}

// ParseS3URI separa "s3://bucket/chave" em bucket e chave.
func ParseS3URI(uri string) (bucket, key string, err error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", "", fmt.Errorf("URL S3 inválida: %w", err)
	}
	if u.Scheme != "s3" || u.Host == "" {
		return "", "", fmt.Errorf("URL S3 inválida: '%s'", uri)
	}
	return u.Host, strings.TrimPrefix(u.Path, "/"), nil
}

// Download lê um objeto inteiro.
func Download(ctx context.Context, client S3Reader, bucket, key string) ([]byte, error) {
	out, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("erro ao baixar s3://%s/%s: %w", bucket, key, err)
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}

// ListKeys devolve, em ordem lexicográfica, as chaves sob o prefixo (todas as páginas).
func ListKeys(ctx context.Context, client S3Reader, bucket, prefix string) ([]string, error) {
	var keys []string
	var token *string
	for {
		out, err := client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(bucket),
			Prefix:            aws.String(prefix),
			ContinuationToken: token,
		})
		if err != nil {
			return nil, fmt.Errorf("erro ao listar s3://%s/%s: %w", bucket, prefix, err)
		}
		for _, obj := range out.Contents {
			if obj.Key != nil {
				keys = append(keys, *obj.Key)
			}
		}
		if !aws.ToBool(out.IsTruncated) || out.NextContinuationToken == nil {
			break
		}
		token = out.NextContinuationToken
	}
	sort.Strings(keys)
	return keys, nil
}
