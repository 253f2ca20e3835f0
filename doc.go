// Package spec_emulator é um test double HTTP guiado por documentos OpenAPI.
//
// Visão Geral:
// O emulador lê um diretório (ou prefixo S3) de documentos OpenAPI e sobe um servidor
// que responde a toda operação documentada. Em cada requisição ele escolhe uma estratégia,
// nesta ordem de precedência:
// 1. Override: handler registrado em código ou declarado no YAML de configuração.
// 2. Stateful: emulação da APS com estado em memória (somente no modo stateful).
// 3. Genérico: exemplo de resposta tirado do próprio documento OpenAPI.
// Sem estratégia, a resposta é 404; método não documentado para o path é 405.
//
// Sub-Pacotes Principais:
//
// 1. catalog / router:
//   - Leitura dos documentos OpenAPI (JSON ou YAML, $ref locais).
//   - Tabela de rotas por skeleton: "GET /hubs/{id}" e "GET /hubs/{hubId}" são a mesma rota.
//
// 2. state / identity / stateful:
//   - Coleções em memória (OSS, hierarquia, traduções, issues, webhooks), cada uma com seu lock.
//   - Emissão e validação de tokens bearer.
//   - Handlers HTTP da emulação APS.
//
// 3. override / generic / dispatch:
//   - Estratégias e a engine que escolhe e executa uma delas por requisição.
//
// 4. config / server / transport:
//   - Configuração YAML (arquivo, S3 ou DynamoDB) com injeção de env, SSM e Secrets Manager.
//   - API administrativa em /__admin, runtime Lambda e hot reload via SQS.
//
// Exemplo de Início Rápido:
//
//	package main
//
//	import (
//		"context"
//		"log"
//
//		"github.com/raywall/spec-emulator/pkg/config"
//		"github.com/raywall/spec-emulator/pkg/override"
//		"github.com/raywall/spec-emulator/pkg/server"
//		"github.com/raywall/spec-emulator/pkg/types"
//	)
//
//	func main() {
//		ctx := context.Background()
//		cfg := config.Default()
//		cfg.Server.OpenAPIDir = "./openapi"
//
//		srv, err := server.New(ctx, cfg, server.Options{})
//		if err != nil {
//			log.Fatalf("Erro ao montar emulador: %v", err)
//		}
//
//		// Override em código vence o estado e o exemplo do catálogo
//		_ = srv.Override("GET", "/project/v1/hubs/{hubId}", types.HandlerFunc(
//			func(ctx context.Context, req *types.Request) (*types.Response, error) {
//				return types.JSON(200, map[string]string{"id": req.Param("hubId")}), nil
//			}), override.Options{})
//
//		log.Fatal(srv.Start(ctx))
//	}
package spec_emulator
