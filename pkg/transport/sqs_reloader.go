package transport

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/raywall/spec-emulator/pkg/cloud"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const maxBatch = 10

// SQSClient define a interface necessária para o reloader (permite Mocking)
type SQSClient interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// Reloader recarrega catálogo e overrides sem derrubar o servidor.
type Reloader interface {
	Reload(ctx context.Context) error
}

// SQSReloader faz long polling numa fila e dispara um reload a cada mensagem.
type SQSReloader struct {
	client   SQSClient
	queueURL string
	reloader Reloader
	logger   zerolog.Logger
	wait     int32
	backoff  time.Duration
}

func NewSQSReloader(client SQSClient, queueURL string, reloader Reloader) *SQSReloader {
	return &SQSReloader{
		client:   client,
		queueURL: queueURL,
		reloader: reloader,
		logger:   log.With().Str("component", "sqs_reloader").Logger(),
		wait:     20,
		backoff:  5 * time.Second,
	}
}

// NewSQSReloaderFromEnv cria o reloader com o cliente SQS real.
func NewSQSReloaderFromEnv(ctx context.Context, queueURL string, reloader Reloader) (*SQSReloader, error) {
	cfg, err := cloud.AWSConfig(ctx, "")
	if err != nil {
		return nil, err
	}
	return NewSQSReloader(sqs.NewFromConfig(cfg), queueURL, reloader), nil
}

// WithPolling ajusta o long polling e a espera após erro.
func (s *SQSReloader) WithPolling(waitSeconds int32, backoff time.Duration) *SQSReloader {
	s.wait = waitSeconds
	s.backoff = backoff
	return s
}

// Start bloqueia até o contexto ser cancelado. Sempre devolve nil; falhas de reload
// são registradas e o snapshot anterior continua servindo.
func (s *SQSReloader) Start(ctx context.Context) error {
	if s.queueURL == "" {
		s.logger.Warn().Msg("URL da fila SQS não configurada. Hot Reload desativado.")
		return nil
	}

	s.logger.Info().Str("queue", s.queueURL).Msg("Monitorando fila SQS para Hot Reload")

	for {
		if ctx.Err() != nil {
			s.logger.Info().Msg("Parando monitoramento SQS")
			return nil
		}

		out, err := s.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:            aws.String(s.queueURL),
			MaxNumberOfMessages: maxBatch,
			WaitTimeSeconds:     s.wait,
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.logger.Error().Err(err).Dur("retry_in", s.backoff).Msg("Erro no SQS")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(s.backoff):
			}
			continue
		}

		if len(out.Messages) == 0 {
			continue
		}

		// uma rajada de eventos (vários documentos enviados juntos) vira um único reload
		s.logger.Info().Int("messages", len(out.Messages)).Msg("Evento de alteração recebido via SQS")
		if err := s.reloader.Reload(ctx); err != nil {
			s.logger.Error().Err(err).Msg("Falha no Reload; mantendo configuração anterior")
		} else {
			s.logger.Info().Msg("Hot Reload aplicado")
		}
		s.ack(ctx, out.Messages)
	}
}

func (s *SQSReloader) ack(ctx context.Context, messages []types.Message) {
	for _, msg := range messages {
		if _, err := s.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
			QueueUrl:      aws.String(s.queueURL),
			ReceiptHandle: msg.ReceiptHandle,
		}); err != nil {
			s.logger.Warn().Err(err).Msg("Falha ao remover mensagem da fila")
		}
	}
}
