package awsmsg

import (
	"context"
	"fmt"

	"flash-promo-service/internal/config"
	"flash-promo-service/internal/logger"
	"flash-promo-service/internal/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

// Пределы SQS для одного ReceiveMessage
const (
	MaxReceiveMessages = 10
	MaxWaitSeconds     = 20
)

type sqsAPI interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// QueueSource читает входящую очередь уведомлений из SQS
type QueueSource struct {
	client   sqsAPI
	queueURL string
	log      *logger.Logger
}

// NewQueueSource создает источник поверх SQS-клиента
func NewQueueSource(awsCfg aws.Config, cfg *config.AWSConfig, log *logger.Logger) *QueueSource {
	client := sqs.NewFromConfig(awsCfg, func(o *sqs.Options) {
		if cfg.SQSEndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.SQSEndpointURL)
		}
	})
	return &QueueSource{client: client, queueURL: cfg.QueueURL, log: log}
}

// Receive выполняет long poll. Пустой результат не является ошибкой.
func (s *QueueSource) Receive(ctx context.Context, max, waitSeconds int) ([]models.QueueMessage, error) {
	out, err := s.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(s.queueURL),
		MaxNumberOfMessages: int32(clamp(max, 1, MaxReceiveMessages)),
		WaitTimeSeconds:     int32(clamp(waitSeconds, 0, MaxWaitSeconds)),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to receive from SQS: %w", err)
	}

	msgs := make([]models.QueueMessage, 0, len(out.Messages))
	for _, m := range out.Messages {
		msgs = append(msgs, models.QueueMessage{
			ID:       aws.ToString(m.MessageId),
			Body:     []byte(aws.ToString(m.Body)),
			AckToken: aws.ToString(m.ReceiptHandle),
		})
	}
	return msgs, nil
}

// Ack удаляет сообщение из очереди
func (s *QueueSource) Ack(ctx context.Context, token string) error {
	_, err := s.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(s.queueURL),
		ReceiptHandle: aws.String(token),
	})
	if err != nil {
		return fmt.Errorf("failed to delete SQS message: %w", err)
	}
	return nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
