package awsmsg

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"flash-promo-service/internal/config"
	"flash-promo-service/internal/logger"
	"flash-promo-service/internal/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"
)

type snsAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSPublisher доставляет уведомления об акциях в топик SNS
type SNSPublisher struct {
	client   snsAPI
	topicARN string
	log      *logger.Logger
}

// NewSNSPublisher создает публикатор поверх SNS-клиента
func NewSNSPublisher(awsCfg aws.Config, cfg *config.AWSConfig, log *logger.Logger) *SNSPublisher {
	client := sns.NewFromConfig(awsCfg, func(o *sns.Options) {
		if cfg.SNSEndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.SNSEndpointURL)
		}
	})
	return &SNSPublisher{client: client, topicARN: cfg.PromoTopicARN, log: log}
}

// Name возвращает название канала доставки
func (p *SNSPublisher) Name() string { return "sns" }

// Publish отправляет JSON {user_id, promo_id, message} в топик акций
func (p *SNSPublisher) Publish(ctx context.Context, n models.PromoNotification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	out, err := p.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(p.topicARN),
		Message:  aws.String(string(body)),
		Subject:  aws.String("Flash Promo"),
		MessageAttributes: map[string]snstypes.MessageAttributeValue{
			"user_id": {
				DataType:    aws.String("Number"),
				StringValue: aws.String(strconv.FormatInt(n.UserID, 10)),
			},
			"promo_id": {
				DataType:    aws.String("Number"),
				StringValue: aws.String(strconv.FormatInt(n.PromoID, 10)),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to publish to SNS: %w", err)
	}

	p.log.WithFields(map[string]interface{}{
		"user_id":    n.UserID,
		"promo_id":   n.PromoID,
		"message_id": aws.ToString(out.MessageId),
	}).Debug("Notification published to SNS")
	return nil
}
