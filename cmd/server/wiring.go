package main

import (
	"context"
	"fmt"
	"time"

	"flash-promo-service/internal/awsmsg"
	"flash-promo-service/internal/config"
	"flash-promo-service/internal/kafka"
	"flash-promo-service/internal/logger"
	"flash-promo-service/internal/models"
	"flash-promo-service/internal/scheduler"
	"flash-promo-service/internal/services"

	"github.com/aws/aws-sdk-go-v2/aws"
)

// Каналы доставки уведомлений
const (
	publisherKafka = "kafka"
	publisherSNS   = "sns"
)

// selectPublisher выбирает канал доставки уведомлений по конфигурации.
func selectPublisher(cfg *config.Config, producer services.Publisher, awsCfg *aws.Config, log *logger.Logger) (services.Publisher, error) {
	switch cfg.Promo.Publisher {
	case "", publisherKafka:
		return producer, nil
	case publisherSNS:
		if awsCfg == nil {
			return nil, fmt.Errorf("sns publisher requires AWS configuration")
		}
		return awsmsg.NewSNSPublisher(*awsCfg, &cfg.AWS, log), nil
	default:
		return nil, fmt.Errorf("unknown notification publisher %q", cfg.Promo.Publisher)
	}
}

// registerJobs регистрирует периодические задачи. Слив очереди включается только при заданном QueueURL.
func registerJobs(s *scheduler.Scheduler, cfg *config.Config, promos *services.PromoService, dispatcher scheduler.PromoDispatcher, awsCfg *aws.Config, log *logger.Logger) {
	sc := cfg.Scheduler
	s.Register(scheduler.ActivationScan(promos, dispatcher, log, seconds(sc.ActivationScanSeconds)))
	s.Register(scheduler.ExpiryCleanup(promos, seconds(sc.ExpiryCleanupSeconds)))

	if cfg.AWS.QueueURL != "" && awsCfg != nil {
		source := awsmsg.NewQueueSource(*awsCfg, &cfg.AWS, log)
		s.Register(scheduler.QueueDrain(source, log, seconds(sc.QueueDrainSeconds), sc.QueueMaxMessages, sc.QueueWaitSeconds))
	}
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

// registerEventHandlers регистрирует обработчики событий Kafka.
// promo.deactivated и события резервов уходят внешним потребителям, сервис их не читает.
func registerEventHandlers(consumer *kafka.Consumer, dispatcher scheduler.PromoDispatcher, log *logger.Logger) {
	consumer.RegisterHandler(models.EventTypePromoDispatchRequested, func(ctx context.Context, event *models.Event) error {
		var data models.PromoDispatchRequestedData
		if err := kafka.DecodeEventData(event, &data); err != nil {
			return fmt.Errorf("decode dispatch request: %w", err)
		}

		res, err := dispatcher.DispatchForPromo(ctx, data.PromoID)
		if err != nil {
			return fmt.Errorf("dispatch promo %d: %w", data.PromoID, err)
		}
		log.WithFields(map[string]interface{}{
			"event_id":  event.ID,
			"promo_id":  data.PromoID,
			"delivered": res.Delivered,
			"failed":    res.Failed,
			"skipped":   res.Skipped,
		}).Info("Queued promo dispatch processed")
		return nil
	})
}
