package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"flash-promo-service/internal/config"
	"flash-promo-service/internal/logger"
	"flash-promo-service/internal/models"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
)

// Producer публикует доменные события в Kafka
type Producer struct {
	producer sarama.SyncProducer
	log      *logger.Logger
	topics   *config.Topics
}

// NewProducer создает синхронного продюсера Kafka
func NewProducer(cfg *config.KafkaConfig, log *logger.Logger) (*Producer, error) {
	saramaCfg := sarama.NewConfig()
	saramaCfg.Producer.RequiredAcks = sarama.WaitForAll
	saramaCfg.Producer.Retry.Max = 3
	saramaCfg.Producer.Return.Successes = true
	saramaCfg.Producer.Partitioner = sarama.NewHashPartitioner

	producer, err := sarama.NewSyncProducer(cfg.Brokers, saramaCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}

	log.WithField("brokers", cfg.Brokers).Info("Kafka producer created")

	return &Producer{
		producer: producer,
		log:      log,
		topics:   &cfg.Topics,
	}, nil
}

// Close закрывает продюсера
func (p *Producer) Close() error {
	if p == nil || p.producer == nil {
		return nil
	}
	return p.producer.Close()
}

// Name возвращает название канала доставки уведомлений
func (p *Producer) Name() string { return "kafka" }

// Publish отправляет уведомление об акции пользователю через топик уведомлений
func (p *Producer) Publish(ctx context.Context, n models.PromoNotification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	event := newEvent(models.EventTypePromoNotification, n)
	return p.publishKeyed(p.topics.Notifications, strconv.FormatInt(n.UserID, 10), event)
}

// PublishDispatchRequested ставит в очередь запрос рассылки по акции
func (p *Producer) PublishDispatchRequested(promoID int64) error {
	event := newEvent(models.EventTypePromoDispatchRequested, models.PromoDispatchRequestedData{PromoID: promoID})
	return p.publishKeyed(p.topics.PromoEvents, strconv.FormatInt(promoID, 10), event)
}

// PublishPromoDeactivated сообщает, что акция выключена
func (p *Producer) PublishPromoDeactivated(promoID int64) error {
	event := newEvent(models.EventTypePromoDeactivated, nil)
	event.Data = models.PromoDeactivatedData{PromoID: promoID, DeactivatedAt: event.Timestamp}
	return p.publishKeyed(p.topics.PromoEvents, strconv.FormatInt(promoID, 10), event)
}

// PublishReservationCreated сообщает о новом резерве товара
func (p *Producer) PublishReservationCreated(r *models.ProductReservation) error {
	return p.publishReservation(models.EventTypeReservationCreated, r)
}

// PublishReservationCompleted сообщает о выкупе резерва
func (p *Producer) PublishReservationCompleted(r *models.ProductReservation) error {
	return p.publishReservation(models.EventTypeReservationCompleted, r)
}

func (p *Producer) publishReservation(eventType models.EventType, r *models.ProductReservation) error {
	event := newEvent(eventType, models.ReservationEventData{
		ReservationID: r.ID,
		ProductID:     r.ProductID,
		UserID:        r.UserID,
		ReservedUntil: r.ReservedUntil,
	})
	return p.publishKeyed(p.topics.PromoEvents, strconv.FormatInt(r.ProductID, 10), event)
}

func newEvent(eventType models.EventType, data interface{}) models.Event {
	return models.Event{
		ID:        uuid.New(),
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now(),
	}
}

func (p *Producer) publishKeyed(topic, key string, event models.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(data),
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		p.log.WithError(err).WithFields(map[string]interface{}{
			"topic":      topic,
			"event_type": event.Type,
		}).Error("Failed to publish event")
		return fmt.Errorf("failed to send message to %s: %w", topic, err)
	}

	p.log.WithFields(map[string]interface{}{
		"topic":      topic,
		"partition":  partition,
		"offset":     offset,
		"event_type": event.Type,
		"event_id":   event.ID,
	}).Debug("Event published")

	return nil
}
