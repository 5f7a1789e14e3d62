package app

import (
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/loja/internal/domain"
	"github.com/vladislavdragonenkov/loja/internal/messaging/kafka"
)

// initKafkaProducer инициализирует Kafka producer если brokers не пустой.
// Возвращает nil, nil если brokers пустой.
func initKafkaProducer(brokers []string, logger *log.Entry) (*kafka.Producer, error) {
	if len(brokers) == 0 {
		return nil, nil
	}

	producer, err := kafka.NewProducer(brokers, kafka.WithLogger(logger.WithField("layer", "kafka")))
	if err != nil {
		logger.WithError(err).Warn("failed to create kafka producer, continuing without kafka")
		return nil, err
	}

	logger.WithField("brokers", brokers).Info("kafka producer initialized")
	return producer, nil
}

// closeKafka закрывает Kafka producer если он не nil.
func closeKafka(producer *kafka.Producer, logger *log.Entry) {
	if producer == nil {
		return
	}

	if err := producer.Close(); err != nil {
		logger.WithError(err).Warn("failed to close kafka producer")
	} else {
		logger.Info("kafka producer closed")
	}
}

// outboxPublishers выбирает, куда outbox worker отправляет события.
// Без Kafka события только пишутся в лог, чтобы outbox не копил backlog.
func outboxPublishers(cfg Config, producer *kafka.Producer, logger *log.Entry) (publisher, dlq domain.OutboxPublisher) {
	if producer == nil {
		return logPublisher{logger: logger.WithField("publisher", "log")}, nil
	}
	return kafka.NewOutboxPublisher(producer, cfg.KafkaTopic), kafka.NewOutboxPublisher(producer, cfg.KafkaDLQTopic)
}

// logPublisher пишет события outbox в лог вместо брокера.
type logPublisher struct {
	logger *log.Entry
}

func (p logPublisher) Publish(event domain.OutboxMessage) error {
	p.logger.WithFields(log.Fields{
		"outbox_id":    event.ID,
		"event_type":   event.EventType,
		"aggregate_id": event.AggregateID,
	}).Info("order event")
	return nil
}
