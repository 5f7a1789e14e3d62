package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"
)

// DefaultClientID — client.id, под которым сервис виден брокеру.
const DefaultClientID = "loja-service"

type producerOptions struct {
	clientID   string
	maxRetries int
	logger     *log.Entry
}

// ProducerOption настраивает Producer.
type ProducerOption func(*producerOptions)

// WithClientID задаёт client.id для брокера.
func WithClientID(clientID string) ProducerOption {
	return func(o *producerOptions) {
		o.clientID = clientID
	}
}

// WithMaxRetries задаёт число повторов отправки внутри sarama.
func WithMaxRetries(retries int) ProducerOption {
	return func(o *producerOptions) {
		o.maxRetries = retries
	}
}

// WithLogger задаёт logger producer.
func WithLogger(logger *log.Entry) ProducerOption {
	return func(o *producerOptions) {
		o.logger = logger
	}
}

// Producer публикует события магазина в Kafka синхронно.
type Producer struct {
	producer sarama.SyncProducer
	logger   *log.Entry
}

// NewProducer подключается к brokers с подтверждением от всех in-sync реплик
// и идемпотентной отправкой.
func NewProducer(brokers []string, options ...ProducerOption) (*Producer, error) {
	opts := applyProducerOptions(options)

	producer, err := sarama.NewSyncProducer(brokers, newSaramaConfig(opts))
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}

	p := NewProducerFromSync(producer)
	p.logger = opts.logger
	return p, nil
}

// NewProducerFromSync оборачивает готовый sarama.SyncProducer (например, mocks.SyncProducer).
func NewProducerFromSync(producer sarama.SyncProducer) *Producer {
	return &Producer{
		producer: producer,
		logger:   log.WithField("component", "kafka-producer"),
	}
}

func applyProducerOptions(options []ProducerOption) producerOptions {
	opts := producerOptions{clientID: DefaultClientID, maxRetries: 5}
	for _, option := range options {
		option(&opts)
	}
	if opts.clientID == "" {
		opts.clientID = DefaultClientID
	}
	// Идемпотентный producer не допускает Retry.Max = 0.
	opts.maxRetries = max(opts.maxRetries, 1)
	if opts.logger == nil {
		opts.logger = log.WithField("component", "kafka-producer")
	}
	return opts
}

func newSaramaConfig(opts producerOptions) *sarama.Config {
	config := sarama.NewConfig()
	config.ClientID = opts.clientID
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = opts.maxRetries
	config.Producer.Return.Successes = true
	config.Producer.Compression = sarama.CompressionSnappy
	// Идемпотентный producer требует не более одного запроса в полёте.
	config.Producer.Idempotent = true
	config.Net.MaxOpenRequests = 1
	return config
}

// PublishEvent сериализует событие в JSON и публикует его в topic с ключом key.
func (p *Producer) PublishEvent(topic string, key string, event any, headers ...sarama.RecordHeader) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	entry := p.logger.WithFields(log.Fields{
		"topic": topic,
		"key":   key,
	})

	partition, offset, err := p.producer.SendMessage(&sarama.ProducerMessage{
		Topic:     topic,
		Key:       sarama.StringEncoder(key),
		Value:     sarama.ByteEncoder(value),
		Headers:   headers,
		Timestamp: time.Now(),
	})
	if err != nil {
		entry.WithError(err).Error("failed to send message to kafka")
		return fmt.Errorf("send message to %s: %w", topic, err)
	}

	entry.WithFields(log.Fields{
		"partition": partition,
		"offset":    offset,
	}).Debug("message sent to kafka")
	return nil
}

// Close закрывает producer.
func (p *Producer) Close() error {
	if err := p.producer.Close(); err != nil {
		return fmt.Errorf("close kafka producer: %w", err)
	}
	return nil
}
