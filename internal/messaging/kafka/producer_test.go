package kafka

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/loja/internal/domain"
)

func TestProducer_PublishEvent(t *testing.T) {
	mockProducer := mocks.NewSyncProducer(t, nil)

	producer := &Producer{
		producer: mockProducer,
		logger:   log.WithField("component", "kafka-producer-test"),
	}

	mockProducer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(value []byte) error {
		var event OrderEvent
		return json.Unmarshal(value, &event)
	})

	event := NewOrderEvent(EventTypeOrderCreated, domain.Order{ID: 1, ClientID: 2, SellerID: 3, Status: domain.OrderStatusCreated}, "")

	if err := producer.PublishEvent(TopicOrderEvents, "1", event); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestProducer_PublishEvent_Error(t *testing.T) {
	mockProducer := mocks.NewSyncProducer(t, nil)
	producer := NewProducerFromSync(mockProducer)

	mockProducer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	err := producer.PublishEvent(TopicOrderEvents, "1", map[string]string{"k": "v"})
	if err == nil {
		t.Fatal("expected error, got nil")
	}

	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestProducer_PublishEvent_MarshalError(t *testing.T) {
	mockProducer := mocks.NewSyncProducer(t, nil)
	producer := NewProducerFromSync(mockProducer)

	if err := producer.PublishEvent(TopicOrderEvents, "1", make(chan int)); err == nil {
		t.Fatal("expected marshal error, got nil")
	}

	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestNewOrderEvent(t *testing.T) {
	order := domain.Order{
		ID:         10,
		ClientID:   20,
		SellerID:   30,
		TotalMinor: 1999,
		Status:     domain.OrderStatusPaid,
	}

	event := NewOrderEvent(EventTypeOrderStatusChanged, order, domain.OrderStatusCreated)

	if event.EventType != EventTypeOrderStatusChanged {
		t.Errorf("expected event type %s, got %s", EventTypeOrderStatusChanged, event.EventType)
	}
	if event.OrderID != 10 || event.ClientID != 20 || event.SellerID != 30 {
		t.Errorf("unexpected ids in event: %+v", event)
	}
	if event.Status != "paid" || event.PreviousStatus != "created" {
		t.Errorf("unexpected statuses: %s <- %s", event.Status, event.PreviousStatus)
	}
	if event.Total.StringFixed(2) != "19.99" {
		t.Errorf("expected total 19.99, got %s", event.Total.StringFixed(2))
	}
	if event.Timestamp.IsZero() || time.Since(event.Timestamp) > time.Second {
		t.Error("timestamp should be close to current time")
	}
}

func TestNewSaramaConfig(t *testing.T) {
	config := newSaramaConfig(applyProducerOptions(nil))
	if config.ClientID != DefaultClientID {
		t.Errorf("expected client id %s, got %s", DefaultClientID, config.ClientID)
	}
	if config.Producer.RequiredAcks != sarama.WaitForAll || !config.Producer.Idempotent {
		t.Error("producer must wait for all replicas and be idempotent")
	}
	if config.Net.MaxOpenRequests != 1 || config.Producer.Retry.Max != 5 {
		t.Errorf("unexpected delivery settings: open=%d retries=%d", config.Net.MaxOpenRequests, config.Producer.Retry.Max)
	}
	if err := config.Validate(); err != nil {
		t.Fatalf("config must be valid: %v", err)
	}

	config = newSaramaConfig(applyProducerOptions([]ProducerOption{
		WithClientID("loja-dlq-reprocess"),
		WithMaxRetries(-1),
		WithLogger(log.WithField("test", "kafka")),
	}))
	if config.ClientID != "loja-dlq-reprocess" || config.Producer.Retry.Max != 1 {
		t.Errorf("options not applied: client=%s retries=%d", config.ClientID, config.Producer.Retry.Max)
	}
}
