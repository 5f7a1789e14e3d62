package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/vladislavdragonenkov/loja/internal/domain"
	"github.com/vladislavdragonenkov/loja/internal/messaging/kafka"
)

const (
	defaultReplayLimit = 100
	defaultIdleTimeout = 2 * time.Second
	envBrokers         = "LOJA_KAFKA_BROKERS"
)

var errUnsupportedRecord = errors.New("record is not an outbox dlq record")

type config struct {
	brokers     []string
	sourceTopic string
	targetTopic string
	limit       int
	execute     bool
	fromNewest  bool
	idleTimeout time.Duration
}

// dlqEnvelope — сообщение в DLQ topic: outbox-envelope, в payload которого лежит запись worker'а.
type dlqEnvelope struct {
	ID            string          `json:"id"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
}

type dlqRecord struct {
	OutboxID      string          `json:"outbox_id"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
	PublishError  string          `json:"publish_error"`
}

type offsetClient interface {
	GetOffset(topic string, partition int32, time int64) (int64, error)
	Partitions(topic string) ([]int32, error)
	Close() error
}

type partitionConsumer interface {
	Messages() <-chan *sarama.ConsumerMessage
	Errors() <-chan *sarama.ConsumerError
	Close() error
}

type partitionConsumerSource interface {
	ConsumePartition(topic string, partition int32, offset int64) (partitionConsumer, error)
	Close() error
}

type saramaConsumerAdapter struct {
	consumer sarama.Consumer
}

func (a saramaConsumerAdapter) ConsumePartition(topic string, partition int32, offset int64) (partitionConsumer, error) {
	pc, err := a.consumer.ConsumePartition(topic, partition, offset)
	if err != nil {
		return nil, err
	}
	return pc, nil
}

func (a saramaConsumerAdapter) Close() error {
	return a.consumer.Close()
}

// replayDeps — всё, что нужно для одного прогона. producer nil в dry-run.
type replayDeps struct {
	client    offsetClient
	consumer  partitionConsumerSource
	producer  *kafka.Producer
	publisher domain.OutboxPublisher
}

func (d replayDeps) close() {
	if d.producer != nil {
		_ = d.producer.Close()
	}
	if d.consumer != nil {
		_ = d.consumer.Close()
	}
	if d.client != nil {
		_ = d.client.Close()
	}
}

var newReplayDependencies = func(cfg config) (replayDeps, error) {
	consumerConfig := sarama.NewConfig()
	consumerConfig.Consumer.Return.Errors = true

	client, err := sarama.NewClient(cfg.brokers, consumerConfig)
	if err != nil {
		return replayDeps{}, fmt.Errorf("create kafka client: %w", err)
	}

	rawConsumer, err := sarama.NewConsumerFromClient(client)
	if err != nil {
		_ = client.Close()
		return replayDeps{}, fmt.Errorf("create kafka consumer: %w", err)
	}
	deps := replayDeps{client: client, consumer: saramaConsumerAdapter{consumer: rawConsumer}}

	if !cfg.execute {
		return deps, nil
	}

	producer, err := kafka.NewProducer(cfg.brokers, kafka.WithClientID("loja-dlq-reprocess"))
	if err != nil {
		deps.close()
		return replayDeps{}, err
	}
	deps.producer = producer
	deps.publisher = kafka.NewOutboxPublisher(producer, cfg.targetTopic)
	return deps, nil
}

func main() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetLevel(log.InfoLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp(os.Stdout).RunContext(ctx, os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newApp описывает CLI повторной отправки событий заказов из DLQ.
func newApp(out io.Writer) *cli.App {
	return &cli.App{
		Name:           "dlq-reprocess",
		Usage:          "replay outbox events from the dead letter topic (dry-run by default)",
		Writer:         out,
		ErrWriter:      out,
		ExitErrHandler: func(*cli.Context, error) {},
		Flags: []cli.Flag{
			&cli.StringSliceFlag{Name: "brokers", Usage: "Kafka brokers", EnvVars: []string{envBrokers}},
			&cli.StringFlag{Name: "source-topic", Value: kafka.TopicDeadLetterQueue, Usage: "DLQ source topic"},
			&cli.StringFlag{Name: "target-topic", Value: kafka.TopicOrderEvents, Usage: "target topic for replay"},
			&cli.IntFlag{Name: "limit", Value: defaultReplayLimit, Usage: "max number of messages to scan"},
			&cli.BoolFlag{Name: "execute", Usage: "publish messages; without it only candidates are logged"},
			&cli.BoolFlag{Name: "from-newest", Usage: "scan the latest messages first (bounded by limit)"},
			&cli.DurationFlag{Name: "idle-timeout", Value: defaultIdleTimeout, Usage: "idle timeout per partition"},
		},
		Action: func(c *cli.Context) error {
			cfg, err := configFromContext(c)
			if err != nil {
				return err
			}
			if err := run(c.Context, cfg); err != nil {
				return fmt.Errorf("dlq replay failed: %w", err)
			}
			return nil
		},
	}
}

func configFromContext(c *cli.Context) (config, error) {
	cfg := config{
		brokers:     parseBrokers(c.StringSlice("brokers")),
		sourceTopic: strings.TrimSpace(c.String("source-topic")),
		targetTopic: strings.TrimSpace(c.String("target-topic")),
		limit:       c.Int("limit"),
		execute:     c.Bool("execute"),
		fromNewest:  c.Bool("from-newest"),
		idleTimeout: c.Duration("idle-timeout"),
	}

	var errs []error
	if len(cfg.brokers) == 0 {
		errs = append(errs, fmt.Errorf("kafka brokers are required (--brokers or %s)", envBrokers))
	}
	if cfg.sourceTopic == "" {
		errs = append(errs, errors.New("source-topic is required"))
	}
	if cfg.targetTopic == "" {
		errs = append(errs, errors.New("target-topic is required"))
	}
	if cfg.limit <= 0 {
		errs = append(errs, errors.New("limit must be > 0"))
	}
	if cfg.idleTimeout <= 0 {
		errs = append(errs, errors.New("idle-timeout must be > 0"))
	}
	return cfg, errors.Join(errs...)
}

// parseBrokers допускает и повторяющийся флаг, и список через запятую.
func parseBrokers(raw []string) []string {
	brokers := make([]string, 0, len(raw))
	for _, item := range raw {
		for _, chunk := range strings.Split(item, ",") {
			if broker := strings.TrimSpace(chunk); broker != "" {
				brokers = append(brokers, broker)
			}
		}
	}
	return brokers
}

func run(ctx context.Context, cfg config) error {
	log.WithFields(log.Fields{
		"source_topic": cfg.sourceTopic,
		"target_topic": cfg.targetTopic,
		"limit":        cfg.limit,
		"execute":      cfg.execute,
		"from_newest":  cfg.fromNewest,
	}).Info("starting dlq replay")

	deps, err := newReplayDependencies(cfg)
	if err != nil {
		return err
	}
	defer deps.close()

	_, err = runReplay(ctx, cfg, deps.client, deps.consumer, deps.publisher)
	return err
}

type replayStats struct {
	processed int
	replayed  int
	skipped   int
}

func (s *replayStats) add(other replayStats) {
	s.processed += other.processed
	s.replayed += other.replayed
	s.skipped += other.skipped
}

func runReplay(ctx context.Context, cfg config, client offsetClient, consumer partitionConsumerSource, publisher domain.OutboxPublisher) (replayStats, error) {
	var total replayStats
	if client == nil || consumer == nil {
		return total, errors.New("kafka client and consumer are required")
	}
	if cfg.execute && publisher == nil {
		return total, errors.New("publisher is required in execute mode")
	}

	partitions, err := client.Partitions(cfg.sourceTopic)
	if err != nil {
		return total, fmt.Errorf("get partitions for topic %s: %w", cfg.sourceTopic, err)
	}
	if len(partitions) == 0 {
		log.WithField("topic", cfg.sourceTopic).Warn("source topic has no partitions")
		return total, nil
	}
	sort.Slice(partitions, func(i, j int) bool { return partitions[i] < partitions[j] })

	for _, partition := range partitions {
		if total.processed >= cfg.limit {
			break
		}
		stats, err := processPartition(ctx, consumer, client, publisher, cfg, partition, cfg.limit-total.processed)
		total.add(stats)
		if err != nil {
			return total, err
		}
	}

	mode := "dry-run"
	if cfg.execute {
		mode = "execute"
	}
	log.WithFields(log.Fields{
		"mode":      mode,
		"processed": total.processed,
		"replayed":  total.replayed,
		"skipped":   total.skipped,
	}).Info("dlq replay finished")

	return total, nil
}

func processPartition(
	ctx context.Context,
	consumer partitionConsumerSource,
	client offsetClient,
	publisher domain.OutboxPublisher,
	cfg config,
	partition int32,
	limit int,
) (replayStats, error) {
	var stats replayStats
	if limit <= 0 {
		return stats, nil
	}

	oldest, err := client.GetOffset(cfg.sourceTopic, partition, sarama.OffsetOldest)
	if err != nil {
		return stats, fmt.Errorf("get oldest offset for partition %d: %w", partition, err)
	}
	newest, err := client.GetOffset(cfg.sourceTopic, partition, sarama.OffsetNewest)
	if err != nil {
		return stats, fmt.Errorf("get newest offset for partition %d: %w", partition, err)
	}
	if newest <= oldest {
		return stats, nil
	}

	startOffset := oldest
	if cfg.fromNewest {
		startOffset = max(newest-int64(limit), oldest)
	}

	pc, err := consumer.ConsumePartition(cfg.sourceTopic, partition, startOffset)
	if err != nil {
		return stats, fmt.Errorf("consume partition %d: %w", partition, err)
	}
	defer func() { _ = pc.Close() }()

	idleTimer := time.NewTimer(cfg.idleTimeout)
	defer idleTimer.Stop()

	for stats.processed < limit {
		select {
		case <-ctx.Done():
			return stats, ctx.Err()
		case err := <-pc.Errors():
			if err != nil {
				return stats, fmt.Errorf("partition %d consumer error: %w", partition, err)
			}
		case msg, ok := <-pc.Messages():
			if !ok || msg == nil {
				return stats, nil
			}
			idleTimer.Reset(cfg.idleTimeout)

			// Сообщения, пришедшие после старта, не трогаем.
			if msg.Offset >= newest {
				return stats, nil
			}
			stats.processed++

			event, err := decodeDLQMessage(msg.Value)
			if err != nil {
				stats.skipped++
				log.WithError(err).WithFields(log.Fields{
					"partition": msg.Partition,
					"offset":    msg.Offset,
				}).Warn("skip unsupported dlq message")
			} else if cfg.execute {
				if err := publisher.Publish(event); err != nil {
					return stats, fmt.Errorf("publish replay of outbox %s: %w", event.ID, err)
				}
				stats.replayed++
			} else {
				log.WithFields(log.Fields{
					"partition":    msg.Partition,
					"offset":       msg.Offset,
					"outbox_id":    event.ID,
					"event_type":   event.EventType,
					"aggregate_id": event.AggregateID,
				}).Info("dlq replay candidate")
				stats.replayed++
			}

			if msg.Offset+1 >= newest {
				return stats, nil
			}
		case <-idleTimer.C:
			return stats, nil
		}
	}

	return stats, nil
}

// decodeDLQMessage восстанавливает исходное outbox-сообщение из записи DLQ.
func decodeDLQMessage(value []byte) (domain.OutboxMessage, error) {
	var envelope dlqEnvelope
	if err := json.Unmarshal(value, &envelope); err != nil || len(envelope.Payload) == 0 {
		return domain.OutboxMessage{}, errUnsupportedRecord
	}

	var record dlqRecord
	if err := json.Unmarshal(envelope.Payload, &record); err != nil {
		return domain.OutboxMessage{}, fmt.Errorf("decode dlq record: %w", err)
	}
	if len(record.Payload) == 0 || string(record.Payload) == "null" {
		return domain.OutboxMessage{}, errors.New("dlq record does not contain the original payload")
	}

	return domain.OutboxMessage{
		ID:            firstNonEmpty(record.OutboxID, envelope.ID),
		AggregateType: firstNonEmpty(record.AggregateType, envelope.AggregateType),
		AggregateID:   firstNonEmpty(record.AggregateID, envelope.AggregateID),
		EventType:     firstNonEmpty(record.EventType, envelope.EventType),
		Payload:       []byte(record.Payload),
	}, nil
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}
