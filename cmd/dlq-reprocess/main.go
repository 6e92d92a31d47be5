// Команда dlq-reprocess перечитывает DLQ-топик и возвращает события
// обратно в рабочие топики. По умолчанию работает в режиме dry-run.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/infopharma/internal/messaging/kafka"
)

const (
	defaultReplayLimit = 100
	defaultIdleTimeout = 2 * time.Second
)

type config struct {
	brokers     []string
	sourceTopic string
	limit       int
	execute     bool
	fromNewest  bool
	idleTimeout time.Duration
}

func (c config) validate() error {
	if len(c.brokers) == 0 {
		return fmt.Errorf("kafka brokers are required (-brokers or KAFKA_BROKERS)")
	}
	if strings.TrimSpace(c.sourceTopic) == "" {
		return fmt.Errorf("source-topic is required")
	}
	if c.limit <= 0 {
		return fmt.Errorf("limit must be > 0")
	}
	if c.idleTimeout <= 0 {
		return fmt.Errorf("idle-timeout must be > 0")
	}
	return nil
}

// replayMessage — восстановленное событие, готовое к повторной публикации.
type replayMessage struct {
	topic string
	key   string
	value []byte
}

// consumerDLQPayload пишет в DLQ consumer при исчерпании retry.
type consumerDLQPayload struct {
	OriginalTopic string `json:"original_topic"`
	OriginalKey   string `json:"original_key"`
	OriginalValue string `json:"original_value"`
}

// outboxDLQPayload пишет в DLQ outbox worker внутри конверта LedgerEvent.
type outboxDLQPayload struct {
	OutboxID      string          `json:"outbox_id"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
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

type replayProducer interface {
	SendMessage(msg *sarama.ProducerMessage) (partition int32, offset int64, err error)
	Close() error
}

// saramaConsumerAdapter сужает sarama.Consumer до partitionConsumerSource.
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
	if a.consumer == nil {
		return nil
	}
	return a.consumer.Close()
}

// newReplayDependencies вынесен в переменную, чтобы тесты подменяли
// kafka-зависимости стабами.
var newReplayDependencies = func(cfg config) (offsetClient, partitionConsumerSource, replayProducer, error) {
	consumerConfig := sarama.NewConfig()
	consumerConfig.Consumer.Return.Errors = true

	client, err := sarama.NewClient(cfg.brokers, consumerConfig)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("create kafka client: %w", err)
	}

	consumer, err := sarama.NewConsumerFromClient(client)
	if err != nil {
		_ = client.Close()
		return nil, nil, nil, fmt.Errorf("create kafka consumer: %w", err)
	}

	// Producer нужен только при -execute, dry-run обходится чтением.
	if !cfg.execute {
		return client, saramaConsumerAdapter{consumer: consumer}, nil, nil
	}

	producerConfig := sarama.NewConfig()
	producerConfig.Producer.RequiredAcks = sarama.WaitForAll
	producerConfig.Producer.Retry.Max = 5
	producerConfig.Producer.Return.Successes = true
	producerConfig.Producer.Compression = sarama.CompressionSnappy
	producerConfig.Producer.Idempotent = true
	producerConfig.Net.MaxOpenRequests = 1

	producer, err := sarama.NewSyncProducer(cfg.brokers, producerConfig)
	if err != nil {
		_ = consumer.Close()
		_ = client.Close()
		return nil, nil, nil, fmt.Errorf("create kafka producer: %w", err)
	}

	return client, saramaConsumerAdapter{consumer: consumer}, producer, nil
}

func main() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetLevel(log.InfoLevel)

	cfg, err := readConfig()
	if err != nil {
		fail("%v", err)
	}

	if err := run(context.Background(), cfg); err != nil {
		fail("dlq replay failed: %v", err)
	}
}

func readConfig() (config, error) {
	var (
		brokersRaw string
		cfg        config
	)

	flag.StringVar(&brokersRaw, "brokers", "", "Kafka brokers as comma-separated list (fallback: KAFKA_BROKERS)")
	flag.StringVar(&cfg.sourceTopic, "source-topic", kafka.TopicDeadLetterQueue, "DLQ source topic")
	flag.IntVar(&cfg.limit, "limit", defaultReplayLimit, "max number of messages to scan/replay")
	flag.BoolVar(&cfg.execute, "execute", false, "execute replay; default is dry-run")
	flag.BoolVar(&cfg.fromNewest, "from-newest", false, "scan latest messages first (bounded by limit)")
	flag.DurationVar(&cfg.idleTimeout, "idle-timeout", defaultIdleTimeout, "idle timeout per partition")
	flag.Parse()

	if strings.TrimSpace(brokersRaw) == "" {
		brokersRaw = os.Getenv("KAFKA_BROKERS")
	}
	cfg.brokers = parseBrokers(brokersRaw)

	if err := cfg.validate(); err != nil {
		return config{}, err
	}
	return cfg, nil
}

func parseBrokers(raw string) []string {
	var brokers []string
	for _, chunk := range strings.Split(raw, ",") {
		if broker := strings.TrimSpace(chunk); broker != "" {
			brokers = append(brokers, broker)
		}
	}
	return brokers
}

func run(ctx context.Context, cfg config) error {
	log.WithFields(log.Fields{
		"source_topic": cfg.sourceTopic,
		"limit":        cfg.limit,
		"execute":      cfg.execute,
		"from_newest":  cfg.fromNewest,
	}).Info("starting dlq replay")

	client, consumer, producer, err := newReplayDependencies(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if producer != nil {
			_ = producer.Close()
		}
		if consumer != nil {
			_ = consumer.Close()
		}
		if client != nil {
			_ = client.Close()
		}
	}()

	return runReplay(ctx, cfg, client, consumer, producer)
}

func runReplay(ctx context.Context, cfg config, client offsetClient, consumer partitionConsumerSource, producer replayProducer) error {
	if client == nil || consumer == nil {
		return fmt.Errorf("kafka client and consumer are required")
	}
	if cfg.execute && producer == nil {
		return fmt.Errorf("producer is required in execute mode")
	}

	partitions, err := client.Partitions(cfg.sourceTopic)
	if err != nil {
		return fmt.Errorf("get partitions for topic %s: %w", cfg.sourceTopic, err)
	}
	if len(partitions) == 0 {
		log.WithField("topic", cfg.sourceTopic).Warn("source topic has no partitions")
		return nil
	}
	sort.Slice(partitions, func(i, j int) bool { return partitions[i] < partitions[j] })

	var total partitionStats
	for _, partition := range partitions {
		remaining := cfg.limit - total.processed
		if remaining <= 0 {
			break
		}

		stats, err := processPartition(ctx, consumer, client, producer, cfg, partition, remaining)
		if err != nil {
			return err
		}
		total.processed += stats.processed
		total.replayed += stats.replayed
		total.skipped += stats.skipped
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

	return nil
}

type partitionStats struct {
	processed int
	replayed  int
	skipped   int
}

// replayWindow ограничивает чтение партиции: startOffset учитывает
// -from-newest, endOffset фиксирует верхнюю границу на момент старта.
func replayWindow(client offsetClient, topic string, partition int32, limit int, fromNewest bool) (start, end int64, err error) {
	oldest, err := client.GetOffset(topic, partition, sarama.OffsetOldest)
	if err != nil {
		return 0, 0, fmt.Errorf("get oldest offset for partition %d: %w", partition, err)
	}
	newest, err := client.GetOffset(topic, partition, sarama.OffsetNewest)
	if err != nil {
		return 0, 0, fmt.Errorf("get newest offset for partition %d: %w", partition, err)
	}

	start = oldest
	if fromNewest {
		if start = newest - int64(limit); start < oldest {
			start = oldest
		}
	}
	return start, newest, nil
}

func processPartition(
	ctx context.Context,
	consumer partitionConsumerSource,
	client offsetClient,
	producer replayProducer,
	cfg config,
	partition int32,
	limit int,
) (partitionStats, error) {
	var stats partitionStats
	if limit <= 0 {
		return stats, nil
	}

	start, end, err := replayWindow(client, cfg.sourceTopic, partition, limit, cfg.fromNewest)
	if err != nil {
		return stats, err
	}
	if end <= start {
		return stats, nil
	}

	pc, err := consumer.ConsumePartition(cfg.sourceTopic, partition, start)
	if err != nil {
		return stats, fmt.Errorf("consume partition %d: %w", partition, err)
	}
	defer func() { _ = pc.Close() }()

	// Партиция закрывается по любому из условий: достигнут limit,
	// прочитана верхняя граница или нет сообщений дольше idle-timeout.
	idle := time.NewTimer(cfg.idleTimeout)
	defer idle.Stop()

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
			resetIdleTimer(idle, cfg.idleTimeout)

			if msg.Offset >= end {
				return stats, nil
			}
			stats.processed++
			if err := handleDLQMessage(msg, cfg, producer, &stats); err != nil {
				return stats, err
			}
			if msg.Offset+1 >= end {
				return stats, nil
			}
		case <-idle.C:
			return stats, nil
		}
	}

	return stats, nil
}

// handleDLQMessage разбирает одно DLQ-сообщение и либо публикует его
// (execute), либо логирует кандидата (dry-run). Неразобранные сообщения
// считаются в skipped.
func handleDLQMessage(msg *sarama.ConsumerMessage, cfg config, producer replayProducer, stats *partitionStats) error {
	replayMsg, ok, err := extractReplayMessage(msg)
	if err != nil {
		stats.skipped++
		log.WithError(err).WithFields(log.Fields{
			"partition": msg.Partition,
			"offset":    msg.Offset,
		}).Warn("skip unsupported dlq message")
		return nil
	}
	if !ok {
		stats.skipped++
		return nil
	}

	if cfg.execute {
		if err := publishReplay(producer, replayMsg); err != nil {
			return fmt.Errorf("publish replay message: %w", err)
		}
	} else {
		log.WithFields(log.Fields{
			"partition":    msg.Partition,
			"offset":       msg.Offset,
			"target_topic": replayMsg.topic,
			"key":          replayMsg.key,
		}).Info("dlq replay candidate")
	}
	stats.replayed++
	return nil
}

func resetIdleTimer(t *time.Timer, timeout time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(timeout)
}

func publishReplay(producer replayProducer, msg replayMessage) error {
	if producer == nil {
		return fmt.Errorf("producer is nil")
	}

	_, _, err := producer.SendMessage(&sarama.ProducerMessage{
		Topic:     msg.topic,
		Key:       sarama.StringEncoder(msg.key),
		Value:     sarama.ByteEncoder(msg.value),
		Timestamp: time.Now().UTC(),
	})
	return err
}

// extractReplayMessage восстанавливает исходное событие из DLQ-сообщения.
// Поддерживаются оба формата записи в DLQ: consumer-формат с полями
// original_topic/original_value и конверт LedgerEvent от outbox worker.
func extractReplayMessage(msg *sarama.ConsumerMessage) (replayMessage, bool, error) {
	if replay, ok := decodeConsumerFormat(msg.Value); ok {
		return replay, true, nil
	}
	return decodeOutboxFormat(msg)
}

func decodeConsumerFormat(raw []byte) (replayMessage, bool) {
	var payload consumerDLQPayload
	if err := json.Unmarshal(raw, &payload); err != nil || payload.OriginalValue == "" {
		return replayMessage{}, false
	}

	topic := strings.TrimSpace(payload.OriginalTopic)
	if topic == "" {
		topic = kafka.TopicOrderEvents
	}
	return replayMessage{
		topic: topic,
		key:   payload.OriginalKey,
		value: []byte(payload.OriginalValue),
	}, true
}

func decodeOutboxFormat(msg *sarama.ConsumerMessage) (replayMessage, bool, error) {
	envelope, err := kafka.ParseLedgerEvent(msg)
	if err != nil || len(envelope.Payload) == 0 {
		// Неизвестный формат пропускаем молча, решает оператор.
		return replayMessage{}, false, nil
	}

	var dlqPayload outboxDLQPayload
	if err := json.Unmarshal(envelope.Payload, &dlqPayload); err != nil {
		return replayMessage{}, false, fmt.Errorf("decode outbox dlq payload: %w", err)
	}
	if len(dlqPayload.Payload) == 0 {
		return replayMessage{}, false, fmt.Errorf("outbox dlq payload does not contain original event payload")
	}

	replay := kafka.LedgerEvent{
		ID:            firstNonEmpty(dlqPayload.OutboxID, envelope.ID),
		AggregateType: firstNonEmpty(dlqPayload.AggregateType, envelope.AggregateType),
		AggregateID:   firstNonEmpty(dlqPayload.AggregateID, envelope.AggregateID),
		EventType:     firstNonEmpty(dlqPayload.EventType, envelope.EventType),
		Payload:       dlqPayload.Payload,
		PublishedAt:   time.Now().UTC(),
	}
	encoded, err := json.Marshal(replay)
	if err != nil {
		return replayMessage{}, false, fmt.Errorf("encode replay envelope: %w", err)
	}

	// События мерчанта уходят в биллинговый топик, остальные в заказы.
	topic := kafka.TopicOrderEvents
	if replay.AggregateType == "merchant" {
		topic = kafka.TopicBillingEvents
	}

	return replayMessage{
		topic: topic,
		key:   firstNonEmpty(replay.AggregateID, replay.ID),
		value: encoded,
	}, true, nil
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}

func fail(format string, args ...any) {
	_, _ = fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
