package inbound

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
	"go.uber.org/zap"

	"github.com/cloo-solutions/bokai/internal/domain"
)

type KafkaConfig struct {
	Brokers      []string
	GroupID      string
	ClientID     string
	InboundTopic string
	ReplyTopic   string
}

// KafkaSource consumes inbound messages from a topic. Offsets are committed
// only up to the last message handled successfully in each partition. A
// failed message rewinds its partition, so it and everything after it are
// fetched again on a later poll.
type KafkaSource struct {
	client   *kgo.Client
	consumer recordConsumer
	logger   *zap.Logger
	backoff  time.Duration
}

// recordConsumer is the part of *kgo.Client the poll loop drives.
type recordConsumer interface {
	PollFetches(ctx context.Context) kgo.Fetches
	CommitRecords(ctx context.Context, rs ...*kgo.Record) error
	SetOffsets(offsets map[string]map[int32]kgo.EpochOffset)
	AllowRebalance()
}

const redeliveryBackoff = time.Second

func NewKafkaSource(cfg KafkaConfig, logger *zap.Logger) (*KafkaSource, error) {
	if len(cfg.Brokers) == 0 || cfg.InboundTopic == "" {
		return nil, errors.New("kafka source requires brokers and an inbound topic")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ConsumerGroup(cfg.GroupID),
		kgo.ClientID(cfg.ClientID),
		kgo.ConsumeTopics(cfg.InboundTopic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
		kgo.DisableAutoCommit(),
		kgo.BlockRebalanceOnPoll(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka client: %w", err)
	}
	return &KafkaSource{client: client, consumer: client, logger: logger, backoff: redeliveryBackoff}, nil
}

func (s *KafkaSource) Close() {
	s.client.Close()
}

func (s *KafkaSource) Ping(ctx context.Context) error {
	return s.client.Ping(ctx)
}

func (s *KafkaSource) Run(ctx context.Context, handle MessageHandler[domain.InboundMessage]) error {
	for {
		fetches := s.consumer.PollFetches(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if fetches.IsClientClosed() {
			return ErrSourceClosed
		}
		if errs := fetches.Errors(); len(errs) > 0 {
			for _, fe := range errs {
				s.logger.Error("kafka fetch failed",
					zap.String("topic", fe.Topic),
					zap.Int32("partition", fe.Partition),
					zap.Error(fe.Err))
			}
			s.consumer.AllowRebalance()
			continue
		}

		batch := processRecords(ctx, fetches.Records(), handle, s.logger)
		if len(batch.commit) > 0 {
			if err := s.consumer.CommitRecords(ctx, batch.commit...); err != nil {
				s.logger.Error("failed to commit records", zap.Error(err))
			}
		}
		if len(batch.rewind) > 0 {
			s.consumer.SetOffsets(rewindOffsets(batch.rewind))
		}
		s.consumer.AllowRebalance()

		if len(batch.rewind) > 0 && s.backoff > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(s.backoff):
			}
		}
	}
}

// rewindOffsets points each partition back at its failed record.
func rewindOffsets(failed []*kgo.Record) map[string]map[int32]kgo.EpochOffset {
	offsets := make(map[string]map[int32]kgo.EpochOffset)
	for _, r := range failed {
		if offsets[r.Topic] == nil {
			offsets[r.Topic] = make(map[int32]kgo.EpochOffset)
		}
		offsets[r.Topic][r.Partition] = kgo.EpochOffset{Epoch: r.LeaderEpoch, Offset: r.Offset}
	}
	return offsets
}

type topicPartition struct {
	topic     string
	partition int32
}

type pollResult struct {
	// commit holds the last committable record of each partition.
	commit []*kgo.Record
	// rewind holds the first failed record of each blocked partition.
	rewind []*kgo.Record
}

// processRecords handles records in order. After a failure the rest of that
// partition is skipped. Undecodable records are committed so they cannot
// block the partition.
func processRecords(ctx context.Context, records []*kgo.Record, handle MessageHandler[domain.InboundMessage], logger *zap.Logger) pollResult {
	failed := make(map[topicPartition]*kgo.Record)
	last := make(map[topicPartition]*kgo.Record)
	var order []topicPartition
	var res pollResult

	for _, record := range records {
		tp := topicPartition{topic: record.Topic, partition: record.Partition}
		if failed[tp] != nil {
			continue
		}
		if _, seen := last[tp]; !seen {
			order = append(order, tp)
			last[tp] = nil
		}

		var msg domain.InboundMessage
		if err := json.Unmarshal(record.Value, &msg); err != nil {
			logger.Warn("dropping undecodable inbound message",
				zap.String("topic", record.Topic),
				zap.Int64("offset", record.Offset),
				zap.Error(err))
			last[tp] = record
			continue
		}

		if err := handle(ctx, msg); err != nil {
			logger.Error("failed to handle inbound message, will redeliver",
				zap.String("topic", record.Topic),
				zap.Int32("partition", record.Partition),
				zap.Int64("offset", record.Offset),
				zap.Error(err))
			failed[tp] = record
			res.rewind = append(res.rewind, record)
			continue
		}
		last[tp] = record
	}

	for _, tp := range order {
		if r := last[tp]; r != nil {
			res.commit = append(res.commit, r)
		}
	}
	return res
}

// KafkaSink produces replies keyed by thread so a thread's replies stay
// ordered.
type KafkaSink struct {
	client  *kgo.Client
	topic   string
	timeout time.Duration
}

func NewKafkaSink(cfg KafkaConfig) (*KafkaSink, error) {
	if len(cfg.Brokers) == 0 || cfg.ReplyTopic == "" {
		return nil, errors.New("kafka sink requires brokers and a reply topic")
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ClientID(cfg.ClientID),
		kgo.ProducerLinger(10*time.Millisecond),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka client: %w", err)
	}
	return &KafkaSink{client: client, topic: cfg.ReplyTopic, timeout: 5 * time.Second}, nil
}

func (s *KafkaSink) Close() {
	s.client.Close()
}

func (s *KafkaSink) Deliver(ctx context.Context, reply domain.OutboundReply) error {
	value, err := json.Marshal(reply)
	if err != nil {
		return fmt.Errorf("failed to encode reply: %w", err)
	}
	record := &kgo.Record{
		Topic: s.topic,
		Key:   []byte(reply.TenantID + "/" + reply.ThreadID),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: "tenant_id", Value: []byte(reply.TenantID)},
		},
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("failed to produce reply: %w", err)
	}
	return nil
}
