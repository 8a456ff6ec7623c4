package out

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	syncout "focuskit/internal/modules/sync/port/out"
)

// kafkaPartition is the only partition written and tailed. A topic created
// with more partitions still carries sync traffic on this one.
const kafkaPartition = 0

// FixedPartition routes every message to one partition.
type FixedPartition struct {
	Partition int
}

func (b FixedPartition) Balance(_ kafka.Message, _ ...int) int {
	return b.Partition
}

// KafkaTransport writes envelopes to one partition of the topic and tails it
// from the latest offset. No consumer group is used so every surface reads
// every message.
type KafkaTransport struct {
	writer *kafka.Writer
	reader *kafka.Reader
	logger zerolog.Logger
}

func NewKafkaTransport(brokers []string, topic string, logger zerolog.Logger) (*KafkaTransport, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers are required")
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:   brokers,
		Topic:     topic,
		Partition: kafkaPartition,
		MinBytes:  1,
		MaxBytes:  10e6,
		MaxWait:   500 * time.Millisecond,
	})
	if err := reader.SetOffset(kafka.LastOffset); err != nil {
		_ = reader.Close()
		return nil, fmt.Errorf("kafka seek: %w", err)
	}
	return &KafkaTransport{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               FixedPartition{Partition: kafkaPartition},
			RequiredAcks:           kafka.RequireOne,
			AllowAutoTopicCreation: true,
		},
		reader: reader,
		logger: logger,
	}, nil
}

func (t *KafkaTransport) Publish(ctx context.Context, payload []byte) error {
	if err := t.writer.WriteMessages(ctx, kafka.Message{Value: payload}); err != nil {
		return fmt.Errorf("kafka write: %w", err)
	}
	return nil
}

func (t *KafkaTransport) Listen(ctx context.Context, deliver func([]byte)) error {
	go func() {
		for {
			msg, err := t.reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() == nil && !errors.Is(err, context.Canceled) {
					t.logger.Warn().Err(err).Msg("kafka read loop ended")
				}
				return
			}
			deliver(msg.Value)
		}
	}()
	return nil
}

func (t *KafkaTransport) Close() error {
	return errors.Join(t.reader.Close(), t.writer.Close())
}

var _ syncout.Transport = (*KafkaTransport)(nil)
