package queue

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/IBM/sarama"
)

// KafkaQueue publishes through a sync producer and consumes with a consumer group.
type KafkaQueue struct {
	producer sarama.SyncProducer
	brokers  []string
	topic    string
	group    string
	config   *sarama.Config
}

// NewKafkaConfig returns the client config shared by producer and consumers.
func NewKafkaConfig() *sarama.Config {
	config := sarama.NewConfig()
	config.Version = sarama.V3_4_0_0
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Consumer.Offsets.Initial = sarama.OffsetOldest
	return config
}

// NewKafkaQueue connects a producer to brokers.
func NewKafkaQueue(brokers []string, topic, group string) (*KafkaQueue, error) {
	config := NewKafkaConfig()
	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, err
	}
	return newKafkaQueue(producer, brokers, topic, group, config), nil
}

func newKafkaQueue(producer sarama.SyncProducer, brokers []string, topic, group string, config *sarama.Config) *KafkaQueue {
	if group == "" {
		group = "collegepay-worker"
	}
	return &KafkaQueue{producer: producer, brokers: brokers, topic: topic, group: group, config: config}
}

// Publish sends a message keyed by its type.
func (q *KafkaQueue) Publish(_ context.Context, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	_, _, err = q.producer.SendMessage(&sarama.ProducerMessage{
		Topic: q.topic,
		Key:   sarama.StringEncoder(msg.Type),
		Value: sarama.ByteEncoder(data),
	})
	return err
}

// Consume joins the consumer group and streams decoded messages.
func (q *KafkaQueue) Consume(ctx context.Context) (<-chan Message, error) {
	group, err := sarama.NewConsumerGroup(q.brokers, q.group, q.config)
	if err != nil {
		return nil, err
	}
	out := make(chan Message)
	handler := &groupHandler{out: out}
	go func() {
		defer close(out)
		defer group.Close()
		for {
			if err := group.Consume(ctx, []string{q.topic}, handler); err != nil {
				slog.Warn("Consume(): kafka session ended", "topic", q.topic, "error", err)
				select {
				case <-ctx.Done():
				case <-time.After(time.Second):
				}
			}
			if ctx.Err() != nil {
				return
			}
		}
	}()
	return out, nil
}

// Close shuts the producer down.
func (q *KafkaQueue) Close() error {
	return q.producer.Close()
}

type groupHandler struct {
	out chan<- Message
}

func (h *groupHandler) Setup(_ sarama.ConsumerGroupSession) error   { return nil }
func (h *groupHandler) Cleanup(_ sarama.ConsumerGroupSession) error { return nil }

func (h *groupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for raw := range claim.Messages() {
		msg, ok := decodeRecord(raw.Value)
		if ok {
			select {
			case h.out <- msg:
			case <-session.Context().Done():
				return nil
			}
		}
		session.MarkMessage(raw, "")
	}
	return nil
}

func decodeRecord(value []byte) (Message, bool) {
	var msg Message
	if err := json.Unmarshal(value, &msg); err != nil || msg.Type == "" {
		slog.Warn("ConsumeClaim(): dropping malformed message", "error", err)
		return Message{}, false
	}
	return msg, true
}
