package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/confluentinc/confluent-kafka-go/kafka"
	"go.uber.org/zap"
)

// KafkaPublisher buffers emitted events in an in-memory outbox and flushes
// them to a Kafka topic on an interval, keyed by order id so one order's
// events stay in partition order. Emit never blocks settlement.
type KafkaPublisher struct {
	log      *zap.Logger
	producer *kafka.Producer
	topic    string
	interval time.Duration

	mu     sync.Mutex
	outbox []SettlementEvent
}

func NewKafkaPublisher(broker, topic string, interval time.Duration, log *zap.Logger) (*KafkaPublisher, error) {
	producer, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers": broker,
		"acks":              "all",
		"retries":           3,
		"retry.backoff.ms":  100,
	})
	if err != nil {
		return nil, fmt.Errorf("events: create producer: %w", err)
	}
	if interval <= 0 {
		interval = 3 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &KafkaPublisher{log: log, producer: producer, topic: topic, interval: interval}, nil
}

func (p *KafkaPublisher) Emit(event SettlementEvent) {
	p.mu.Lock()
	p.outbox = append(p.outbox, event)
	p.mu.Unlock()
}

// Run flushes the outbox until the context is cancelled.
func (p *KafkaPublisher) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			p.flush()
			p.producer.Close()
			return
		case <-ticker.C:
			p.flush()
		}
	}
}

func (p *KafkaPublisher) flush() {
	p.mu.Lock()
	batch := p.outbox
	p.outbox = nil
	p.mu.Unlock()
	if len(batch) == 0 {
		return
	}

	published := 0
	for _, event := range batch {
		if err := p.publish(event); err != nil {
			p.log.Error("event publish failed",
				zap.String("event_id", event.EventID),
				zap.String("type", event.Type),
				zap.Error(err),
			)
			// Back on the outbox for the next tick.
			p.mu.Lock()
			p.outbox = append(p.outbox, event)
			p.mu.Unlock()
			continue
		}
		published++
	}
	if published > 0 {
		p.log.Info("published settlement events", zap.Int("published", published), zap.Int("attempted", len(batch)))
	}
}

func (p *KafkaPublisher) publish(event SettlementEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	deliveryChan := make(chan kafka.Event, 1)
	err = p.producer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &p.topic, Partition: kafka.PartitionAny},
		Key:            []byte(event.OrderID),
		Value:          payload,
	}, deliveryChan)
	if err != nil {
		return err
	}

	e := <-deliveryChan
	if msg, ok := e.(*kafka.Message); ok && msg.TopicPartition.Error != nil {
		return msg.TopicPartition.Error
	}
	return nil
}
