package publish

import (
	"encoding/json"
	"log/slog"

	"github.com/IBM/sarama"

	"github.com/jaeyoon-dev/stockfeed/internal/broadcast"
	"github.com/jaeyoon-dev/stockfeed/internal/cache"
)

// Publisher sends every successful quote refresh to a Kafka topic, keyed by
// symbol so per-symbol ordering survives partitioning. Downstream consumers
// (analytics, alerting) read the same frames WebSocket clients receive.
// Delivery is best-effort; a broker outage never interrupts collection.
type Publisher struct {
	producer sarama.SyncProducer
	topic    string
}

// New creates a Kafka publisher for the given brokers and topic.
func New(brokers []string, topic string) (*Publisher, error) {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForLocal
	config.Producer.Retry.Max = 3

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, err
	}
	return &Publisher{producer: producer, topic: topic}, nil
}

// OnQuote publishes the frame for symbol. Implements broadcast.Sink.
func (p *Publisher) OnQuote(symbol string, e cache.Entry) {
	frame := broadcast.FrameFromEntry(symbol, e)
	b, err := json.Marshal(frame)
	if err != nil {
		return
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(symbol),
		Value: sarama.ByteEncoder(b),
	}
	if _, _, err := p.producer.SendMessage(msg); err != nil {
		slog.Warn("Kafka publish failed", "symbol", symbol, "error", err)
	}
}

// Close shuts down the underlying producer.
func (p *Publisher) Close() error {
	return p.producer.Close()
}
