package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/mersinvald/rustyrobot/pkg/log"
	"github.com/mersinvald/rustyrobot/pkg/metrics"
	"github.com/mersinvald/rustyrobot/pkg/shutdown"
)

// messageWriter is the broker-side half of the producer, satisfied by
// *kafkago.Writer.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Producer is a background-flushing producer over one output topic. Send
// returns once the record is accepted into the broker client's buffer, not
// when the broker acknowledges it. The broker client flushes the buffer on
// its own batch cadence; a flusher worker holds a named shutdown slot until
// shutdown, then performs a bounded final flush.
type Producer struct {
	topic    string
	writer   messageWriter
	shutdown *shutdown.Coordinator
	done     chan struct{}
	logger   zerolog.Logger
}

// NewProducer creates a producer for topic and spawns its flusher slot.
func NewProducer(cfg Config, topic string, coordinator *shutdown.Coordinator) *Producer {
	writer := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.Brokers...),
		Topic:                  topic,
		Balancer:               &kafkago.Hash{},
		BatchTimeout:           pollInterval,
		WriteTimeout:           cfg.MessageTimeout,
		RequiredAcks:           kafkago.RequireOne,
		AllowAutoTopicCreation: true,
		Async:                  true,
		Completion: func(messages []kafkago.Message, err error) {
			if err != nil {
				logger := log.WithTopic(topic)
				logger.Warn().Err(err).
					Int("messages", len(messages)).
					Msg("broker rejected produced batch")
			}
		},
	}
	return newProducer(topic, writer, coordinator)
}

func newProducer(topic string, writer messageWriter, coordinator *shutdown.Coordinator) *Producer {
	p := &Producer{
		topic:    topic,
		writer:   writer,
		shutdown: coordinator,
		done:     make(chan struct{}),
		logger:   log.WithTopic(topic),
	}

	go func() {
		lock := coordinator.Started(fmt.Sprintf("producer flusher for %s", topic))
		defer close(p.done)
		defer lock.Release()

		// The broker client flushes on its own cadence; this slot only has
		// to outlive in-flight sends and run the bounded final drain.
		for !coordinator.ShouldShutdown() {
			time.Sleep(pollInterval)
		}
		p.finalFlush()
	}()

	return p
}

// Send enqueues value under a fresh random key.
func (p *Producer) Send(value any) error {
	return p.SendWithKey([]byte(uuid.NewString()), value)
}

// SendWithKey serializes value to JSON and enqueues it in a retry loop until
// the broker client accepts the record.
func (p *Producer) SendWithKey(key []byte, value any) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode message for %s: %w", p.topic, err)
	}

	msg := kafkago.Message{Key: key, Value: payload}
	for {
		err := p.writer.WriteMessages(context.Background(), msg)
		if err == nil {
			break
		}
		p.logger.Warn().Err(err).Msg("failed to enqueue, retrying")
		time.Sleep(sendRetryBackoff)
	}

	metrics.MessagesProduced.WithLabelValues(p.topic).Inc()
	p.logger.Debug().Msg("produced message")
	return nil
}

// Close waits for the flusher to finish the final drain. Closing before
// shutdown was requested drops mid-flight messages and is reported as a
// defect.
func (p *Producer) Close() {
	if !p.shutdown.ShouldShutdown() {
		p.logger.Error().Msg("producer closed before shutdown was requested, buffered messages may be lost")
		return
	}
	<-p.done
}

func (p *Producer) finalFlush() {
	flushed := make(chan error, 1)
	go func() {
		flushed <- p.writer.Close()
	}()
	select {
	case err := <-flushed:
		if err != nil {
			p.logger.Error().Err(err).Msg("final producer flush failed")
		}
	case <-time.After(finalFlushTimeout):
		p.logger.Error().Msg("final producer flush timed out")
	}
}
