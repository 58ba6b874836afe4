package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/mersinvald/rustyrobot/pkg/log"
	"github.com/mersinvald/rustyrobot/pkg/metrics"
	"github.com/mersinvald/rustyrobot/pkg/shutdown"
)

// Handler processes one decoded input message and may emit zero or more
// outputs through the callback. Emitted outputs are published to the
// response topic before the input offset is committed.
type Handler[I, O any] func(input I, emit func(O)) error

// Sender publishes handler outputs. Satisfied by *Producer.
type Sender interface {
	SendWithKey(key []byte, value any) error
}

// messageFetcher is the broker-side half of the consumer, satisfied by
// *kafkago.Reader.
type messageFetcher interface {
	FetchMessage(ctx context.Context) (kafkago.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Consumer is the per-service main loop: subscribe, decode, filter, handle,
// publish outputs, commit. Build one with NewConsumer and the With* options,
// then call Start.
type Consumer[I, O any] struct {
	group     string
	topic     string
	respondTo string
	filter    func(I) bool
	handler   Handler[I, O]
	keyFrom   func(O) []byte
	config    Config

	// test seams; nil outside of tests
	fetcher messageFetcher
	sender  Sender
}

// ConsumerOption configures a Consumer.
type ConsumerOption[I, O any] func(*Consumer[I, O])

// WithRespondTo publishes emitted outputs to topic. When unset, emitted
// outputs are discarded.
func WithRespondTo[I, O any](topic string) ConsumerOption[I, O] {
	return func(c *Consumer[I, O]) { c.respondTo = topic }
}

// WithFilter drops inputs the predicate rejects, committing their offsets.
func WithFilter[I, O any](filter func(I) bool) ConsumerOption[I, O] {
	return func(c *Consumer[I, O]) { c.filter = filter }
}

// WithKeyFrom derives output keys with fn instead of the default
// input-key-plus-index scheme.
func WithKeyFrom[I, O any](fn func(O) []byte) ConsumerOption[I, O] {
	return func(c *Consumer[I, O]) { c.keyFrom = fn }
}

// NewConsumer builds a handling consumer for one input topic under a named
// consumer group.
func NewConsumer[I, O any](cfg Config, group, topic string, handler Handler[I, O], opts ...ConsumerOption[I, O]) (*Consumer[I, O], error) {
	if group == "" {
		return nil, errors.New("kafka: consumer group id is undefined")
	}
	if topic == "" {
		return nil, errors.New("kafka: no topic to subscribe")
	}
	if handler == nil {
		return nil, errors.New("kafka: no handler function")
	}
	c := &Consumer[I, O]{
		group:   group,
		topic:   topic,
		handler: handler,
		config:  cfg,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Start runs the consumer loop until shutdown is requested. It returns a nil
// error on clean shutdown and a non-nil error on a service-level failure
// that must terminate the process without committing the current offset.
func (c *Consumer[I, O]) Start(coordinator *shutdown.Coordinator) error {
	logger := log.WithGroup(c.group)

	fetcher := c.fetcher
	if fetcher == nil {
		fetcher = kafkago.NewReader(kafkago.ReaderConfig{
			Brokers:           c.config.Brokers,
			GroupID:           c.group,
			Topic:             c.topic,
			MinBytes:          1,
			MaxBytes:          10e6,
			MaxWait:           pollInterval,
			StartOffset:       kafkago.FirstOffset,
			SessionTimeout:    c.config.SessionTimeout,
			HeartbeatInterval: c.config.HeartbeatInterval,
			// CommitInterval zero means synchronous commits; offsets are
			// committed only after the handler and publishes succeed.
		})
	}
	defer fetcher.Close()

	sender := c.sender
	if sender == nil && c.respondTo != "" {
		producer := NewProducer(c.config, c.respondTo, coordinator)
		defer producer.Close()
		sender = producer
	}

	lock := coordinator.Started(fmt.Sprintf("consumer loop %s", c.group))
	defer lock.Release()

	logger.Info().Str("topic", c.topic).Msg("consumer started")

	for !coordinator.ShouldShutdown() {
		if err := c.step(logger, fetcher, sender); err != nil {
			return err
		}
	}

	logger.Info().Msg("consumer stopped")
	return nil
}

// step performs one poll-decode-handle-publish-commit round. A nil error
// means the loop continues; a non-nil error is a service-level failure.
func (c *Consumer[I, O]) step(logger zerolog.Logger, fetcher messageFetcher, sender Sender) error {
	ctx, cancel := context.WithTimeout(context.Background(), pollInterval)
	msg, err := fetcher.FetchMessage(ctx)
	cancel()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil
		}
		logger.Warn().Err(err).Msg("failed to receive message")
		return nil
	}

	metrics.MessagesConsumed.WithLabelValues(c.group).Inc()

	var input I
	if err := json.Unmarshal(msg.Value, &input); err != nil {
		// Poison pill: never block the partition on a malformed message.
		logger.Error().Err(err).
			Int64("offset", msg.Offset).
			Msg("payload is invalid json, skipping")
		metrics.PoisonMessages.WithLabelValues(c.group).Inc()
		return c.commit(logger, fetcher, msg)
	}

	if c.filter != nil && !c.filter(input) {
		return c.commit(logger, fetcher, msg)
	}

	var outputs []O
	err = c.handler(input, func(out O) {
		outputs = append(outputs, out)
	})
	if err != nil {
		kind := Classify(err)
		metrics.HandlerErrors.WithLabelValues(c.group, kind.String()).Inc()
		switch kind {
		case KindInternal:
			logger.Error().Err(err).Msg("handler failed with internal error, terminating without commit")
			return err
		default:
			logger.Error().Err(err).Msg("handler failed, skipping message")
			return c.commit(logger, fetcher, msg)
		}
	}

	if sender != nil {
		for i, out := range outputs {
			key := c.outputKey(msg.Key, out, i)
			if err := sender.SendWithKey(key, out); err != nil {
				logger.Error().Err(err).Msg("failed to publish handler output")
			}
		}
	}

	return c.commit(logger, fetcher, msg)
}

// outputKey derives the key for the i-th emitted output: the user function
// if configured, else the input key, suffixed with the index for entries
// beyond the first.
func (c *Consumer[I, O]) outputKey(inputKey []byte, out O, i int) []byte {
	if c.keyFrom != nil {
		return c.keyFrom(out)
	}
	if len(inputKey) == 0 {
		// Emitted messages must never go out keyless.
		return []byte(uuid.NewString())
	}
	if i == 0 {
		return inputKey
	}
	return []byte(fmt.Sprintf("%s-%d", inputKey, i))
}

func (c *Consumer[I, O]) commit(logger zerolog.Logger, fetcher messageFetcher, msg kafkago.Message) error {
	if err := fetcher.CommitMessages(context.Background(), msg); err != nil {
		// A lost commit means silent reprocessing with no bound; surface it.
		return Internalf("failed to commit offset %d on %s: %w", msg.Offset, msg.Topic, err)
	}
	metrics.OffsetCommits.WithLabelValues(c.group).Inc()
	return nil
}
