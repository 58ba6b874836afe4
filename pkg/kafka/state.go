package kafka

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/mersinvald/rustyrobot/pkg/log"
	"github.com/mersinvald/rustyrobot/pkg/metrics"
)

// stateWriter publishes state changes, satisfied by a synchronous
// *kafkago.Writer.
type stateWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Store is a per-service keyed JSON mapping backed by a compacted log topic.
// Mutations accumulate in memory; Sync publishes the delta against the last
// synced snapshot. Restore rematerializes the map from the topic. Last write
// wins under topic compaction; that is the store's correctness premise.
type Store struct {
	topic  string
	config Config
	old    map[string]json.RawMessage
	new    map[string]json.RawMessage
	writer stateWriter
	logger zerolog.Logger
}

// Change is one delta entry pending publication.
type Change struct {
	Key   string
	Value json.RawMessage
}

// NewStore constructs an empty store over topic. No I/O happens until
// Restore or Sync.
func NewStore(cfg Config, topic string) *Store {
	return &Store{
		topic:  topic,
		config: cfg,
		old:    make(map[string]json.RawMessage),
		new:    make(map[string]json.RawMessage),
		logger: log.WithTopic(topic),
	}
}

// Restore consumes the state topic from the earliest offset, terminating at
// each partition's current end, and loads every entry into the store.
func (s *Store) Restore() error {
	conn, err := kafkago.Dial("tcp", s.config.Brokers[0])
	if err != nil {
		return fmt.Errorf("failed to dial broker: %w", err)
	}
	defer conn.Close()

	partitions, err := conn.ReadPartitions(s.topic)
	if err != nil {
		if errors.Is(err, kafkago.UnknownTopicOrPartition) {
			// First run: the log does not exist yet, the store starts empty.
			s.logger.Info().Msg("state topic does not exist yet, starting empty")
			return nil
		}
		return fmt.Errorf("failed to list partitions of %s: %w", s.topic, err)
	}

	for _, partition := range partitions {
		if err := s.restorePartition(partition.ID); err != nil {
			return err
		}
	}

	s.new = make(map[string]json.RawMessage, len(s.old))
	for key, value := range s.old {
		s.new[key] = value
	}

	s.logger.Info().Int("entries", len(s.old)).Msg("state restored")
	return nil
}

func (s *Store) restorePartition(partition int) error {
	// A plain partition reader starts at the first offset; no consumer
	// group is involved, so service group offsets stay untouched.
	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:   s.config.Brokers,
		Topic:     s.topic,
		Partition: partition,
		MinBytes:  1,
		MaxBytes:  10e6,
	})
	defer reader.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	lag, err := reader.ReadLag(ctx)
	if err != nil {
		return fmt.Errorf("failed to read lag of %s/%d: %w", s.topic, partition, err)
	}

	for lag > 0 {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			return fmt.Errorf("failed to restore from %s/%d: %w", s.topic, partition, err)
		}
		if err := s.apply(msg.Key, msg.Value); err != nil {
			return err
		}
		lag--
	}
	return nil
}

// apply loads one state-change message into the restored snapshot.
func (s *Store) apply(key, value []byte) error {
	if len(key) == 0 {
		return errors.New("missing key on state change")
	}
	if len(value) == 0 {
		return errors.New("empty state change")
	}
	if !json.Valid(value) {
		return fmt.Errorf("state change for %q is not valid json", key)
	}
	compacted, err := compactJSON(value)
	if err != nil {
		return err
	}
	s.logger.Debug().Str("key", string(key)).Msg("restoring state entry")
	s.old[string(key)] = compacted
	return nil
}

// Set stores value under key. The value must be JSON-serializable.
func (s *Store) Set(key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode state value for %q: %w", key, err)
	}
	s.new[key] = raw
	return nil
}

// Get unmarshals the value under key into out. Missing keys are an error.
func (s *Store) Get(key string, out any) error {
	raw, ok := s.new[key]
	if !ok {
		return fmt.Errorf("state key %q is not set", key)
	}
	return json.Unmarshal(raw, out)
}

// GetString returns the string under key, or "" when unset.
func (s *Store) GetString(key string) string {
	var out string
	if err := s.Get(key, &out); err != nil {
		return ""
	}
	return out
}

// GetInt64 returns the integer under key, or 0 when unset.
func (s *Store) GetInt64(key string) int64 {
	var out int64
	if err := s.Get(key, &out); err != nil {
		return 0
	}
	return out
}

// Increment adds one to the integer counter under key, starting from zero.
func (s *Store) Increment(key string) {
	// Counter keys hold JSON integers by convention; a non-integer value
	// here resets to zero rather than wedging the handler.
	value := s.GetInt64(key) + 1
	raw, _ := json.Marshal(value)
	s.new[key] = raw
}

// Delta returns the entries present in the working map whose value differs
// from the synced snapshot, or that the snapshot lacks.
func (s *Store) Delta() []Change {
	var changes []Change
	for key, value := range s.new {
		old, ok := s.old[key]
		if ok && bytes.Equal(old, value) {
			continue
		}
		changes = append(changes, Change{Key: key, Value: value})
	}
	return changes
}

// Sync publishes the delta to the state topic and advances the snapshot.
func (s *Store) Sync() error {
	delta := s.Delta()
	s.logger.Debug().Int("delta", len(delta)).Msg("synchronizing state changes")
	metrics.StateSyncs.WithLabelValues(s.topic).Inc()
	metrics.StateDeltaSize.WithLabelValues(s.topic).Observe(float64(len(delta)))

	if len(delta) == 0 {
		return nil
	}

	writer := s.writer
	if writer == nil {
		writer = &kafkago.Writer{
			Addr:                   kafkago.TCP(s.config.Brokers...),
			Topic:                  s.topic,
			Balancer:               &kafkago.Hash{},
			WriteTimeout:           s.config.MessageTimeout,
			RequiredAcks:           kafkago.RequireOne,
			AllowAutoTopicCreation: true,
		}
		s.writer = writer
	}

	for _, change := range delta {
		msg := kafkago.Message{
			Key:   []byte(change.Key),
			Value: change.Value,
		}
		publish := func() error {
			return writer.WriteMessages(context.Background(), msg)
		}
		policy := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 8)
		if err := backoff.Retry(publish, policy); err != nil {
			return fmt.Errorf("failed to publish state change for %q: %w", change.Key, err)
		}
	}

	s.old = make(map[string]json.RawMessage, len(s.new))
	for key, value := range s.new {
		s.old[key] = value
	}

	s.logger.Debug().Msg("state sync finished")
	return nil
}

// Close syncs one final time and releases the writer. A failed final sync is
// fatal: it implies silent state loss across the restart.
func (s *Store) Close() {
	if err := s.Sync(); err != nil {
		s.logger.Fatal().Err(err).Msg("failed to synchronize state on close")
	}
	if s.writer != nil {
		_ = s.writer.Close()
	}
}

func compactJSON(value []byte) (json.RawMessage, error) {
	var buf bytes.Buffer
	if err := json.Compact(&buf, value); err != nil {
		return nil, err
	}
	return json.RawMessage(buf.Bytes()), nil
}
