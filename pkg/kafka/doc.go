/*
Package kafka is the stage coordination runtime every rustyrobot service is
built on: the buffered producer, the handling consumer, and the durable state
store, plus the topic and consumer-group contracts they share.

# Handling consumer

Consumer is the per-service main loop. Each round it polls the input topic
for up to 200ms, decodes the payload as JSON, applies the optional filter,
invokes the handler with an emit callback, publishes the emitted outputs, and
only then commits the input offset:

	consumer, err := kafka.NewConsumer(cfg, kafka.GroupForker, kafka.TopicEvent,
		func(event types.Event, emit func(types.Request)) error {
			if repo := event.RepositoryFetched; repo != nil {
				emit(types.Request{Fork: repo})
			}
			return nil
		},
		kafka.WithRespondTo[types.Event, types.Request](kafka.TopicGithubRequest),
	)
	err = consumer.Start(coordinator)

Failure policy: an undecodable payload is committed and skipped (poison
pill); a handler error wrapped with Other is logged and committed; a handler
error wrapped with Internal terminates the loop without committing, so the
broker redelivers after restart. Outputs are always published before their
input's commit, which makes delivery at-least-once.

# State store

Store materializes a keyed JSON map from a compacted log topic. Services
restore it at startup, mutate it with Set/Increment, and Sync deltas back to
the topic; Close performs one final guaranteed sync.

# Producer

Producer presents a synchronous SendWithKey over broker-side batching. The
call returns once the record is buffered; a flusher worker, registered as a
named shutdown slot, drains the buffer with a bounded final flush when the
process stops.
*/
package kafka
