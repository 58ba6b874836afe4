// Package eventhandler runs the periodic jobs that keep the pipeline fed:
// currently a notifications poll queued onto the request topic every five
// minutes.
package eventhandler

import (
	"time"

	"github.com/mersinvald/rustyrobot/pkg/log"
	"github.com/mersinvald/rustyrobot/pkg/shutdown"
	"github.com/mersinvald/rustyrobot/pkg/types"
)

// DefaultFetchPeriod is how often the notifications feed is polled.
const DefaultFetchPeriod = 5 * time.Minute

// Emitter publishes requests, satisfied by *kafka.Producer.
type Emitter interface {
	Send(value any) error
}

// Run emits a FetchNotifications request every period until shutdown.
func Run(coordinator *shutdown.Coordinator, producer Emitter, period time.Duration) {
	logger := log.WithComponent("event-handler")

	lock := coordinator.Started("notification fetch loop")
	defer lock.Release()

	fetchTime := time.Now()
	for !coordinator.ShouldShutdown() {
		if time.Now().Before(fetchTime) {
			time.Sleep(time.Second)
			continue
		}

		err := producer.Send(types.Request{FetchNotifications: &struct{}{}})
		if err != nil {
			logger.Error().Err(err).Msg("failed to send FetchNotifications request")
		}
		fetchTime = time.Now().Add(period)
	}
}
