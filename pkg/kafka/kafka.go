package kafka

import "time"

// Topic names are fixed wire contracts shared by every stage.
const (
	TopicGithubRequest = "rustyrobot.github.request"
	TopicEvent         = "rustyrobot.event"
	TopicGithubState   = "rustyrobot.github.state"
	TopicFetcherState  = "rustyrobot.fetcher.state"
)

// Consumer group ids, one per stage. State restore reads each partition
// directly and joins no consumer group.
const (
	GroupGithub        = "rustyrobot.github"
	GroupFetcher       = "rustyrobot.fetcher"
	GroupForker        = "rustyrobot.forker"
	GroupFormatter     = "rustyrobot.formatter"
	GroupPRIssuer      = "rustyrobot.pr-issuer"
	GroupStatusChecker = "rustyrobot.status-checker"
	GroupDumper        = "rustyrobot.dumper"
)

// Config enumerates the recognized broker options. The zero value is not
// usable; construct with DefaultConfig and override fields as needed.
type Config struct {
	Brokers           []string
	SessionTimeout    time.Duration
	HeartbeatInterval time.Duration
	MessageTimeout    time.Duration
}

// DefaultConfig returns the broker configuration invariants every stage
// relies on.
func DefaultConfig() Config {
	return Config{
		Brokers:           []string{"127.0.0.1:9092"},
		SessionTimeout:    6 * time.Second,
		HeartbeatInterval: 1 * time.Second,
		MessageTimeout:    5 * time.Second,
	}
}

const (
	// pollInterval bounds a single consumer poll.
	pollInterval = 200 * time.Millisecond

	// sendRetryBackoff is the pause between producer enqueue attempts.
	sendRetryBackoff = 100 * time.Millisecond

	// finalFlushTimeout caps the producer drain on shutdown.
	finalFlushTimeout = 60 * time.Second
)
