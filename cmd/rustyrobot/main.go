package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mersinvald/rustyrobot/pkg/config"
	"github.com/mersinvald/rustyrobot/pkg/dumper"
	"github.com/mersinvald/rustyrobot/pkg/eventhandler"
	"github.com/mersinvald/rustyrobot/pkg/fetcher"
	"github.com/mersinvald/rustyrobot/pkg/forker"
	"github.com/mersinvald/rustyrobot/pkg/formatter"
	"github.com/mersinvald/rustyrobot/pkg/github"
	"github.com/mersinvald/rustyrobot/pkg/githubworker"
	"github.com/mersinvald/rustyrobot/pkg/kafka"
	"github.com/mersinvald/rustyrobot/pkg/log"
	"github.com/mersinvald/rustyrobot/pkg/metrics"
	"github.com/mersinvald/rustyrobot/pkg/prissuer"
	"github.com/mersinvald/rustyrobot/pkg/search"
	"github.com/mersinvald/rustyrobot/pkg/shutdown"
	"github.com/mersinvald/rustyrobot/pkg/statuschecker"
	"github.com/mersinvald/rustyrobot/pkg/storage"
	"github.com/mersinvald/rustyrobot/pkg/types"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

var cfg config.Config

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "rustyrobot",
	Short: "rustyrobot - distributed code formatting pipeline",
	Long: `Rustyrobot discovers repositories on the remote code forge, forks
them, reformats their code, opens pull requests against the originals, and
tracks the resulting review state. Each subcommand runs one long-lived
pipeline stage; stages communicate through the message bus.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"rustyrobot version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	rootCmd.PersistentFlags().String("config", "", "Path to YAML config file")

	cobra.OnInitialize(initConfig)

	rootCmd.AddCommand(fetcherCmd)
	rootCmd.AddCommand(githubCmd)
	rootCmd.AddCommand(forkerCmd)
	rootCmd.AddCommand(formatterCmd)
	rootCmd.AddCommand(prIssuerCmd)
	rootCmd.AddCommand(statusCheckerCmd)
	rootCmd.AddCommand(eventHandlerCmd)
	rootCmd.AddCommand(dumperCmd)
}

func initConfig() {
	path, _ := rootCmd.PersistentFlags().GetString("config")

	loaded, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	cfg = loaded

	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")
	if rootCmd.PersistentFlags().Changed("log-level") || cfg.Log.Level == "" {
		cfg.Log.Level = log.Level(logLevel)
	}
	if rootCmd.PersistentFlags().Changed("log-json") {
		cfg.Log.JSON = logJSON
	}

	log.Init(log.Config{
		Level:      cfg.Log.Level,
		JSONOutput: cfg.Log.JSON,
	})
}

// bootstrap creates the shutdown coordinator, hooks termination signals,
// and starts the metrics endpoint.
func bootstrap() *shutdown.Coordinator {
	coordinator := shutdown.New()

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-signals
		log.Logger.Info().Str("signal", sig.String()).Msg("received signal, shutting down")
		coordinator.Shutdown()
	}()

	metrics.Serve(cfg.Metrics.Addr)
	return coordinator
}

func kafkaConfig() kafka.Config {
	return kafka.Config{
		Brokers:           cfg.Kafka.BootstrapServers,
		SessionTimeout:    cfg.Kafka.SessionTimeout,
		HeartbeatInterval: cfg.Kafka.HeartbeatInterval,
		MessageTimeout:    cfg.Kafka.MessageTimeout,
	}
}

var fetcherCmd = &cobra.Command{
	Use:   "fetcher",
	Short: "Emit date-windowed search requests for the github worker",
	RunE: func(cmd *cobra.Command, args []string) error {
		coordinator := bootstrap()
		kcfg := kafkaConfig()

		days, _ := cmd.Flags().GetInt("days-per-request")
		startDate, _ := cmd.Flags().GetString("start-date")
		endDate, _ := cmd.Flags().GetString("end-date")
		period, _ := cmd.Flags().GetDuration("period")
		owner, _ := cmd.Flags().GetString("owner")

		strategy := fetcher.DateWindow{DaysPerRequest: days}
		if startDate != "" {
			parsed, err := time.Parse("2006-01-02", startDate)
			if err != nil {
				return fmt.Errorf("invalid --start-date: %w", err)
			}
			strategy.StartDate = parsed
		}
		if endDate != "" {
			parsed, err := time.Parse("2006-01-02", endDate)
			if err != nil {
				return fmt.Errorf("invalid --end-date: %w", err)
			}
			strategy.EndDate = parsed
		}

		base := search.NewQuery().
			SearchFor(search.SearchForRepository).
			Lang(search.LangRust).
			Count(100)
		if owner != "" {
			base = base.Owner(owner)
		}

		store := kafka.NewStore(kcfg, kafka.TopicFetcherState)
		if err := store.Restore(); err != nil {
			return fmt.Errorf("failed to restore state: %w", err)
		}
		defer store.Close()

		producer := kafka.NewProducer(kcfg, kafka.TopicGithubRequest, coordinator)
		defer producer.Close()

		return fetcher.Run(coordinator, store, producer, strategy, base, period)
	},
}

var githubCmd = &cobra.Command{
	Use:   "github",
	Short: "Execute fetch/fork/delete/PR requests against the remote API",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.RequireToken(); err != nil {
			return err
		}

		coordinator := bootstrap()
		kcfg := kafkaConfig()

		store := kafka.NewStore(kcfg, kafka.TopicGithubState)
		if err := store.Restore(); err != nil {
			return fmt.Errorf("failed to restore state: %w", err)
		}
		defer store.Close()

		v4, err := github.NewV4(cfg.Github.Token)
		if err != nil {
			return fmt.Errorf("failed to create API v4 client: %w", err)
		}
		v3 := github.NewV3(cfg.Github.Token)

		worker := githubworker.New(v3, v4, githubworker.NewSyncedStore(store), coordinator)

		consumer, err := kafka.NewConsumer(
			kcfg, kafka.GroupGithub, kafka.TopicGithubRequest, worker.Handle,
			kafka.WithRespondTo[types.Request, types.Event](kafka.TopicEvent),
		)
		if err != nil {
			return err
		}
		return consumer.Start(coordinator)
	},
}

var forkerCmd = &cobra.Command{
	Use:   "forker",
	Short: "Queue a fork request for every fetched repository",
	RunE: func(cmd *cobra.Command, args []string) error {
		coordinator := bootstrap()

		consumer, err := kafka.NewConsumer(
			kafkaConfig(), kafka.GroupForker, kafka.TopicEvent, forker.Handle,
			kafka.WithRespondTo[types.Event, types.Request](kafka.TopicGithubRequest),
			kafka.WithFilter[types.Event, types.Request](forker.Wants),
		)
		if err != nil {
			return err
		}
		return consumer.Start(coordinator)
	},
}

var formatterCmd = &cobra.Command{
	Use:   "formatter",
	Short: "Format forked repositories and push the working branch",
	RunE: func(cmd *cobra.Command, args []string) error {
		coordinator := bootstrap()

		consumer, err := kafka.NewConsumer(
			kafkaConfig(), kafka.GroupFormatter, kafka.TopicEvent, formatter.Handle,
			kafka.WithRespondTo[types.Event, types.Event](kafka.TopicEvent),
			kafka.WithFilter[types.Event, types.Event](formatter.Wants),
		)
		if err != nil {
			return err
		}
		return consumer.Start(coordinator)
	},
}

var prIssuerCmd = &cobra.Command{
	Use:   "pr-issuer",
	Short: "Open pull requests for formatted repositories",
	RunE: func(cmd *cobra.Command, args []string) error {
		coordinator := bootstrap()

		consumer, err := kafka.NewConsumer(
			kafkaConfig(), kafka.GroupPRIssuer, kafka.TopicEvent, prissuer.Handle,
			kafka.WithRespondTo[types.Event, types.Request](kafka.TopicGithubRequest),
			kafka.WithFilter[types.Event, types.Request](prissuer.Wants),
		)
		if err != nil {
			return err
		}
		return consumer.Start(coordinator)
	},
}

var statusCheckerCmd = &cobra.Command{
	Use:   "status-checker",
	Short: "Poll the review state of tracked pull requests",
	RunE: func(cmd *cobra.Command, args []string) error {
		coordinator := bootstrap()

		consumer, err := kafka.NewConsumer(
			kafkaConfig(), kafka.GroupStatusChecker, kafka.TopicEvent, statuschecker.Handle,
			kafka.WithRespondTo[types.Event, types.Request](kafka.TopicGithubRequest),
			kafka.WithFilter[types.Event, types.Request](statuschecker.Wants),
		)
		if err != nil {
			return err
		}
		return consumer.Start(coordinator)
	},
}

var eventHandlerCmd = &cobra.Command{
	Use:   "event-handler",
	Short: "Run periodic jobs (notifications polling)",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.RequireToken(); err != nil {
			return err
		}
		if err := cfg.RequireUsername(); err != nil {
			return err
		}

		coordinator := bootstrap()

		period, _ := cmd.Flags().GetDuration("period")

		producer := kafka.NewProducer(kafkaConfig(), kafka.TopicGithubRequest, coordinator)
		defer producer.Close()

		eventhandler.Run(coordinator, producer, period)
		return nil
	},
}

var dumperCmd = &cobra.Command{
	Use:   "dumper",
	Short: "Archive every bus event into the local event store",
	RunE: func(cmd *cobra.Command, args []string) error {
		coordinator := bootstrap()

		dataDir, _ := cmd.Flags().GetString("data-dir")
		store, err := storage.NewBoltStore(dataDir)
		if err != nil {
			return err
		}
		defer store.Close()

		consumer, err := kafka.NewConsumer[types.Event, types.Event](
			kafkaConfig(), kafka.GroupDumper, kafka.TopicEvent, dumper.New(store).Handle,
		)
		if err != nil {
			return err
		}
		return consumer.Start(coordinator)
	},
}

func init() {
	fetcherCmd.Flags().Int("days-per-request", 1, "Window length of one search request, in days")
	fetcherCmd.Flags().String("start-date", "", "Creation date to start fetching from (YYYY-MM-DD)")
	fetcherCmd.Flags().String("end-date", "", "Creation date to stop fetching at (YYYY-MM-DD)")
	fetcherCmd.Flags().Duration("period", time.Hour, "How often to re-run the fetch")
	fetcherCmd.Flags().String("owner", "", "Restrict the search to one repository owner")

	eventHandlerCmd.Flags().Duration("period", eventhandler.DefaultFetchPeriod, "How often to poll notifications")

	dumperCmd.Flags().String("data-dir", "/var/lib/rustyrobot", "Directory of the local event archive")
}
