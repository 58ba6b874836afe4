package githubworker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/mersinvald/rustyrobot/pkg/github"
	"github.com/mersinvald/rustyrobot/pkg/kafka"
	"github.com/mersinvald/rustyrobot/pkg/log"
	"github.com/mersinvald/rustyrobot/pkg/search"
	"github.com/mersinvald/rustyrobot/pkg/shutdown"
	"github.com/mersinvald/rustyrobot/pkg/types"
)

// SyncedStore wraps the state store for mutation from inside consumer
// callbacks. The store itself is owned by the service thread; handlers go
// through the mutex.
type SyncedStore struct {
	mu    sync.Mutex
	store *kafka.Store
}

// NewSyncedStore wraps store.
func NewSyncedStore(store *kafka.Store) *SyncedStore {
	return &SyncedStore{store: store}
}

// Increment bumps a counter and syncs the delta. Sync failures are returned
// to the caller.
func (s *SyncedStore) Increment(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store.Increment(key)
	return s.store.Sync()
}

// StatSink receives the worker's stat counter bumps, implemented by
// SyncedStore.
type StatSink interface {
	Increment(key string) error
}

// Worker executes github requests against the remote API and emits the
// resulting events.
type Worker struct {
	v3       *github.V3
	v4       *github.V4
	state    StatSink
	shutdown *shutdown.Coordinator
	logger   zerolog.Logger

	sleep func(time.Duration)
}

// New creates a worker over the two API clients.
func New(v3 *github.V3, v4 *github.V4, state StatSink, coordinator *shutdown.Coordinator) *Worker {
	return &Worker{
		v3:       v3,
		v4:       v4,
		state:    state,
		shutdown: coordinator,
		logger:   log.WithComponent("github"),
		sleep:    time.Sleep,
	}
}

// Handle dispatches one request. It is the handler the github service's
// consumer runs.
func (w *Worker) Handle(req types.Request, emit func(types.Event)) error {
	w.count("requests received")

	var err error
	switch {
	case req.Fetch != nil:
		err = w.handleFetch(req.Fetch, emit)
	case req.Fork != nil:
		err = w.handleFork(req.Fork, emit)
	case req.DeleteFork != nil:
		err = w.handleDeleteFork(req.DeleteFork, emit)
	case req.CreatePR != nil:
		err = w.handleCreatePR(req.CreatePR, emit)
	case req.CheckPRStatus != nil:
		err = w.handleCheckPRStatus(req.CheckPRStatus, emit)
	case req.FetchNotifications != nil:
		err = w.handleFetchNotifications(emit)
	default:
		err = kafka.Otherf("request carries no known variant")
	}
	if err != nil {
		return err
	}

	w.count("requests handled")
	return nil
}

func (w *Worker) handleFetch(req *types.FetchRequest, emit func(types.Event)) error {
	if req.Query.SearchFor != search.SearchForRepository {
		return kafka.Otherf("can't fetch %q entities", req.Query.SearchFor)
	}
	w.count("repository fetch requests received")

	repos, err := w.fetchAllRepos(req.Query)
	if err != nil {
		return kafka.Other(err)
	}

	for i := range repos {
		w.count("repositories fetched")
		repo := repos[i]
		emit(types.Event{RepositoryFetched: &repo})
	}

	w.count("repository fetch requests handled")
	return nil
}

// fetchAllRepos walks all pages of one search window.
func (w *Worker) fetchAllRepos(base search.Query) ([]types.Repository, error) {
	var repos []types.Repository
	var cursor *string

	for !w.shutdown.ShouldShutdown() {
		builder := base.Builder()
		if cursor != nil {
			builder = builder.After(*cursor)
		}
		query, err := builder.Build()
		if err != nil {
			return nil, err
		}

		page, err := github.Search(w.v4, query)
		if err != nil {
			return nil, err
		}
		repos = append(repos, page.Nodes...)

		if !page.PageInfo.HasNextPage || page.PageInfo.EndCursor == nil {
			break
		}
		cursor = page.PageInfo.EndCursor
	}

	return repos, nil
}

func (w *Worker) handleFork(repo *types.Repository, emit func(types.Event)) error {
	logger := log.WithRepo(repo.NameWithOwner)

	var raw []byte
	err := w.withRetry(func() error {
		var err error
		raw, err = w.v3.CreateFork(context.Background(), repo.Owner(), repo.Name())
		return err
	})
	if err != nil {
		return kafka.Otherf("failed to fork %s: %w", repo.NameWithOwner, err)
	}

	fork, err := types.DeriveFork(repo, raw)
	if err != nil {
		// The fork response shape is a wire contract; a mismatch is a bug,
		// not a business condition.
		return kafka.Internalf("failed to derive fork of %s: %w", repo.NameWithOwner, err)
	}

	logger.Info().Str("fork", fork.NameWithOwner).Msg("forked")
	w.count("repositories forked")
	emit(types.Event{RepositoryForked: fork})
	return nil
}

func (w *Worker) handleDeleteFork(repo *types.Repository, emit func(types.Event)) error {
	err := w.withRetry(func() error {
		return w.v3.DeleteRepository(context.Background(), repo.Owner(), repo.Name())
	})
	if err != nil {
		return kafka.Otherf("failed to delete fork %s: %w", repo.NameWithOwner, err)
	}

	forkLogger := log.WithRepo(repo.NameWithOwner)
	forkLogger.Info().Msg("fork deleted")
	w.count("forks deleted")
	emit(types.Event{ForkDeleted: repo})
	return nil
}

func (w *Worker) handleCreatePR(req *types.CreatePRRequest, emit func(types.Event)) error {
	repo := req.Repo
	if repo.Parent == nil {
		return kafka.Otherf("repository %s has no parent, can't open PR", repo.NameWithOwner)
	}

	upstreamOwner, upstreamName, err := splitNameWithOwner(repo.Parent.NameWithOwner)
	if err != nil {
		return kafka.Other(err)
	}

	head := fmt.Sprintf("%s:%s", w.v4.Login(), req.Branch)
	logger := log.WithRepo(repo.Parent.NameWithOwner)

	// Check-then-create: an existing open PR with the same head is reused.
	var existing []github.Pull
	err = w.withRetry(func() error {
		var err error
		existing, err = w.v3.ListPulls(context.Background(), upstreamOwner, upstreamName, head)
		return err
	})
	if err != nil {
		return kafka.Otherf("failed to list PRs of %s: %w", repo.Parent.NameWithOwner, err)
	}

	var pull *github.Pull
	for i := range existing {
		if existing[i].Status() == types.PROpen {
			pull = &existing[i]
			logger.Info().Int("number", pull.Number).Msg("PR already open, reusing")
			break
		}
	}

	if pull == nil {
		err = w.withRetry(func() error {
			var err error
			pull, err = w.v3.CreatePull(context.Background(), upstreamOwner, upstreamName, github.CreatePullParams{
				Title: req.Title,
				Body:  req.Message,
				Head:  head,
				Base:  repo.DefaultBranch.Name,
			})
			return err
		})
		if err != nil {
			return kafka.Otherf("failed to create PR for %s: %w", repo.Parent.NameWithOwner, err)
		}
		logger.Info().Int("number", pull.Number).Msg("PR created")
		w.count("prs created")
	}

	if repo.Stats == nil {
		repo.Stats = &types.Stats{}
	}
	if !repo.Stats.HasPR(pull.Number) {
		repo.Stats.PRs = append(repo.Stats.PRs, types.PullRequest{
			Title:  pull.Title,
			Number: pull.Number,
			Status: pull.Status(),
		})
	}

	emit(types.Event{PRCreated: &repo})
	return nil
}

func (w *Worker) handleCheckPRStatus(repo *types.Repository, emit func(types.Event)) error {
	if repo.Stats == nil || len(repo.Stats.PRs) == 0 {
		return nil
	}
	if repo.Parent == nil {
		return kafka.Otherf("repository %s has no parent, can't check PR status", repo.NameWithOwner)
	}

	upstreamOwner, upstreamName, err := splitNameWithOwner(repo.Parent.NameWithOwner)
	if err != nil {
		return kafka.Other(err)
	}

	changed := false
	for i := range repo.Stats.PRs {
		tracked := &repo.Stats.PRs[i]

		var pull *github.Pull
		err := w.withRetry(func() error {
			var err error
			pull, err = w.v3.GetPull(context.Background(), upstreamOwner, upstreamName, tracked.Number)
			return err
		})
		if err != nil {
			return kafka.Otherf("failed to check PR #%d of %s: %w", tracked.Number, repo.Parent.NameWithOwner, err)
		}

		if status := pull.Status(); status != tracked.Status {
			prLogger := log.WithRepo(repo.Parent.NameWithOwner)
			prLogger.Info().
				Int("number", tracked.Number).
				Str("from", string(tracked.Status)).
				Str("to", string(status)).
				Msg("PR status changed")
			tracked.Status = status
			changed = true
		}
	}

	if changed {
		emit(types.Event{PRStatusChange: repo})
	}
	return nil
}

func (w *Worker) handleFetchNotifications(emit func(types.Event)) error {
	raw, err := w.v3.Notifications(context.Background())
	if err != nil {
		return kafka.Otherf("failed to fetch notifications: %w", err)
	}

	// The notifications mapping is a stub: log the feed, emit nothing.
	w.logger.Info().RawJSON("notifications", raw).Msg("notifications fetched")
	return nil
}

// withRetry reissues fn after sleeping out rate-limit rejections, matching
// the transparent retry the v4 client performs internally.
func (w *Worker) withRetry(fn func() error) error {
	for {
		err := fn()
		var rle *github.RateLimitError
		if errors.As(err, &rle) {
			w.logger.Warn().Dur("retry_in", rle.RetryIn).Msg("exceeded rate limit, retrying")
			w.sleep(rle.RetryIn)
			continue
		}
		return err
	}
}

// count bumps a stat counter. A sync failure is logged and does not fail
// the handler.
func (w *Worker) count(key string) {
	if err := w.state.Increment(key); err != nil {
		w.logger.Error().Err(err).Str("counter", key).Msg("failed to sync state")
	}
}

func splitNameWithOwner(nameWithOwner string) (owner, name string, err error) {
	for i := 0; i < len(nameWithOwner); i++ {
		if nameWithOwner[i] == '/' {
			return nameWithOwner[:i], nameWithOwner[i+1:], nil
		}
	}
	return "", "", fmt.Errorf("%q is not owner/name", nameWithOwner)
}
