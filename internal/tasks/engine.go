package tasks

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"watchvault/internal/models"
	"watchvault/internal/platforms"
	"watchvault/internal/repositories"
	"watchvault/internal/shared"
	"watchvault/internal/vault"
)

// Options controls the sync engine's decision logic and pagination bounds.
type Options struct {
	FullSyncInterval    time.Duration // force a full run when the last one is older than this
	Lookback            time.Duration // overlap window subtracted from the incremental start point
	EarlyStopThreshold  int           // consecutive fully-duplicate pages before stopping
	FullMaxPages        int
	IncrementalMaxPages int
	RunTimeout          time.Duration // overall per-platform deadline
}

// withDefaults fills unset options with the reference defaults.
func (o Options) withDefaults() Options {
	if o.FullSyncInterval <= 0 {
		o.FullSyncInterval = 7 * 24 * time.Hour
	}
	if o.Lookback <= 0 {
		o.Lookback = time.Hour
	}
	if o.EarlyStopThreshold <= 0 {
		o.EarlyStopThreshold = 3
	}
	if o.FullMaxPages <= 0 {
		o.FullMaxPages = 50
	}
	if o.IncrementalMaxPages <= 0 {
		o.IncrementalMaxPages = 5
	}
	if o.RunTimeout <= 0 {
		o.RunTimeout = 25 * time.Second
	}
	return o
}

// OptionsFromConfig converts the [sync] config section into engine options.
func OptionsFromConfig(config *shared.Config) Options {
	if config == nil {
		return Options{}.withDefaults()
	}
	return Options{
		FullSyncInterval:    time.Duration(config.Sync.FullIntervalDays) * 24 * time.Hour,
		Lookback:            time.Duration(config.Sync.LookbackMinutes) * time.Minute,
		EarlyStopThreshold:  config.Sync.EarlyStopThreshold,
		FullMaxPages:        config.Sync.FullMaxPages,
		IncrementalMaxPages: config.Sync.IncrementalMaxPages,
		RunTimeout:          time.Duration(config.Sync.RunTimeoutSeconds) * time.Second,
	}.withDefaults()
}

// PlatformResult is the per-platform outcome of a sweep.
type PlatformResult struct {
	Platform string
	Job      *models.SyncJob // nil when the platform was skipped or guarded
	Skipped  bool            // true when no valid credential exists
	Err      error
}

// SyncEngine orchestrates history ingestion for all registered platforms.
// Construct once at process start with explicit dependencies; no package
// state is kept.
type SyncEngine struct {
	adapters map[string]platforms.Adapter
	items    *repositories.ItemRepository
	jobs     *repositories.JobRepository
	creds    *repositories.CredentialRepository
	vault    *vault.Vault
	logger   *log.Logger
	opts     Options

	mu      sync.Mutex
	running map[string]bool
}

// NewSyncEngine creates a SyncEngine with the provided dependencies.
func NewSyncEngine(
	adapters []platforms.Adapter,
	items *repositories.ItemRepository,
	jobs *repositories.JobRepository,
	creds *repositories.CredentialRepository,
	v *vault.Vault,
	logger *log.Logger,
	opts Options,
) *SyncEngine {
	byName := make(map[string]platforms.Adapter, len(adapters))
	for _, adapter := range adapters {
		byName[adapter.Name()] = adapter
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &SyncEngine{
		adapters: byName,
		items:    items,
		jobs:     jobs,
		creds:    creds,
		vault:    v,
		logger:   logger,
		opts:     opts.withDefaults(),
		running:  make(map[string]bool),
	}
}

// Platforms returns the registered platform names, sorted.
func (e *SyncEngine) Platforms() []string {
	names := make([]string, 0, len(e.adapters))
	for name := range e.adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// sendProgress sends a progress update through the channel without blocking.
func (e *SyncEngine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// shouldDoFullSync decides the run mode. Full sync is chosen when the
// platform has never completed a job, when the last completed job was
// incremental (forcing periodic reconciliation), or when the last full run
// is older than the configured interval.
func (e *SyncEngine) shouldDoFullSync(state *models.SyncState, now time.Time) bool {
	if state == nil || state.CompletedAt == nil {
		return true
	}
	if state.SyncMode == models.SyncModeIncremental {
		return true
	}
	if state.LastFullAt == nil || now.Sub(*state.LastFullAt) > e.opts.FullSyncInterval {
		return true
	}
	return false
}

// tryAcquire takes the in-process run guard for a platform.
func (e *SyncEngine) tryAcquire(platform string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running[platform] {
		return false
	}
	e.running[platform] = true
	return true
}

func (e *SyncEngine) release(platform string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.running, platform)
}

// SyncPlatform runs one sync for a single platform. The returned job is the
// terminal job record; err is non-nil when the run failed or was refused.
func (e *SyncEngine) SyncPlatform(ctx context.Context, platform string, progress chan<- ProgressUpdate) (*models.SyncJob, error) {
	adapter, ok := e.adapters[platform]
	if !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrPlatformUnknown, platform)
	}

	if !e.tryAcquire(platform) {
		return nil, fmt.Errorf("%w: %s", shared.ErrConcurrentSync, platform)
	}
	defer e.release(platform)

	// Advisory store-level guard, in case another process holds the platform.
	running, err := e.jobs.HasRunning(platform)
	if err != nil {
		return nil, fmt.Errorf("failed to check running jobs: %w", err)
	}
	if running {
		return nil, fmt.Errorf("%w: %s has a RUNNING job", shared.ErrConcurrentSync, platform)
	}

	state, err := e.jobs.SyncStateFor(platform)
	if err != nil {
		return nil, fmt.Errorf("failed to read sync state: %w", err)
	}

	now := time.Now()
	mode := models.SyncModeIncremental
	if e.shouldDoFullSync(state, now) {
		mode = models.SyncModeFull
	}

	job := models.NewSyncJob(0, platform, mode)
	if err := e.jobs.Create(job); err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	logger := shared.WithLogger(e.logger, "platform", platform, "mode", mode, "job", job.ID())
	logger.Info("sync started")
	e.sendProgress(progress, decideModeUpdate(platform, mode))

	ctx, cancel := context.WithTimeout(ctx, e.opts.RunTimeout)
	defer cancel()

	cred, err := e.creds.GetValid(platform)
	if err != nil {
		return job, e.fail(job, logger, fmt.Errorf("credential lookup failed: %w", err))
	}

	secret, err := e.vault.Decrypt(cred.EncryptedValue())
	if err != nil {
		return job, e.fail(job, logger, fmt.Errorf("credential decrypt failed: %w", err))
	}
	auth := platforms.Auth{Secret: secret, Metadata: cred.Metadata()}

	run, err := e.paginate(ctx, adapter, auth, mode, state, progress)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return job, e.fail(job, logger, fmt.Errorf("%w: run exceeded %s", shared.ErrTimeout, e.opts.RunTimeout))
		}
		// Nothing was retrieved; the run has no data to degrade to.
		if credErr := e.creds.MarkFailure(cred); credErr != nil {
			logger.Warn("failed to record credential failure", "err", credErr)
		}
		return job, e.fail(job, logger, fmt.Errorf("%w: %v", shared.ErrAdapterFetch, err))
	}

	success, failed, lastItemAt := e.persist(run.items, progress, logger)
	failed += run.normalizeFailures

	// Carry the previous high-water mark forward when this run ingested
	// nothing newer, so the next incremental start never regresses.
	if lastItemAt == nil && state.LastSyncedAt != nil {
		lastItemAt = state.LastSyncedAt
	}

	status := models.JobStatusSuccess
	if failed > 0 {
		status = models.JobStatusPartial
	}

	message := fmt.Sprintf("%d pages fetched, %d items saved, %d failed", run.pages, success, failed)
	if run.earlyStopped {
		message += " (early stop)"
	}
	if run.fetchErr != nil {
		message += fmt.Sprintf("; pagination aborted: %v", run.fetchErr)
	}

	completed := time.Now()
	job.SetStatus(status)
	job.SetItemsTotal(success + failed)
	job.SetItemsSuccess(success)
	job.SetItemsFailed(failed)
	job.SetMessage(message)
	job.SetLastItemAt(lastItemAt)
	job.SetCompletedAt(&completed)

	if err := e.jobs.Update(job); err != nil {
		return job, fmt.Errorf("failed to finalize job: %w", err)
	}
	if err := e.creds.MarkUsed(cred); err != nil {
		logger.Warn("failed to record credential use", "err", err)
	}

	logger.Info("sync finished", "status", status, "saved", success, "failed", failed)
	e.sendProgress(progress, finalizeUpdate(platform, status, success, failed))
	return job, nil
}

// runResult accumulates the pagination loop's output.
type runResult struct {
	items             []models.WatchItem
	pages             int
	normalizeFailures int
	earlyStopped      bool
	fetchErr          error // page fetch error after at least one page (fail-soft)
}

// paginate walks the platform's history feed. It returns an error only when
// the very first fetch fails or the deadline expires; a later fetch error
// degrades the run to the pages already collected.
func (e *SyncEngine) paginate(
	ctx context.Context,
	adapter platforms.Adapter,
	auth platforms.Auth,
	mode string,
	state *models.SyncState,
	progress chan<- ProgressUpdate,
) (*runResult, error) {
	maxPages := e.opts.FullMaxPages
	var start time.Time
	if mode == models.SyncModeIncremental {
		maxPages = e.opts.IncrementalMaxPages
		base := time.Time{}
		if state.LastSyncedAt != nil {
			base = *state.LastSyncedAt
		} else if state.CompletedAt != nil {
			base = *state.CompletedAt
		}
		// Upstream timestamp ordering is not guaranteed monotonic; the
		// lookback overlap trades redundant upserts for correctness.
		start = base.Add(-e.opts.Lookback)
	}

	cursor := adapter.StartCursor(start)
	limiter := rate.NewLimiter(rate.Every(adapter.PageDelay()), 1)
	result := &runResult{}
	dupPages := 0

	for page := 1; page <= maxPages; page++ {
		// Burst 1: page 1 consumes the initial token immediately, every
		// later page waits out the platform's fixed delay. Wait fails only
		// when the context is done or the delay cannot fit before the
		// deadline; both end the run.
		if err := limiter.Wait(ctx); err != nil {
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil, ctx.Err()
			}
			return nil, context.DeadlineExceeded
		}

		fetched, err := adapter.FetchPage(ctx, auth, cursor)
		if err != nil {
			if ctx.Err() != nil {
				return nil, context.DeadlineExceeded
			}
			if result.pages == 0 {
				return nil, err
			}
			result.fetchErr = err
			break
		}
		result.pages++
		e.sendProgress(progress, fetchPageUpdate(adapter.Name(), page, maxPages, len(fetched.Raw)))

		// Zero items is the authoritative end-of-history signal.
		if len(fetched.Raw) == 0 {
			break
		}

		var batch []models.WatchItem
		for _, raw := range fetched.Raw {
			item, err := adapter.Normalize(raw)
			if err != nil {
				result.normalizeFailures++
				continue
			}
			if mode == models.SyncModeIncremental && item.WatchedAt.Before(start) {
				continue
			}
			batch = append(batch, item)
		}

		if mode == models.SyncModeIncremental {
			if len(batch) == 0 {
				// Every item on this page predates the start point; the
				// feed has been paged past the incremental window.
				break
			}

			ids := make([]string, len(batch))
			for i, item := range batch {
				ids[i] = item.ExternalID
			}
			existing, err := e.items.ExistingIDs(adapter.Name(), ids)
			if err != nil {
				return nil, fmt.Errorf("existing-ID check failed: %w", err)
			}

			allExist := true
			for _, id := range ids {
				if !existing[id] {
					allExist = false
					break
				}
			}

			if allExist {
				dupPages++
				if dupPages >= e.opts.EarlyStopThreshold {
					result.items = append(result.items, batch...)
					result.earlyStopped = true
					e.sendProgress(progress, earlyStopUpdate(adapter.Name(), page))
					break
				}
			} else {
				// A single new item extends the frontier and resets patience.
				dupPages = 0
			}
		}

		result.items = append(result.items, batch...)
		cursor = fetched.NextCursor
		if fetched.Done {
			break
		}
	}

	return result, nil
}

// persist upserts every item individually; one bad record never aborts the
// run. Returns success and failure counts and the newest watchedAt saved.
func (e *SyncEngine) persist(items []models.WatchItem, progress chan<- ProgressUpdate, logger *log.Logger) (success, failed int, lastItemAt *time.Time) {
	total := len(items)
	for i, item := range items {
		if err := e.items.Upsert(item); err != nil {
			logger.Warn("item upsert failed", "external_id", item.ExternalID, "err", err)
			failed++
			continue
		}
		success++
		if lastItemAt == nil || item.WatchedAt.After(*lastItemAt) {
			watched := item.WatchedAt
			lastItemAt = &watched
		}
		if (i+1)%25 == 0 || i+1 == total {
			e.sendProgress(progress, persistUpdate(item.Platform, i+1, total))
		}
	}
	return success, failed, lastItemAt
}

// fail writes the terminal FAILED state and returns the cause. SyncState is
// derived only from completed jobs, so a failed run never poisons the next
// run's incremental-start calculation.
func (e *SyncEngine) fail(job *models.SyncJob, logger *log.Logger, cause error) error {
	completed := time.Now()
	job.SetStatus(models.JobStatusFailed)
	job.SetMessage(cause.Error())
	job.SetErrorStack(fmt.Sprintf("%+v", cause))
	job.SetCompletedAt(&completed)

	if err := e.jobs.Update(job); err != nil {
		logger.Error("failed to write FAILED job status", "err", err)
	}

	logger.Error("sync failed", "err", cause)
	return cause
}

// SyncAll sweeps every registered platform that has a valid credential.
// Individual platform failures never abort the sweep.
func (e *SyncEngine) SyncAll(ctx context.Context, progress chan<- ProgressUpdate) []PlatformResult {
	var results []PlatformResult

	for _, platform := range e.Platforms() {
		if _, err := e.creds.GetValid(platform); err != nil {
			e.logger.Info("skipping platform without valid credential", "platform", platform)
			results = append(results, PlatformResult{Platform: platform, Skipped: true})
			continue
		}

		job, err := e.SyncPlatform(ctx, platform, progress)
		results = append(results, PlatformResult{Platform: platform, Job: job, Err: err})
	}

	return results
}
