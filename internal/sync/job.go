package sync

import (
	"context"
	"errors"
	"fmt"
	"sort"
	gosync "sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/nhle/priobox/internal/model"
	"github.com/nhle/priobox/internal/notify"
)

// ErrAllAccountsFailed is returned by RunOnce when no account could be
// synced. The tick should be retried later.
var ErrAllAccountsFailed = errors.New("every account failed to sync")

// SyncState represents the current state of an account sync.
type SyncState int

const (
	SyncIdle SyncState = iota
	SyncRunning
	SyncError
)

func (s SyncState) String() string {
	switch s {
	case SyncRunning:
		return "running"
	case SyncError:
		return "error"
	default:
		return "idle"
	}
}

// SyncStatus holds the sync state of a single account.
type SyncStatus struct {
	AccountID    string
	EmailAddress string
	State        SyncState
	LastSync     time.Time
	Error        error

	// Notified is the number of VIP notifications raised by the last
	// successful sync.
	Notified int
}

// Report summarizes one tick.
type Report struct {
	Accounts int
	Failed   int
	Notified int
}

// JobOptions tune the periodic job.
type JobOptions struct {
	// Interval between ticks. Zero means five minutes.
	Interval time.Duration

	// FetchTimeout bounds one account's sync. Zero means no deadline.
	FetchTimeout time.Duration

	// MaxParallel bounds how many accounts sync at once. Zero means 4.
	MaxParallel int

	// RetryInitial and RetryMax bound the backoff after a tick in which
	// every account failed.
	RetryInitial time.Duration
	RetryMax     time.Duration
}

func (o JobOptions) withDefaults() JobOptions {
	if o.Interval <= 0 {
		o.Interval = 5 * time.Minute
	}
	if o.MaxParallel <= 0 {
		o.MaxParallel = 4
	}
	if o.RetryInitial <= 0 {
		o.RetryInitial = 30 * time.Second
	}
	if o.RetryMax < o.RetryInitial {
		o.RetryMax = o.RetryInitial
	}
	return o
}

// Job periodically syncs every account's inbox and notifies about VIP
// messages that appeared since the previous sync.
type Job struct {
	orch   *Orchestrator
	cache  Cache
	sink   notify.Sink
	logger *log.Logger
	opts   JobOptions

	triggerCh chan struct{}

	mu       gosync.Mutex
	statuses map[string]*SyncStatus
}

// NewJob creates a Job.
func NewJob(orch *Orchestrator, cache Cache, sink notify.Sink, logger *log.Logger, opts JobOptions) *Job {
	return &Job{
		orch:      orch,
		cache:     cache,
		sink:      sink,
		logger:    logger,
		opts:      opts.withDefaults(),
		triggerCh: make(chan struct{}, 1),
		statuses:  make(map[string]*SyncStatus),
	}
}

// Run ticks immediately and then every Interval until ctx is canceled.
// A tick in which every account failed is retried with exponential
// backoff instead of waiting a full interval.
func (j *Job) Run(ctx context.Context) error {
	timer := time.NewTimer(0)
	defer timer.Stop()

	var backoff time.Duration
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
		case <-j.triggerCh:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
		}

		next := j.opts.Interval
		_, err := j.RunOnce(ctx)
		switch {
		case ctx.Err() != nil:
			return nil
		case errors.Is(err, ErrAllAccountsFailed):
			backoff = nextBackoff(backoff, j.opts.RetryInitial, j.opts.RetryMax)
			next = backoff
			j.logger.Warn("sync tick failed, retrying", "in", next, "err", err)
		case err != nil:
			j.logger.Error("sync tick failed", "err", err)
		default:
			backoff = 0
		}

		timer.Reset(next)
	}
}

// nextBackoff doubles prev within [initial, limit].
func nextBackoff(prev, initial, limit time.Duration) time.Duration {
	if prev <= 0 {
		return initial
	}
	next := prev * 2
	if next > limit {
		return limit
	}
	return next
}

// Trigger requests an immediate tick from Run. It never blocks.
func (j *Job) Trigger() {
	select {
	case j.triggerCh <- struct{}{}:
	default:
	}
}

// RunOnce syncs the inbox of every account, in parallel up to
// MaxParallel, and raises one notification per VIP message that was not
// flagged before the sync. One account failing does not affect the
// others. ErrAllAccountsFailed is returned only when every account
// failed.
func (j *Job) RunOnce(ctx context.Context) (Report, error) {
	accounts, err := j.cache.ListAccounts(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("listing accounts: %w", err)
	}

	report := Report{Accounts: len(accounts)}
	if len(accounts) == 0 {
		return report, nil
	}

	var (
		mu   gosync.Mutex
		errs []error
	)

	var g errgroup.Group
	g.SetLimit(j.opts.MaxParallel)
	for _, account := range accounts {
		g.Go(func() error {
			notified, err := j.syncAccount(ctx, account)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Failed++
				errs = append(errs, fmt.Errorf("%s: %w", account.EmailAddress, err))
				return nil
			}
			report.Notified += notified
			return nil
		})
	}
	_ = g.Wait()

	j.logger.Info("sync tick finished",
		"accounts", report.Accounts, "failed", report.Failed, "notified", report.Notified)

	if report.Failed == report.Accounts {
		return report, errors.Join(append([]error{ErrAllAccountsFailed}, errs...)...)
	}
	return report, nil
}

// syncAccount runs one account's inbox sync and notifies the VIP
// messages present after it but not before.
func (j *Job) syncAccount(ctx context.Context, account model.Account) (int, error) {
	j.setStatus(account, SyncRunning, nil, 0)

	if j.opts.FetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.opts.FetchTimeout)
		defer cancel()
	}

	before, err := j.vipKeys(ctx, account.ID)
	if err != nil {
		j.setStatus(account, SyncError, err, 0)
		return 0, err
	}

	if err := j.orch.SyncInbox(ctx, account); err != nil {
		j.logger.Warn("account sync failed", "account", account.ID, "email", account.EmailAddress, "err", err)
		j.setStatus(account, SyncError, err, 0)
		return 0, err
	}

	after, err := j.cache.ListVipMessages(ctx, account.ID)
	if err != nil {
		j.setStatus(account, SyncError, err, 0)
		return 0, err
	}

	notified := 0
	for _, msg := range after {
		if _, known := before[msg.Key()]; known {
			continue
		}
		if err := j.sink.Notify(ctx, msg); err != nil {
			j.logger.Warn("notification failed", "account", account.ID, "message", msg.ID, "err", err)
			continue
		}
		notified++
	}

	j.setStatus(account, SyncIdle, nil, notified)
	return notified, nil
}

// vipKeys returns the keys of the account's cached VIP messages.
func (j *Job) vipKeys(ctx context.Context, accountID string) (map[string]struct{}, error) {
	msgs, err := j.cache.ListVipMessages(ctx, accountID)
	if err != nil {
		return nil, err
	}
	keys := make(map[string]struct{}, len(msgs))
	for _, m := range msgs {
		keys[m.Key()] = struct{}{}
	}
	return keys, nil
}

// setStatus updates the sync status of an account.
func (j *Job) setStatus(account model.Account, state SyncState, err error, notified int) {
	j.mu.Lock()
	defer j.mu.Unlock()

	status, ok := j.statuses[account.ID]
	if !ok {
		status = &SyncStatus{AccountID: account.ID}
		j.statuses[account.ID] = status
	}

	status.EmailAddress = account.EmailAddress
	status.State = state
	status.Error = err
	if state == SyncIdle && err == nil {
		status.LastSync = time.Now()
		status.Notified = notified
	}
}

// Statuses returns the sync status of every account seen so far, ordered
// by email address.
func (j *Job) Statuses() []SyncStatus {
	j.mu.Lock()
	defer j.mu.Unlock()

	statuses := make([]SyncStatus, 0, len(j.statuses))
	for _, s := range j.statuses {
		statuses = append(statuses, *s)
	}
	sort.Slice(statuses, func(a, b int) bool {
		return statuses[a].EmailAddress < statuses[b].EmailAddress
	})
	return statuses
}
