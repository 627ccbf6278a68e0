// Package scheduler serializes outbound fetches to the source wiki across
// every process that shares the coordination store. Turn-taking goes through
// a shared FIFO queue, mutual exclusion through set-if-absent lock keys, and
// the minimum inter-request delay through a shared last-fetch timestamp.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/voiddp/ak-events-tracker/internal/models"
	"github.com/voiddp/ak-events-tracker/internal/store"
)

var (
	// ErrBatchJobActive rejects interactive callers while the scheduled
	// batch job holds the active flag.
	ErrBatchJobActive = errors.New("scheduler: batch job in progress")
	// ErrQueueTimeout means the caller gave up waiting for its queue turn.
	ErrQueueTimeout = errors.New("scheduler: timed out waiting for queue turn")
	// ErrLockUnavailable means the fetch lock could not be acquired once at
	// the head of the queue. Transient.
	ErrLockUnavailable = errors.New("scheduler: fetch lock unavailable")
)

// UpstreamError reports a non-2xx response from the source wiki.
type UpstreamError struct {
	StatusCode int
	URL        string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("scheduler: upstream returned %d for %s", e.StatusCode, e.URL)
}

// Doer is the HTTP client surface the scheduler needs.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config tunes the scheduler. Zero values fall back to production defaults.
type Config struct {
	KeyPrefix       string        // namespace for all coordination keys
	RateFloor       time.Duration // system-wide minimum delay between requests
	PollInterval    time.Duration // queue head polling interval
	InteractiveWait time.Duration // queue wait ceiling for interactive callers
	BatchWait       time.Duration // queue wait ceiling for the batch job
	LockTTL         time.Duration // interactive lock expiry
	BatchLockTTL    time.Duration // batch lock expiry, outlives any single fetch
	BatchFlagTTL    time.Duration // batch-active flag expiry, renewed per fetch
	UserAgent       string
}

func (c *Config) applyDefaults() {
	if c.KeyPrefix == "" {
		c.KeyPrefix = "prts:fetch"
	}
	if c.RateFloor == 0 {
		c.RateFloor = 3 * time.Second
	}
	if c.PollInterval == 0 {
		c.PollInterval = 100 * time.Millisecond
	}
	if c.InteractiveWait == 0 {
		c.InteractiveWait = 10 * time.Second
	}
	if c.BatchWait == 0 {
		c.BatchWait = 60 * time.Second
	}
	if c.LockTTL == 0 {
		c.LockTTL = 30 * time.Second
	}
	if c.BatchLockTTL == 0 {
		c.BatchLockTTL = 5 * time.Minute
	}
	if c.BatchFlagTTL == 0 {
		c.BatchFlagTTL = 10 * time.Minute
	}
	if c.UserAgent == "" {
		c.UserAgent = "ak-events-tracker/1.0 (event reward aggregation; respects rate limits)"
	}
}

const anonymousSession = "anonymous"

// Batch sessions are marked in the queue so a departing batch session can
// tell whether any other batch session is still waiting before it clears the
// batch flag.
const batchQueuePrefix = "b:"

func queueEntry(session string, batch bool) string {
	if batch {
		return batchQueuePrefix + session
	}
	return session
}

// Scheduler coordinates fetches through a shared Store. All mutable state
// lives in the store so separate processes see the same queue and locks.
type Scheduler struct {
	store  store.Store
	client Doer
	cfg    Config
}

func New(st store.Store, client Doer, cfg Config) *Scheduler {
	cfg.applyDefaults()
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Scheduler{store: st, client: client, cfg: cfg}
}

func (s *Scheduler) key(suffix string) string { return s.cfg.KeyPrefix + ":" + suffix }

func (s *Scheduler) queueKey() string     { return s.key("queue") }
func (s *Scheduler) lastFetchKey() string { return s.key("last") }
func (s *Scheduler) batchFlagKey() string { return s.key("job") }

func (s *Scheduler) lockKey(batch bool) string {
	if batch {
		return s.key("lock:batch")
	}
	return s.key("lock")
}

// Fetch performs one rate-limited GET of url on behalf of ticket. All
// failures are terminal for this call; the caller owns any retry decision.
func (s *Scheduler) Fetch(ctx context.Context, url string, ticket models.SchedulerTicket) ([]byte, error) {
	if url == "" {
		return nil, errors.New("scheduler: empty url")
	}
	session := ticket.SessionID
	if session == "" {
		session = anonymousSession
	}

	if !ticket.IsBatchJob {
		if _, err := s.store.Get(ctx, s.batchFlagKey()); err == nil {
			return nil, ErrBatchJobActive
		} else if !errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("scheduler: reading batch flag: %w", err)
		}
	} else {
		// Renewed on every fetch within the job; a crashed job self-heals
		// when the flag expires.
		if err := s.store.Set(ctx, s.batchFlagKey(), session, s.cfg.BatchFlagTTL); err != nil {
			return nil, fmt.Errorf("scheduler: setting batch flag: %w", err)
		}
	}

	entry := queueEntry(session, ticket.IsBatchJob)
	if err := s.store.RPush(ctx, s.queueKey(), entry); err != nil {
		return nil, fmt.Errorf("scheduler: enqueue: %w", err)
	}
	defer s.leaveQueue(entry, ticket.IsBatchJob)

	if err := s.awaitTurn(ctx, entry, ticket.IsBatchJob); err != nil {
		return nil, err
	}

	batch := ticket.IsBatchJob
	lockTTL := s.cfg.LockTTL
	if batch {
		lockTTL = s.cfg.BatchLockTTL
	}
	ok, err := s.store.SetNX(ctx, s.lockKey(batch), session, lockTTL)
	if err != nil {
		return nil, fmt.Errorf("scheduler: acquiring lock: %w", err)
	}
	if !ok {
		return nil, ErrLockUnavailable
	}
	defer s.releaseLock(batch)

	if err := s.awaitRateFloor(ctx, ticket.RateLimit); err != nil {
		return nil, err
	}

	return s.doGet(ctx, url)
}

// awaitTurn polls until entry reaches the head of the queue or the wait
// ceiling elapses.
func (s *Scheduler) awaitTurn(ctx context.Context, entry string, batch bool) error {
	wait := s.cfg.InteractiveWait
	if batch {
		wait = s.cfg.BatchWait
	}
	deadline := time.Now().Add(wait)

	for {
		head, err := s.store.LIndex(ctx, s.queueKey(), 0)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("scheduler: reading queue head: %w", err)
		}
		if err == nil && head == entry {
			return nil
		}
		if time.Now().After(deadline) {
			return ErrQueueTimeout
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.cfg.PollInterval):
		}
	}
}

// awaitRateFloor sleeps out whatever remains of the effective rate limit
// since the shared last-fetch timestamp.
func (s *Scheduler) awaitRateFloor(ctx context.Context, requested time.Duration) error {
	limit := requested
	if limit < s.cfg.RateFloor {
		limit = s.cfg.RateFloor
	}
	raw, err := s.store.Get(ctx, s.lastFetchKey())
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("scheduler: reading last fetch time: %w", err)
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil
	}
	elapsed := time.Since(time.UnixMilli(ms))
	if remaining := limit - elapsed; remaining > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(remaining):
		}
	}
	return nil
}

func (s *Scheduler) doGet(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("scheduler: building request: %w", err)
	}
	req.Header.Set("User-Agent", s.cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/json;q=0.9,*/*;q=0.8")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("scheduler: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &UpstreamError{StatusCode: resp.StatusCode, URL: url}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("scheduler: reading body: %w", err)
	}

	now := strconv.FormatInt(time.Now().UnixMilli(), 10)
	if err := s.store.Set(context.WithoutCancel(ctx), s.lastFetchKey(), now, 0); err != nil {
		log.Printf("[scheduler] failed to record last fetch time: %v", err)
	}
	return body, nil
}

// leaveQueue removes one occurrence of entry from the queue and, for a batch
// session, clears the batch flag once no batch-marked entry from any session
// remains queued, so interactive callers regain access before the flag's
// natural expiry. Cleanup runs on every exit path, success or failure.
func (s *Scheduler) leaveQueue(entry string, batch bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.store.LRem(ctx, s.queueKey(), 1, entry); err != nil {
		log.Printf("[scheduler] failed to leave queue: %v", err)
	}
	if !batch {
		return
	}
	remaining, err := s.store.LRange(ctx, s.queueKey(), 0, -1)
	if err != nil {
		log.Printf("[scheduler] failed to scan queue for batch sessions: %v", err)
		return
	}
	for _, v := range remaining {
		if strings.HasPrefix(v, batchQueuePrefix) {
			return
		}
	}
	if err := s.store.Del(ctx, s.batchFlagKey()); err != nil {
		log.Printf("[scheduler] failed to clear batch flag: %v", err)
	}
}

// releaseLock deletes the mutual-exclusion key. Unconditional on exit.
func (s *Scheduler) releaseLock(batch bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.store.Del(ctx, s.lockKey(batch)); err != nil {
		log.Printf("[scheduler] failed to release lock: %v", err)
	}
}
