package retry

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/viant/memindex/embed"
	"github.com/viant/memindex/store"
)

// DefaultMaxRetries is the attempt budget before a record becomes failed.
const DefaultMaxRetries = 3

// DefaultBackoff escalates the wait between attempts by prior attempt count.
var DefaultBackoff = []time.Duration{1 * time.Minute, 5 * time.Minute, 15 * time.Minute}

// Manager drives retry processing over one store and one loaded embedding
// generator. The generator is reused across the whole batch; reloading the
// model per record would multiply wall-clock cost by the batch size.
type Manager struct {
	store      *store.Store
	generator  *embed.Generator
	maxRetries int
	backoff    []time.Duration
	basePath   string
	readFile   func(string) ([]byte, error)
	logger     *slog.Logger
	now        func() time.Time
}

// Option customizes a Manager.
type Option func(*Manager)

// WithMaxRetries overrides the attempt budget.
func WithMaxRetries(n int) Option { return func(m *Manager) { m.maxRetries = n } }

// WithBackoff overrides the escalating backoff schedule.
func WithBackoff(schedule []time.Duration) Option { return func(m *Manager) { m.backoff = schedule } }

// WithBasePath resolves relative record file paths against dir.
func WithBasePath(dir string) Option { return func(m *Manager) { m.basePath = dir } }

// WithFileReader overrides source-content loading; tests use it to inject
// read failures.
func WithFileReader(read func(string) ([]byte, error)) Option {
	return func(m *Manager) { m.readFile = read }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option { return func(m *Manager) { m.logger = l } }

// WithClock overrides the time source for backoff decisions.
func WithClock(now func() time.Time) Option { return func(m *Manager) { m.now = now } }

// New creates a Manager over s and generator.
func New(s *store.Store, generator *embed.Generator, opts ...Option) *Manager {
	m := &Manager{
		store:      s,
		generator:  generator,
		maxRetries: DefaultMaxRetries,
		backoff:    DefaultBackoff,
		readFile:   os.ReadFile,
		logger:     slog.Default(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Result summarizes one ProcessRetryQueue pass.
type Result struct {
	Processed int // attempts made
	Succeeded int // transitioned to success
	Retried   int // failed again, retries remain
	Exhausted int // transitioned to failed
	Skipped   int // backoff window not yet elapsed
}

// ProcessRetryQueue re-attempts embedding for up to limit pending/retry
// records, preferring those with fewer prior attempts. Backoff filtering
// happens before the limit is applied: records whose window has not elapsed
// are counted as skipped and never consume a batch slot, so an eligible
// record with many prior attempts cannot be starved by deferred ones. A
// source file that cannot be read is an attempt failure in its own right
// (io-prefixed reason), distinct from embedding failure but counted against
// the same budget.
func (m *Manager) ProcessRetryQueue(ctx context.Context, limit int) (*Result, error) {
	queue, err := m.store.ListRetryQueue(ctx)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = store.DefaultLimit
	}
	result := &Result{}
	for _, record := range queue {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if !m.eligible(record) {
			result.Skipped++
			continue
		}
		if result.Processed >= limit {
			break
		}
		result.Processed++
		status, err := m.attempt(ctx, record)
		if err != nil {
			return result, err
		}
		switch status {
		case store.StatusSuccess:
			result.Succeeded++
		case store.StatusRetry:
			result.Retried++
		case store.StatusFailed:
			result.Exhausted++
		}
	}
	return result, nil
}

// eligible applies the backoff window: a record with n prior attempts waits
// for the nth schedule entry (the last entry repeats) since its last attempt.
func (m *Manager) eligible(record *store.MemoryRecord) bool {
	if record.RetryCount == 0 || record.LastRetryAt == nil {
		return true
	}
	idx := record.RetryCount - 1
	if idx >= len(m.backoff) {
		idx = len(m.backoff) - 1
	}
	return m.now().Sub(*record.LastRetryAt) >= m.backoff[idx]
}

// attempt runs one embedding attempt and persists the resulting transition.
// Attempt errors become record state; only store failures propagate.
func (m *Manager) attempt(ctx context.Context, record *store.MemoryRecord) (store.Status, error) {
	path := record.FilePath
	if m.basePath != "" && !filepath.IsAbs(path) {
		path = filepath.Join(m.basePath, path)
	}
	content, err := m.readFile(path)
	if err != nil {
		return m.fail(ctx, record, fmt.Sprintf("io: %v", err))
	}
	vec, err := m.generator.Generate(ctx, string(content))
	if err != nil {
		return m.fail(ctx, record, fmt.Sprintf("embed: %v", err))
	}
	if vec == nil {
		// Blank source cannot converge on retry either; spend an attempt.
		return m.fail(ctx, record, "embed: content is empty")
	}
	if err := m.store.MarkEmbedded(ctx, record.ID, m.generator.Model(), vec, m.now()); err != nil {
		return "", err
	}
	m.logger.Debug("embedding retry succeeded", "id", record.ID, "attempts", record.RetryCount)
	return store.StatusSuccess, nil
}

func (m *Manager) fail(ctx context.Context, record *store.MemoryRecord, reason string) (store.Status, error) {
	status, err := m.store.MarkRetryFailure(ctx, record.ID, reason, m.maxRetries, m.now())
	if err != nil {
		return "", err
	}
	if status == store.StatusFailed {
		m.logger.Warn("embedding permanently failed", "id", record.ID, "reason", reason)
	} else {
		m.logger.Debug("embedding attempt failed", "id", record.ID, "reason", reason)
	}
	return status, nil
}

// ResetForRetry returns a failed record to the queue with a cleared attempt
// count. It reports false when the record is not currently failed.
func (m *Manager) ResetForRetry(ctx context.Context, id int64) (bool, error) {
	return m.store.ResetForRetry(ctx, id)
}

// Stats reports queue composition without side effects.
type Stats struct {
	Pending  int
	Retrying int
	Failed   int
	Success  int
	Total    int
}

// GetRetryStats counts records per lifecycle state.
func (m *Manager) GetRetryStats(ctx context.Context) (*Stats, error) {
	counts, err := m.store.CollectStats(ctx)
	if err != nil {
		return nil, err
	}
	return &Stats{
		Pending:  counts.ByStatus[store.StatusPending],
		Retrying: counts.ByStatus[store.StatusRetry],
		Failed:   counts.ByStatus[store.StatusFailed],
		Success:  counts.ByStatus[store.StatusSuccess],
		Total:    counts.Total,
	}, nil
}

// GetFailedEmbeddings lists permanently failed records, oldest first.
func (m *Manager) GetFailedEmbeddings(ctx context.Context) ([]*store.MemoryRecord, error) {
	return m.store.ListFailed(ctx)
}
