package quota

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"server/internal/domain"
	"server/internal/infra"
)

// Decision is the outcome of one admission check.
type Decision struct {
	Allowed   bool
	Used      int
	Remaining int
	Limit     int
}

// Options configures the ledger.
type Options struct {
	DailyLimit int
	// FailClosed denies requests when the usage store is unreachable.
	// The default is to fail open: a storage outage should not take
	// generation down with it.
	FailClosed bool
	Logger     *infra.Logger
	Now        func() time.Time
}

// Ledger gates generation requests on a per-user daily counter. The check
// and the increment are one atomic operation; an admitted request that later
// fails downstream still consumed its unit, since the quota protects call
// volume rather than success volume.
type Ledger struct {
	usage      domain.UsageRepository
	limit      int
	failClosed bool
	logger     *infra.Logger
	now        func() time.Time
}

// NewLedger constructs a ledger over the given usage repository.
func NewLedger(usage domain.UsageRepository, opts Options) *Ledger {
	limit := opts.DailyLimit
	if limit < 1 {
		limit = 10
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	return &Ledger{
		usage:      usage,
		limit:      limit,
		failClosed: opts.FailClosed,
		logger:     logger,
		now:        now,
	}
}

// Day formats t as the UTC calendar day the ledger counts against.
func Day(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// CheckAndAdmit admits or denies one generation call for userID. A denied
// decision does not mutate the counter. The returned error is non-nil only
// in fail-closed mode when the store is unreachable.
func (l *Ledger) CheckAndAdmit(ctx context.Context, userID string) (Decision, error) {
	day := Day(l.now())

	used, allowed, err := l.usage.IncrementDaily(ctx, userID, day, l.limit)
	if err != nil {
		if l.failClosed {
			return Decision{Limit: l.limit}, fmt.Errorf("quota check: %w", err)
		}
		l.logger.Error().
			Err(err).
			Str("user_id", userID).
			Msg("quota: usage store unreachable, admitting request")
		return Decision{Allowed: true, Remaining: l.limit, Limit: l.limit}, nil
	}

	if !allowed {
		return Decision{Allowed: false, Used: used, Remaining: 0, Limit: l.limit}, nil
	}

	return Decision{Allowed: true, Used: used, Remaining: l.limit - used, Limit: l.limit}, nil
}

// Limit returns the configured daily ceiling.
func (l *Ledger) Limit() int {
	return l.limit
}
