package workflow

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"lsd-bridge/pkg/quote"
)

// DefaultDebounce is how long a live-quote input must stay unchanged
// before a request is issued.
const DefaultDebounce = 500 * time.Millisecond

// LiveQuoter coalesces a stream of input edits into quote requests.
// Each Update supersedes the previous one: a pending debounce timer is
// cancelled, an in-flight request's result is discarded. At most one
// request is outstanding per final input.
type LiveQuoter struct {
	quoter   Quoter
	debounce time.Duration
	onResult func(req quote.Request, result *quote.Result, err error)
	logger   *zap.Logger

	mu     sync.Mutex
	gen    uint64
	cancel context.CancelFunc
}

// NewLiveQuoter wires a live quoter. onResult is invoked only for the
// most recent Update; it runs on the quoter's goroutine.
func NewLiveQuoter(quoter Quoter, debounce time.Duration, onResult func(req quote.Request, result *quote.Result, err error), logger *zap.Logger) *LiveQuoter {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &LiveQuoter{quoter: quoter, debounce: debounce, onResult: onResult, logger: logger}
}

// Update registers a new input, superseding any pending or in-flight
// request.
func (l *LiveQuoter) Update(ctx context.Context, req quote.Request) {
	l.mu.Lock()
	l.gen++
	gen := l.gen
	if l.cancel != nil {
		l.cancel()
	}
	reqCtx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	l.mu.Unlock()

	go l.run(reqCtx, gen, req)
}

// Cancel drops any pending or in-flight request without issuing a new
// one.
func (l *LiveQuoter) Cancel() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.gen++
	if l.cancel != nil {
		l.cancel()
		l.cancel = nil
	}
}

func (l *LiveQuoter) run(ctx context.Context, gen uint64, req quote.Request) {
	timer := time.NewTimer(l.debounce)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return
	case <-timer.C:
	}

	result, err := l.quoter.RequestQuote(ctx, req)

	if !l.current(gen) || ctx.Err() != nil {
		l.logger.Debug("discarding stale quote result", zap.String("amount", req.Amount))
		return
	}
	l.onResult(req, result, err)
}

func (l *LiveQuoter) current(gen uint64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.gen == gen
}
