package workflow

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultBalanceInterval is the balance watcher's refresh period.
const DefaultBalanceInterval = 10 * time.Second

// BalanceWatcher refreshes balances for the active account on a fixed
// interval. Starting for a new account stops the previous cycle first,
// so at most one cycle runs at a time.
type BalanceWatcher struct {
	refresher BalanceRefresher
	interval  time.Duration
	logger    *zap.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	account string
}

// NewBalanceWatcher wires a watcher over a refresher.
func NewBalanceWatcher(refresher BalanceRefresher, interval time.Duration, logger *zap.Logger) *BalanceWatcher {
	if interval <= 0 {
		interval = DefaultBalanceInterval
	}
	return &BalanceWatcher{refresher: refresher, interval: interval, logger: logger}
}

// Start begins a refresh cycle for account, replacing any running cycle.
// An empty account only stops the current cycle. The first refresh fires
// immediately.
func (w *BalanceWatcher) Start(ctx context.Context, account string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.cancel != nil {
		w.cancel()
		w.cancel = nil
	}
	w.account = account
	if account == "" {
		return
	}

	cycleCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.logger.Debug("starting balance watcher", zap.String("account", account))
	go w.loop(cycleCtx)
}

// Stop halts the running cycle, if any.
func (w *BalanceWatcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel != nil {
		w.cancel()
		w.cancel = nil
	}
}

// Account returns the account of the current cycle.
func (w *BalanceWatcher) Account() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.account
}

func (w *BalanceWatcher) loop(ctx context.Context) {
	w.refresher.Refresh(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.refresher.Refresh(ctx)
		}
	}
}
