package sessions

import (
	"log/slog"
	"time"
)

const defaultPruneInterval = 10 * time.Minute

type Pruner interface {
	Prune() int
}

// Worker periodically drops expired onboarding sessions from memory
type Worker struct {
	sessions Pruner
	interval time.Duration
	logger   *slog.Logger

	stopCh chan struct{}
	doneCh chan struct{}
}

func NewWorker(sessions Pruner, interval time.Duration, logger *slog.Logger) *Worker {
	if interval <= 0 {
		interval = defaultPruneInterval
	}
	return &Worker{
		sessions: sessions,
		interval: interval,
		logger:   logger,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

func (w *Worker) Name() string {
	return "sessions"
}

func (w *Worker) Start() error {
	w.logger.Info("Starting session prune worker", "interval", w.interval)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				w.logger.Error("Panic in session prune worker goroutine", "panic", r)
			}
		}()
		w.run()
	}()
	return nil
}

func (w *Worker) Stop() {
	w.logger.Info("Stopping session prune worker")
	close(w.stopCh)
	<-w.doneCh
}

func (w *Worker) run() {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if removed := w.sessions.Prune(); removed > 0 {
				w.logger.Debug("Expired sessions pruned", "count", removed)
			}
		case <-w.stopCh:
			return
		}
	}
}
