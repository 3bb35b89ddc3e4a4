package visibility

import (
	"context"
	"log/slog"
	"os"
	"os/signal"

	domainauth "github.com/bellsbank/bellsbank/internal/domain/auth"
)

// Signal reports the process as visible whenever it receives one of its
// resume signals (SIGCONT on unix: the job was brought back to the foreground).
type Signal struct {
	*Manual
	signals []os.Signal
	logger  *slog.Logger
}

// NewSignal returns a Signal source listening for the platform's resume signals.
func NewSignal(logger *slog.Logger) *Signal {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Signal{
		Manual:  NewManual(),
		signals: resumeSignals(),
		logger:  logger.With("component", "visibility_signal"),
	}
}

// Run forwards resume signals until ctx is done, then releases every watcher.
func (s *Signal) Run(ctx context.Context) error {
	defer s.Close()
	if len(s.signals) == 0 {
		<-ctx.Done()
		return nil
	}

	ch := make(chan os.Signal, 1)
	signal.Notify(ch, s.signals...)
	defer signal.Stop(ch)

	for {
		select {
		case <-ctx.Done():
			return nil
		case sig := <-ch:
			s.logger.DebugContext(ctx, "resume signal received", "signal", sig.String())
			s.resume()
		}
	}
}

// resume reports a hidden→visible transition. A resume signal implies the
// process was suspended, so both edges are delivered.
func (s *Signal) resume() {
	s.Set(domainauth.VisibilityHidden)
	s.Set(domainauth.VisibilityVisible)
}
