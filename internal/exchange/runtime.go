package exchange

import (
	"context"
	"time"

	"gungnir/internal/oracle"

	"github.com/rs/zerolog"
	tomb "gopkg.in/tomb.v2"
)

const commandBacklog = 128

// Runtime drives an Exchange from a single goroutine: submitted commands
// and oracle ticks interleave on one loop, so no exchange state is ever
// touched concurrently. Per-instrument sharding means one Runtime per
// instrument.
type Runtime struct {
	x    *Exchange
	feed oracle.Feed
	log  zerolog.Logger

	commands chan func(*Exchange)
}

func NewRuntime(x *Exchange, feed oracle.Feed, log zerolog.Logger) *Runtime {
	return &Runtime{
		x:        x,
		feed:     feed,
		log:      log,
		commands: make(chan func(*Exchange), commandBacklog),
	}
}

// Run consumes commands and tick timers until the context dies.
func (r *Runtime) Run(ctx context.Context) error {
	t, ctx := tomb.WithContext(ctx)

	t.Go(func() error {
		ticker := time.NewTicker(r.x.cfg.TickInterval.Std())
		defer ticker.Stop()

		r.log.Info().Dur("tick", r.x.cfg.TickInterval.Std()).Msg("runtime started")
		for {
			select {
			case <-t.Dying():
				r.log.Info().Msg("runtime shutting down")
				return nil
			case fn := <-r.commands:
				fn(r.x)
			case now := <-ticker.C:
				sample, ok := r.feed.Sample(now)
				if !ok {
					continue
				}
				if _, err := r.x.Tick(now, sample); err != nil {
					r.log.Warn().Err(err).Msg("tick skipped")
				}
			}
		}
	})

	return t.Wait()
}

// Do runs fn on the owning goroutine and waits for it to finish. All
// external access to the Exchange goes through here once Run is up.
func (r *Runtime) Do(fn func(*Exchange)) {
	done := make(chan struct{})
	r.commands <- func(x *Exchange) {
		defer close(done)
		fn(x)
	}
	<-done
}
