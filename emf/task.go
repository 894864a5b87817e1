package emf

import (
	"context"
	"sync"
	"time"

	"github.com/anthonydresser/fluent-bit-khisto/log"
)

// ScheduledTask runs work every interval, and once more when stopped.
type ScheduledTask struct {
	interval time.Duration
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
	work     func() error
	stopOnce sync.Once
}

func NewScheduledTask(interval time.Duration, target func() error) *ScheduledTask {
	ctx, cancel := context.WithCancel(context.Background())
	return &ScheduledTask{
		interval: interval,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
		work:     target,
	}
}

func (st *ScheduledTask) Start() {
	ticker := time.NewTicker(st.interval)
	go func() {
		defer ticker.Stop()
		defer close(st.done)

		for {
			select {
			case <-st.ctx.Done():
				return
			case <-ticker.C:
				if err := st.work(); err != nil {
					log.Error().Printf("Encountered error during flush: %v", err)
				}
			}
		}
	}()
}

// Stop waits for a running tick to finish, then runs work a last time and
// returns its error. It must follow Start. Later calls do nothing.
func (st *ScheduledTask) Stop() error {
	var err error
	st.stopOnce.Do(func() {
		st.cancel()
		<-st.done
		err = st.work()
	})
	return err
}
