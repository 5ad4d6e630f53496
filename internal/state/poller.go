package state

import (
	"context"
	"sync"
	"time"
)

// Poller refreshes a Store on a fixed interval
type Poller struct {
	store    *Store
	interval time.Duration
	timeout  time.Duration

	done chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

// NewPoller creates a poller. An interval of 0 disables periodic refreshes;
// Start then only performs the initial refresh.
func NewPoller(store *Store, interval, timeout time.Duration) *Poller {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Poller{
		store:    store,
		interval: interval,
		timeout:  timeout,
		done:     make(chan struct{}),
	}
}

// Start begins the polling loop
func (p *Poller) Start() {
	p.wg.Add(1)
	go p.pollLoop()
}

// Stop stops the polling loop and waits for it to exit
func (p *Poller) Stop() {
	p.once.Do(func() { close(p.done) })
	p.wg.Wait()
}

func (p *Poller) pollLoop() {
	defer p.wg.Done()

	p.refresh()
	if p.interval <= 0 {
		return
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.done:
			return
		case <-ticker.C:
			p.refresh()
		}
	}
}

func (p *Poller) refresh() {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	go func() {
		select {
		case <-p.done:
			cancel()
		case <-ctx.Done():
		}
	}()

	_, _ = p.store.Refresh(ctx)
}
