package lifecycle

import (
	"golang.org/x/sync/errgroup"

	"transaction-recon/internal/config"
)

// Strategy decides whether a claimed file is processed inline or handed to
// an independently scheduled unit of work. Either way the per-file state
// machine runs atomically inside the task.
type Strategy interface {
	Dispatch(task func())
	Wait()
}

// NewStrategy returns the strategy selected by configuration.
func NewStrategy(cfg *config.Config) Strategy {
	if !cfg.Concurrent {
		return sequential{}
	}
	g := &errgroup.Group{}
	g.SetLimit(cfg.MaxConcurrentFiles)
	return &concurrent{g: g}
}

type sequential struct{}

func (sequential) Dispatch(task func()) { task() }
func (sequential) Wait()                {}

type concurrent struct {
	g *errgroup.Group
}

func (c *concurrent) Dispatch(task func()) {
	c.g.Go(func() error {
		task()
		return nil
	})
}

func (c *concurrent) Wait() {
	_ = c.g.Wait()
}
