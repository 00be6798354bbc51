package lifecycle

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"transaction-recon/internal/config"
	"transaction-recon/pkg/logger"
)

// Watcher polls the inbound layout <root>/<region>/<system> and hands every
// accepted file to the controller. One polling loop runs per system
// directory discovered at startup.
type Watcher struct {
	cfg  *config.Config
	ctrl *Controller
	log  *logrus.Logger
}

func NewWatcher(cfg *config.Config, ctrl *Controller) *Watcher {
	return &Watcher{cfg: cfg, ctrl: ctrl, log: logger.GetLogger()}
}

// Run blocks until ctx is cancelled or a watch loop fails.
func (w *Watcher) Run(ctx context.Context) error {
	dirs, err := w.systemDirs()
	if err != nil {
		return err
	}
	if len(dirs) == 0 {
		w.log.WithField("root", w.cfg.WatchRoot).Warn("no system directories to watch")
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, dir := range dirs {
		dir := dir
		g.Go(func() error {
			return w.watchLoop(ctx, dir)
		})
	}
	return g.Wait()
}

// systemDirs enumerates every <root>/<region>/<system> directory.
func (w *Watcher) systemDirs() ([]string, error) {
	regions, err := os.ReadDir(w.cfg.WatchRoot)
	if err != nil {
		return nil, err
	}

	var dirs []string
	for _, region := range regions {
		if !region.IsDir() {
			continue
		}
		regionPath := filepath.Join(w.cfg.WatchRoot, region.Name())
		systems, err := os.ReadDir(regionPath)
		if err != nil {
			w.log.WithError(err).WithField("region", region.Name()).Warn("reading region directory failed")
			continue
		}
		for _, system := range systems {
			if system.IsDir() {
				dirs = append(dirs, filepath.Join(regionPath, system.Name()))
			}
		}
	}
	return dirs, nil
}

func (w *Watcher) watchLoop(ctx context.Context, dir string) error {
	log := w.log.WithField("dir", dir)
	log.Info("watching directory")

	w.scan(dir)

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.scan(dir)
		}
	}
}

func (w *Watcher) scan(dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		w.log.WithError(err).WithField("dir", dir).Warn("scan failed")
		return
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if w.cfg.AcceptsExtension(filepath.Ext(e.Name())) {
			w.ctrl.HandleFile(filepath.Join(dir, e.Name()))
		}
	}
}
