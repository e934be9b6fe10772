package refresh

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"rfpquote/internal/config"
)

// Reloader republishes the reference snapshot from its backing store.
type Reloader interface {
	Reload() (bool, error)
}

// Service reloads reference data on a fixed interval so admin writes made by
// another process reach this one.
type Service struct {
	reloader Reloader
	interval time.Duration
}

func NewService(reloader Reloader, cfg config.Config) *Service {
	interval := time.Duration(cfg.RefreshIntervalSec) * time.Second
	if interval <= 0 {
		interval = time.Minute
	}
	return &Service{reloader: reloader, interval: interval}
}

func (s *Service) Interval() time.Duration { return s.interval }

// Run blocks until ctx is done. Cycle errors are logged and the loop carries on.
func (s *Service) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.RunCycle()
		}
	}
}

func (s *Service) RunCycle() {
	start := time.Now()
	changed, err := s.reloader.Reload()
	if err != nil {
		log.Error().Err(err).Msg("reference refresh failed")
		return
	}
	if changed {
		log.Info().Dur("took", time.Since(start)).Msg("reference snapshot refreshed")
		return
	}
	log.Debug().Msg("reference unchanged")
}
