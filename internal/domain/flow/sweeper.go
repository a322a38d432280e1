package flow

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// RunCallSweeper purges stale calls every interval until ctx is cancelled.
func (s *Service) RunCallSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.PurgeStaleCalls(ctx, s.now())
			if err != nil {
				log.Error().Err(err).Msg("purge stale calls")
				continue
			}
			if n > 0 {
				log.Debug().Int("removed", n).Msg("purged stale calls")
			}
		}
	}
}
