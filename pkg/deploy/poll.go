package deploy

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// Poll repeatedly fetches a remote value until present accepts it, sleeping
// interval between attempts. Backend-side provisioning is asynchronous, so
// a property can legitimately be absent for a while after creation. Fetch
// errors abort immediately; exhausting all attempts without an accepted
// value is a fatal error.
func Poll(ctx context.Context, attempts int, interval time.Duration,
	fetch func(context.Context) (string, error), present func(string) bool) (string, error) {

	for attempt := 1; attempt <= attempts; attempt++ {
		value, err := fetch(ctx)
		if err != nil {
			return "", err
		}
		if present(value) {
			return value, nil
		}
		if attempt == attempts {
			break
		}

		log.Info().
			Int("attempt", attempt).
			Int("max_attempts", attempts).
			Dur("interval", interval).
			Msg("value not ready, waiting")

		select {
		case <-time.After(interval):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	return "", NewFatalError(fmt.Sprintf("value not available after %d attempts", attempts), nil)
}
