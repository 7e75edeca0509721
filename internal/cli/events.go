package cli

import (
	"github.com/starexec/jobview/internal/events"
	"github.com/starexec/jobview/internal/logging"
)

// watchFetchEvents logs the fetch outcomes published on bus until stop is
// called. stop returns once every buffered event has been logged.
func watchFetchEvents(bus *events.EventBus, log *logging.Logger) (stop func()) {
	ch := bus.SubscribeAll()
	done := make(chan struct{})
	go func() {
		defer close(done)
		logFetchEvents(ch, log)
	}()
	return func() {
		bus.UnsubscribeAll(ch)
		<-done
		if n := bus.GetDroppedEventCount(); n > 0 {
			log.Debug().Int64("dropped", n).Msg("Fetch events dropped while the log lagged behind")
		}
	}
}

// logFetchEvents logs fetch outcomes from the bus until ch is closed.
// Superseded responses go to debug, failures of the current space to warn.
func logFetchEvents(ch <-chan events.Event, log *logging.Logger) {
	for ev := range ch {
		switch e := ev.(type) {
		case *events.FetchEvent:
			switch e.Type() {
			case events.EventFetchSuperseded:
				log.Debug().Str("scope", e.Scope).Str("space", e.Token).Str("request_id", e.RequestID).
					Dur("elapsed", e.Elapsed).Msg("Dropped response for a space that is no longer selected")
			case events.EventFetchFailed:
				log.Warn().Err(e.Error).Str("scope", e.Scope).Str("space", e.Token).Msg("Fetch failed")
			}
		case *events.SelectionEvent:
			log.Debug().Str("previous", e.Previous).Str("current", e.Current).Uint64("generation", e.Generation).
				Msg("Selection changed")
		}
	}
}
