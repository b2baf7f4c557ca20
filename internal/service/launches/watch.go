package launches

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/animus-labs/trialflow/internal/flowapi"
)

var errStillRunning = errors.New("execution still running")

// ErrWatchTimeout reports an execution that did not finish within MaxElapsed.
var ErrWatchTimeout = errors.New("execution did not finish in time")

type WatchOptions struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	// MaxElapsed bounds the whole watch; zero waits until ctx is done.
	MaxElapsed time.Duration
	// OnChange is called whenever the execution or a node changes phase.
	OnChange func(ExecutionStatus)
}

func (o WatchOptions) backOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	if o.InitialInterval > 0 {
		b.InitialInterval = o.InitialInterval
	}
	if o.MaxInterval > 0 {
		b.MaxInterval = o.MaxInterval
	}
	if b.MaxInterval < b.InitialInterval {
		b.MaxInterval = b.InitialInterval
	}
	b.MaxElapsedTime = o.MaxElapsed
	b.Reset()
	return b
}

// Watch refreshes the execution until it reaches a terminal phase. Temporary
// platform errors are retried; any other error ends the watch.
func (s *Service) Watch(ctx context.Context, id string, opts WatchOptions) (ExecutionStatus, error) {
	var last ExecutionStatus
	var seen string
	operation := func() error {
		st, err := s.Refresh(ctx, id)
		if err != nil {
			if flowapi.IsTemporary(err) {
				s.logger.Warn("refresh failed, retrying", "execution_id", id, "error", err)
				return err
			}
			return backoff.Permanent(err)
		}
		last = st
		if fp := fingerprint(st); fp != seen {
			seen = fp
			if opts.OnChange != nil {
				opts.OnChange(st)
			}
		}
		if st.Execution.Phase.IsTerminal() {
			return nil
		}
		return errStillRunning
	}

	err := backoff.Retry(operation, backoff.WithContext(opts.backOff(), ctx))
	if errors.Is(err, errStillRunning) {
		return last, ErrWatchTimeout
	}
	return last, err
}

func fingerprint(st ExecutionStatus) string {
	fp := string(st.Execution.Phase)
	for _, n := range st.Nodes {
		fp += "|" + n.NodeID + "=" + string(n.Phase)
	}
	return fp
}
