package sink

import (
	"time"

	"github.com/cockroachdb/errors"

	"github.com/taosdata/taosgen-sub001/internal/logutil"
	"github.com/taosdata/taosgen-sub001/internal/sinkerr"
)

// OnFailure selects what happens once a retry budget is exhausted.
type OnFailure string

// Recognized on_failure values (spec §4.6).
const (
	OnFailureExit            OnFailure = "exit"
	OnFailureWarnAndContinue OnFailure = "warn_and_continue"
)

// RetryConfig mirrors the `failure_handling` block of a job's configuration
// (spec §6).
type RetryConfig struct {
	MaxRetries    int
	RetryInterval time.Duration
	OnFailure     OnFailure
}

// RetryPolicy runs a sink operation, retrying it on sinkerr.Transient
// failures up to MaxRetries times with a fixed sleep between attempts.
// Non-transient failures short-circuit the retry loop immediately (spec
// §4.6 "execute_with_retry").
type RetryPolicy struct {
	cfg RetryConfig
	log *logutil.Logger
}

// NewRetryPolicy constructs a RetryPolicy that logs exhausted retries under
// component.
func NewRetryPolicy(cfg RetryConfig, component string) *RetryPolicy {
	return &RetryPolicy{cfg: cfg, log: logutil.New(component)}
}

// Execute runs op, retrying per cfg. On final failure, if OnFailure is
// "exit" the returned error is wrapped as sinkerr.Fatal so the orchestrator
// aborts the whole run; if "warn_and_continue" the failure is logged and
// returned as-is so the caller can skip this write and move on.
func (p *RetryPolicy) Execute(op func() error, errorContext string) error {
	var lastErr error
	retries := 0
	for {
		err := op()
		if err == nil {
			return nil
		}
		lastErr = err
		if !sinkerr.IsTransient(err) {
			break
		}
		if retries >= p.cfg.MaxRetries {
			break
		}
		retries++
		time.Sleep(p.cfg.RetryInterval)
	}

	if p.cfg.OnFailure == OnFailureExit {
		return sinkerr.NewFatal(errors.Wrapf(lastErr, "%s: exhausted retries", errorContext))
	}
	p.log.Errorf("%s failed after %d retries: %v", errorContext, retries, lastErr)
	return lastErr
}
