package wallet

import (
	"context"
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/quantumauth-io/quantum-go-utils/log"
)

const MaxInitAttempts = 3

var ErrServiceUnavailable = errors.New("chain service unavailable")

type InitPhase int

const (
	Uninitialized InitPhase = iota
	Retrying
	Ready
	Failed
)

// InitState is the chain client lifecycle. Attempt is the number of dial
// attempts made so far in the current or last run.
type InitState struct {
	Phase   InitPhase
	Attempt int
}

func (s InitState) String() string {
	switch s.Phase {
	case Retrying:
		return fmt.Sprintf("retrying(%d)", s.Attempt)
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	default:
		return "uninitialized"
	}
}

// Backoff is the delay after failed attempt n (1-based): n² seconds.
func Backoff(attempt int) time.Duration {
	if attempt < 1 {
		return 0
	}
	return time.Duration(attempt*attempt) * time.Second
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Init dials the chain client, retrying with Backoff between attempts.
// Once Ready it returns immediately.
func (s *Service) Init(ctx context.Context) error {
	s.initMu.Lock()
	defer s.initMu.Unlock()

	if s.currentClient() != nil {
		return nil
	}

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		client, err := s.dial(ctx)
		if err == nil {
			s.ready(client, attempt)
			log.Info("chain client ready", "attempt", attempt)
			return nil
		}

		s.setState(InitState{Phase: Retrying, Attempt: attempt})
		log.Warn("chain client init failed", "attempt", attempt, "max", s.maxAttempts, "error", err)

		if attempt == s.maxAttempts {
			break
		}
		if err := s.sleep(ctx, Backoff(attempt)); err != nil {
			s.setState(InitState{Phase: Failed, Attempt: attempt})
			return errors.Mark(errors.Wrap(err, "init interrupted"), ErrServiceUnavailable)
		}
	}

	s.setState(InitState{Phase: Failed, Attempt: s.maxAttempts})
	return errors.Wrapf(ErrServiceUnavailable, "gave up after %d attempts", s.maxAttempts)
}

// chain returns the shared client, making one extra dial attempt when none
// is present.
func (s *Service) chain(ctx context.Context) (ChainClient, error) {
	if c := s.currentClient(); c != nil {
		return c, nil
	}

	s.initMu.Lock()
	defer s.initMu.Unlock()

	if c := s.currentClient(); c != nil {
		return c, nil
	}

	client, err := s.dial(ctx)
	if err != nil {
		log.Warn("lazy chain client init failed", "error", err)
		return nil, errors.Mark(errors.Wrap(err, "lazy init"), ErrServiceUnavailable)
	}
	s.ready(client, s.State().Attempt+1)
	log.Info("chain client ready after lazy init")
	return client, nil
}

func (s *Service) currentClient() ChainClient {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.client
}

func (s *Service) ready(c ChainClient, attempt int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.client = c
	s.state = InitState{Phase: Ready, Attempt: attempt}
}

func (s *Service) setState(st InitState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = st
}

func (s *Service) State() InitState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}
