package client

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ApprovalStatus is the state of one secondary-device login confirmation.
type ApprovalStatus string

const (
	StatusPending  ApprovalStatus = "pending"
	StatusApproved ApprovalStatus = "approved"
	StatusDeclined ApprovalStatus = "declined"
	StatusTimedOut ApprovalStatus = "timed_out"
)

func (s ApprovalStatus) Terminal() bool {
	return s == StatusApproved || s == StatusDeclined || s == StatusTimedOut
}

const (
	defaultCountdownSeconds = 300
	defaultPollInterval     = 3 * time.Second
	defaultCountdownTick    = time.Second
	defaultRedirectGrace    = 2 * time.Second
)

// ApprovalAPI is the slice of the backend client the session needs.
type ApprovalAPI interface {
	CheckApprovalStatus(ctx context.Context, username string) (ApprovalStatus, bool, error)
	DeclineApproval(ctx context.Context, username string) error
}

// ApprovalUI receives the session outcome. The session drives timers and
// network; all presentation goes through this interface exactly once per
// terminal transition.
type ApprovalUI interface {
	CountdownChanged(remaining int)
	OutcomeReached(status ApprovalStatus)
	RedirectDashboard()
	RedirectLogin()
}

// ApprovalSession tracks a single pending secondary-device approval. One
// session may be pending per tab; every terminal transition stops both the
// poll and countdown timers deterministically.
type ApprovalSession struct {
	Username string

	api    ApprovalAPI
	ui     ApprovalUI
	logger *zap.Logger

	PollInterval     time.Duration
	CountdownTick    time.Duration
	CountdownSeconds int
	RedirectGrace    time.Duration

	mu        sync.Mutex
	status    ApprovalStatus
	remaining int
	started   bool
	cancelCh  chan struct{}
	done      chan struct{}
}

func NewApprovalSession(username string, api ApprovalAPI, ui ApprovalUI, logger *zap.Logger) *ApprovalSession {
	return &ApprovalSession{
		Username:         username,
		api:              api,
		ui:               ui,
		logger:           logger,
		PollInterval:     defaultPollInterval,
		CountdownTick:    defaultCountdownTick,
		CountdownSeconds: defaultCountdownSeconds,
		RedirectGrace:    defaultRedirectGrace,
		status:           StatusPending,
		cancelCh:         make(chan struct{}, 1),
		done:             make(chan struct{}),
	}
}

func (s *ApprovalSession) Status() ApprovalStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *ApprovalSession) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remaining
}

// Done is closed after the terminal transition and redirect have run.
func (s *ApprovalSession) Done() <-chan struct{} {
	return s.done
}

// Cancel records an explicit user decline (closing the approval UI or
// clicking cancel). Safe to call from any goroutine; repeated calls are
// no-ops.
func (s *ApprovalSession) Cancel() {
	select {
	case s.cancelCh <- struct{}{}:
	default:
	}
}

// Start begins polling and the countdown. Calling Start twice is a no-op.
func (s *ApprovalSession) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.remaining = s.CountdownSeconds
	s.mu.Unlock()

	go s.run(ctx)
}

type pollResult struct {
	status ApprovalStatus
	err    error
}

// run owns all session state. Poll results and countdown ticks are
// serialized here, so a poll result and a countdown expiry in the same
// interval cannot both transition the session.
func (s *ApprovalSession) run(ctx context.Context) {
	defer close(s.done)

	pollT := time.NewTicker(s.PollInterval)
	cdT := time.NewTicker(s.CountdownTick)
	// Terminal transition clears both timers; a dangling timer here could
	// deliver a second redirect.
	defer pollT.Stop()
	defer cdT.Stop()

	// Polls run off-loop: a slow or unreachable backend must not stall the
	// countdown. At most one poll is in flight, so the buffered channel
	// always has room and the poll goroutine can never leak.
	results := make(chan pollResult, 1)
	inFlight := false

	for s.Status() == StatusPending {
		select {
		case <-ctx.Done():
			// Page teardown: no terminal transition, just release timers.
			return

		case <-pollT.C:
			if inFlight {
				continue
			}
			inFlight = true
			go func() {
				status, _, err := s.api.CheckApprovalStatus(ctx, s.Username)
				results <- pollResult{status: status, err: err}
			}()

		case res := <-results:
			inFlight = false
			if res.err != nil {
				s.logger.Warn("approval status poll failed", zap.Error(res.err))
				continue
			}
			switch res.status {
			case StatusApproved:
				s.finish(StatusApproved)
			case StatusDeclined:
				s.finish(StatusDeclined)
			default:
				// still pending, keep polling
			}

		case <-cdT.C:
			s.mu.Lock()
			if s.status != StatusPending {
				s.mu.Unlock()
				continue
			}
			s.remaining--
			remaining := s.remaining
			s.mu.Unlock()

			s.ui.CountdownChanged(remaining)
			if remaining <= 0 {
				// Expiry is reported to the backend best-effort; failure
				// to notify does not block the local transition.
				s.notifyDecline(ctx)
				s.finish(StatusTimedOut)
			}

		case <-s.cancelCh:
			s.notifyDecline(ctx)
			s.finish(StatusDeclined)
		}
	}

	s.conclude(ctx)
}

// finish performs the terminal transition at most once.
func (s *ApprovalSession) finish(status ApprovalStatus) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusPending {
		return false
	}
	s.status = status
	return true
}

func (s *ApprovalSession) notifyDecline(ctx context.Context) {
	reqCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.api.DeclineApproval(reqCtx, s.Username); err != nil {
		s.logger.Warn("decline notify failed", zap.Error(err))
	}
}

// conclude surfaces the outcome and redirects after the grace delay.
// Exactly one notice and one redirect per session.
func (s *ApprovalSession) conclude(ctx context.Context) {
	status := s.Status()
	s.ui.OutcomeReached(status)

	t := time.NewTimer(s.RedirectGrace)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return
	case <-t.C:
	}

	if status == StatusApproved {
		s.ui.RedirectDashboard()
	} else {
		s.ui.RedirectLogin()
	}
}
