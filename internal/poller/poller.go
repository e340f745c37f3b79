// Package poller implements the client-side convergence loop. Each connected
// client owns one Poller; there is no central coordinator. Clients converge
// purely by observing the same persisted facts within one polling interval
// of each other.
package poller

import (
	"context"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"retroquiz-service/internal/domain"
	"retroquiz-service/internal/ranking"
	"retroquiz-service/internal/session"
)

// State is the client's position in the session protocol. A client is in
// exactly one state at a time.
type State int

const (
	StateLobby State = iota
	StatePlaying
	StateAwaitingResults
	StateDone
)

func (s State) String() string {
	switch s {
	case StateLobby:
		return "lobby"
	case StatePlaying:
		return "playing"
	case StateAwaitingResults:
		return "awaiting-results"
	case StateDone:
		return "done"
	}
	return "unknown"
}

// Hooks receives protocol events for display. Callbacks run on the polling
// goroutine; once a polling call has returned no further callbacks fire.
type Hooks interface {
	RosterChanged(names []string)
	SessionStarted()
	ResultsReady(board []domain.RankedEntry)
}

// NopHooks discards all events.
type NopHooks struct{}

func (NopHooks) RosterChanged([]string)            {}
func (NopHooks) SessionStarted()                   {}
func (NopHooks) ResultsReady([]domain.RankedEntry) {}

// Poller drives one client through Lobby -> Playing -> AwaitingResults ->
// Done against the shared store.
type Poller struct {
	service   *session.Service
	sessionID int64
	interval  time.Duration
	hooks     Hooks
	log       *logrus.Entry

	state      State
	lastRoster []string
}

func New(service *session.Service, sessionID int64, interval time.Duration, hooks Hooks, log *logrus.Logger) *Poller {
	if interval <= 0 {
		interval = domain.DefaultPollInterval
	}
	if hooks == nil {
		hooks = NopHooks{}
	}
	if log == nil {
		log = logrus.New()
	}
	return &Poller{
		service:   service,
		sessionID: sessionID,
		interval:  interval,
		hooks:     hooks,
		log: log.WithFields(logrus.Fields{
			"sessionId": sessionID,
			"clientId":  uuid.NewString(),
		}),
	}
}

// State returns the client's current protocol state.
func (p *Poller) State() State { return p.state }

// PollLobby polls session status and the member roster until the session
// flips to PLAYING. The flip is a one-shot, irreversible signal: no session
// ever returns to WAITING, so lobby polling stops for good. Returns with the
// client in StatePlaying, or the context error on cancellation. Ticks that
// fail to reach the store are logged and retried on the next interval.
func (p *Poller) PollLobby(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		started, err := p.checkLobby(ctx)
		if err != nil {
			p.log.WithError(err).Warn("lobby poll failed, retrying")
		}
		if started {
			p.state = StatePlaying
			p.hooks.SessionStarted()
			return nil
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (p *Poller) checkLobby(ctx context.Context) (bool, error) {
	status, err := p.service.Status(ctx, p.sessionID)
	if err != nil {
		return false, err
	}
	if status != domain.StatusWaiting {
		return true, nil
	}

	roster, err := p.service.MemberNames(ctx, p.sessionID)
	if err != nil {
		return false, err
	}
	// Full-list value comparison: a join or leave shows up as list-content
	// change; identical polls cause no churn.
	if !slices.Equal(roster, p.lastRoster) {
		p.lastRoster = roster
		p.hooks.RosterChanged(roster)
	}
	return false, nil
}

// BeginPlaying transitions Lobby -> Playing without observing the store,
// for the host that flipped the status itself.
func (p *Poller) BeginPlaying() {
	p.state = StatePlaying
}

// AwaitResults polls for global completion after the local game has finished
// and the client's finished flag is persisted. Once every member is
// finished it closes the session, fetches the final standings, and hands
// them to the ranking engine. Returns with the client in StateDone.
func (p *Poller) AwaitResults(ctx context.Context) ([]domain.RankedEntry, error) {
	p.state = StateAwaitingResults

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		done, err := p.service.AllFinished(ctx, p.sessionID)
		if err != nil {
			p.log.WithError(err).Warn("completion poll failed, retrying")
		}
		if done {
			break
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if err := p.service.Close(ctx, p.sessionID); err != nil {
		p.log.WithError(err).Warn("closing session failed")
	}

	standings, err := p.service.Standings(ctx, p.sessionID)
	if err != nil {
		return nil, err
	}
	board := ranking.Rank(standings)

	p.state = StateDone
	p.hooks.ResultsReady(board)
	p.log.WithField("players", len(board)).Info("session converged")
	return board, nil
}
