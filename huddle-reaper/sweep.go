// Package huddlereaper terminates abandoned conferencing sessions. The
// sweep is stateless and designed for external scheduling; it never raises
// out of its loop and always completes with a summary.
package huddlereaper

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/huddle-live/huddle-go-utils/faults"
	huddlemeet "github.com/huddle-live/huddle-go-utils/huddle-meet"
	"github.com/huddle-live/huddle-go-utils/huddle-ws/meetingdao"
	"github.com/huddle-live/huddle-go-utils/resilience"
)

// Reason tags why a session was selected for termination.
type Reason string

const (
	ReasonMaxAge   Reason = "max_age_exceeded"
	ReasonNotFound Reason = "meeting_not_found"
	ReasonEmpty    Reason = "empty_room"
)

// MeetingStore is the directory view the sweep needs.
type MeetingStore interface {
	ListActive(ctx context.Context) ([]meetingdao.Meeting, error)
	Delete(ctx context.Context, roomID string) error
	Lock(ctx context.Context, roomID string, until time.Time) error
}

// SessionProvider is the conferencing collaborator.
type SessionProvider interface {
	GetSession(ctx context.Context, meetingID string) (bool, error)
	CountParticipants(ctx context.Context, meetingID string) (int, error)
	Terminate(ctx context.Context, meetingID string) error
}

var (
	_ MeetingStore    = (*meetingdao.DAO)(nil)
	_ SessionProvider = (*huddlemeet.Provider)(nil)
)

// Config tunes a single sweep.
type Config struct {
	// EmptyThreshold is how old a room must be before zero participants
	// terminates it. Room age stands in for time-since-empty; no
	// became-empty timestamp is persisted.
	EmptyThreshold time.Duration
	// MaxAge is the hard ceiling on room lifetime regardless of activity.
	MaxAge time.Duration
	// DryRun logs termination decisions without acting on them.
	DryRun bool
	// Pause is the delay between sessions, easing pressure on the
	// conferencing API (default 250ms).
	Pause time.Duration
	// LockFor is how long a session is claimed while being processed
	// (default 2 minutes).
	LockFor time.Duration
}

// Summary is the outcome of one sweep.
type Summary struct {
	Checked int
	Ended   int
	Errors  int
	Reasons map[Reason]int
}

// Sweeper runs liveness sweeps over the meetings directory.
type Sweeper struct {
	Meetings MeetingStore
	Sessions SessionProvider
	Logger   zerolog.Logger

	// Breaker guards the conferencing control plane (default: 50% over 5
	// calls, 30s reset).
	Breaker *resilience.Breaker
}

// New creates a Sweeper with a dedicated breaker for the conferencing API.
func New(meetings MeetingStore, sessions SessionProvider, logger zerolog.Logger) *Sweeper {
	return &Sweeper{
		Meetings: meetings,
		Sessions: sessions,
		Logger:   logger,
		Breaker: resilience.NewBreaker(resilience.BreakerConfig{
			ErrorThresholdPct: 50,
			ResetTimeout:      30 * time.Second,
			VolumeThreshold:   5,
		}),
	}
}

// Run executes one sweep: enumerate, classify, terminate, aggregate. A
// failure on one session is counted and the sweep continues; only a failed
// enumeration aborts.
func (s *Sweeper) Run(ctx context.Context, config Config) (Summary, error) {
	summary := Summary{Reasons: map[Reason]int{}}

	var meetings []meetingdao.Meeting
	err := resilience.WithRetry(ctx, 3, 100*time.Millisecond, func(ctx context.Context) error {
		found, err := s.Meetings.ListActive(ctx)
		meetings = found
		return err
	})
	if err != nil {
		return summary, err
	}

	pause := config.Pause
	if pause <= 0 {
		pause = 250 * time.Millisecond
	}

	for i, meeting := range meetings {
		if i > 0 {
			select {
			case <-ctx.Done():
				s.Logger.Warn().Int("checked", summary.Checked).Msg("sweep cancelled")
				return summary, nil
			case <-time.After(pause):
			}
		}

		summary.Checked++
		logger := s.Logger.With().
			Str("room_id", meeting.RoomID).
			Str("meeting_id", meeting.MeetingID).
			Logger()

		reason, err := s.classify(ctx, meeting, config)
		if err != nil {
			summary.Errors++
			logger.Error().Err(err).Msg("failed to classify session")
			continue
		}
		if reason == "" {
			continue
		}
		summary.Reasons[reason]++

		if config.DryRun {
			logger.Info().Str("reason", string(reason)).Msg("dry run, would terminate session")
			continue
		}

		if err := s.terminate(ctx, meeting, reason, config); err != nil {
			summary.Errors++
			logger.Error().Err(err).Str("reason", string(reason)).Msg("failed to terminate session")
			continue
		}
		summary.Ended++
		logger.Info().Str("reason", string(reason)).Msg("terminated session")
	}

	s.Logger.Info().
		Int("checked", summary.Checked).
		Int("ended", summary.Ended).
		Int("errors", summary.Errors).
		Msg("sweep complete")
	return summary, nil
}

// classify decides a session's fate. The max-age ceiling is checked first
// and applies even to occupied rooms. The empty rule uses room age as the
// proxy for emptiness duration, but always consults a fresh participant
// count, so an occupied room is never reaped by it.
func (s *Sweeper) classify(ctx context.Context, meeting meetingdao.Meeting, config Config) (Reason, error) {
	age := time.Since(time.Unix(meeting.CreatedAt, 0))

	if config.MaxAge > 0 && age > config.MaxAge {
		return ReasonMaxAge, nil
	}

	var found bool
	if err := s.guard(ctx, func(ctx context.Context) error {
		ok, err := s.Sessions.GetSession(ctx, meeting.MeetingID)
		found = ok
		return err
	}); err != nil {
		return "", err
	}
	if !found {
		return ReasonNotFound, nil
	}

	var participants int
	if err := s.guard(ctx, func(ctx context.Context) error {
		count, err := s.Sessions.CountParticipants(ctx, meeting.MeetingID)
		participants = count
		return err
	}); err != nil {
		if faults.IsNotFound(err) {
			return ReasonNotFound, nil
		}
		return "", err
	}
	if participants == 0 && age > config.EmptyThreshold {
		return ReasonEmpty, nil
	}

	return "", nil
}

// terminate ends the external session and deletes the directory row. The
// processing lock is advisory; a failure to take it is logged, not fatal.
func (s *Sweeper) terminate(ctx context.Context, meeting meetingdao.Meeting, reason Reason, config Config) error {
	lockFor := config.LockFor
	if lockFor <= 0 {
		lockFor = 2 * time.Minute
	}
	if err := s.Meetings.Lock(ctx, meeting.RoomID, time.Now().Add(lockFor)); err != nil {
		s.Logger.Warn().Err(err).Str("room_id", meeting.RoomID).Msg("failed to lock session, proceeding")
	}

	// The handle is already gone when the directory was stale; skip the call.
	if reason != ReasonNotFound {
		if err := s.guard(ctx, func(ctx context.Context) error {
			return s.Sessions.Terminate(ctx, meeting.MeetingID)
		}); err != nil {
			return err
		}
	}

	return resilience.WithRetry(ctx, 3, 100*time.Millisecond, func(ctx context.Context) error {
		return s.Meetings.Delete(ctx, meeting.RoomID)
	})
}

func (s *Sweeper) guard(ctx context.Context, op resilience.Operation) error {
	if s.Breaker == nil {
		return op(ctx)
	}
	return s.Breaker.Do(ctx, op)
}
