// Package session drives the frame-by-frame acquisition loop.
package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"anpr-locker/internal/domain/anpr"
)

// ErrCaptureEnded is returned by Run when the source stops producing frames.
var ErrCaptureEnded = errors.New("capture ended")

type Source interface {
	Next() (anpr.Frame, error)
}

type Display interface {
	Show(frame anpr.Frame)
	PollKey() anpr.Command
}

type Acquirer interface {
	ApplyPendingReset() bool
	ProcessFrame(frame anpr.Frame) anpr.FrameResult
	RequestReset()
}

// Headless is a Display with no window and no keyboard.
type Headless struct{}

func (Headless) Show(anpr.Frame) {}

func (Headless) PollKey() anpr.Command { return anpr.CommandNone }

type Session struct {
	source   Source
	display  Display
	acquirer Acquirer
	log      zerolog.Logger
}

func New(source Source, display Display, acquirer Acquirer, log zerolog.Logger) *Session {
	return &Session{
		source:   source,
		display:  display,
		acquirer: acquirer,
		log:      log,
	}
}

// Run processes frames until the operator quits, ctx is cancelled or the
// source fails. Each frame is fully processed, shown and released before
// the next one is captured. A reset key press is applied at the start of
// the following cycle.
func (s *Session) Run(ctx context.Context) error {
	s.log.Info().Msg("session started, press 'q' to quit, 'r' to reset")

	for {
		if err := ctx.Err(); err != nil {
			s.log.Info().Msg("session cancelled")
			return nil
		}

		frame, err := s.source.Next()
		if err != nil {
			s.log.Error().Err(err).Msg("failed to capture frame")
			return fmt.Errorf("%w: %w", ErrCaptureEnded, err)
		}

		s.acquirer.ApplyPendingReset()
		s.acquirer.ProcessFrame(frame)
		s.display.Show(frame)
		cmd := s.display.PollKey()

		if err := frame.Close(); err != nil {
			s.log.Debug().Err(err).Msg("failed to release frame")
		}

		switch cmd {
		case anpr.CommandQuit:
			s.log.Info().Msg("quit requested")
			return nil
		case anpr.CommandReset:
			s.acquirer.RequestReset()
		}
	}
}
