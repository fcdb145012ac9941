package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/zhouzirui/mock-interview/backend/internal/model/interview"
	"github.com/zhouzirui/mock-interview/backend/internal/service/coach"
	"github.com/zhouzirui/mock-interview/backend/internal/service/landmark"
	"github.com/zhouzirui/mock-interview/backend/internal/service/session"
)

var simulateOpts struct {
	role     string
	frames   int
	centered float64
	interval time.Duration
	timeout  time.Duration
}

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run a full session against the backend with synthetic landmark frames",
	Long: `Simulate starts a role session against COACH_BACKEND_URL, answers every
question with a burst of synthetic face landmarks, and prints the summary
returned by the analysis endpoint.`,
	RunE: runSimulate,
}

func init() {
	simulateCmd.Flags().StringVar(&simulateOpts.role, "role", "Software Engineer", "job role label sent to the backend")
	simulateCmd.Flags().IntVar(&simulateOpts.frames, "frames", 30, "frames pushed per question")
	simulateCmd.Flags().Float64Var(&simulateOpts.centered, "centered", 0.8, "share of frames with a centered face (0-1)")
	simulateCmd.Flags().DurationVar(&simulateOpts.interval, "interval", 20*time.Millisecond, "delay between frames")
	simulateCmd.Flags().DurationVar(&simulateOpts.timeout, "timeout", 2*time.Minute, "overall timeout")
	rootCmd.AddCommand(simulateCmd)
}

var errSessionFailed = errors.New("session ended without a summary")

// snapshotPoll 事件可能因订阅方缓冲满被丢弃，定期用快照兜底
const snapshotPoll = 250 * time.Millisecond

func runSimulate(cmd *cobra.Command, args []string) error {
	if simulateOpts.centered < 0 || simulateOpts.centered > 1 {
		return fmt.Errorf("--centered must be between 0 and 1")
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), simulateOpts.timeout)
	defer cancel()

	feed := landmark.NewStreamSource(cfg.Coach.FrameBuffer)
	ctrl := session.NewController(session.Config{
		ID:             "simulate",
		Backend:        coach.NewClient(cfg.Coach.BackendURL, cfg.Coach.RequestTimeout),
		Source:         feed,
		Voice:          logSpeaker{},
		Locale:         cfg.Coach.Locale,
		RequestTimeout: cfg.Coach.RequestTimeout,
	})
	defer ctrl.Close()

	events, unsubscribe := ctrl.Subscribe()
	defer unsubscribe()

	summary, err := simulate(ctx, ctrl, feed, events, simulateOpts.role)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}

// simulate drives one role session to its summary. Phase changes are taken
// from events and from periodic snapshots, whichever arrives first.
func simulate(ctx context.Context, ctrl *session.Controller, feed *landmark.StreamSource, events <-chan session.Event, role string) (interview.SummaryResult, error) {
	active := make(chan interview.Session, 1)
	var summary interview.SummaryResult

	observe := func(s interview.Session) (bool, error) {
		switch s.Phase {
		case interview.PhaseActive:
			select {
			case active <- s:
			default:
			}
		case interview.PhaseSummary:
			if s.Summary != nil {
				summary = *s.Summary
				return true, nil
			}
		case interview.PhaseIdle:
			if s.LastError != "" {
				return true, fmt.Errorf("%w: %s", errSessionFailed, s.LastError)
			}
		}
		return false, nil
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		poll := time.NewTicker(snapshotPoll)
		defer poll.Stop()

		for {
			var (
				done bool
				err  error
			)
			select {
			case <-gctx.Done():
				return gctx.Err()
			case e, ok := <-events:
				switch {
				case !ok:
					return errSessionFailed
				case e.Type == session.EventError:
					return fmt.Errorf("%w: %s", errSessionFailed, e.Message)
				case e.Type == session.EventPhase && e.Session != nil:
					done, err = observe(*e.Session)
				}
			case <-poll.C:
				s, snapErr := ctrl.Snapshot(gctx)
				if snapErr != nil {
					return snapErr
				}
				done, err = observe(s)
			}
			if done || err != nil {
				return err
			}
		}
	})

	g.Go(func() error {
		if _, err := ctrl.Start(gctx, interview.RoleIntake(role)); err != nil {
			return err
		}

		var s interview.Session
		select {
		case s = <-active:
		case <-gctx.Done():
			return gctx.Err()
		}

		rng := rand.New(rand.NewSource(time.Now().UnixNano()))
		for range s.Questions {
			if err := pushFrames(gctx, feed, rng); err != nil {
				return err
			}
			if _, err := ctrl.Advance(gctx); err != nil {
				return err
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return interview.SummaryResult{}, err
	}
	return summary, nil
}

func pushFrames(ctx context.Context, feed *landmark.StreamSource, rng *rand.Rand) error {
	ticker := time.NewTicker(simulateOpts.interval)
	defer ticker.Stop()

	for i := 0; i < simulateOpts.frames; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		nose := interview.Point{X: 0.5, Y: 0.5}
		if rng.Float64() >= simulateOpts.centered {
			nose = interview.Point{X: 0.2 + rng.Float64()*0.1, Y: 0.5}
		}
		feed.Push(landmark.Frame{Landmarks: interview.LandmarkSet{{X: 0.5, Y: 0.4}, nose}})
	}
	return nil
}

// logSpeaker prints questions instead of voicing them.
type logSpeaker struct{}

func (logSpeaker) Speak(u interview.Utterance) {
	logrus.WithField("locale", u.Locale).Info(u.Text)
}

func (logSpeaker) Stop() {}
