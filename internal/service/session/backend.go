package session

import (
	"context"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/zhouzirui/mock-interview/backend/internal/model/interview"
)

// Backend is the question and analysis service.
type Backend interface {
	StartSession(ctx context.Context, in interview.Intake) ([]string, error)
	Analyze(ctx context.Context, agg interview.Aggregate) (interview.SummaryResult, error)
}

// requestor wraps Backend calls with the configured timeout and the
// question fallback.
type requestor struct {
	backend Backend
	timeout time.Duration
	log     *logrus.Entry
}

func (r requestor) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout > 0 {
		return context.WithTimeout(ctx, r.timeout)
	}
	return context.WithCancel(ctx)
}

// questions never fails: any error, an empty list, or a list of blank
// entries yields the default set.
func (r requestor) questions(ctx context.Context, in interview.Intake) []string {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	qs, err := r.backend.StartSession(ctx, in)
	if err != nil {
		r.log.WithError(err).Warn("question request failed, using default questions")
		return interview.DefaultQuestions()
	}

	cleaned := make([]string, 0, len(qs))
	for _, q := range qs {
		if q = strings.TrimSpace(q); q != "" {
			cleaned = append(cleaned, q)
		}
	}
	if len(cleaned) == 0 {
		r.log.Warn("question service returned no questions, using default questions")
		return interview.DefaultQuestions()
	}
	return cleaned
}

// summary requests the analysis once; there is no retry.
func (r requestor) summary(ctx context.Context, agg interview.Aggregate) (interview.SummaryResult, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	return r.backend.Analyze(ctx, agg)
}
