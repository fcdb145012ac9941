// Package coach talks to the question and analysis backend.
package coach

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/zhouzirui/mock-interview/backend/internal/metrics"
	"github.com/zhouzirui/mock-interview/backend/internal/model/interview"
)

const maxErrorBody = 4 << 10

var ErrMalformedResponse = errors.New("malformed backend response")

// StatusError is returned for any non-2xx reply.
type StatusError struct {
	Endpoint string
	Code     int
	Body     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: backend returned %d: %s", e.Endpoint, e.Code, e.Body)
}

// Client calls POST {base}/start/ and POST {base}/analyze/.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient builds a client; a zero timeout leaves requests bounded only by ctx.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

type startResponse struct {
	Questions []string `json:"questions"`
}

type analyzeResponse struct {
	FocusScore   *float64 `json:"focus_score"`
	PostureScore *float64 `json:"posture_score"`
	Feedback     *string  `json:"feedback"`
}

// StartSession asks for the question list. A resume is sent as the multipart
// field "resume" with its bytes untouched; a role as JSON {"job_role": ...}.
func (c *Client) StartSession(ctx context.Context, in interview.Intake) ([]string, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	var (
		body        bytes.Buffer
		contentType string
	)
	if in.Kind() == interview.IntakeResume {
		w := multipart.NewWriter(&body)
		name := in.ResumeName
		if name == "" {
			name = "resume.pdf"
		}
		part, err := w.CreateFormFile("resume", name)
		if err != nil {
			return nil, err
		}
		if _, err := part.Write(in.Resume); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		contentType = w.FormDataContentType()
	} else {
		if err := json.NewEncoder(&body).Encode(map[string]string{"job_role": in.Role}); err != nil {
			return nil, err
		}
		contentType = "application/json"
	}

	var resp startResponse
	if err := c.post(ctx, "start", contentType, &body, &resp); err != nil {
		return nil, err
	}
	return resp.Questions, nil
}

// Analyze submits the frame aggregate and returns the verdict verbatim.
func (c *Client) Analyze(ctx context.Context, agg interview.Aggregate) (interview.SummaryResult, error) {
	var body bytes.Buffer
	if err := json.NewEncoder(&body).Encode(agg); err != nil {
		return interview.SummaryResult{}, err
	}

	var resp analyzeResponse
	if err := c.post(ctx, "analyze", "application/json", &body, &resp); err != nil {
		return interview.SummaryResult{}, err
	}
	if resp.FocusScore == nil || resp.PostureScore == nil || resp.Feedback == nil {
		return interview.SummaryResult{}, fmt.Errorf("%w: analyze reply is missing focus_score, posture_score or feedback", ErrMalformedResponse)
	}
	return interview.SummaryResult{
		FocusScore:   *resp.FocusScore,
		PostureScore: *resp.PostureScore,
		Feedback:     *resp.Feedback,
	}, nil
}

func (c *Client) post(ctx context.Context, endpoint, contentType string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+endpoint+"/", body)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", endpoint, err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		metrics.RecordBackendRequest(endpoint, "error", time.Since(started))
		return fmt.Errorf("%s: %w", endpoint, err)
	}
	defer resp.Body.Close()
	metrics.RecordBackendRequest(endpoint, strconv.Itoa(resp.StatusCode), time.Since(started))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{Endpoint: endpoint, Code: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformedResponse, endpoint, err)
	}
	return nil
}
