package coach

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/mock-interview/backend/internal/model/interview"
)

func TestStartSessionWithRole(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/start/", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Software Engineer", body["job_role"])

		_, _ = w.Write([]byte(`{"questions":["Q1","Q2","Q3"]}`))
	}))
	defer srv.Close()

	qs, err := NewClient(srv.URL+"/", 0).StartSession(context.Background(), interview.RoleIntake("Software Engineer"))
	require.NoError(t, err)
	assert.Equal(t, []string{"Q1", "Q2", "Q3"}, qs)
}

func TestStartSessionWithResume(t *testing.T) {
	pdf := []byte("%PDF-1.4 fake")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		file, header, err := r.FormFile("resume")
		require.NoError(t, err)
		defer file.Close()

		data, err := io.ReadAll(file)
		require.NoError(t, err)
		assert.Equal(t, pdf, data)
		assert.Equal(t, "cv.pdf", header.Filename)

		_, _ = w.Write([]byte(`{"questions":["Tell me about yourself."]}`))
	}))
	defer srv.Close()

	qs, err := NewClient(srv.URL, 0).StartSession(context.Background(), interview.ResumeIntake("cv.pdf", pdf))
	require.NoError(t, err)
	assert.Equal(t, []string{"Tell me about yourself."}, qs)
}

func TestStartSessionRejectsInvalidIntake(t *testing.T) {
	_, err := NewClient("http://unused", 0).StartSession(context.Background(), interview.Intake{})
	assert.ErrorIs(t, err, interview.ErrIntakeMissing)
}

func TestStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"Failed to generate questions"}`, http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, 0).StartSession(context.Background(), interview.RoleIntake("PM"))
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, 500, statusErr.Code)
	assert.Contains(t, statusErr.Body, "Failed to generate questions")
}

func TestAnalyze(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/analyze/", r.URL.Path)

		var agg map[string]int
		require.NoError(t, json.NewDecoder(r.Body).Decode(&agg))
		assert.Equal(t, map[string]int{"averageScore": 97, "goodPostureCount": 40, "frames": 50}, agg)

		_, _ = w.Write([]byte(`{"focus_score":80,"posture_score":97,"feedback":"Keep steady eye contact."}`))
	}))
	defer srv.Close()

	got, err := NewClient(srv.URL, 0).Analyze(context.Background(), interview.Aggregate{AverageScore: 97, GoodPostureCount: 40, Frames: 50})
	require.NoError(t, err)
	assert.Equal(t, interview.SummaryResult{FocusScore: 80, PostureScore: 97, Feedback: "Keep steady eye contact."}, got)
}

func TestAnalyzeMalformed(t *testing.T) {
	for name, body := range map[string]string{
		"missing feedback": `{"focus_score":80,"posture_score":97}`,
		"not json":         `<html>oops</html>`,
	} {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(body))
			}))
			defer srv.Close()

			_, err := NewClient(srv.URL, 0).Analyze(context.Background(), interview.Aggregate{})
			assert.ErrorIs(t, err, ErrMalformedResponse)
		})
	}
}
