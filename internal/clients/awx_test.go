package clients

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetJobDecodesExtraVars(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v2/jobs/12345/", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "admin", user)
		assert.Equal(t, "secret", pass)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": 12345,
			"status": "successful",
			"started": "2026-03-01T08:00:00Z",
			"finished": "2026-03-01T08:45:00Z",
			"extra_vars": "{\"cloud_provider\": \"ec2\", \"guid\": \"abcde\", \"user_count\": 25}"
		}`))
	}))
	defer srv.Close()

	client := NewAWXClient(AWXConfig{BaseURL: srv.URL, Username: "admin", Password: "secret"})
	job, err := client.GetJob(context.Background(), "12345")
	require.NoError(t, err)
	require.NotNil(t, job)

	assert.Equal(t, int64(12345), job.ID)
	assert.Equal(t, "successful", job.Status)
	require.NotNil(t, job.Started)
	assert.Equal(t, time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC), job.Started.UTC())
	assert.Equal(t, "ec2", job.ExtraVars["cloud_provider"])
	assert.Equal(t, "abcde", job.ExtraVars["guid"])
	assert.Equal(t, float64(25), job.ExtraVars["user_count"])
}

func TestGetJobMissingReturnsNil(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewAWXClient(AWXConfig{BaseURL: srv.URL})
	job, err := client.GetJob(context.Background(), "99999")
	require.NoError(t, err)
	assert.Nil(t, job)
}

func TestGetJobRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "temporarily down", http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id": 12345, "status": "successful"}`))
	}))
	defer srv.Close()

	client := NewAWXClient(AWXConfig{BaseURL: srv.URL})
	job, err := client.GetJob(context.Background(), "12345")
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, int32(3), calls.Load())
}

func TestGetJobDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer srv.Close()

	client := NewAWXClient(AWXConfig{BaseURL: srv.URL})
	_, err := client.GetJob(context.Background(), "12345")
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}
