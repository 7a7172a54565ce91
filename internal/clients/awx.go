package clients

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	httpTimeout    = 30 * time.Second
	retryBaseDelay = 500 * time.Millisecond
	retryMaxDelay  = 5 * time.Second
	retryAttempts  = 3
)

// JobRecord is the subset of an automation controller job used for
// provision reporting.
type JobRecord struct {
	ID        int64          `json:"id"`
	Status    string         `json:"status"`
	Started   *time.Time     `json:"started"`
	Finished  *time.Time     `json:"finished"`
	ExtraVars map[string]any `json:"-"`

	// RawExtraVars is the controller's JSON-in-a-string encoding of the
	// job variables.
	RawExtraVars string `json:"extra_vars"`
}

// AWXConfig connects one automation controller.
type AWXConfig struct {
	BaseURL  string
	Username string
	Password string
	// SkipTLSVerify tolerates controllers with self-signed certificates.
	SkipTLSVerify bool
}

// AWXClient reads jobs from the automation controller REST API.
type AWXClient struct {
	cfg  AWXConfig
	http *http.Client
}

// NewAWXClient creates an AWX client.
func NewAWXClient(cfg AWXConfig) *AWXClient {
	transport := http.DefaultTransport
	if cfg.SkipTLSVerify {
		transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}
	return &AWXClient{
		cfg: cfg,
		http: &http.Client{
			Timeout:   httpTimeout,
			Transport: transport,
		},
	}
}

// newRetryBackoff builds the shared transient-failure policy: three
// attempts, half-second base delay doubling up to five seconds.
func newRetryBackoff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = retryBaseDelay
	b.MaxInterval = retryMaxDelay
	return backoff.WithContext(backoff.WithMaxRetries(b, retryAttempts-1), ctx)
}

// GetJob fetches one job by id. Returns (nil, nil) when the controller no
// longer has the job.
func (c *AWXClient) GetJob(ctx context.Context, jobID string) (*JobRecord, error) {
	u, err := url.JoinPath(c.cfg.BaseURL, "api", "v2", "jobs", jobID)
	if err != nil {
		return nil, fmt.Errorf("build job url: %w", err)
	}
	u += "/"

	var job *JobRecord
	operation := func() error {
		job, err = c.fetchJob(ctx, u)
		return err
	}
	if err := backoff.Retry(operation, newRetryBackoff(ctx)); err != nil {
		return nil, fmt.Errorf("get job %s: %w", jobID, err)
	}
	return job, nil
}

func (c *AWXClient) fetchJob(ctx context.Context, u string) (*JobRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	req.SetBasicAuth(c.cfg.Username, c.cfg.Password)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, nil
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("controller returned %s", resp.Status)
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, backoff.Permanent(fmt.Errorf("controller returned %s: %s", resp.Status, strings.TrimSpace(string(body))))
	}

	var job JobRecord
	if err := json.NewDecoder(resp.Body).Decode(&job); err != nil {
		return nil, backoff.Permanent(fmt.Errorf("decode job: %w", err))
	}
	if job.RawExtraVars != "" {
		if err := json.Unmarshal([]byte(job.RawExtraVars), &job.ExtraVars); err != nil {
			return nil, backoff.Permanent(fmt.Errorf("decode job extra_vars: %w", err))
		}
	}
	return &job, nil
}
