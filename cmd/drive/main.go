// Command drive exercises a running localization server over its REST API.
// It opens one or more sessions, steps each one in bulk until the estimate
// settles or a step budget runs out, and reports how every session ended.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/wricardo/grid-localization/game/engine"
	"github.com/wricardo/grid-localization/game/service"
	"github.com/wricardo/grid-localization/internal/logging"
)

// Client talks to one session of the REST API
type Client struct {
	baseURL   string
	sessionID string
	client    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// do sends a JSON request and decodes a JSON response into out
func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		data, _ := io.ReadAll(resp.Body)
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s %s: %s (%d)", method, path, apiErr.Error, resp.StatusCode)
		}
		return fmt.Errorf("%s %s: %s", method, path, resp.Status)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("parse %s response: %w", path, err)
		}
	}
	return nil
}

func (c *Client) sessionPath(suffix string) string {
	return "/api/sessions/" + url.PathEscape(c.sessionID) + suffix
}

// CreateSession opens a new session and binds the client to it
func (c *Client) CreateSession(ctx context.Context, configName string) (*service.SessionInfo, error) {
	req := map[string]string{}
	if configName != "" {
		req["config_name"] = configName
	}

	var info service.SessionInfo
	if err := c.do(ctx, http.MethodPost, "/api/sessions", req, &info); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	c.sessionID = info.ID
	return &info, nil
}

// GetSession fetches the bound session
func (c *Client) GetSession(ctx context.Context) (*service.SessionInfo, error) {
	var info service.SessionInfo
	if err := c.do(ctx, http.MethodGet, c.sessionPath(""), nil, &info); err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return &info, nil
}

// BulkStep runs up to steps steps on the bound session
func (c *Client) BulkStep(ctx context.Context, steps int) (*service.BulkStepResult, error) {
	var result service.BulkStepResult
	if err := c.do(ctx, http.MethodPost, c.sessionPath("/bulk-step"), map[string]int{"steps": steps}, &result); err != nil {
		return nil, fmt.Errorf("bulk step: %w", err)
	}
	return &result, nil
}

// Restart starts a new game on the bound session. numColors 0 keeps the count.
func (c *Client) Restart(ctx context.Context, numColors int) (*engine.Snapshot, error) {
	var req interface{}
	if numColors > 0 {
		req = map[string]int{"num_colors": numColors}
	}

	var resp struct {
		Snapshot *engine.Snapshot `json:"snapshot"`
	}
	if err := c.do(ctx, http.MethodPost, c.sessionPath("/restart"), req, &resp); err != nil {
		return nil, fmt.Errorf("restart: %w", err)
	}
	return resp.Snapshot, nil
}

// DeleteSession removes the bound session
func (c *Client) DeleteSession(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, c.sessionPath(""), nil, nil)
}

// Options control one drive run
type Options struct {
	ConfigName string
	SessionID  string
	NumColors  int
	MaxSteps   int
	Batch      int
	Threshold  float64
	Delay      time.Duration
	Keep       bool
}

// Outcome is how one driven session ended
type Outcome struct {
	SessionID string
	Steps     int
	Settled   bool
	Estimate  engine.Estimate
	Err       error
}

// drive opens or resumes a session and steps it until the estimate settles
func drive(ctx context.Context, c *Client, opts Options) Outcome {
	var out Outcome

	var info *service.SessionInfo
	var err error
	if opts.SessionID != "" {
		c.sessionID = opts.SessionID
		info, err = c.GetSession(ctx)
	} else {
		info, err = c.CreateSession(ctx, opts.ConfigName)
	}
	if err != nil {
		out.Err = err
		return out
	}
	out.SessionID = info.ID

	if !opts.Keep && opts.SessionID == "" {
		defer func() {
			if err := c.DeleteSession(context.Background()); err != nil {
				log.Warn().Err(err).Str("session", out.SessionID).Msg("Failed to delete session")
			}
		}()
	}

	if _, err := c.Restart(ctx, opts.NumColors); err != nil {
		out.Err = err
		return out
	}

	threshold := opts.Threshold
	if threshold <= 0 && info.Config != nil {
		threshold = engine.CertaintyThreshold(info.Config.SensorAccuracy)
	}

	batch := opts.Batch
	if batch < 1 || batch > service.MaxBulkSteps {
		batch = service.MaxBulkSteps
	}

	for out.Steps < opts.MaxSteps {
		n := batch
		if remaining := opts.MaxSteps - out.Steps; remaining < n {
			n = remaining
		}

		result, err := c.BulkStep(ctx, n)
		if err != nil {
			out.Err = err
			return out
		}
		out.Steps += result.StepsExecuted
		out.Estimate = result.Estimate

		if !result.Success {
			out.Err = fmt.Errorf("stopped on step %d: %s", result.StoppedOnStep, result.StoppedReason)
			return out
		}
		if result.Estimate.Probability > threshold {
			out.Settled = true
			return out
		}

		log.Debug().
			Str("session", out.SessionID).
			Int("steps", out.Steps).
			Float64("p", result.Estimate.Probability).
			Msg("Progress")

		if opts.Delay > 0 {
			select {
			case <-ctx.Done():
				out.Err = ctx.Err()
				return out
			case <-time.After(opts.Delay):
			}
		}
	}
	return out
}

// driveMany drives sessions concurrently, one client per session
func driveMany(ctx context.Context, baseURL string, sessions int, opts Options) []Outcome {
	outcomes := make([]Outcome, sessions)
	var wg sync.WaitGroup
	for i := 0; i < sessions; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outcomes[i] = drive(ctx, NewClient(baseURL), opts)
		}(i)
	}
	wg.Wait()
	return outcomes
}

func main() {
	cmd := &cli.Command{
		Name:  "drive",
		Usage: "Step sessions on a running server until their estimates settle",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "url", Value: "http://localhost:8080", Usage: "Server URL", Sources: cli.EnvVars("API_URL")},
			&cli.StringFlag{Name: "config", Usage: "Config name for new sessions"},
			&cli.StringFlag{Name: "continue", Usage: "Drive an existing session by ID instead of creating one"},
			&cli.IntFlag{Name: "sessions", Value: 1, Usage: "Number of sessions to drive concurrently"},
			&cli.IntFlag{Name: "colors", Usage: "Restart with this many colors (4-8)"},
			&cli.IntFlag{Name: "max-steps", Value: 1000, Usage: "Maximum steps per session"},
			&cli.IntFlag{Name: "batch", Value: 10, Usage: "Steps per bulk-step request"},
			&cli.Float64Flag{Name: "threshold", Usage: "Certainty threshold (default derived from accuracy)"},
			&cli.DurationFlag{Name: "delay", Usage: "Pause between requests"},
			&cli.BoolFlag{Name: "keep", Usage: "Keep created sessions instead of deleting them"},
			&cli.BoolFlag{Name: "v", Usage: "Verbose output"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			level := "INFO"
			if cmd.Bool("v") {
				level = "DEBUG"
			}
			logging.Setup(logging.Options{Level: level})

			opts := Options{
				ConfigName: cmd.String("config"),
				SessionID:  cmd.String("continue"),
				NumColors:  cmd.Int("colors"),
				MaxSteps:   cmd.Int("max-steps"),
				Batch:      cmd.Int("batch"),
				Threshold:  cmd.Float64("threshold"),
				Delay:      cmd.Duration("delay"),
				Keep:       cmd.Bool("keep"),
			}

			sessions := cmd.Int("sessions")
			if opts.SessionID != "" {
				sessions = 1
			}

			log.Info().Str("url", cmd.String("url")).Int("sessions", sessions).Msg("Driving sessions")
			outcomes := driveMany(ctx, cmd.String("url"), sessions, opts)

			failed := 0
			for _, o := range outcomes {
				event := log.Info()
				if o.Err != nil {
					failed++
					event = log.Error().Err(o.Err)
				}
				event.
					Str("session", o.SessionID).
					Int("steps", o.Steps).
					Bool("settled", o.Settled).
					Bool("correct", o.Estimate.Correct).
					Float64("p", o.Estimate.Probability).
					Msg("Session finished")
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d sessions failed", failed, len(outcomes))
			}
			return nil
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Error().Err(err).Msg("drive failed")
		os.Exit(1)
	}
}
