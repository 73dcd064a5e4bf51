package services

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/exfarm/internal/shared"
	"github.com/shopspring/decimal"
)

const (
	CaptchaServiceAntiCaptcha = "anti-captcha"
	CaptchaServiceCapMonster  = "capmonster"
	CaptchaServiceNone        = "none"

	recaptchaTaskType = "NoCaptchaTaskProxyless"

	defaultPollInterval = 2 * time.Second
	defaultMaxAttempts  = 30
)

var captchaBaseURLs = map[string]string{
	CaptchaServiceAntiCaptcha: "https://api.anti-captcha.com",
	CaptchaServiceCapMonster:  "https://api.capmonster.cloud",
}

type captchaTask struct {
	Type       string `json:"type"`
	WebsiteURL string `json:"websiteURL"`
	WebsiteKey string `json:"websiteKey"`
}

type createTaskRequest struct {
	ClientKey string      `json:"clientKey"`
	Task      captchaTask `json:"task"`
}

// captchaError is the error envelope shared by every response.
type captchaError struct {
	ErrorID          int    `json:"errorId"`
	ErrorCode        string `json:"errorCode"`
	ErrorDescription string `json:"errorDescription"`
}

func (e captchaError) err() error {
	if e.ErrorID == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s (%s)", shared.ErrAPIRequest, e.ErrorCode, e.ErrorDescription)
}

type createTaskResponse struct {
	captchaError
	TaskID int64 `json:"taskId"`
}

type taskResultRequest struct {
	ClientKey string `json:"clientKey"`
	TaskID    int64  `json:"taskId"`
}

type taskResultResponse struct {
	captchaError
	Status   string `json:"status"`
	Solution struct {
		GRecaptchaResponse string `json:"gRecaptchaResponse"`
		Text               string `json:"text"`
	} `json:"solution"`
}

type balanceRequest struct {
	ClientKey string `json:"clientKey"`
}

type balanceResponse struct {
	captchaError
	Balance float64 `json:"balance"`
}

// CaptchaClient solves reCAPTCHA widgets through an anti-captcha compatible service.
type CaptchaClient struct {
	api          *APIService
	service      string
	apiKey       string
	pollInterval time.Duration
	maxAttempts  int
	logger       *log.Logger
}

// NewCaptchaClient creates a client for the configured service. cfg.BaseURL overrides the
// service's public endpoint.
func NewCaptchaClient(cfg shared.CaptchaConfig, client *http.Client, logger *log.Logger) *CaptchaClient {
	if logger == nil {
		logger = log.Default()
	}

	service := strings.ToLower(strings.TrimSpace(cfg.Service))
	if service == "" {
		service = CaptchaServiceNone
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = captchaBaseURLs[service]
	}

	c := &CaptchaClient{
		api:          NewAPIService(strings.TrimSuffix(baseURL, "/"), client),
		service:      service,
		apiKey:       cfg.APIKey,
		pollInterval: time.Duration(cfg.PollInterval) * time.Second,
		maxAttempts:  cfg.MaxAttempts,
		logger:       logger,
	}
	if c.pollInterval <= 0 {
		c.pollInterval = defaultPollInterval
	}
	if c.maxAttempts <= 0 {
		c.maxAttempts = defaultMaxAttempts
	}
	return c
}

// WithPollInterval overrides the delay between result polls.
func (c *CaptchaClient) WithPollInterval(d time.Duration) *CaptchaClient {
	c.pollInterval = d
	return c
}

// Enabled reports whether the client will contact the service.
func (c *CaptchaClient) Enabled() bool {
	return c.service != CaptchaServiceNone && c.api.baseURL != "" && !shared.IsPlaceholder(c.apiKey)
}

// Service returns the configured service name.
func (c *CaptchaClient) Service() string {
	return c.service
}

// Solve creates a task for the widget and polls for its solution.
//
// Returns ("", false) when disabled, when task creation fails, when the service reports an error,
// when attempts are exhausted, or when ctx is cancelled.
func (c *CaptchaClient) Solve(ctx context.Context, siteKey, pageURL string) (string, bool) {
	if !c.Enabled() {
		c.logger.Debug("captcha solver disabled", "service", c.service)
		return "", false
	}

	taskID, err := c.createTask(ctx, siteKey, pageURL)
	if err != nil {
		c.logger.Warn("captcha task creation failed", "service", c.service, "error", err)
		return "", false
	}

	timer := time.NewTimer(c.pollInterval)
	defer timer.Stop()

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return "", false
		case <-timer.C:
		}

		result, err := c.taskResult(ctx, taskID)
		switch {
		case err != nil && ctx.Err() != nil:
			return "", false
		case err != nil:
			c.logger.Warn("captcha result failed", "task_id", taskID, "attempt", attempt, "error", err)
			return "", false
		case result != "":
			c.logger.Debug("captcha solved", "task_id", taskID, "attempts", attempt)
			return result, true
		}

		timer.Reset(c.pollInterval)
	}

	c.logger.Warn("captcha attempts exhausted", "task_id", taskID, "attempts", c.maxAttempts)
	return "", false
}

// Balance returns the account balance reported by the service.
func (c *CaptchaClient) Balance(ctx context.Context) (decimal.Decimal, error) {
	if !c.Enabled() {
		return decimal.Zero, fmt.Errorf("%w: captcha service %q", shared.ErrServiceUnavailable, c.service)
	}

	var out balanceResponse
	if err := c.call(ctx, "/getBalance", balanceRequest{ClientKey: c.apiKey}, &out); err != nil {
		return decimal.Zero, err
	}
	if err := out.err(); err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromFloat(out.Balance), nil
}

func (c *CaptchaClient) createTask(ctx context.Context, siteKey, pageURL string) (int64, error) {
	req := createTaskRequest{
		ClientKey: c.apiKey,
		Task:      captchaTask{Type: recaptchaTaskType, WebsiteURL: pageURL, WebsiteKey: siteKey},
	}

	var out createTaskResponse
	if err := c.call(ctx, "/createTask", req, &out); err != nil {
		return 0, err
	}
	if err := out.err(); err != nil {
		return 0, err
	}
	return out.TaskID, nil
}

// taskResult returns the solution, or "" while the task is still processing.
func (c *CaptchaClient) taskResult(ctx context.Context, taskID int64) (string, error) {
	var out taskResultResponse
	if err := c.call(ctx, "/getTaskResult", taskResultRequest{ClientKey: c.apiKey, TaskID: taskID}, &out); err != nil {
		return "", err
	}
	if err := out.err(); err != nil {
		return "", err
	}
	if out.Status != "ready" {
		return "", nil
	}
	if out.Solution.GRecaptchaResponse != "" {
		return out.Solution.GRecaptchaResponse, nil
	}
	return out.Solution.Text, nil
}

func (c *CaptchaClient) call(ctx context.Context, path string, in, out any) error {
	resp, err := c.api.PostJSON(ctx, path, in)
	if err != nil {
		return fmt.Errorf("%w: %w", shared.ErrAPIRequest, err)
	}
	if !resp.OK() {
		return fmt.Errorf("%w: %s returned status %d", shared.ErrAPIRequest, path, resp.StatusCode)
	}
	return resp.Decode(out)
}
