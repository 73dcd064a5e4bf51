package services

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/exfarm/internal/shared"
	"github.com/sethvargo/go-retry"
	"golang.org/x/time/rate"
)

const (
	defaultTelegramURL = "https://api.telegram.org"
	defaultSendRate    = 25 // messages per second, below the Bot API global limit
	retryDelay         = 500 * time.Millisecond
)

type sendMessageRequest struct {
	ChatID int64  `json:"chat_id"`
	Text   string `json:"text"`
}

type botResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code"`
	Description string `json:"description"`
}

// TelegramNotifier sends messages with the Bot API sendMessage method.
//
// Sends share one rate limiter across users; 429 and 5xx responses and network failures are
// retried with a constant backoff.
type TelegramNotifier struct {
	api        *APIService
	token      string
	limiter    *rate.Limiter
	maxRetries uint64
	delay      time.Duration
	logger     *log.Logger
}

// NewTelegramNotifier creates a notifier from the bot configuration.
func NewTelegramNotifier(cfg shared.BotConfig, client *http.Client, logger *log.Logger) *TelegramNotifier {
	if logger == nil {
		logger = log.Default()
	}

	baseURL := strings.TrimSuffix(cfg.APIURL, "/")
	if baseURL == "" {
		baseURL = defaultTelegramURL
	}

	limit := cfg.RateLimit
	if limit <= 0 {
		limit = defaultSendRate
	}

	return &TelegramNotifier{
		api:        NewAPIService(baseURL, client),
		token:      cfg.Token,
		limiter:    rate.NewLimiter(rate.Limit(limit), 1),
		maxRetries: uint64(max(cfg.MaxRetries, 0)),
		delay:      retryDelay,
		logger:     logger,
	}
}

// WithRetryDelay overrides the delay between delivery attempts.
func (n *TelegramNotifier) WithRetryDelay(d time.Duration) *TelegramNotifier {
	n.delay = d
	return n
}

// Notify sends text to the chat of userID.
func (n *TelegramNotifier) Notify(ctx context.Context, userID int64, text string) error {
	path := "/bot" + n.token + "/sendMessage"
	body := sendMessageRequest{ChatID: userID, Text: text}

	backoff := retry.WithMaxRetries(n.maxRetries, retry.NewConstant(max(n.delay, time.Millisecond)))

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := n.limiter.Wait(ctx); err != nil {
			return err
		}

		resp, err := n.api.PostJSON(ctx, path, body)
		if err != nil {
			if ctx.Err() != nil {
				return err
			}
			n.logger.Debug("sendMessage failed, retrying", "user_id", userID, "error", err)
			return retry.RetryableError(fmt.Errorf("%w: %w", shared.ErrAPIRequest, err))
		}

		if resp.OK() {
			return nil
		}

		var br botResponse
		_ = resp.Decode(&br)
		err = fmt.Errorf("%w: sendMessage returned %d: %s", shared.ErrAPIRequest, resp.StatusCode, br.Description)

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return retry.RetryableError(err)
		}
		return err
	})
}

// LogNotifier writes notifications to a logger instead of a chat.
type LogNotifier struct {
	logger *log.Logger
}

// NewLogNotifier creates a notifier that logs at info level.
func NewLogNotifier(logger *log.Logger) *LogNotifier {
	if logger == nil {
		logger = log.Default()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(_ context.Context, userID int64, text string) error {
	n.logger.Info("notification", "user_id", userID, "text", text)
	return nil
}

// NewNotifier returns a [TelegramNotifier] when a real bot token is configured, otherwise a [LogNotifier].
func NewNotifier(cfg shared.BotConfig, client *http.Client, logger *log.Logger) Notifier {
	if shared.IsPlaceholder(cfg.Token) {
		return NewLogNotifier(logger)
	}
	return NewTelegramNotifier(cfg, client, logger)
}
