// Package services implements the external HTTP integrations used by the work cycle.
//
// # Captcha Solver
//
// [CaptchaClient] speaks the anti-captcha compatible protocol (createTask, getTaskResult,
// getBalance). It never returns an error from [CaptchaClient.Solve]: any failure yields ("", false)
// and the registrar decides whether the marketplace tolerates a missing token. A missing or
// placeholder API key, or the service "none", disables the client without network calls.
//
// # Notifications
//
// [Notifier] is the chat contract. [TelegramNotifier] calls the Bot API sendMessage method with a
// shared [rate.Limiter] and bounded constant-backoff retries; [LogNotifier] writes messages to the
// logger when no bot token is configured.
//
// # Error Handling
//
// Services use typed errors from the shared package:
//   - [shared.ErrAPIRequest] : HTTP request failed or the remote API reported an error
//   - [shared.ErrServiceUnavailable] : the service is disabled by configuration
package services
