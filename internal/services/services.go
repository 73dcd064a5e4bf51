// package services implements the HTTP integrations of the work cycle: CAPTCHA solving and chat notifications
package services

import "context"

// Solver obtains a CAPTCHA token for a widget on a page.
//
// ok is false when no token could be obtained; callers decide whether to proceed without one.
type Solver interface {
	Solve(ctx context.Context, siteKey, pageURL string) (token string, ok bool)
}

// Notifier delivers a text message to the chat of a user.
type Notifier interface {
	Notify(ctx context.Context, userID int64, text string) error
}
