package shared

import "fmt"

var (
	// Configuration errors
	ErrInvalidConfig = fmt.Errorf("invalid configuration")

	// Work cycle errors
	ErrNoMarketplaceSelected = fmt.Errorf("no marketplace selected")
	ErrUnknownMarketplace    = fmt.Errorf("unknown marketplace")
	ErrWorkCycleTransient    = fmt.Errorf("transient work cycle error")
	ErrDailyLimitReached     = fmt.Errorf("daily task limit reached")

	// Registration errors
	ErrRegistrationTimeout      = fmt.Errorf("registration timed out")
	ErrRegistrationFieldMissing = fmt.Errorf("required registration field missing")
	ErrCaptchaUnavailable       = fmt.Errorf("captcha solution unavailable")
	ErrAccountNotFound          = fmt.Errorf("exchange account not found")

	// Ledger errors
	ErrLedgerWriteFailed = fmt.Errorf("ledger write failed")

	// API and service errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)
