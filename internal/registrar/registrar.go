// Package registrar creates marketplace accounts by driving a browser through sign-up forms.
//
// A [Registrar] owns at most one browser session. The session is opened on the first attempt,
// reused by later attempts and released by [Registrar.Close]; a semaphore keeps two attempts from
// sharing it, and a waiting attempt gives up when its context ends. [Pool] keeps one Registrar per
// user so users never wait on each other. Required form fields that cannot be found fail the
// attempt with a [RegistrationError] wrapping [shared.ErrRegistrationFieldMissing]; optional ones
// are skipped.
package registrar

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/exfarm/internal/browser"
	"github.com/desertthunder/exfarm/internal/exchanges"
	"github.com/desertthunder/exfarm/internal/models"
	"github.com/desertthunder/exfarm/internal/services"
	"github.com/desertthunder/exfarm/internal/shared"
)

const (
	defaultTimeout = 12 * time.Second
	successPoll    = 250 * time.Millisecond
)

// recaptchaResponse matches the hidden textarea the widget reads its token from.
var recaptchaResponse = []string{"#g-recaptcha-response", "textarea[name=g-recaptcha-response]"}

// RegistrationError reports which marketplace and form element failed.
type RegistrationError struct {
	Marketplace models.Marketplace
	Field       string
	Err         error
}

func (e *RegistrationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("registration on %s failed: %v", e.Marketplace, e.Err)
	}
	return fmt.Sprintf("registration on %s failed at %s: %v", e.Marketplace, e.Field, e.Err)
}

func (e *RegistrationError) Unwrap() error { return e.Err }

// AccountStore persists registered accounts.
type AccountStore interface {
	Create(ctx context.Context, account *models.ExchangeAccount) error
	GetActive(ctx context.Context, userID int64, m models.Marketplace) (*models.ExchangeAccount, error)
}

// Config wires a [Registrar].
type Config struct {
	Launch   browser.LaunchFunc
	Solver   services.Solver
	Accounts AccountStore
	// Credentials returns statically configured credentials for a marketplace.
	Credentials func(models.Marketplace) shared.ExchangeConfig
	Timeout     time.Duration
	Logger      *log.Logger
}

// Registrar registers and looks up marketplace accounts.
type Registrar struct {
	launch      browser.LaunchFunc
	solver      services.Solver
	accounts    AccountStore
	credentials func(models.Marketplace) shared.ExchangeConfig
	timeout     time.Duration
	logger      *log.Logger

	// sem holds the single browser session slot; acquire it with [Registrar.lock].
	sem     chan struct{}
	session browser.Browser
}

// New creates a registrar from cfg.
func New(cfg Config) *Registrar {
	r := &Registrar{
		launch:      cfg.Launch,
		solver:      cfg.Solver,
		accounts:    cfg.Accounts,
		credentials: cfg.Credentials,
		timeout:     cfg.Timeout,
		logger:      cfg.Logger,
		sem:         make(chan struct{}, 1),
	}
	if r.timeout <= 0 {
		r.timeout = defaultTimeout
	}
	if r.logger == nil {
		r.logger = log.Default()
	}
	if r.credentials == nil {
		r.credentials = func(models.Marketplace) shared.ExchangeConfig { return shared.ExchangeConfig{} }
	}
	return r
}

// EnsureAccount returns the user's active account on m. Without one it adopts statically
// configured credentials, and failing that registers a new account.
func (r *Registrar) EnsureAccount(ctx context.Context, userID int64, m exchanges.Marketplace) (*models.ExchangeAccount, error) {
	account, err := r.accounts.GetActive(ctx, userID, m.ID())
	if err == nil {
		return account, nil
	}
	if !errors.Is(err, shared.ErrAccountNotFound) {
		return nil, err
	}

	if creds := r.credentials(m.ID()); creds.HasCredentials() {
		account = &models.ExchangeAccount{
			UserID:      userID,
			Marketplace: m.ID(),
			Login:       creds.Login,
			Password:    creds.Password,
			Status:      models.AccountSuccess,
		}
		if err := r.accounts.Create(ctx, account); err != nil {
			return nil, err
		}
		r.logger.Info("adopted configured credentials", "user_id", userID, "marketplace", m.ID())
		return account, nil
	}

	return r.Register(ctx, userID, m)
}

// Register signs up a new account on m for userID and stores it.
//
// The account is returned with status success only after the marketplace's success indicator was
// observed. Failed attempts are stored with status failed.
func (r *Registrar) Register(ctx context.Context, userID int64, m exchanges.Marketplace) (*models.ExchangeAccount, error) {
	identity, err := NewIdentity()
	if err != nil {
		return nil, err
	}

	logger := r.logger.With("user_id", userID, "marketplace", m.ID(), "login", identity.Login)
	logger.Info("registering account")

	regErr := r.attempt(ctx, m, identity)
	if regErr != nil && ctx.Err() != nil {
		return nil, ctx.Err()
	}

	account := &models.ExchangeAccount{
		UserID:      userID,
		Marketplace: m.ID(),
		Login:       identity.Login,
		Password:    identity.Password,
		Email:       identity.Email,
		DisplayName: identity.DisplayName,
		Status:      models.AccountSuccess,
	}
	if regErr != nil {
		account.Status = models.AccountFailed
	}

	if err := r.accounts.Create(ctx, account); err != nil {
		if regErr != nil {
			logger.Warn("failed to store failed registration", "error", err)
			return nil, regErr
		}
		return nil, fmt.Errorf("failed to store account: %w", err)
	}

	if regErr != nil {
		logger.Warn("registration failed", "error", regErr)
		return nil, regErr
	}

	logger.Info("account registered")
	return account, nil
}

// attempt runs the sign-up flow on the shared session.
func (r *Registrar) attempt(ctx context.Context, m exchanges.Marketplace, id Identity) error {
	if err := r.lock(ctx); err != nil {
		return err
	}
	defer r.unlock()

	b, err := r.browserSession(ctx)
	if err != nil {
		return &RegistrationError{Marketplace: m.ID(), Err: fmt.Errorf("%w: %w", shared.ErrWorkCycleTransient, err)}
	}

	err = r.submit(ctx, b, m, id)
	if errors.Is(err, shared.ErrWorkCycleTransient) {
		// Unknown browser state: start fresh next time.
		r.closeSession()
	}
	return err
}

func (r *Registrar) browserSession(ctx context.Context) (browser.Browser, error) {
	if r.session != nil {
		return r.session, nil
	}
	if r.launch == nil {
		return nil, fmt.Errorf("no browser configured")
	}
	b, err := r.launch(ctx)
	if err != nil {
		return nil, err
	}
	r.session = b
	return b, nil
}

func (r *Registrar) submit(ctx context.Context, b browser.Browser, m exchanges.Marketplace, id Identity) error {
	form := m.RegistrationForm()
	fail := func(field string, err error) error {
		return &RegistrationError{Marketplace: m.ID(), Field: field, Err: err}
	}

	if err := b.Navigate(ctx, form.URL); err != nil {
		return fail("page", fmt.Errorf("%w: %w", shared.ErrWorkCycleTransient, err))
	}

	for _, field := range form.Fields {
		var (
			selector string
			err      error
		)
		if field.Required {
			selector, err = FindRequired(ctx, b, field.Selectors)
			if err != nil {
				return fail(string(field.Kind), err)
			}
		} else {
			var ok bool
			if selector, ok = FindOptional(ctx, b, field.Selectors); !ok {
				continue
			}
		}

		if err := b.Fill(ctx, selector, id.value(field.Kind)); err != nil {
			return fail(string(field.Kind), err)
		}
	}

	if checkbox, ok := FindOptional(ctx, b, form.Checkboxes); ok {
		if err := b.Click(ctx, checkbox); err != nil {
			return fail("terms", err)
		}
	}

	if err := r.captcha(ctx, b, form); err != nil {
		return fail("captcha", err)
	}

	submit, err := FindRequired(ctx, b, form.Submit)
	if err != nil {
		return fail("submit", err)
	}
	if err := b.Click(ctx, submit); err != nil {
		return fail("submit", err)
	}

	if err := r.waitSuccess(ctx, b, form.Success); err != nil {
		return fail("success", err)
	}
	return nil
}

// captcha solves the widget when one is present. A missing token is tolerated when the solver is
// disabled or the marketplace accepts submissions without one.
func (r *Registrar) captcha(ctx context.Context, b browser.Browser, form exchanges.Form) error {
	widget, ok := FindOptional(ctx, b, form.Captcha)
	if !ok {
		return nil
	}

	siteKey, _, err := b.Attribute(ctx, widget, "data-sitekey")
	if err != nil {
		return err
	}

	token, solved := "", false
	if r.solverEnabled() {
		token, solved = r.solver.Solve(ctx, siteKey, form.URL)
	}

	if !solved {
		if r.solverEnabled() && !form.CaptchaOptional {
			return shared.ErrCaptchaUnavailable
		}
		r.logger.Debug("submitting without captcha token", "url", form.URL)
		return nil
	}

	target, ok := FindOptional(ctx, b, recaptchaResponse)
	if !ok {
		return fmt.Errorf("%w: response field", shared.ErrRegistrationFieldMissing)
	}
	return b.SetValue(ctx, target, token)
}

func (r *Registrar) solverEnabled() bool {
	if r.solver == nil {
		return false
	}
	if e, ok := r.solver.(interface{ Enabled() bool }); ok {
		return e.Enabled()
	}
	return true
}

// waitSuccess polls for any success selector until the registration timeout.
func (r *Registrar) waitSuccess(ctx context.Context, b browser.Browser, selectors []string) error {
	wctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	ticker := time.NewTicker(successPoll)
	defer ticker.Stop()

	for {
		if _, ok := FindOptional(wctx, b, selectors); ok {
			return nil
		}

		select {
		case <-wctx.Done():
			if err := ctx.Err(); err != nil {
				return err
			}
			return fmt.Errorf("%w after %s", shared.ErrRegistrationTimeout, r.timeout)
		case <-ticker.C:
		}
	}
}

// lock waits for the session slot or for ctx to end.
func (r *Registrar) lock(ctx context.Context) error {
	select {
	case r.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Registrar) unlock() { <-r.sem }

// Close releases the browser session, waiting for an attempt in progress to finish.
func (r *Registrar) Close() error {
	r.sem <- struct{}{}
	defer r.unlock()
	return r.closeSession()
}

func (r *Registrar) closeSession() error {
	if r.session == nil {
		return nil
	}
	err := r.session.Close()
	r.session = nil
	return err
}

// FindOptional returns the first selector that matches an element.
func FindOptional(ctx context.Context, b browser.Browser, selectors []string) (string, bool) {
	for _, s := range selectors {
		if ok, err := b.Exists(ctx, s); err == nil && ok {
			return s, true
		}
	}
	return "", false
}

// FindRequired is [FindOptional] failing with [shared.ErrRegistrationFieldMissing].
func FindRequired(ctx context.Context, b browser.Browser, selectors []string) (string, error) {
	if s, ok := FindOptional(ctx, b, selectors); ok {
		return s, nil
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return "", fmt.Errorf("%w: none of %v", shared.ErrRegistrationFieldMissing, selectors)
}

func (id Identity) value(kind exchanges.FieldKind) string {
	switch kind {
	case exchanges.FieldLogin:
		return id.Login
	case exchanges.FieldEmail:
		return id.Email
	case exchanges.FieldPassword, exchanges.FieldPasswordConfirm:
		return id.Password
	case exchanges.FieldDisplayName:
		return id.DisplayName
	}
	return ""
}
