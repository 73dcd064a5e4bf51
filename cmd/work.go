package main

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/desertthunder/exfarm/internal/models"
	"github.com/desertthunder/exfarm/internal/services"
	"github.com/desertthunder/exfarm/internal/shared"
	"github.com/desertthunder/exfarm/internal/tasks"
	"github.com/urfave/cli/v3"
)

func userID(cmd *cli.Command) (int64, error) {
	user := cmd.Int64("user")
	if user <= 0 {
		return 0, fmt.Errorf("%w: --user must be a positive chat id", shared.ErrMissingArgument)
	}
	return user, nil
}

// selectMarketplaces resolves --marketplace values against the catalog. No values or "all" selects every marketplace.
func (r *Runner) selectMarketplaces(names []string) ([]models.Marketplace, error) {
	if len(names) == 0 {
		return r.catalog.IDs(), nil
	}

	seen := make(map[models.Marketplace]bool)
	for _, name := range names {
		for part := range strings.SplitSeq(name, ",") {
			if strings.EqualFold(strings.TrimSpace(part), "all") {
				return r.catalog.IDs(), nil
			}
			id, err := r.catalog.Parse(part)
			if err != nil {
				return nil, err
			}
			seen[id] = true
		}
	}

	ids := make([]models.Marketplace, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	return models.SortMarketplaces(ids), nil
}

// WorkRun enables the selected marketplaces for --user and runs the work loop in the foreground.
//
// The loop ends on interrupt, when --cycles (or work.max_cycles) is reached, or when it has nothing left to work.
func (r *Runner) WorkRun(ctx context.Context, cmd *cli.Command) error {
	user, err := userID(cmd)
	if err != nil {
		return err
	}

	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}
	if cycles := cmd.Int("cycles"); cycles > 0 {
		copied := *config
		copied.Work.MaxCycles = cycles
		config = &copied
	}

	selected, err := r.selectMarketplaces(cmd.StringSlice("marketplace"))
	if err != nil {
		return err
	}

	st, err := r.buildStack(config, r.logger)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.ledger.EnsureUser(ctx, user, cmd.String("username")); err != nil {
		return err
	}
	for _, id := range selected {
		st.registry.Enable(user, id)
	}

	if err := st.scheduler.Start(ctx, user); err != nil {
		return fmt.Errorf("failed to start work: %w", err)
	}

	r.writePlainHeader(fmt.Sprintf("Working %d marketplace(s) for user %d", len(selected), user))

	done := make(chan struct{})
	go func() {
		st.scheduler.Wait(user)
		close(done)
	}()

	for running := true; running; {
		select {
		case u := <-st.updates:
			r.printUpdate(u)
		case <-done:
			running = false
		}
	}
	for drained := false; !drained; {
		select {
		case u := <-st.updates:
			r.printUpdate(u)
		default:
			drained = true
		}
	}

	agg, err := st.ledger.Aggregate(context.WithoutCancel(ctx), user)
	if err != nil {
		return err
	}
	r.writePlainln("Total earned: %s RUB across %d tasks", agg.TotalEarned.StringFixed(2), agg.TasksCompleted)
	return nil
}

func (r *Runner) printUpdate(u tasks.CycleUpdate) {
	switch u.Phase {
	case tasks.Sleeping, tasks.Discover, tasks.EnsureAccount:
		r.logger.Debug(u.Message, "phase", u.Phase, "marketplace", u.Marketplace, "cycle", u.Cycle)
		return
	}

	ts := u.Time.Format("15:04:05")
	if u.Marketplace == "" {
		r.writePlain("%s  #%d  %s\n", ts, u.Cycle, u.Message)
		return
	}
	r.writePlain("%s  #%d  [%s] %s\n", ts, u.Cycle, u.Marketplace, u.Message)
}

// WorkRegister signs up a new account for --user on --marketplace.
func (r *Runner) WorkRegister(ctx context.Context, cmd *cli.Command) error {
	user, err := userID(cmd)
	if err != nil {
		return err
	}

	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}

	id, err := r.catalog.Parse(cmd.String("marketplace"))
	if err != nil {
		return err
	}
	market, err := r.catalog.Get(id)
	if err != nil {
		return err
	}

	st, err := r.buildStack(config, r.logger)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.ledger.EnsureUser(ctx, user, ""); err != nil {
		return err
	}

	account, err := st.registrar.Register(ctx, user, market)
	if err != nil {
		return err
	}

	r.writePlain("✓ Registered on %s\n", market.DisplayName())
	r.writePlain("  Login:  %s\n", account.Login)
	r.writePlain("  Email:  %s\n", account.Email)
	r.writePlain("  Status: %s\n", account.Status)
	return nil
}

// WorkSettings prints the effective work configuration after environment overrides.
func (r *Runner) WorkSettings(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}

	w := config.Work
	r.writePlainHeader("Work settings")
	r.writePlain("Check interval:     %s\n", w.CheckIntervalDuration())
	r.writePlain("Error backoff:      %s\n", w.ErrorBackoffDuration())
	r.writePlain("Max cycles:         %s\n", limitText(w.MaxCycles))
	r.writePlain("Max tasks per day:  %s\n", limitText(w.MaxTasksPerDay))
	r.writePlain("Task price range:   %.2f - %s RUB\n", w.MinTaskPrice, priceText(w.MaxTaskPrice))
	r.writePlain("Auto accept tasks:  %t\n", w.AutoAcceptTasks)
	r.writePlain("Registration limit: %s\n", w.RegistrationTimeoutDuration())

	r.writePlainln("Services")
	r.writePlain("Captcha solver:     %s\n", enabledText(services.NewCaptchaClient(config.Captcha, r.httpClient, r.logger).Enabled()))
	r.writePlain("Chat notifications: %s\n", enabledText(!shared.IsPlaceholder(config.Bot.Token)))
	r.writePlain("Proxy:              %s\n", enabledText(config.Proxy.URL != ""))

	r.writePlainln("Marketplaces")
	for _, id := range r.catalog.IDs() {
		market, _ := r.catalog.Get(id)
		creds := "registered on demand"
		if config.Exchange(id.String()).HasCredentials() {
			creds = "static credentials"
		}
		r.writePlain("  %-10s %-10s %s\n", id, market.DisplayName(), creds)
	}

	if extra := unknownExchanges(config, r.catalog.IDs()); len(extra) > 0 {
		r.logger.Warn("config has credentials for unknown marketplaces", "names", extra)
	}
	return nil
}

func unknownExchanges(config *shared.Config, known []models.Marketplace) []string {
	index := make(map[string]bool, len(known))
	for _, id := range known {
		index[id.String()] = true
	}
	var names []string
	for name := range config.Exchanges {
		if !index[strings.ToLower(name)] {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

func limitText(n int) string {
	if n <= 0 {
		return "unlimited"
	}
	return fmt.Sprint(n)
}

func priceText(p float64) string {
	if p <= 0 {
		return "any"
	}
	return fmt.Sprintf("%.2f", p)
}

func enabledText(ok bool) string {
	if ok {
		return "enabled"
	}
	return "disabled"
}
