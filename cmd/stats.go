package main

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/exfarm/internal/formatter"
	"github.com/desertthunder/exfarm/internal/models"
	"github.com/desertthunder/exfarm/internal/services"
	"github.com/desertthunder/exfarm/internal/sessions"
	"github.com/urfave/cli/v3"
)

// statsReport gathers the aggregate, per-marketplace earnings and balances for user.
func statsReport(ctx context.Context, st *stores, registry *sessions.Registry, user int64) (*formatter.StatsReport, error) {
	agg, err := st.ledger.Aggregate(ctx, user)
	if err != nil {
		return nil, err
	}

	earnings, err := st.ledger.EarningsByMarketplace(ctx, user)
	if err != nil {
		return nil, err
	}

	balances, err := st.ledger.Balances(ctx, user)
	if err != nil {
		return nil, err
	}

	report := &formatter.StatsReport{Aggregate: agg, Earnings: earnings, Balances: balances}
	if registry != nil {
		report.Session, _ = registry.Snapshot(user)
	}
	report.Session.UserID = user
	return report, nil
}

// emit writes data to --output when set, otherwise to the runner's output.
func (r *Runner) emit(cmd *cli.Command, data []byte, base string, f formatter.Format) error {
	if path := cmd.String("output"); path != "" {
		written, err := formatter.WriteExport(data, path, base, f)
		if err != nil {
			return err
		}
		r.logger.Info("report written", "path", written, "format", f)
		return r.writePlain("✓ Wrote %s\n", written)
	}
	return r.writeBytes(data)
}

// Stats prints the earnings report for --user.
func (r *Runner) Stats(ctx context.Context, cmd *cli.Command) error {
	user, err := userID(cmd)
	if err != nil {
		return err
	}
	f, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}
	st, err := r.openStores(config)
	if err != nil {
		return err
	}
	defer st.Close()

	report, err := statsReport(ctx, st, nil, user)
	if err != nil {
		return err
	}

	data, err := formatter.ExportStats(report, f)
	if err != nil {
		return err
	}
	return r.emit(cmd, data, fmt.Sprintf("stats-%d", user), f)
}

// Balances prints per-marketplace balances for --user.
func (r *Runner) Balances(ctx context.Context, cmd *cli.Command) error {
	user, err := userID(cmd)
	if err != nil {
		return err
	}
	f, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}
	st, err := r.openStores(config)
	if err != nil {
		return err
	}
	defer st.Close()

	balances, err := st.ledger.Balances(ctx, user)
	if err != nil {
		return err
	}

	data, err := formatter.ExportBalances(balances, f)
	if err != nil {
		return err
	}
	return r.emit(cmd, data, fmt.Sprintf("balances-%d", user), f)
}

// Tasks prints the task history for --user, newest first.
func (r *Runner) Tasks(ctx context.Context, cmd *cli.Command) error {
	user, err := userID(cmd)
	if err != nil {
		return err
	}
	f, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}
	st, err := r.openStores(config)
	if err != nil {
		return err
	}
	defer st.Close()

	history, err := st.ledger.Tasks(ctx, user, cmd.Int("limit"))
	if err != nil {
		return err
	}

	data, err := formatter.ExportTasks(history, f)
	if err != nil {
		return err
	}
	return r.emit(cmd, data, fmt.Sprintf("tasks-%d", user), f)
}

type accountJSON struct {
	ID          string     `json:"id"`
	Marketplace string     `json:"marketplace"`
	Login       string     `json:"login"`
	Password    string     `json:"password,omitempty"`
	Email       string     `json:"email"`
	DisplayName string     `json:"display_name"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	LastUsed    *time.Time `json:"last_used,omitempty"`
}

// Accounts lists the marketplace accounts of --user. Passwords are masked unless --show-passwords is set.
func (r *Runner) Accounts(ctx context.Context, cmd *cli.Command) error {
	user, err := userID(cmd)
	if err != nil {
		return err
	}

	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}
	st, err := r.openStores(config)
	if err != nil {
		return err
	}
	defer st.Close()

	accounts, err := st.accounts.List(ctx, user)
	if err != nil {
		return err
	}
	show := cmd.Bool("show-passwords")

	if cmd.Bool("json") {
		out := make([]accountJSON, 0, len(accounts))
		for _, a := range accounts {
			out = append(out, accountJSON{
				ID:          a.ID,
				Marketplace: a.Marketplace.String(),
				Login:       a.Login,
				Password:    password(a, show),
				Email:       a.Email,
				DisplayName: a.DisplayName,
				Status:      string(a.Status),
				CreatedAt:   a.CreatedAt,
				LastUsed:    a.LastUsed,
			})
		}
		return r.writeJSON(out, true)
	}

	if len(accounts) == 0 {
		return r.writePlain("No accounts for user %d.\n", user)
	}

	r.writePlainHeader(fmt.Sprintf("Accounts for user %d", user))
	for _, a := range accounts {
		r.writePlain("%-10s %-8s %s", a.Marketplace, a.Status, a.Login)
		if show {
			r.writePlain(" / %s", a.Password)
		}
		lastUsed := "never"
		if a.LastUsed != nil {
			lastUsed = a.LastUsed.Local().Format(time.DateTime)
		}
		r.writePlain("  (last used %s)\n", lastUsed)
	}
	return nil
}

func password(a *models.ExchangeAccount, show bool) string {
	if show {
		return a.Password
	}
	return ""
}

// CaptchaBalance prints the balance of the configured captcha service.
func (r *Runner) CaptchaBalance(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}

	client := services.NewCaptchaClient(config.Captcha, r.httpClient, r.logger)
	balance, err := client.Balance(ctx)
	if err != nil {
		return err
	}
	return r.writePlain("%s balance: $%s\n", client.Service(), balance.StringFixed(2))
}
