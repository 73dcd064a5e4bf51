package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/exfarm/internal/formatter"
	"github.com/desertthunder/exfarm/internal/shared"
	"github.com/desertthunder/exfarm/internal/ui"
	"github.com/urfave/cli/v3"
)

// Dashboard launches the interactive terminal UI for toggling marketplaces and watching the work loop.
func (r *Runner) Dashboard(ctx context.Context, cmd *cli.Command) error {
	user, err := userID(cmd)
	if err != nil {
		return err
	}

	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}

	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger("./tmp/exfarm-dashboard.log")
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	r.SetLogger(fileLogger)

	st, err := r.buildStack(config, fileLogger)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.ledger.EnsureUser(ctx, user, ""); err != nil {
		return err
	}

	stats := func(ctx context.Context) (*formatter.StatsReport, error) {
		return statsReport(ctx, st.stores, st.registry, user)
	}

	model := ui.NewModel(ctx, user, st.scheduler, st.catalog, stats, st.updates)
	p := tea.NewProgram(model, tea.WithContext(ctx))

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}
