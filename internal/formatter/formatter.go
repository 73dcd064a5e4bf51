// package formatter renders earnings reports and task history in various formats (JSON, CSV, Markdown, plain text)
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/desertthunder/exfarm/internal/models"
	"github.com/desertthunder/exfarm/internal/shared"
	"github.com/shopspring/decimal"
)

const timeLayout = "2006-01-02 15:04:05"

// Format names an output format.
type Format string

const (
	FormatText     Format = "text"
	FormatJSON     Format = "json"
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "markdown"
)

// ParseFormat maps a flag value to a [Format].
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatText, FormatJSON, FormatCSV, FormatMarkdown:
		return Format(s), nil
	case "", "txt":
		return FormatText, nil
	case "md":
		return FormatMarkdown, nil
	}
	return "", fmt.Errorf("%w: unknown format %q", shared.ErrInvalidArgument, s)
}

// StatsReport is everything shown on the stats screen for one user.
type StatsReport struct {
	Aggregate *models.UserAggregate
	Earnings  []models.MarketplaceEarnings
	Balances  []models.Balance
	Session   models.UserSession
}

type statsJSON struct {
	UserID           int64         `json:"user_id"`
	Username         string        `json:"username,omitempty"`
	RegistrationDate *time.Time    `json:"registration_date,omitempty"`
	TotalEarned      string        `json:"total_earned"`
	TasksCompleted   int           `json:"tasks_completed"`
	Working          bool          `json:"working"`
	Enabled          []string      `json:"enabled_marketplaces"`
	CycleCount       int           `json:"cycle_count"`
	Earnings         []earningJSON `json:"earnings"`
	Balances         []balanceJSON `json:"balances"`
	TotalBalance     string        `json:"total_balance"`
}

type earningJSON struct {
	Marketplace string `json:"marketplace"`
	Amount      string `json:"amount"`
	Tasks       int    `json:"tasks"`
}

type balanceJSON struct {
	Marketplace string    `json:"marketplace"`
	Balance     string    `json:"balance"`
	LastUpdated time.Time `json:"last_updated"`
}

type taskJSON struct {
	ID          string     `json:"id"`
	Marketplace string     `json:"marketplace"`
	TaskType    string     `json:"task_type"`
	Title       string     `json:"title"`
	Amount      string     `json:"amount"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

func money(d decimal.Decimal) string { return d.StringFixed(2) }

// ExportStatsToJSON converts a StatsReport to pretty-printed JSON.
func ExportStatsToJSON(r *StatsReport) ([]byte, error) {
	out := statsJSON{
		Enabled:      []string{},
		Earnings:     []earningJSON{},
		Balances:     balancesJSON(r.Balances),
		TotalBalance: money(models.TotalBalance(r.Balances)),
		Working:      r.Session.Working,
		CycleCount:   r.Session.CycleCount,
	}
	if r.Aggregate != nil {
		out.UserID = r.Aggregate.UserID
		out.Username = r.Aggregate.Username
		out.TotalEarned = money(r.Aggregate.TotalEarned)
		out.TasksCompleted = r.Aggregate.TasksCompleted
		if !r.Aggregate.RegistrationDate.IsZero() {
			out.RegistrationDate = &r.Aggregate.RegistrationDate
		}
	}
	for _, m := range r.Session.Enabled {
		out.Enabled = append(out.Enabled, m.String())
	}
	for _, e := range r.Earnings {
		out.Earnings = append(out.Earnings, earningJSON{Marketplace: e.Marketplace.String(), Amount: money(e.Amount), Tasks: e.Tasks})
	}
	return shared.MarshalJSON(out, true)
}

func balancesJSON(balances []models.Balance) []balanceJSON {
	out := make([]balanceJSON, 0, len(balances))
	for _, b := range balances {
		out = append(out, balanceJSON{Marketplace: b.Marketplace.String(), Balance: money(b.Balance), LastUpdated: b.LastUpdated})
	}
	return out
}

// ExportStatsToText converts a StatsReport to plain text format
func ExportStatsToText(r *StatsReport) ([]byte, error) {
	var buf bytes.Buffer

	if r.Aggregate != nil {
		buf.WriteString(fmt.Sprintf("User: %d", r.Aggregate.UserID))
		if r.Aggregate.Username != "" {
			buf.WriteString(fmt.Sprintf(" (%s)", r.Aggregate.Username))
		}
		buf.WriteString("\n")
		if !r.Aggregate.RegistrationDate.IsZero() {
			buf.WriteString(fmt.Sprintf("Registered: %s\n", r.Aggregate.RegistrationDate.Format(timeLayout)))
		}
		buf.WriteString(fmt.Sprintf("Total earned: %s RUB\n", money(r.Aggregate.TotalEarned)))
		buf.WriteString(fmt.Sprintf("Tasks completed: %d\n", r.Aggregate.TasksCompleted))
	}

	status := "stopped"
	if r.Session.Working {
		status = "working"
	}
	buf.WriteString(fmt.Sprintf("Status: %s (cycle %d)\n", status, r.Session.CycleCount))
	buf.WriteString(fmt.Sprintf("Marketplaces: %s\n", joinMarketplaces(r.Session.Enabled)))

	if len(r.Earnings) > 0 {
		buf.WriteString("\nEarnings by marketplace:\n")
		for _, e := range r.Earnings {
			buf.WriteString(fmt.Sprintf("  %-10s %10s RUB  (%d tasks)\n", e.Marketplace, money(e.Amount), e.Tasks))
		}
	}

	if len(r.Balances) > 0 {
		buf.WriteString("\n")
		buf.Write(balancesText(r.Balances))
	}

	return buf.Bytes(), nil
}

// ExportStatsToMarkdown converts a StatsReport to Markdown format with earnings and balance tables
func ExportStatsToMarkdown(r *StatsReport) ([]byte, error) {
	var buf bytes.Buffer

	if r.Aggregate != nil {
		buf.WriteString(fmt.Sprintf("# Earnings for %d\n\n", r.Aggregate.UserID))
		buf.WriteString(fmt.Sprintf("**Total earned**: %s RUB\n", money(r.Aggregate.TotalEarned)))
		buf.WriteString(fmt.Sprintf("**Tasks completed**: %d\n", r.Aggregate.TasksCompleted))
	} else {
		buf.WriteString("# Earnings\n\n")
	}
	buf.WriteString(fmt.Sprintf("**Marketplaces**: %s\n\n", joinMarketplaces(r.Session.Enabled)))

	buf.WriteString("## By Marketplace\n\n")
	buf.WriteString("| Marketplace | Earned | Tasks |\n|---|---:|---:|\n")
	for _, e := range r.Earnings {
		buf.WriteString(fmt.Sprintf("| %s | %s | %d |\n", e.Marketplace, money(e.Amount), e.Tasks))
	}

	buf.WriteString("\n## Balances\n\n")
	buf.WriteString("| Marketplace | Balance | Updated |\n|---|---:|---|\n")
	for _, b := range r.Balances {
		buf.WriteString(fmt.Sprintf("| %s | %s | %s |\n", b.Marketplace, money(b.Balance), b.LastUpdated.Format(timeLayout)))
	}
	buf.WriteString(fmt.Sprintf("| **Total** | **%s** | |\n", money(models.TotalBalance(r.Balances))))

	return buf.Bytes(), nil
}

// ExportStatsToCSV writes one row per marketplace with earnings and current balance.
func ExportStatsToCSV(r *StatsReport) ([]byte, error) {
	balances := make(map[models.Marketplace]decimal.Decimal, len(r.Balances))
	for _, b := range r.Balances {
		balances[b.Marketplace] = b.Balance
	}

	rows := [][]string{{"Marketplace", "Earned", "Tasks", "Balance"}}
	for _, e := range r.Earnings {
		rows = append(rows, []string{e.Marketplace.String(), money(e.Amount), strconv.Itoa(e.Tasks), money(balances[e.Marketplace])})
	}
	return writeCSV(rows)
}

// ExportStats renders a StatsReport in the requested format.
func ExportStats(r *StatsReport, f Format) ([]byte, error) {
	switch f {
	case FormatJSON:
		return ExportStatsToJSON(r)
	case FormatCSV:
		return ExportStatsToCSV(r)
	case FormatMarkdown:
		return ExportStatsToMarkdown(r)
	default:
		return ExportStatsToText(r)
	}
}

// ExportBalancesToText lists balances with a total line.
func ExportBalancesToText(balances []models.Balance) ([]byte, error) {
	if len(balances) == 0 {
		return []byte("No balances yet.\n"), nil
	}
	return balancesText(balances), nil
}

// ExportBalances renders balances in the requested format.
func ExportBalances(balances []models.Balance, f Format) ([]byte, error) {
	switch f {
	case FormatJSON:
		return shared.MarshalJSON(struct {
			Balances []balanceJSON `json:"balances"`
			Total    string        `json:"total"`
		}{balancesJSON(balances), money(models.TotalBalance(balances))}, true)
	case FormatCSV:
		rows := [][]string{{"Marketplace", "Balance", "Last Updated"}}
		for _, b := range balances {
			rows = append(rows, []string{b.Marketplace.String(), money(b.Balance), b.LastUpdated.Format(time.RFC3339)})
		}
		return writeCSV(rows)
	case FormatMarkdown:
		return ExportStatsToMarkdown(&StatsReport{Balances: balances})
	default:
		return ExportBalancesToText(balances)
	}
}

func balancesText(balances []models.Balance) []byte {
	var buf bytes.Buffer
	buf.WriteString("Balances:\n")
	for _, b := range balances {
		buf.WriteString(fmt.Sprintf("  %-10s %10s RUB\n", b.Marketplace, money(b.Balance)))
	}
	buf.WriteString(fmt.Sprintf("  %-10s %10s RUB\n", "total", money(models.TotalBalance(balances))))
	return buf.Bytes()
}

// ExportTasksToCSV converts tasks to CSV format with columns: ID, Marketplace, Type, Title, Amount, Status, Completed At
func ExportTasksToCSV(tasks []*models.Task) ([]byte, error) {
	rows := [][]string{{"ID", "Marketplace", "Type", "Title", "Amount", "Status", "Completed At"}}
	for _, t := range tasks {
		completed := ""
		if t.CompletedAt != nil {
			completed = t.CompletedAt.Format(time.RFC3339)
		}
		rows = append(rows, []string{t.ID, t.Marketplace.String(), t.TaskType, t.Title, money(t.Amount), string(t.Status), completed})
	}
	return writeCSV(rows)
}

// ExportTasksToText converts tasks to a numbered plain text list
func ExportTasksToText(tasks []*models.Task) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(fmt.Sprintf("Tasks: %d\n\n", len(tasks)))
	for i, t := range tasks {
		buf.WriteString(fmt.Sprintf("%d. [%s] %s - %s RUB (%s)\n", i+1, t.Marketplace, t.Title, money(t.Amount), t.CreatedAt.Format(timeLayout)))
	}
	return buf.Bytes(), nil
}

// ExportTasks renders tasks in the requested format.
func ExportTasks(tasks []*models.Task, f Format) ([]byte, error) {
	switch f {
	case FormatJSON:
		out := make([]taskJSON, 0, len(tasks))
		for _, t := range tasks {
			out = append(out, taskJSON{
				ID:          t.ID,
				Marketplace: t.Marketplace.String(),
				TaskType:    t.TaskType,
				Title:       t.Title,
				Amount:      money(t.Amount),
				Status:      string(t.Status),
				CreatedAt:   t.CreatedAt,
				CompletedAt: t.CompletedAt,
			})
		}
		return shared.MarshalJSON(out, true)
	case FormatCSV:
		return ExportTasksToCSV(tasks)
	case FormatMarkdown:
		var buf bytes.Buffer
		buf.WriteString("| Marketplace | Title | Amount | Completed |\n|---|---|---:|---|\n")
		for _, t := range tasks {
			completed := ""
			if t.CompletedAt != nil {
				completed = t.CompletedAt.Format(timeLayout)
			}
			buf.WriteString(fmt.Sprintf("| %s | %s | %s | %s |\n", t.Marketplace, t.Title, money(t.Amount), completed))
		}
		return buf.Bytes(), nil
	default:
		return ExportTasksToText(tasks)
	}
}

// WriteExport writes rendered output to path.
//
// Defaults to {base}.{ext} when path is empty.
func WriteExport(data []byte, path, base string, f Format) (string, error) {
	if path == "" {
		path = base + "." + extension(f)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write %s file: %w", f, err)
	}
	return path, nil
}

func extension(f Format) string {
	switch f {
	case FormatJSON:
		return "json"
	case FormatCSV:
		return "csv"
	case FormatMarkdown:
		return "md"
	default:
		return "txt"
	}
}

func writeCSV(rows [][]string) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	for i, row := range rows {
		if err := writer.Write(row); err != nil {
			if i == 0 {
				return nil, fmt.Errorf("failed to write CSV headers: %w", err)
			}
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}
	return buf.Bytes(), nil
}

func joinMarketplaces(ids []models.Marketplace) string {
	if len(ids) == 0 {
		return "none"
	}
	var buf bytes.Buffer
	for i, id := range ids {
		if i > 0 {
			buf.WriteString(", ")
		}
		buf.WriteString(id.String())
	}
	return buf.String()
}
