package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"promptathon/internal/domain"
)

// NewConsoleCmd builds the subcommand that redraws the leaderboard in the
// terminal on a fixed interval.
func NewConsoleCmd(eventPath *string) *cobra.Command {
	var interval time.Duration
	cmd := &cobra.Command{
		Use:   "console",
		Short: "Render the leaderboard in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConsole(cmd.Context(), *eventPath, interval)
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", 0, "refresh interval (defaults to LEADERBOARD_REFRESH)")
	return cmd
}

func runConsole(ctx context.Context, eventPath string, interval time.Duration) error {
	eng, err := newEngine(ctx, eventPath)
	if err != nil {
		return err
	}
	defer eng.Close()

	if interval <= 0 {
		interval = eng.cfg.Refresh
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	render := func() {
		entries := eng.leaderboard.Build(ctx)
		fmt.Print("\033[2J\033[H") // clear the terminal
		fmt.Println(renderTitle(eng.cfg.Title))
		if len(entries) == 0 {
			fmt.Println("No submissions found!")
			return
		}
		fmt.Println(renderTable(entries))
	}

	render()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			render()
		case <-stop:
			fmt.Println("\nExiting...")
			return nil
		case <-ctx.Done():
			return nil
		}
	}
}

func renderTitle(title string) string {
	return lipgloss.NewStyle().
		Bold(true).
		Padding(0, 2).
		Border(lipgloss.DoubleBorder()).
		Render(title)
}

func renderTable(entries []domain.LeaderboardEntry) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return lipgloss.NewStyle().Bold(true).Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		}).
		Headers("Rank", "User", "Score", "Levels Cleared")

	for _, entry := range entries {
		cleared := make([]string, 0, len(entry.Cleared))
		for _, pair := range entry.Cleared {
			cleared = append(cleared, pair.String())
		}
		t.Row(strconv.Itoa(entry.Rank), entry.DisplayName, strconv.Itoa(entry.Score), strings.Join(cleared, "\n"))
	}
	return t.Render()
}
