package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/ogulcanaydogan/stocksync/pkg/model"
	"github.com/spf13/cobra"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run the alert sweep once",
	Long: `Evaluate every verified user's inventory and send low-stock and expiry
alerts immediately. With --dry-run nothing is sent and no flags are written.`,
	RunE: runSweep,
}

func init() {
	rootCmd.AddCommand(sweepCmd)
	sweepCmd.Flags().Bool("dry-run", false, "Show pending alerts without sending them")
	sweepCmd.Flags().Bool("json", false, "Print the result as JSON")
}

func runSweep(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	asJSON, _ := cmd.Flags().GetBool("json")

	logger := newLogger(cfg)

	store, err := initStorage(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	mailer, texter, err := initChannels(cfg, logger)
	if err != nil {
		return err
	}
	sweeper := initSweeper(cfg, store, mailer, texter, logger)
	ctx := cmd.Context()

	if dryRun {
		users, err := store.ListEligibleUsers(ctx)
		if err != nil {
			return fmt.Errorf("list users: %w", err)
		}

		var pending []model.PendingNotification
		for _, u := range users {
			plan, err := sweeper.Preview(ctx, u)
			if err != nil {
				logger.Error("preview user failed", "user_id", u.ID, "error", err)
				continue
			}
			pending = append(pending, plan.Notifications...)
		}

		if asJSON {
			return printJSON(pending)
		}
		fmt.Printf("=== Pending Alerts (dry run) ===\n")
		fmt.Printf("Users evaluated: %d\n", len(users))
		fmt.Printf("Notifications:   %d\n", len(pending))
		if len(pending) > 0 {
			fmt.Println()
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "  USER\tCHANNEL\tKIND\tSEVERITY\tRECIPIENT\tPRODUCTS\n")
			for _, n := range pending {
				fmt.Fprintf(w, "  %s\t%s\t%s\t%s\t%s\t%d\n",
					n.UserID, n.Channel, n.Kind, n.Severity, n.Recipient, len(n.Products))
			}
			w.Flush()
		}
		return nil
	}

	sched, err := initScheduler(cfg, sweeper, logger)
	if err != nil {
		return err
	}
	defer sched.Stop()

	report, ok := sched.RunSync(ctx, model.TriggerManual)
	if !ok {
		return errors.New("an alert sweep is already running")
	}
	if asJSON {
		if err := printJSON(report); err != nil {
			return err
		}
	} else {
		fmt.Printf("=== Alert Sweep ===\n")
		fmt.Printf("Duration:        %s\n", report.Duration())
		fmt.Printf("Users evaluated: %d (%d failed)\n", report.UsersEvaluated, report.UsersFailed)
		fmt.Printf("Sent:            %d\n", report.Sent)
		fmt.Printf("Skipped:         %d\n", report.Skipped)
		fmt.Printf("Failed:          %d\n", report.Failed)
		fmt.Printf("Flags updated:   %d\n", report.FlagsUpdated)
	}
	if report.Error != "" {
		return fmt.Errorf("sweep aborted: %s", report.Error)
	}
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
