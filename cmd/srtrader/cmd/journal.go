package cmd

import (
	"fmt"
	"time"

	"github.com/rustyeddy/srtrader/journal"
	"github.com/spf13/cobra"
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Query trade journal data",
	Long: `Query and display trade journal records from SQLite database.

Subcommands:
  trade    - Get details of a specific trade by ID
  trades   - List trades of a session or closed on a day
  summary  - Aggregate trades closed in a date range
  session  - Print an Org-mode report of one session

Examples:
  srtrader journal trade <trade-id>
  srtrader journal trades --session <session-id>
  srtrader journal trades --day 2024-01-15
  srtrader journal summary --from 2024-01-01 --to 2024-02-01`,
}

var journalTradeCmd = &cobra.Command{
	Use:   "trade <trade-id>",
	Short: "Get details of a specific trade",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalTrade,
}

var journalTradesCmd = &cobra.Command{
	Use:   "trades",
	Short: "List trades of a session or closed on a day",
	Args:  cobra.NoArgs,
	RunE:  runJournalTrades,
}

var journalSummaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Aggregate trades closed in a date range",
	Args:  cobra.NoArgs,
	RunE:  runJournalSummary,
}

var journalSessionCmd = &cobra.Command{
	Use:   "session <session-id>",
	Short: "Print an Org-mode report of one session",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalSession,
}

var (
	journalDBPath  string
	journalSession string
	journalDay     string
	journalFrom    string
	journalTo      string
)

func init() {
	rootCmd.AddCommand(journalCmd)
	journalCmd.AddCommand(journalTradeCmd)
	journalCmd.AddCommand(journalTradesCmd)
	journalCmd.AddCommand(journalSummaryCmd)
	journalCmd.AddCommand(journalSessionCmd)

	journalCmd.PersistentFlags().StringVarP(&journalDBPath, "db", "d", "./srtrader.db", "path to SQLite journal DB")
	journalTradesCmd.Flags().StringVar(&journalSession, "session", "", "session ID")
	journalTradesCmd.Flags().StringVar(&journalDay, "day", "", "day (YYYY-MM-DD, local time); today when neither flag is set")
	journalSummaryCmd.Flags().StringVar(&journalFrom, "from", "", "first day (YYYY-MM-DD, required)")
	journalSummaryCmd.Flags().StringVar(&journalTo, "to", "", "day after the last (YYYY-MM-DD); defaults to from + 1 day")
	journalSummaryCmd.MarkFlagRequired("from")
}

func runJournalTrade(cmd *cobra.Command, args []string) error {
	j, err := journal.NewSQLite(journalDBPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer j.Close()

	rec, err := j.GetTrade(args[0])
	if err != nil {
		return fmt.Errorf("get trade: %w", err)
	}

	fmt.Println(journal.FormatTradeOrg(rec))
	return nil
}

func runJournalTrades(cmd *cobra.Command, args []string) error {
	j, err := journal.NewSQLite(journalDBPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer j.Close()

	var recs []journal.TradeRecord
	if journalSession != "" {
		recs, err = j.ListTradesBySession(journalSession)
	} else {
		loc := time.Local
		day := journalDay
		if day == "" {
			day = time.Now().In(loc).Format("2006-01-02")
		}
		start, end, derr := dayBounds(loc, day)
		if derr != nil {
			return fmt.Errorf("date: %w", derr)
		}
		recs, err = j.ListTradesClosedBetween(start, end)
	}
	if err != nil {
		return fmt.Errorf("query trades: %w", err)
	}

	if len(recs) == 0 {
		fmt.Println("no trades")
		return nil
	}
	fmt.Println(journal.FormatTradesOrg(recs))
	return nil
}

func runJournalSummary(cmd *cobra.Command, args []string) error {
	j, err := journal.NewSQLite(journalDBPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer j.Close()

	loc := time.Local
	start, end, err := dayBounds(loc, journalFrom)
	if err != nil {
		return fmt.Errorf("from: %w", err)
	}
	if journalTo != "" {
		if end, _, err = dayBounds(loc, journalTo); err != nil {
			return fmt.Errorf("to: %w", err)
		}
	}

	s, err := j.SummarizeTrades(start, end)
	if err != nil {
		return fmt.Errorf("summarize: %w", err)
	}

	fmt.Printf("Trades %s .. %s\n", start.Format("2006-01-02"), end.Format("2006-01-02"))
	fmt.Printf("  Trades:        %d\n", s.Trades)
	fmt.Printf("  Wins/Losses:   %d/%d\n", s.Wins, s.Losses)
	fmt.Printf("  Net P/L:       %.2f\n", s.NetPL)
	fmt.Printf("  Gross profit:  %.2f\n", s.GrossProfit)
	fmt.Printf("  Gross loss:    %.2f\n", s.GrossLoss)
	fmt.Printf("  Profit factor: %.2f\n", s.ProfitFactor)
	return nil
}

func runJournalSession(cmd *cobra.Command, args []string) error {
	j, err := journal.NewSQLite(journalDBPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer j.Close()

	sess, err := j.GetSession(args[0])
	if err != nil {
		return err
	}
	trades, err := j.ListTradesBySession(sess.SessionID)
	if err != nil {
		return fmt.Errorf("query trades: %w", err)
	}

	out, err := journal.FormatSessionOrg(journal.SessionReport{
		Session: sess,
		Summary: journal.Summarize(trades),
		Closed:  trades,
	})
	if err != nil {
		return err
	}
	fmt.Print(out)
	return nil
}

func dayBounds(loc *time.Location, day string) (time.Time, time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02", day, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	end := start.Add(24 * time.Hour)
	return start, end, nil
}
