package replay

import (
	"fmt"
	"io"
	"time"

	"github.com/rustyeddy/srtrader/sim"
)

// Result is a lightweight summary of a replay session.
type Result struct {
	Mode       string // "backtest" (default) or "live"
	SessionID  string
	Instrument string
	Dataset    string

	Start time.Time
	End   time.Time

	Candles int
	Trades  int
	Wins    int
	Losses  int
	WinRate float64

	Running       float64
	HoldBenchmark float64
	Open          sim.Side
}

// NewResult summarizes a finished session.
func NewResult(l *sim.Ledger, st sim.State) Result {
	return Result{
		Trades:        len(l.Trades),
		Wins:          l.Wins,
		Losses:        l.Losses,
		WinRate:       l.WinRate(),
		Running:       st.PnL.Running,
		HoldBenchmark: st.PnL.HoldBenchmark,
		Open:          st.Position,
	}
}

func PrintResult(w io.Writer, r Result) {
	fmt.Fprintln(w, "==================================================")
	title := "Backtest"
	if r.Mode == "live" {
		title = "Live Session"
	}
	fmt.Fprintf(w, " %s Result\n", title)
	fmt.Fprintln(w, "==================================================")

	if r.SessionID != "" {
		fmt.Fprintf(w, "Session:       %s\n", r.SessionID)
	}
	fmt.Fprintf(w, "Instrument:    %s\n", r.Instrument)
	if r.Dataset != "" {
		fmt.Fprintf(w, "Dataset:       %s\n", r.Dataset)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Period")
	fmt.Fprintln(w, "--------------------------------------------------")
	fmt.Fprintf(w, "Start:         %s\n", r.Start.Format(time.RFC3339))
	fmt.Fprintf(w, "End:           %s\n", r.End.Format(time.RFC3339))
	fmt.Fprintf(w, "Candles:       %d\n", r.Candles)

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Trade Statistics")
	fmt.Fprintln(w, "--------------------------------------------------")
	fmt.Fprintf(w, "Trades:        %d\n", r.Trades)
	fmt.Fprintf(w, "Wins:          %d\n", r.Wins)
	fmt.Fprintf(w, "Losses:        %d\n", r.Losses)
	fmt.Fprintf(w, "Win Rate:      %.2f%%\n", r.WinRate)
	if r.Open != sim.None {
		fmt.Fprintf(w, "Open:          %s (unrealized not counted)\n", r.Open)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Performance")
	fmt.Fprintln(w, "--------------------------------------------------")
	fmt.Fprintf(w, "Running P/L:   %.2f\n", r.Running)
	if r.Mode != "live" {
		fmt.Fprintf(w, "Buy & Hold:    %.2f\n", r.HoldBenchmark)
	}

	fmt.Fprintln(w)
}
