package journal

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"text/template"
	"time"
)

// FormatTradeOrg renders a TradeRecord as an Org-mode block suitable for
// pasting into a journal. Structured facts go in the PROPERTIES drawer.
func FormatTradeOrg(t TradeRecord) string {
	heading := fmt.Sprintf("** Trade: %s %s %s (%s)", t.Instrument, t.Side, t.Reason, shortID(t.TradeID))
	open := t.OpenTime.UTC().Format(time.RFC3339)
	close := t.CloseTime.UTC().Format(time.RFC3339)

	var b strings.Builder
	b.WriteString(heading)
	b.WriteString("\n")
	b.WriteString(":PROPERTIES:\n")
	b.WriteString(fmt.Sprintf(":TRADE_ID: %s\n", t.TradeID))
	b.WriteString(fmt.Sprintf(":SESSION: %s\n", t.SessionID))
	b.WriteString(fmt.Sprintf(":INSTRUMENT: %s\n", t.Instrument))
	b.WriteString(fmt.Sprintf(":SIDE: %s\n", t.Side))
	b.WriteString(fmt.Sprintf(":ENTRY_PRICE: %.2f\n", t.EntryPrice))
	b.WriteString(fmt.Sprintf(":EXIT_PRICE: %.2f\n", t.ExitPrice))
	b.WriteString(fmt.Sprintf(":OPEN_TIME: %s\n", open))
	b.WriteString(fmt.Sprintf(":CLOSE_TIME: %s\n", close))
	b.WriteString(fmt.Sprintf(":HELD: %s\n", t.CloseTime.Sub(t.OpenTime)))
	b.WriteString(fmt.Sprintf(":REALIZED_PL: %.2f\n", t.RealizedPL))
	b.WriteString(fmt.Sprintf(":REASON: %s\n", t.Reason))
	b.WriteString(":END:\n")
	b.WriteString("\n")
	b.WriteString("*** Review\n- \n")

	return b.String()
}

// FormatTradesOrg renders multiple trades separated by blank lines.
func FormatTradesOrg(trades []TradeRecord) string {
	var b strings.Builder
	for i, t := range trades {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(FormatTradeOrg(t))
	}
	return b.String()
}

func shortID(full string) string {
	if len(full) <= 8 {
		return full
	}
	// ULIDs share their time prefix; the tail tells trades apart.
	return full[len(full)-8:]
}

var sessionOrgFuncs = template.FuncMap{
	"orTime": func(t time.Time) time.Time {
		if t.IsZero() {
			return time.Now()
		}
		return t
	},
	"pct": func(x float64) float64 { return x * 100.0 },
}

// SessionReport is the data behind a session Org report.
type SessionReport struct {
	Session
	Summary Summary
	Closed  []TradeRecord
}

// FormatSessionOrg renders a session with its trade statistics.
func FormatSessionOrg(r SessionReport) (string, error) {
	t, err := template.New("session").Funcs(sessionOrgFuncs).Parse(sessionOrgTemplate)
	if err != nil {
		return "", fmt.Errorf("parse template: %w", err)
	}

	buf := new(bytes.Buffer)
	if err := t.Execute(buf, r); err != nil {
		return "", fmt.Errorf("render session: %w", err)
	}
	if len(r.Closed) > 0 {
		buf.WriteString("\n")
		buf.WriteString(FormatTradesOrg(r.Closed))
	}
	return buf.String(), nil
}

// WriteSessionOrg renders r to path.
func WriteSessionOrg(path string, r SessionReport) error {
	s, err := FormatSessionOrg(r)
	if err != nil {
		return err
	}
	return os.WriteFile(path, []byte(s), 0644)
}

const sessionOrgTemplate = `* SESSION: {{.Mode}} {{.Instrument}}
:PROPERTIES:
:SESSION_ID:  {{.SessionID}}
:MODE:        {{.Mode}}
:INSTRUMENT:  {{.Instrument}}
:DATASET:     {{if .Dataset}}{{.Dataset}}{{else}}(dataset?){{end}}
:START:       {{.Start.Format "2006-01-02 15:04"}}
:END_TIME:    {{.End.Format "2006-01-02 15:04"}}
:CANDLES:     {{.Candles}}
:TRADES:      {{.Trades}}
:WINS:        {{.Wins}}
:LOSSES:      {{.Losses}}
:RUNNING_PL:  {{printf "%.2f" .RunningPL}}
:HOLD_PL:     {{printf "%.2f" .HoldPL}}
:CREATED:     [{{(orTime .Created).Format "2006-01-02 Mon 15:04"}}]
:END:

** Parameters
| Parameter       | Value |
|-----------------+-------|
| Profit target % | {{printf "%.3f" (pct .ProfitTarget)}} |
| Stop loss %     | {{printf "%.3f" (pct .StopLoss)}} |
| Bar count       | {{.BarCount}} |

** Performance Summary
- Net P/L:        *{{printf "%.2f" .Summary.NetPL}}*
- Gross profit:   *{{printf "%.2f" .Summary.GrossProfit}}*
- Gross loss:     *{{printf "%.2f" .Summary.GrossLoss}}*
- Profit factor:  *{{if ne .Summary.ProfitFactor 0.0}}{{printf "%.2f" .Summary.ProfitFactor}}{{else}}(n/a){{end}}*
- Buy & hold:     *{{printf "%.2f" .HoldPL}}*
`
