package report

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/chainwatch/pumpwatch/internal/detect"
	"github.com/chainwatch/pumpwatch/internal/model"
)

// Report bundles everything one analysis run produced. Presentation only;
// the detection core never depends on this package.
type Report struct {
	Aggregates  []model.IntervalAggregate
	Events      []model.PumpDumpEvent
	Evidence    map[int][]model.Transaction // keyed by index into Events
	Annotations []model.Annotation
	TopSenders  []detect.SenderActivity
}

// Write renders the run report as text.
func Write(w io.Writer, r *Report) error {
	if err := writeAggregates(w, r.Aggregates); err != nil {
		return err
	}
	if err := writeEvents(w, r); err != nil {
		return err
	}
	if err := writeAnomalies(w, r.Annotations); err != nil {
		return err
	}
	return writeSenders(w, r.TopSenders)
}

func writeAggregates(w io.Writer, aggs []model.IntervalAggregate) error {
	fmt.Fprintln(w, "Interval sums:")
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "INTERVAL\tTOKEN\tVALUE (ETH)")
	for _, agg := range aggs {
		fmt.Fprintf(tw, "%d\t%s\t%s\n", agg.IntervalID, tokenLabel(agg.TokenType), agg.ValueEth.String())
	}
	return tw.Flush()
}

func writeEvents(w io.Writer, r *Report) error {
	if len(r.Events) == 0 {
		fmt.Fprintln(w, "\nNo pump/dump events detected.")
		return nil
	}

	fmt.Fprintf(w, "\nDetected events: %d\n", len(r.Events))
	for i, event := range r.Events {
		fmt.Fprintf(w, "\n%s interval=%d token=%s current=%s previous=%s difference=%s\n",
			event.Direction, event.IntervalID, tokenLabel(event.TokenType),
			event.CurrentSum.String(), event.PreviousSum.String(), event.Difference.String())

		evidence := r.Evidence[i]
		if len(evidence) == 0 {
			continue
		}
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "  BLOCK\tHASH\tVALUE (ETH)\tTIMESTAMP")
		for _, tx := range evidence {
			fmt.Fprintf(tw, "  %d\t%s\t%s\t%s\n",
				tx.BlockNumber, tx.Hash, tx.ValueEth.String(), tx.BlockTimestamp)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}
	return nil
}

func writeAnomalies(w io.Writer, annotations []model.Annotation) error {
	flagged := 0
	for _, a := range annotations {
		if a.IsAnomaly {
			flagged++
		}
	}
	fmt.Fprintf(w, "\nAnomalies: %d of %d transactions\n", flagged, len(annotations))

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, a := range annotations {
		if !a.IsAnomaly {
			continue
		}
		fmt.Fprintf(tw, "  %s\tscore=%.6f\n", a.TxHash, a.Score)
	}
	return tw.Flush()
}

func writeSenders(w io.Writer, senders []detect.SenderActivity) error {
	if len(senders) == 0 {
		return nil
	}
	fmt.Fprintf(w, "\nTop senders:\n")
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "  ADDRESS\tTX COUNT")
	for _, s := range senders {
		fmt.Fprintf(tw, "  %s\t%d\n", s.Address, s.TxCount)
	}
	return tw.Flush()
}

func tokenLabel(token *string) string {
	if token == nil {
		return "<none>"
	}
	return *token
}
