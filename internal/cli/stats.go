package cli

import (
	"fmt"
	"io"

	"github.com/aibus/dar-go/internal/metrics"
)

func printStats(w io.Writer, snap metrics.Snapshot) {
	if len(snap.Operations) == 0 {
		fmt.Fprintln(w, defaultTheme.hintStyle().Render("No requests recorded"))
		return
	}

	header := fmt.Sprintf("%-16s %6s %10s %10s %10s", "OPERATION", "COUNT", "AVG MS", "MIN MS", "MAX MS")
	fmt.Fprintln(w, defaultTheme.statusStyle().Render(header))
	for _, op := range snap.Operations {
		fmt.Fprintf(w, "%-16s %6d %10.1f %10d %10d\n", op.Name, op.Count, op.AvgTimeMs, op.MinTimeMs, op.MaxTimeMs)
	}
	fmt.Fprintf(w, "%s\n", defaultTheme.hintStyle().Render(fmt.Sprintf("uptime %.1fs", snap.UptimeSeconds)))
}
