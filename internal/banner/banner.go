package banner

import (
	"fmt"
	"io"

	"github.com/alekspetrov/dobby/internal/health"
)

// Tagline is the project tagline
const Tagline = "Chat in, tasks out"

// StartupWithHealth writes the startup banner with the feature report.
func StartupWithHealth(w io.Writer, version, gateway string, report *health.Report) {
	fmt.Fprintln(w)
	fmt.Fprintf(w, "DOBBY v%s │ %s\n", version, Tagline)
	fmt.Fprintln(w, "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Fprintln(w)

	// Features in compact grid
	features := report.Features
	cols := 3
	colWidth := 14

	for i, f := range features {
		name := f.Name
		if f.Note != "" {
			name = f.Name + "*"
		}
		fmt.Fprintf(w, "%s %-*s", f.Status.Symbol(), colWidth-2, name)
		if (i+1)%cols == 0 || i == len(features)-1 {
			fmt.Fprintln(w)
		}
	}

	hasNotes := false
	for _, f := range features {
		if f.Note != "" {
			if !hasNotes {
				fmt.Fprintln(w)
				hasNotes = true
			}
			fmt.Fprintf(w, "  * %s: %s\n", f.Name, f.Note)
		}
	}

	fmt.Fprintln(w)
	if report.Store != "" {
		fmt.Fprintf(w, "Store:    %s\n", report.Store)
	}
	if gateway != "" {
		fmt.Fprintf(w, "Gateway:  %s\n", gateway)
	}
	fmt.Fprintln(w)
}
