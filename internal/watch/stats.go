package watch

import (
	"io"
	"sort"
	"strconv"

	"github.com/olekukonko/tablewriter"
)

// Stats are the per-account counters of one watcher run.
type Stats struct {
	Account    string
	Checks     int
	SlotsFound int
	Errors     int
	Booked     bool
}

// PrintSummary renders a summary table of all watcher runs.
func PrintSummary(w io.Writer, stats []Stats) {
	sort.Slice(stats, func(i, j int) bool {
		return stats[i].Account < stats[j].Account
	})

	total := Stats{Account: "total"}
	table := tablewriter.NewWriter(w)
	table.Header("Account", "Checks", "Slots Found", "Errors", "Booked")
	for _, s := range stats {
		booked := ""
		if s.Booked {
			booked = "yes"
		}
		_ = table.Append([]string{s.Account, strconv.Itoa(s.Checks), strconv.Itoa(s.SlotsFound), strconv.Itoa(s.Errors), booked})
		total.Checks += s.Checks
		total.SlotsFound += s.SlotsFound
		total.Errors += s.Errors
	}
	table.Footer(total.Account, strconv.Itoa(total.Checks), strconv.Itoa(total.SlotsFound), strconv.Itoa(total.Errors), "")
	_ = table.Render()
}
