package output

import (
	"fmt"
	"io"
	"strconv"

	"github.com/fatih/color"

	"github.com/Invalid27/Factorio-Planner-sub000/pkg/model"
	"github.com/Invalid27/Factorio-Planner-sub000/pkg/planner"
	"github.com/Invalid27/Factorio-Planner-sub000/pkg/solver"
)

// PrintPlan prints a nicely formatted report of the last solve with colors
func PrintPlan(w io.Writer, p *planner.Planner) {
	// Color definitions
	bold := color.New(color.Bold)
	red := color.New(color.FgRed)
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)
	cyan := color.New(color.FgCyan)
	faint := color.New(color.Faint)

	doc := p.Snapshot()
	report := p.Report()
	unit := unitSuffix(p.Unit())

	nodes := make(map[int64]model.Node, len(doc.Nodes))
	for _, n := range doc.Nodes {
		nodes[n.ID] = n
	}

	// Header
	bold.Fprintln(w, "Factory Plan")
	bold.Fprintln(w, "============")
	fmt.Fprintf(w, "Aggregation: %s\n", doc.Aggregation)
	fmt.Fprintf(w, "Nodes: %d  Edges: %d\n", len(doc.Nodes), len(doc.Edges))
	fmt.Fprintln(w)

	for i, net := range report.Networks {
		bold.Fprintf(w, "Network %d", i+1)
		fmt.Fprintf(w, " (%s)", describeNetwork(net))
		if net.Cyclic {
			cyan.Fprint(w, " cyclic")
		}
		if !net.Converged {
			yellow.Fprintf(w, " approximate after %d steps", net.Steps)
		}
		fmt.Fprintln(w)

		for _, id := range net.Nodes {
			n := nodes[id]
			fmt.Fprintf(w, "  #%d %s", id, n.RecipeID)
			if n.Target == nil {
				faint.Fprintln(w, "  unconstrained")
				continue
			}

			stats, err := p.Stats(id)
			if err != nil {
				red.Fprintf(w, "  %v\n", err)
				continue
			}
			rate := formatRate(stats.Target) + unit
			if id == net.Source {
				green.Fprintf(w, "  %s pinned", rate)
			} else {
				fmt.Fprintf(w, "  %s", rate)
			}
			if stats.Machines > 0 {
				fmt.Fprintf(w, "  machines=%s", strconv.FormatFloat(stats.Machines, 'f', 2, 64))
			}
			fmt.Fprintln(w)
		}
		fmt.Fprintln(w)
	}

	if len(report.Gaps) > 0 {
		red.Fprintln(w, "CATALOG GAPS:")
		for _, gap := range report.Gaps {
			yellow.Fprintf(w, "  %s\n", gap)
		}
		fmt.Fprintln(w)
	}

	summaryColor := green
	if !report.Converged() {
		summaryColor = yellow
	}
	if len(report.Gaps) > 0 {
		summaryColor = red
	}
	summaryColor.Fprintf(w, "Summary: %d network(s), %d node(s) updated in %dms\n",
		len(report.Networks), report.Updated, report.Duration.Milliseconds())
}

func describeNetwork(net solver.NetworkReport) string {
	if net.Mode == solver.ModePinned {
		return fmt.Sprintf("pinned by #%d", net.Source)
	}
	return string(net.Mode)
}

func unitSuffix(u planner.Unit) string {
	if u == planner.PerSecond {
		return "/s"
	}
	return "/min"
}

// formatRate drops a trailing ".0" so whole rates read as integers.
func formatRate(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
