package cli

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/codex-k8s/wfctl/internal/workflow"
)

// age renders the time since t the way kubectl does ("45s", "3m", "2h", "4d").
func age(t *time.Time, now time.Time) string {
	if t == nil {
		return "-"
	}
	return shortDuration(now.Sub(*t))
}

func shortDuration(d time.Duration) string {
	switch {
	case d < 0:
		return "0s"
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 48*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	}
}

func timestamp(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Local().Format(time.DateTime)
}

func printInstances(w io.Writer, instances []*workflow.Instance, now time.Time) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "NAME\tTEMPLATE\tPHASE\tPROGRESS\tAGE\tDURATION")
	for _, inst := range instances {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			inst.Name, orDash(inst.Template), inst.Phase, inst.Progress,
			age(inst.StartedAt, now), shortDuration(inst.Duration(now)))
	}
	return tw.Flush()
}

func printStatus(w io.Writer, inst *workflow.Instance, now time.Time) error {
	_, _ = fmt.Fprintf(w, "Name:       %s\n", inst.Name)
	_, _ = fmt.Fprintf(w, "Namespace:  %s\n", inst.Namespace)
	_, _ = fmt.Fprintf(w, "Template:   %s\n", orDash(inst.Template))
	_, _ = fmt.Fprintf(w, "Phase:      %s\n", inst.Phase)
	_, _ = fmt.Fprintf(w, "Progress:   %s\n", inst.Progress)
	_, _ = fmt.Fprintf(w, "Started:    %s\n", timestamp(inst.StartedAt))
	_, _ = fmt.Fprintf(w, "Finished:   %s\n", timestamp(inst.FinishedAt))
	_, _ = fmt.Fprintf(w, "Duration:   %s\n", shortDuration(inst.Duration(now)))
	if inst.Message != "" {
		_, _ = fmt.Fprintf(w, "Message:    %s\n", inst.Message)
	}
	nodes := inst.SortedNodes()
	if len(nodes) == 0 {
		return nil
	}
	_, _ = fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "STEP\tTYPE\tPHASE\tDURATION\tMESSAGE")
	for _, n := range nodes {
		if n.Type != workflow.NodePod {
			continue
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			orDash(n.DisplayName), n.Type, n.Phase, shortDuration(n.Duration(now)), n.Message)
	}
	return tw.Flush()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
