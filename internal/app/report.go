package app

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(lipgloss.Color("240"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255"))

	sectionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("99")).
			MarginTop(1)

	okStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	failStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

func field(label string, value any) string {
	return labelStyle.Render(label+":") + " " + valueStyle.Render(fmt.Sprint(value))
}

// renderReport writes a human readable view of s.
func renderReport(w io.Writer, s *Summary) error {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Titan network report"))
	b.WriteString("\n")

	b.WriteString(sectionStyle.Render("Configurations"))
	b.WriteString("\n")
	if len(s.Pushes) == 0 {
		b.WriteString(labelStyle.Render("  none answered") + "\n")
	}
	for _, p := range s.Pushes {
		status := okStyle.Render("ok")
		if !p.OK {
			status = failStyle.Render("failed: " + p.Error)
		}
		via := "push"
		if p.FromCache {
			via = "cache"
		}
		fmt.Fprintf(&b, "  %s %s %s %s %s\n",
			valueStyle.Render(p.Configuration),
			field("node", p.Node),
			field("config", p.ConfigID),
			field("via", via),
			field("attempts", p.Attempts),
		)
		fmt.Fprintf(&b, "    %s\n", status)
	}

	b.WriteString(sectionStyle.Render("Nodes"))
	b.WriteString("\n")
	for _, n := range s.Nodes {
		fmt.Fprintf(&b, "  %s %s %s %s %s\n",
			valueStyle.Render(n.Name),
			field("id", n.ID),
			field("config", n.ConfigID),
			field("links", n.Links),
			field("cached", fmt.Sprint(n.Cached)),
		)
		for _, t := range n.Tasks {
			fmt.Fprintf(&b, "    %s %s %s\n",
				field("run", t.RunID),
				field("kind", t.Name),
				field("ports", fmt.Sprintf("%d/%d", t.InPorts, t.OutPorts)),
			)
		}
	}

	b.WriteString(sectionStyle.Render("Master"))
	b.WriteString("\n")
	srcs := make([]uint16, 0, len(s.Data))
	for src := range s.Data {
		srcs = append(srcs, src)
	}
	slices.Sort(srcs)
	for _, src := range srcs {
		fmt.Fprintf(&b, "  %s %s\n", field("data from", src), field("packets", s.Data[src]))
	}
	for _, r := range s.Reports {
		fmt.Fprintf(&b, "  %s\n", failStyle.Render(r.String()))
	}
	if len(srcs) == 0 && len(s.Reports) == 0 {
		b.WriteString(labelStyle.Render("  nothing received") + "\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}
