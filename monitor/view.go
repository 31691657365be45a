package monitor

import (
	"fmt"
	"strings"
)

const helpText = "r refresh now · q quit"

// View implements tea.Model interface
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(headerStyle.Render("Artiller"))
	b.WriteString("\n")

	if !m.Connected {
		b.WriteString(badStyle.Render("offline"))
		if m.Err != nil {
			b.WriteString(dimStyle.Render("  " + m.Err.Error()))
		}
		b.WriteString("\n\n")
		b.WriteString(dimStyle.Render(helpText))
		return b.String()
	}

	status := okStyle.Render("online")
	if !m.LastUpdated.IsZero() {
		status += dimStyle.Render("  as of " + m.LastUpdated.Format("15:04:05"))
	}
	b.WriteString(status)
	b.WriteString("\n\n")

	if m.Stats != nil {
		panel := strings.Join([]string{
			sectionStyle.Render("Index"),
			statLine("articles", m.Stats.Articles),
			statLine("tags", m.Stats.Tags),
			statLine("authors", m.Stats.Authors),
			"",
			sectionStyle.Render("Queues"),
			statLine("tag search", m.Stats.TagSearchQueueSize),
			statLine("word search", m.Stats.WordSearchQueueSize),
			statLine("tag discovery", m.Stats.TagDiscoveryQueueSize),
		}, "\n")

		b.WriteString(panelStyle.Render(panel))
		b.WriteString("\n\n")
	}

	b.WriteString(dimStyle.Render(helpText))
	return b.String()
}

func statLine(label string, value int64) string {
	return labelStyle.Render(label) + valueStyle.Render(fmt.Sprintf("%d", value))
}
