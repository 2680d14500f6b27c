package view

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("KVM Dashboard"))
	b.WriteString(" ")
	b.WriteString(headerStyle.Render(m.uri))
	b.WriteString("\n\n")

	if !m.connected {
		b.WriteString(m.spinner.View())
		b.WriteString(" Connecting to ")
		b.WriteString(m.uri)
		b.WriteString("\n")
	} else {
		b.WriteString(m.renderTable())
	}

	if len(m.dialogs) > 0 {
		b.WriteString(m.renderDialog(m.dialogs[0]))
		b.WriteString("\n")
	}

	b.WriteString(footerStyle.Render(m.renderFooter()))
	b.WriteString("\n")
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func (m Model) renderTable() string {
	var b strings.Builder
	b.WriteString("  ")
	b.WriteString(headerStyle.Render(pad("NAME", nameWidth) + pad("STATE", stateWidth) + pad("CPU", cpuWidth) + "ACTION"))
	b.WriteString("\n")

	if len(m.order) == 0 {
		b.WriteString(pendingStyle.Render("  No virtual machines defined"))
		b.WriteString("\n")
		return b.String()
	}

	for i, name := range m.order {
		r := m.rows[name]
		cursor := "  "
		style := rowStyle
		if i == m.selected {
			cursor = "> "
			style = selectedStyle
		}
		b.WriteString(cursor)
		b.WriteString(style.Render(pad(r.name, nameWidth)))
		b.WriteString(stateStyle(r.label).Render(pad(r.label, stateWidth)))
		b.WriteString(style.Render(pad(r.cpu.String(), cpuWidth)))
		b.WriteString(renderButton(r))
		b.WriteString("\n")
	}
	return b.String()
}

func renderButton(r *row) string {
	if r.pending {
		return pendingStyle.Render(pad("[ … ]", buttonWidth))
	}
	label := r.affordance.String()
	if label == "" {
		return strings.Repeat(" ", buttonWidth)
	}
	return buttonStyle.Render(pad("[ "+label+" ]", buttonWidth))
}

func (m Model) renderDialog(d dialog) string {
	title := "Error"
	hint := "[ OK ] enter/esc   [ Quit ] q"
	if d.fatal {
		title = "Fatal error"
		hint = "[ Quit ] enter/q"
	}
	body := lipgloss.JoinVertical(lipgloss.Left,
		dialogTitleStyle.Render(title),
		"",
		d.message,
		"",
		headerStyle.Render(hint),
	)
	if more := len(m.dialogs) - 1; more > 0 && !d.fatal {
		body = lipgloss.JoinVertical(lipgloss.Left, body, pendingStyle.Render(fmt.Sprintf("%d more", more)))
	}
	return dialogStyle.Render(body)
}

func (m Model) renderFooter() string {
	parts := []string{fmt.Sprintf("%d VMs", len(m.order))}
	if m.health != nil {
		if last := m.health.LastRefresh(); !last.IsZero() {
			parts = append(parts, "refreshed "+formatAge(m.now().Sub(last))+" ago")
		}
		if m.health.LibvirtConnected() {
			parts = append(parts, okStyle.Render("libvirt ok"))
		} else {
			parts = append(parts, warnStyle.Render("libvirt down"))
		}
		if enabled, ok := m.health.ExportStatus(); enabled {
			if ok {
				parts = append(parts, okStyle.Render("export ok"))
			} else {
				parts = append(parts, warnStyle.Render("export down"))
			}
		}
	}
	return strings.Join(parts, " · ")
}

func formatAge(d time.Duration) string {
	if d < time.Second {
		return "<1s"
	}
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	return fmt.Sprintf("%dm%02ds", int(d.Minutes()), int(d.Seconds())%60)
}

// pad right-fills s to width cells, truncating with an ellipsis.
func pad(s string, width int) string {
	w := lipgloss.Width(s)
	if w >= width {
		runes := []rune(s)
		for len(runes) > 0 && lipgloss.Width(string(runes))+1 >= width {
			runes = runes[:len(runes)-1]
		}
		return string(runes) + "…" + " "
	}
	return s + strings.Repeat(" ", width-w)
}
