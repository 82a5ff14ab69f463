package console

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("42"))

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("238")).
			Padding(0, 1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("244"))

	cashStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("42"))

	qtyStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("75"))

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("250"))

	hintStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))
)

func (m model) View() string {
	header := titleStyle.Render("HFT::ENGINE_V1")
	if m.identity != "" {
		header += labelStyle.Render("  user: " + m.identity)
	}

	var body string
	if m.identity == "" {
		body = m.renderAccess()
	} else {
		body = lipgloss.JoinHorizontal(lipgloss.Top, m.renderBalance(), "  ", m.renderOrderForm())
	}

	prompt := "> " + string(m.input) + "_"
	if m.busy {
		prompt += labelStyle.Render("  …")
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		"",
		body,
		"",
		prompt,
		hintStyle.Render(m.hint),
	)
}

func (m model) renderAccess() string {
	lines := []string{
		"ACCESS TERMINAL",
		labelStyle.Render("login <user> or register <user>"),
	}
	if m.status != "" {
		lines = append(lines, "", statusStyle.Render(m.status))
	}
	return panelStyle.Render(strings.Join(lines, "\n"))
}

func (m model) renderBalance() string {
	cash := "0.00"
	if m.summary.Loaded {
		cash = formatNumber(m.summary.Cash)
	}

	lines := []string{
		labelStyle.Render("AVAILABLE CASH"),
		cashStyle.Render("$" + cash),
		"",
		labelStyle.Render("PORTFOLIO HOLDINGS"),
	}
	if m.summary.Empty() {
		lines = append(lines, labelStyle.Render("No open positions."))
	} else {
		for _, h := range m.summary.Holdings {
			lines = append(lines, fmt.Sprintf("SYM_ID::%-8s %s", h.SymbolID, qtyStyle.Render(formatNumber(h.Quantity)+" UNITS")))
		}
	}
	if m.summary.Loaded {
		lines = append(lines, "", labelStyle.Render("updated "+m.summary.FetchedAt.Local().Format("15:04:05")))
	}
	return panelStyle.Render(strings.Join(lines, "\n"))
}

func (m model) renderOrderForm() string {
	lines := []string{
		labelStyle.Render("ORDER EXECUTION"),
		fmt.Sprintf("SYMBOL ID          %s", m.symbol),
		fmt.Sprintf("QUANTITY / AMOUNT  %s", m.amount),
	}
	if m.status != "" {
		lines = append(lines, "", statusStyle.Render("> "+m.status))
	}
	width := 40
	if m.width > 0 && m.width/2 > width {
		width = m.width / 2
	}
	return panelStyle.Width(width).Render(strings.Join(lines, "\n"))
}

var numberPrinter = message.NewPrinter(language.English)

// formatNumber 加千分位，保留原有小数位。
func formatNumber(v float64) string {
	prec := 0
	if s := strconv.FormatFloat(v, 'f', -1, 64); strings.Contains(s, ".") {
		prec = len(s) - strings.IndexByte(s, '.') - 1
	}
	return numberPrinter.Sprintf(fmt.Sprintf("%%.%df", prec), v)
}
