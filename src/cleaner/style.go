package cleaner

import (
	"github.com/charmbracelet/lipgloss"
)

// ruleWidth is the length of the thin rule under the status title.
const ruleWidth = 40

// Lipgloss styles for the mutation status block.
var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("6")) // cyan

	ruleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))
)
