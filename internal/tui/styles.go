package tui

import (
	"github.com/charmbracelet/lipgloss"

	"finsview/internal/dashboard"
	"finsview/internal/domain"
)

// Styles.
var (
	headerStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("4"))
	footerStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("15")).Background(lipgloss.Color("8"))
	tabStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("250")).Background(lipgloss.Color("237"))
	activeTabStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("0")).Background(lipgloss.Color("6"))
	sectionStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("0")).Background(lipgloss.Color("6"))
	noticeStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("0")).Background(lipgloss.Color("3")) // black on yellow
	symbolStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	symbolHlStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("75"))  // brighter blue for highlight
	symbolFavStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("208")) // orange for favorites
	symbolFavHlStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))
	gainStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	lossStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	errorStyle       = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	colHeaderStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	dimStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	priceStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("15"))
	labelStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
	highlightBG      = lipgloss.Color("236") // dark grey background
)

// hlStyle returns a copy of s with the highlight background applied when hl is true.
func hlStyle(s lipgloss.Style, hl bool) lipgloss.Style {
	if hl {
		return s.Background(highlightBG)
	}
	return s
}

func tickerStyle(favorite, hl bool) lipgloss.Style {
	switch {
	case favorite && hl:
		return symbolFavHlStyle
	case favorite:
		return symbolFavStyle
	case hl:
		return symbolHlStyle
	}
	return symbolStyle
}

// ratingStyle colours a rating by sign and intensity.
func ratingStyle(r *int) lipgloss.Style {
	if r == nil {
		return dimStyle
	}
	switch dashboard.RatingLevel(*r) {
	case 3:
		return lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	case 2:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	case 1:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("108"))
	case -1:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("174"))
	case -2:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	case -3:
		return lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	}
	return priceStyle
}

func signStyle(v float64) lipgloss.Style {
	switch {
	case v > 0:
		return gainStyle
	case v < 0:
		return lossStyle
	}
	return dimStyle
}

func statusStyle(s domain.AnalysisStatus) lipgloss.Style {
	switch s {
	case domain.StatusReady:
		return gainStyle
	case domain.StatusFailed:
		return errorStyle
	case domain.StatusProcessing:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	}
	return dimStyle
}
