package tui

import "github.com/charmbracelet/lipgloss"

const treeWidth = 32

var (
	headerStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	sectionStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("69"))
	helpStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	statusStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("230")).Background(lipgloss.Color("236"))
	currentStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("114")).Bold(true)
	spaceStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	dividerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("238"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	noticeStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("230")).Background(lipgloss.Color("136")).Bold(true)
	paneStyle     = lipgloss.NewStyle().Padding(0, 1)
)
