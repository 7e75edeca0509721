package tui

import (
	"context"
	"errors"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/starexec/jobview/internal/jobview"
)

// Run shows the explorer until the user quits or ctx ends.
func Run(ctx context.Context, ctrl *jobview.Controller, spaces SpaceLister, jobID int, interval time.Duration) error {
	model := NewModel(ctx, ctrl, spaces, jobID, interval)
	p := tea.NewProgram(&model, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
