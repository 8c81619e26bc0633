package wizard

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
)

// RunInit runs the project setup form and returns its result, or nil
// when the user cancelled.
func RunInit() (*InitResult, error) {
	p := tea.NewProgram(NewInitModel())
	final, err := p.Run()
	if err != nil {
		return nil, fmt.Errorf("running setup form: %w", err)
	}
	m, ok := final.(InitModel)
	if !ok || m.Cancelled() {
		return nil, nil
	}
	return m.Result(), nil
}
