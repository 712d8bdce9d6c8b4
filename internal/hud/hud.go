// Package hud draws a terminal overlay of the tracked devices: one line per
// device with its smoothed packet rate, orientation and idle time.
package hud

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/banshee-data/spraypaint/internal/session"
)

// StatusSource supplies the latest tick status.
type StatusSource interface {
	Status() *session.Status
}

type refreshMsg time.Time

// Model is the bubbletea model for the HUD.
type Model struct {
	src      StatusSource
	fire     func()
	interval time.Duration

	st       *session.Status
	fired    int
	quitting bool
}

// New creates a HUD that refreshes every interval. fire is called when the
// operator presses space; it may be nil.
func New(src StatusSource, fire func(), interval time.Duration) Model {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	return Model{src: src, fire: fire, interval: interval}
}

func (m Model) refresh() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg { return refreshMsg(t) })
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return m.refresh()
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case refreshMsg:
		m.st = m.src.Status()
		return m, m.refresh()
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		case " ", "f":
			if m.fire != nil {
				m.fire()
				m.fired++
			}
		}
	}
	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	var b strings.Builder
	if m.st == nil {
		b.WriteString("spraypaint  waiting for first tick\n")
	} else {
		fmt.Fprintf(&b, "spraypaint  t=%.1fs  seated %d/%d  tracked %d\n\n",
			m.st.Time, m.st.SeatedCount(), m.st.Capacity, len(m.st.Devices))
		if len(m.st.Devices) == 0 {
			b.WriteString("  no devices\n")
		}
		for _, d := range m.st.Devices {
			b.WriteString(DeviceLine(d))
			b.WriteByte('\n')
		}
	}
	fmt.Fprintf(&b, "\n[space] fire all (%d)  [q] quit\n", m.fired)
	return b.String()
}

// DeviceLine formats one device: id, seat, rate, orientation and idle time.
func DeviceLine(d session.DeviceStatus) string {
	seat := "  --  "
	if d.Seated {
		seat = fmt.Sprintf("slot %d", d.Slot)
	}
	q := d.Orientation
	return fmt.Sprintf("  %-4v %s  %5.1f Hz  seq %5d  q=(%5.2f,%5.2f,%5.2f,%5.2f)  idle %4.1fs  fires %d",
		d.ID, seat, d.RateHz, d.Sequence, q.X, q.Y, q.Z, q.W, d.IdleSeconds, d.Fires)
}

// Run shows the HUD on the terminal until the operator quits or ctx is done.
func Run(ctx context.Context, src StatusSource, fire func(), interval time.Duration, opts ...tea.ProgramOption) error {
	opts = append([]tea.ProgramOption{tea.WithContext(ctx), tea.WithAltScreen()}, opts...)
	p := tea.NewProgram(New(src, fire, interval), opts...)
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
