package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/envpool/internal/policy"
	"github.com/san-kum/envpool/internal/pool"
)

var (
	cyan   = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	white  = lipgloss.NewStyle().Foreground(lipgloss.Color("255"))
	dim    = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
	green  = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
	yellow = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	red    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

const historyLen = 120

type model struct {
	orch   *pool.Orchestrator
	pol    policy.Policy
	title  string
	paused bool
	steps  int
	errs   int

	history []float64 // mean cumulative reward per tick

	width  int
	height int
}

// NewMonitor builds a live pool monitor. The monitor drives the pool with
// the given policy on every tick and renders aggregated state.
func NewMonitor(orch *pool.Orchestrator, pol policy.Policy, title string) *model {
	return &model{
		orch:    orch,
		pol:     pol,
		title:   title,
		history: make([]float64, 0, historyLen),
		width:   80,
		height:  24,
	}
}

func Run(orch *pool.Orchestrator, pol policy.Policy, title string) error {
	p := tea.NewProgram(NewMonitor(orch, pol, title))
	_, err := p.Run()
	return err
}

func (m model) Init() tea.Cmd { return tick() }

type tickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(50*time.Millisecond, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case " ":
			m.paused = !m.paused
			return m, nil
		case "r":
			states := m.orch.States()
			ids := make([]int, 0, len(states))
			for _, st := range states {
				ids = append(ids, st.EnvID)
			}
			m.orch.Reset(context.Background(), ids)
			return m, nil
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case tickMsg:
		if !m.paused {
			m.advance()
		}
		return m, tick()
	}
	return m, nil
}

func (m *model) advance() {
	states := m.orch.States()
	actions := make(map[int][]float64, len(states))
	for _, st := range states {
		actions[st.EnvID] = m.pol.Action(st.LastObservation)
	}

	batch, err := m.orch.Step(context.Background(), actions)
	if err != nil {
		m.errs++
		return
	}
	m.steps++

	for _, out := range batch {
		if out.Err != nil {
			m.errs++
		}
	}

	var mean float64
	states = m.orch.States()
	for _, st := range states {
		mean += st.CumulativeReward
	}
	if len(states) > 0 {
		mean /= float64(len(states))
	}
	m.history = append(m.history, mean)
	if len(m.history) > historyLen {
		m.history = m.history[1:]
	}
}

func (m model) View() string {
	var b strings.Builder

	b.WriteString(cyan.Render(m.title))
	status := green.Render("running")
	if m.paused {
		status = yellow.Render("paused")
	}
	b.WriteString(dim.Render(fmt.Sprintf("  step %d  errors %d  ", m.steps, m.errs)))
	b.WriteString(status)
	b.WriteString("\n\n")

	b.WriteString(dim.Render(fmt.Sprintf("%4s %6s %4s %6s %12s %8s", "env", "worker", "slot", "ep", "cum reward", "status")))
	b.WriteString("\n")

	for _, st := range m.orch.States() {
		line := fmt.Sprintf("%4d %6d %4d %6d %12.3f ", st.EnvID, st.WorkerID, st.Slot, st.EpisodeIndex, st.CumulativeReward)
		b.WriteString(white.Render(line))
		switch {
		case st.PendingReset:
			b.WriteString(yellow.Render("resetting"))
		case st.Done:
			b.WriteString(red.Render("done"))
		default:
			b.WriteString(green.Render("live"))
		}
		b.WriteString("\n")
	}

	if len(m.history) >= 2 {
		b.WriteString("\n")
		b.WriteString(dim.Render("mean cumulative reward"))
		b.WriteString("\n")
		b.WriteString(asciigraph.Plot(m.history, asciigraph.Height(8), asciigraph.Width(min(m.width-12, historyLen))))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(dim.Render("space pause · r reset all · q quit"))
	b.WriteString("\n")
	return b.String()
}
