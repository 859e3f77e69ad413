package dashboard

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	telemetryapp "steamwash-cloud/internal/telemetry/application"
)

// DefaultInterval is how often the dashboard polls the status endpoint.
const DefaultInterval = 2 * time.Second

const requestTimeout = 5 * time.Second

// API is the subset of Client the model needs.
type API interface {
	Status(ctx context.Context) (telemetryapp.Snapshot, error)
	Command(ctx context.Context, name string) (string, error)
	Reset(ctx context.Context) (string, error)
}

type tickMsg time.Time

type statusMsg struct {
	snapshot telemetryapp.Snapshot
	err      error
	at       time.Time
}

type actionMsg struct {
	action  string
	message string
	err     error
}

// Model is the bubbletea model of the terminal dashboard.
type Model struct {
	api      API
	interval time.Duration

	snapshot  *telemetryapp.Snapshot
	fetchedAt time.Time
	lastErr   error
	notice    string

	width  int
	height int
}

// NewModel constructs a dashboard model.
func NewModel(api API, interval time.Duration) Model {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return Model{api: api, interval: interval}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(tick(m.interval), fetch(m.api))
}

func tick(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func fetch(api API) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		snapshot, err := api.Status(ctx)
		return statusMsg{snapshot: snapshot, err: err, at: time.Now()}
	}
}

func command(api API, action string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		var (
			message string
			err     error
		)
		if action == "reset" {
			message, err = api.Reset(ctx)
		} else {
			message, err = api.Command(ctx, action)
		}
		return actionMsg{action: action, message: message, err: err}
	}
}

// keyActions maps keys to API actions.
var keyActions = map[string]string{
	"s": "start",
	"x": "stop",
	"e": "emergency-stop",
	"r": "reset",
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch key := msg.String(); key {
		case "q", "ctrl+c":
			return m, tea.Quit
		default:
			if action, ok := keyActions[key]; ok {
				m.notice = "sending " + action + "..."
				return m, command(m.api, action)
			}
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case tickMsg:
		return m, tea.Batch(tick(m.interval), fetch(m.api))
	case statusMsg:
		m.lastErr = msg.err
		if msg.err == nil {
			snapshot := msg.snapshot
			m.snapshot = &snapshot
			m.fetchedAt = msg.at
		}
	case actionMsg:
		if msg.err != nil {
			m.notice = fmt.Sprintf("%s failed: %v", msg.action, msg.err)
			return m, nil
		}
		m.notice = msg.action + ": " + msg.message
		return m, fetch(m.api)
	}
	return m, nil
}

// Run starts the dashboard and blocks until the user quits or ctx ends.
func Run(ctx context.Context, api API, interval time.Duration) error {
	p := tea.NewProgram(NewModel(api, interval), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}
