package dashboard

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	alarms "steamwash-cloud/internal/alarms/domain"
	"steamwash-cloud/internal/audit"
	telemetryapp "steamwash-cloud/internal/telemetry/application"
	telemetry "steamwash-cloud/internal/telemetry/domain"
)

type stubAPI struct {
	snapshot telemetryapp.Snapshot
	err      error
	commands []string
}

func (s *stubAPI) Status(context.Context) (telemetryapp.Snapshot, error) {
	return s.snapshot, s.err
}

func (s *stubAPI) Command(_ context.Context, name string) (string, error) {
	s.commands = append(s.commands, name)
	return "Command applied", nil
}

func (s *stubAPI) Reset(context.Context) (string, error) {
	s.commands = append(s.commands, "reset")
	return "System reset successfully", nil
}

func TestClientStatusAndCommands(t *testing.T) {
	var gotOperator, gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotOperator = r.Header.Get(audit.OperatorHeader)
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/status":
			_, _ = w.Write([]byte(`{"success":true,"data":{"systemStatus":{"is_running":true,"steam_pressure":6.2,"active_motors":3},"resourceUsage":{"wash_sessions":2},"tariffs":{"service_price":15000},"realtimeDebits":{},"alerts":[{"id":1,"type":"danger","message":"steam pressure too high"}]}}`))
		case "/api/commands/start":
			_, _ = w.Write([]byte(`{"success":true,"message":"Command applied"}`))
		default:
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"success":false,"message":"storage unavailable"}`))
		}
	}))
	defer server.Close()

	client, err := NewClient(server.URL+"/", "night-shift", nil)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	ctx := context.Background()

	snapshot, err := client.Status(ctx)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !snapshot.SystemStatus.IsRunning || snapshot.SystemStatus.SteamPressure != 6.2 || len(snapshot.Alerts) != 1 {
		t.Fatalf("unexpected snapshot: %+v", snapshot)
	}
	if snapshot.Financials().GrossRevenue != 90000 {
		t.Fatalf("unexpected financials: %+v", snapshot.Financials())
	}

	if msg, err := client.Command(ctx, "start"); err != nil || msg != "Command applied" {
		t.Fatalf("command: %q %v", msg, err)
	}
	if gotOperator != "night-shift" || gotPath != "/api/commands/start" {
		t.Fatalf("unexpected request: operator=%q path=%q", gotOperator, gotPath)
	}

	if _, err := client.Reset(ctx); err == nil || !strings.Contains(err.Error(), "storage unavailable") {
		t.Fatalf("expected api error, got %v", err)
	}
}

func TestModelKeysSendCommands(t *testing.T) {
	api := &stubAPI{}
	m := NewModel(api, time.Second)

	for _, key := range []string{"s", "x", "e", "r"} {
		next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)})
		m = next.(Model)
		if cmd == nil {
			t.Fatalf("expected command for key %q", key)
		}
		msg := cmd()
		if action, ok := msg.(actionMsg); !ok || action.err != nil {
			t.Fatalf("unexpected message for key %q: %#v", key, msg)
		}
	}
	want := "start,stop,emergency-stop,reset"
	if got := strings.Join(api.commands, ","); got != want {
		t.Fatalf("expected %s, got %s", want, got)
	}

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatalf("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatalf("expected quit message")
	}
}

func TestModelView(t *testing.T) {
	api := &stubAPI{}
	m := NewModel(api, time.Second)
	if view := m.View(); !strings.Contains(view, "loading") {
		t.Fatalf("expected loading view, got %q", view)
	}

	state := telemetry.DefaultSystemState()
	state.IsRunning = true
	snapshot := telemetryapp.Snapshot{
		SystemStatus: state,
		Tariffs:      telemetry.DefaultTariffs(),
		Alerts: []alarms.Alert{
			{ID: 2, Kind: alarms.KindWarning, Message: "temperature approaching maximum", CreatedAt: time.Now()},
		},
	}
	next, _ := m.Update(statusMsg{snapshot: snapshot, at: time.Now()})
	view := next.(Model).View()
	for _, want := range []string{"RUNNING", "temperature approaching maximum", "Financials"} {
		if !strings.Contains(view, want) {
			t.Fatalf("view missing %q:\n%s", want, view)
		}
	}

	next, _ = next.(Model).Update(statusMsg{err: errors.New("connection refused")})
	if view := next.(Model).View(); !strings.Contains(view, "stale") || !strings.Contains(view, "RUNNING") {
		t.Fatalf("expected stale data to stay visible:\n%s", view)
	}
}
