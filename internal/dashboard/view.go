package dashboard

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	alarms "steamwash-cloud/internal/alarms/domain"
	telemetryapp "steamwash-cloud/internal/telemetry/application"
)

const maxAlertRows = 5

func (m Model) View() string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render("STEAM WASH CONTROL") + "\n")

	if m.snapshot == nil {
		if m.lastErr != nil {
			sb.WriteString(critStyle.Render("api unreachable: "+m.lastErr.Error()) + "\n")
		} else {
			sb.WriteString(labelStyle.Render("loading...") + "\n")
		}
		sb.WriteString(m.renderHelp())
		return sb.String()
	}

	s := *m.snapshot
	panels := lipgloss.JoinHorizontal(lipgloss.Top,
		panelStyle.Render(renderSystem(s)),
		panelStyle.Render(renderUsage(s)),
		panelStyle.Render(renderFinancials(s)),
	)
	sb.WriteString(panels + "\n")
	sb.WriteString(panelStyle.Render(renderAlerts(s.Alerts)) + "\n")

	status := labelStyle.Render("updated " + m.fetchedAt.Format("15:04:05"))
	if m.lastErr != nil {
		status += "  " + warnStyle.Render("stale: "+m.lastErr.Error())
	}
	if m.notice != "" {
		status += "  " + valueStyle.Render(m.notice)
	}
	sb.WriteString(status + "\n")
	sb.WriteString(m.renderHelp())
	return sb.String()
}

func (m Model) renderHelp() string {
	return helpStyle.Render("s start  x stop  e emergency stop  r reset  q quit")
}

func row(label, value string) string {
	return fmt.Sprintf("%s %s", labelStyle.Render(fmt.Sprintf("%-16s", label)), value)
}

func renderSystem(s telemetryapp.Snapshot) string {
	st := s.SystemStatus
	state := critStyle.Render("STOPPED")
	if st.IsRunning {
		state = okStyle.Render("RUNNING")
	}
	lines := []string{
		titleStyle.Render("System"),
		row("State", state),
		row("Steam pressure", levelStyle(st.SteamPressure, 7, 8).Render(fmt.Sprintf("%.2f bar", st.SteamPressure))),
		row("Temperature", levelStyle(st.Temperature, 110, 120).Render(fmt.Sprintf("%.1f °C", st.Temperature))),
		row("Water level", valueStyle.Render(fmt.Sprintf("%.1f %%", st.WaterLevel))),
		row("Motor speed", valueStyle.Render(fmt.Sprintf("%.0f / %.0f rpm", st.MotorSpeed, st.TargetSpeed))),
		row("Voltage", valueStyle.Render(fmt.Sprintf("%.1f V", st.Voltage))),
		row("Active motors", valueStyle.Render(fmt.Sprintf("%d", st.ActiveMotors))),
	}
	return strings.Join(lines, "\n")
}

func renderUsage(s telemetryapp.Snapshot) string {
	u := s.ResourceUsage
	d := s.RealtimeDebits
	lines := []string{
		titleStyle.Render("Usage"),
		row("Energy", valueStyle.Render(fmt.Sprintf("%.3f kWh", u.EnergyConsumption))),
		row("Water", valueStyle.Render(fmt.Sprintf("%.2f L", u.WaterUsage))),
		row("Soap", valueStyle.Render(fmt.Sprintf("%.1f mL", u.SoapUsage))),
		row("Wash time", valueStyle.Render(fmt.Sprintf("%.1f min", u.WashDuration))),
		row("Sessions", valueStyle.Render(fmt.Sprintf("%d", u.WashSessions))),
		row("Debit rates", labelStyle.Render(fmt.Sprintf("%.2f kW  %.1f L/m  %.1f mL/m", d.EnergyDebit, d.WaterDebit, d.SoapDebit))),
	}
	return strings.Join(lines, "\n")
}

func renderFinancials(s telemetryapp.Snapshot) string {
	f := s.Financials()
	net := okStyle
	if f.NetRevenue < 0 {
		net = critStyle
	}
	lines := []string{
		titleStyle.Render("Financials"),
		row("Service price", valueStyle.Render(fmt.Sprintf("%.0f", f.ServicePrice))),
		row("Gross revenue", valueStyle.Render(fmt.Sprintf("%.0f", f.GrossRevenue))),
		row("Operating cost", valueStyle.Render(fmt.Sprintf("%.0f", f.OperationalCost))),
		row("Net revenue", net.Render(fmt.Sprintf("%.0f", f.NetRevenue))),
	}
	return strings.Join(lines, "\n")
}

func renderAlerts(list []alarms.Alert) string {
	lines := []string{titleStyle.Render("Recent alerts")}
	if len(list) == 0 {
		lines = append(lines, labelStyle.Render("none"))
	}
	for i, alert := range list {
		if i == maxAlertRows {
			lines = append(lines, labelStyle.Render(fmt.Sprintf("... %d more", len(list)-maxAlertRows)))
			break
		}
		style := warnStyle
		if alert.Kind == alarms.KindDanger {
			style = critStyle
		}
		lines = append(lines, fmt.Sprintf("%s %s %s",
			labelStyle.Render(alert.CreatedAt.Local().Format("15:04:05")),
			style.Render(strings.ToUpper(string(alert.Kind))),
			valueStyle.Render(alert.Message)))
	}
	return strings.Join(lines, "\n")
}
