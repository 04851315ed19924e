// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Thermoquad/devdash/pkg/broker"
	"github.com/Thermoquad/devdash/pkg/telemetry"
	"github.com/Thermoquad/devdash/pkg/units"
)

const (
	refreshInterval = 100 * time.Millisecond
	feedSize        = 64
)

// dashFeed carries pipeline events into the program. Posting never blocks,
// so listeners can fire before the program runs; events past the buffer are
// dropped.
type dashFeed chan tea.Msg

func newDashFeed() dashFeed {
	return make(dashFeed, feedSize)
}

func (f dashFeed) post(msg tea.Msg) {
	select {
	case f <- msg:
	default:
	}
}

// next waits for the next event. A closed feed yields no message.
func (f dashFeed) next() tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-f
		if !ok {
			return nil
		}
		return msg
	}
}

// wireDashFeed forwards connection, error and gear events to feed
func wireDashFeed(b *broker.Broker, feed dashFeed) {
	b.OnConnectionChange(func(connected bool) {
		feed.post(connectionMsg{connected: connected})
	})
	b.OnError(func(err error) {
		feed.post(adapterErrorMsg{err: err})
	})
	b.OnChange(func(c broker.Change) {
		if c.Channel == broker.Gear {
			feed.post(gearMsg{label: c.Label})
		}
	})
}

// Event log entry
type eventLogEntry struct {
	timestamp time.Time
	message   string
	isError   bool // true for errors, false for notices
}

// Dashboard model
type dashModel struct {
	pipe          *pipeline
	feed          dashFeed
	sourceInfo    string
	imperial      bool
	filter        textinput.Model
	events        []eventLogEntry
	maxLogEntries int
	started       time.Time
	stats         telemetry.Statistics
	hasStats      bool
	width         int
	height        int
	quitting      bool
}

// Messages
type tickMsg time.Time
type connectionMsg struct {
	connected bool
}
type adapterErrorMsg struct {
	err error
}
type gearMsg struct {
	label string
}

// formatUptime formats uptime in milliseconds to human-friendly string
func formatUptime(ms uint64) string {
	seconds := ms / 1000
	minutes := seconds / 60
	hours := minutes / 60
	days := hours / 24

	seconds %= 60
	minutes %= 60
	hours %= 24

	parts := []string{}
	add := func(n uint64, unit string) {
		if n == 1 {
			parts = append(parts, "1 "+unit)
		} else if n > 1 {
			parts = append(parts, fmt.Sprintf("%d %ss", n, unit))
		}
	}
	add(days, "day")
	add(hours, "hour")
	add(minutes, "minute")
	if seconds > 0 || len(parts) == 0 {
		if seconds == 1 {
			parts = append(parts, "1 second")
		} else {
			parts = append(parts, fmt.Sprintf("%d seconds", seconds))
		}
	}

	// Join with commas and "and" for last item
	if len(parts) == 1 {
		return parts[0]
	}
	if len(parts) == 2 {
		return parts[0] + " and " + parts[1]
	}
	last := parts[len(parts)-1]
	rest := strings.Join(parts[:len(parts)-1], ", ")
	return rest + ", and " + last
}

// displayUnit returns the unit a channel is shown in
func displayUnit(ch broker.StandardChannel, imperial bool) string {
	native := ch.NativeUnit()
	if !imperial {
		return native
	}
	switch native {
	case "°C":
		return units.Fahrenheit
	case "kPa":
		return units.PSI
	case "km/h":
		return units.Mph
	}
	return native
}

// filterChannels returns the names containing query, case-insensitively, in
// sorted order
func filterChannels(names []string, query string) []string {
	query = strings.ToLower(strings.TrimSpace(query))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if query == "" || strings.Contains(strings.ToLower(n), query) {
			out = append(out, n)
		}
	}
	sort.Strings(out)
	return out
}

func initialDashModel(p *pipeline, feed dashFeed, sourceInfo string, imperial bool) dashModel {
	ti := textinput.New()
	ti.Placeholder = "filter channels"
	ti.Prompt = "/ "
	ti.CharLimit = 32
	ti.Width = 24

	return dashModel{
		pipe:          p,
		feed:          feed,
		sourceInfo:    sourceInfo,
		imperial:      imperial,
		filter:        ti,
		events:        make([]eventLogEntry, 0),
		maxLogEntries: 100,
		started:       time.Now(),
		width:         80,
		height:        24,
	}
}

func (m dashModel) Init() tea.Cmd {
	return tea.Batch(tickCmd(), m.feed.next())
}

func tickCmd() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m dashModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.filter.Focused() {
			switch msg.String() {
			case "ctrl+c":
				m.quitting = true
				return m, tea.Quit
			case "esc":
				m.filter.Reset()
				m.filter.Blur()
				return m, nil
			case "enter":
				m.filter.Blur()
				return m, nil
			}
			var cmd tea.Cmd
			m.filter, cmd = m.filter.Update(msg)
			return m, cmd
		}

		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "/":
			cmd := m.filter.Focus()
			return m, cmd
		case "u":
			m.imperial = !m.imperial
		case "esc":
			m.filter.Reset()
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tickMsg:
		m.stats, m.hasStats = m.pipe.statistics()
		return m, tickCmd()

	case connectionMsg:
		if msg.connected {
			m.addLogEntry("Connected", false)
		} else {
			m.addLogEntry("Disconnected", true)
		}
		return m, m.feed.next()

	case adapterErrorMsg:
		m.addLogEntry(msg.err.Error(), true)
		return m, m.feed.next()

	case gearMsg:
		m.addLogEntry("Gear "+msg.label, false)
		return m, m.feed.next()
	}

	return m, nil
}

func (m *dashModel) addLogEntry(message string, isError bool) {
	entry := eventLogEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	}
	m.events = append(m.events, entry)

	// Keep only last N entries
	if len(m.events) > m.maxLogEntries {
		m.events = m.events[len(m.events)-m.maxLogEntries:]
	}
}

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12")).
			Background(lipgloss.Color("235")).
			Padding(0, 1)

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("12")).
			Bold(true)

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("10"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("11"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)
)

func (m dashModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	var s strings.Builder
	s.WriteString(titleStyle.Render("DEVDASH"))
	s.WriteString("\n")
	unitsMode := "metric"
	if m.imperial {
		unitsMode = "imperial"
	}
	s.WriteString(headerStyle.Render(fmt.Sprintf("%s | %s | Up %s | q quit, / filter, u units (%s)",
		m.pipe.adapter.Name(), m.sourceInfo,
		formatUptime(uint64(time.Since(m.started).Milliseconds())), unitsMode)))
	s.WriteString("\n\n")

	if m.pipe.broker.IsConnected() {
		s.WriteString(valueStyle.Render("● Connected"))
	} else {
		s.WriteString(warningStyle.Render("○ Waiting for data..."))
	}
	s.WriteString(headerStyle.Render(fmt.Sprintf("   queue %d", m.pipe.broker.QueueDepth())))
	s.WriteString("\n\n")

	left := boxStyle.Render(m.renderStandard())
	right := boxStyle.Render(m.renderRaw())
	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, left, " ", right))
	s.WriteString("\n")

	if m.hasStats {
		s.WriteString(boxStyle.Render(m.renderStats()))
		s.WriteString("\n")
	}

	s.WriteString(labelStyle.Render("Recent Events:"))
	s.WriteString("\n")
	s.WriteString(boxStyle.Width(max(m.width-4, 20)).Render(m.renderEvents()))

	return s.String()
}

func (m dashModel) renderStandard() string {
	b := m.pipe.broker
	var c strings.Builder
	for _, ch := range broker.Channels() {
		name := labelStyle.Render(fmt.Sprintf("%-21s", ch.String()))
		if ch == broker.Gear {
			c.WriteString(fmt.Sprintf("%s %s\n", name, valueStyle.Render(b.Gear())))
			continue
		}
		unit := displayUnit(ch, m.imperial)
		c.WriteString(fmt.Sprintf("%s %s\n", name,
			valueStyle.Render(fmt.Sprintf("%9.1f %s", b.ValueIn(ch, unit), unit))))
	}
	return strings.TrimRight(c.String(), "\n")
}

func (m dashModel) renderRaw() string {
	a := m.pipe.adapter
	names := filterChannels(a.AvailableChannels(), m.filter.Value())

	rows := m.height - 22
	if rows < 8 {
		rows = 8
	}

	var c strings.Builder
	c.WriteString(m.filter.View())
	c.WriteString("\n")
	if len(names) == 0 {
		c.WriteString(headerStyle.Render("  (no channels)"))
		return c.String()
	}
	for i, name := range names {
		if i == rows {
			c.WriteString(headerStyle.Render(fmt.Sprintf("  ... %d more", len(names)-rows)))
			break
		}
		v, ok := a.Channel(name)
		if !ok {
			continue
		}
		c.WriteString(fmt.Sprintf("%-28s %s\n", name, telemetry.FormatValue(v)))
	}
	return strings.TrimRight(c.String(), "\n")
}

func (m dashModel) renderStats() string {
	st := m.stats
	st.CalculateRates()
	errs := fmt.Sprintf("%d", st.InvalidFrames+st.DecodeErrors+st.AdapterErrors)
	if errs != "0" {
		errs = errorStyle.Render(errs)
	} else {
		errs = valueStyle.Render(errs)
	}
	return fmt.Sprintf("%s %s   %s %s   %s %s   %s %s   %s %s",
		labelStyle.Render("Frames:"), valueStyle.Render(fmt.Sprintf("%d", st.TotalFrames)),
		labelStyle.Render("Decoded:"), valueStyle.Render(fmt.Sprintf("%d", st.DecodedFrames)),
		labelStyle.Render("Unknown:"), valueStyle.Render(fmt.Sprintf("%d", st.UnknownFrames)),
		labelStyle.Render("Errors:"), errs,
		labelStyle.Render("Rate:"), valueStyle.Render(fmt.Sprintf("%.1f frames/s", st.FrameRate)),
	)
}

func (m dashModel) renderEvents() string {
	logHeight := m.height - 30
	if logHeight < 4 {
		logHeight = 4
	}
	if len(m.events) == 0 {
		return headerStyle.Render("  (no events yet)")
	}

	startIdx := len(m.events) - logHeight
	if startIdx < 0 {
		startIdx = 0
	}
	var c strings.Builder
	for _, entry := range m.events[startIdx:] {
		timestamp := headerStyle.Render(entry.timestamp.Format("15:04:05.000"))
		if entry.isError {
			c.WriteString(fmt.Sprintf("%s %s\n", timestamp, errorStyle.Render("✗ "+entry.message)))
		} else {
			c.WriteString(fmt.Sprintf("%s %s\n", timestamp, warningStyle.Render("ℹ "+entry.message)))
		}
	}
	return strings.TrimRight(c.String(), "\n")
}
