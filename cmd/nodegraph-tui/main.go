package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	dto "github.com/prometheus/client_model/go"

	"github.com/dd0wney/cluso-nodegraph/pkg/config"
	"github.com/dd0wney/cluso-nodegraph/pkg/demo"
	"github.com/dd0wney/cluso-nodegraph/pkg/eval"
	"github.com/dd0wney/cluso-nodegraph/pkg/graph"
	"github.com/dd0wney/cluso-nodegraph/pkg/logging"
	"github.com/dd0wney/cluso-nodegraph/pkg/metrics"
	"github.com/dd0wney/cluso-nodegraph/pkg/ops"
	"github.com/dd0wney/cluso-nodegraph/pkg/value"
)

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF00FF")).
			MarginLeft(2).
			MarginTop(1)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#00FFFF")).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#00FFFF")).
			Padding(0, 1)

	activeTabStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(lipgloss.Color("#FF00FF")).
			Padding(0, 2)

	inactiveTabStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#666666")).
				Padding(0, 2)

	contentStyle = lipgloss.NewStyle().
			MarginLeft(2).
			MarginTop(1)

	statsBoxStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#00FF00")).
			Padding(1, 2).
			MarginRight(2)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF0000")).
			Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00FF00")).
			Bold(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888")).
			MarginTop(1).
			MarginLeft(2)
)

type view int

const (
	networkView view = iota
	resultView
	editView
	metricsView
	viewCount
)

var tabNames = []string{"Network", "Result", "Edit", "Metrics"}

type keyMap struct {
	Tab      key.Binding
	ShiftTab key.Binding
	Enter    key.Binding
	Eval     key.Binding
	Quit     key.Binding
	Up       key.Binding
	Down     key.Binding
}

var keys = keyMap{
	Tab: key.NewBinding(
		key.WithKeys("tab"),
		key.WithHelp("tab", "next view"),
	),
	ShiftTab: key.NewBinding(
		key.WithKeys("shift+tab"),
		key.WithHelp("shift+tab", "prev view"),
	),
	Enter: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "apply edit"),
	),
	Eval: key.NewBinding(
		key.WithKeys("ctrl+e"),
		key.WithHelp("ctrl+e", "evaluate"),
	),
	Quit: key.NewBinding(
		key.WithKeys("ctrl+c"),
		key.WithHelp("ctrl+c", "quit"),
	),
	Up: key.NewBinding(
		key.WithKeys("up"),
		key.WithHelp("↑", "up"),
	),
	Down: key.NewBinding(
		key.WithKeys("down"),
		key.WithHelp("↓", "down"),
	),
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Tab, k.Enter, k.Eval, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Tab, k.ShiftTab, k.Enter, k.Eval},
		{k.Up, k.Down},
		{k.Quit},
	}
}

// passRecord is one finished evaluation shown in the result view
type passRecord struct {
	stats  eval.PassStats
	result value.Value
	err    error
	edit   string
}

type evalMsg passRecord

type model struct {
	demo      demo.Demo
	lib       *graph.Library
	evaluator *eval.Evaluator
	metrics   *metrics.Registry

	currentView view
	editInput   textinput.Model
	nodeTable   table.Model
	help        help.Model
	keys        keyMap
	width       int
	height      int

	history    []passRecord
	pendingMsg string
	evaluating bool
	message    string
	messageErr bool
	startTime  time.Time
}

func initialModel(d demo.Demo, lib *graph.Library, e *eval.Evaluator, m *metrics.Registry) model {
	ti := textinput.New()
	ti.Placeholder = "node.port=value  (e.g. range1.end=500)"
	ti.CharLimit = 200
	ti.Width = 60

	columns := []table.Column{
		{Title: "Path", Width: 28},
		{Title: "Operation", Width: 22},
		{Title: "Inputs", Width: 40},
		{Title: "Gen", Width: 5},
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(12),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("#00FFFF")).
		BorderBottom(true).
		Bold(true)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("#FFFFFF")).
		Background(lipgloss.Color("#FF00FF")).
		Bold(false)
	t.SetStyles(s)

	m0 := model{
		demo:        d,
		lib:         lib,
		evaluator:   e,
		metrics:     m,
		currentView: networkView,
		editInput:   ti,
		nodeTable:   t,
		help:        help.New(),
		keys:        keys,
		startTime:   time.Now(),
	}
	m0.refreshNodeTable()
	return m0
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		m.evaluate(""),
	)
}

// evaluate runs a pass off the update loop
func (m model) evaluate(edit string) tea.Cmd {
	e := m.evaluator
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		v, err := e.EvaluateRendered(ctx)
		return evalMsg{stats: e.LastPass(), result: v, err: err, edit: edit}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width

	case evalMsg:
		m.evaluating = false
		m.history = append(m.history, passRecord(msg))
		if msg.err != nil {
			m.message = fmt.Sprintf("Evaluation failed: %v", msg.err)
			m.messageErr = true
		} else {
			m.message = fmt.Sprintf("Pass %s: %d computed, %d cached, %d reused in %s",
				shortID(msg.stats.ID), msg.stats.Computed, msg.stats.Cached, msg.stats.Reused, msg.stats.Duration)
			m.messageErr = false
		}
		m.refreshNodeTable()
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit

		case key.Matches(msg, m.keys.Tab):
			m.currentView = (m.currentView + 1) % viewCount
			m.syncFocus()

		case key.Matches(msg, m.keys.ShiftTab):
			m.currentView = (m.currentView + viewCount - 1) % viewCount
			m.syncFocus()

		case key.Matches(msg, m.keys.Eval):
			if !m.evaluating {
				m.evaluating = true
				return m, m.evaluate("")
			}

		case key.Matches(msg, m.keys.Enter):
			if m.currentView == editView && m.editInput.Focused() && !m.evaluating {
				if desc, ok := m.applyEdit(); ok {
					m.evaluating = true
					return m, m.evaluate(desc)
				}
				return m, nil
			}
		}
	}

	switch m.currentView {
	case editView:
		m.editInput, cmd = m.editInput.Update(msg)
		cmds = append(cmds, cmd)
	case networkView:
		m.nodeTable, cmd = m.nodeTable.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m *model) syncFocus() {
	if m.currentView == editView {
		m.editInput.Focus()
	} else {
		m.editInput.Blur()
	}
}

func (m *model) applyEdit() (string, bool) {
	input := strings.TrimSpace(m.editInput.Value())
	if input == "" {
		m.message = "Edit cannot be empty"
		m.messageErr = true
		return "", false
	}

	desc, err := demo.Set(m.lib, input)
	if err != nil {
		m.message = fmt.Sprintf("Edit rejected: %v", err)
		m.messageErr = true
		return "", false
	}

	m.editInput.SetValue("")
	m.message = desc
	m.messageErr = false
	return desc, true
}

func (m *model) refreshNodeTable() {
	var rows []table.Row
	var walk func(net *graph.Network, prefix string)
	walk = func(net *graph.Network, prefix string) {
		rendered, _ := net.Rendered()
		nodes, err := net.Order()
		if err != nil {
			nodes = net.Nodes()
		}
		for _, n := range nodes {
			path := prefix + n.Name
			if n.ID == rendered {
				path += " *"
			}
			op := n.Operation
			switch {
			case n.IsCompound():
				op = "[network " + n.Child.Name + "]"
			case n.IsInput():
				op = "[input]"
			}
			rows = append(rows, table.Row{path, op, formatInputs(net, n), fmt.Sprintf("%d", n.Generation())})
			if n.Child != nil {
				walk(n.Child, prefix+n.Name+"/")
			}
		}
	}
	walk(m.lib.Root, "")
	m.nodeTable.SetRows(rows)
}

func formatInputs(net *graph.Network, n *graph.Node) string {
	parts := make([]string, 0)
	for _, p := range n.Inputs() {
		if conns := net.ConnectionsTo(n.ID, p.Name); len(conns) > 0 {
			parts = append(parts, fmt.Sprintf("%s<-%d", p.Name, len(conns)))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s=%s", p.Name, p.Default))
	}
	if len(parts) > 3 {
		parts = parts[:3]
		parts = append(parts, "...")
	}
	return strings.Join(parts, ", ")
}

func (m model) View() string {
	if m.width == 0 {
		return "Initializing..."
	}

	var s strings.Builder

	s.WriteString(titleStyle.Render("nodegraph - " + m.demo.Name))
	s.WriteString("\n\n")

	s.WriteString(m.renderTabs())
	s.WriteString("\n\n")

	switch m.currentView {
	case networkView:
		s.WriteString(m.renderNetwork())
	case resultView:
		s.WriteString(m.renderResult())
	case editView:
		s.WriteString(m.renderEdit())
	case metricsView:
		s.WriteString(m.renderMetrics())
	}

	if m.evaluating {
		s.WriteString("\n\n")
		s.WriteString(helpStyle.Render("evaluating..."))
	}
	if m.message != "" {
		s.WriteString("\n\n")
		if m.messageErr {
			s.WriteString(errorStyle.Render("✗ " + m.message))
		} else {
			s.WriteString(successStyle.Render("✓ " + m.message))
		}
	}

	s.WriteString("\n\n")
	s.WriteString(helpStyle.Render(m.help.ShortHelpView(m.keys.ShortHelp())))

	return s.String()
}

func (m model) renderTabs() string {
	var renderedTabs []string
	for i, tab := range tabNames {
		if view(i) == m.currentView {
			renderedTabs = append(renderedTabs, activeTabStyle.Render(tab))
		} else {
			renderedTabs = append(renderedTabs, inactiveTabStyle.Render(tab))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, renderedTabs...)
}

func (m model) renderNetwork() string {
	var s strings.Builder

	s.WriteString(headerStyle.Render(fmt.Sprintf("Network %s (%d nodes)", m.lib.Root.Name, m.lib.Root.Len())))
	s.WriteString("\n\n")
	s.WriteString(m.nodeTable.View())
	s.WriteString("\n\n")
	s.WriteString(helpStyle.Render("* marks the rendered node • Gen is bumped by edits upstream"))

	return contentStyle.Render(s.String())
}

func (m model) renderResult() string {
	if len(m.history) == 0 {
		return contentStyle.Render(helpStyle.Render("No passes yet"))
	}

	last := m.history[len(m.history)-1]
	var current string
	if last.err != nil {
		current = errorStyle.Render(last.err.Error())
	} else {
		current = describeValue(last.result)
	}
	resultBox := statsBoxStyle.Render("Result\n━━━━━━━━━━━━━━━\n" + current)

	var h strings.Builder
	h.WriteString("Passes\n━━━━━━━━━━━━━━━\n")
	start := max(0, len(m.history)-8)
	for i, p := range m.history[start:] {
		status := "ok"
		if p.err != nil {
			status = "error"
		}
		fmt.Fprintf(&h, "%2d. %-5s computed %-3d cached %-3d reused %-3d %s\n",
			start+i+1, status, p.stats.Computed, p.stats.Cached, p.stats.Reused, p.stats.Duration.Round(time.Microsecond))
		if p.edit != "" {
			fmt.Fprintf(&h, "    %s\n", p.edit)
		}
	}
	historyBox := statsBoxStyle.Render(strings.TrimRight(h.String(), "\n"))

	return contentStyle.Render(lipgloss.JoinHorizontal(lipgloss.Top, resultBox, historyBox))
}

func describeValue(v value.Value) string {
	switch {
	case v.IsList():
		items := v.Items()
		parts := make([]string, 0, 6)
		for i, it := range items {
			if i == 5 {
				parts = append(parts, "...")
				break
			}
			parts = append(parts, it.String())
		}
		return fmt.Sprintf("list of %d\n[%s]", len(items), strings.Join(parts, ", "))
	case v.Kind() == value.KindGeometry:
		g, _ := v.AsGeometry()
		b := g.Bounds()
		return fmt.Sprintf("%d paths\nbounds %.1f,%.1f %.1fx%.1f", len(g.Paths), b.X, b.Y, b.Width, b.Height)
	default:
		return v.String()
	}
}

func (m model) renderEdit() string {
	var s strings.Builder

	s.WriteString(headerStyle.Render("Edit Parameter"))
	s.WriteString("\n\n")
	s.WriteString("Set an input port default, then the network is evaluated again:\n\n")
	s.WriteString(m.editInput.View())
	s.WriteString("\n\n")
	s.WriteString(helpStyle.Render("Examples:\n"))
	s.WriteString(helpStyle.Render("  range1.end=500\n"))
	s.WriteString(helpStyle.Render("  compound1/translate1.offset=0,120\n"))
	s.WriteString(helpStyle.Render("  colorize1.fill=#3366cc\n"))

	return contentStyle.Render(s.String())
}

func (m model) renderMetrics() string {
	var s strings.Builder

	s.WriteString(headerStyle.Render("Evaluation Metrics"))
	s.WriteString("\n\n")

	families, err := m.metrics.GetPrometheusRegistry().Gather()
	if err != nil {
		s.WriteString(errorStyle.Render(err.Error()))
		return contentStyle.Render(s.String())
	}

	var lines []string
	for _, mf := range families {
		if !strings.HasPrefix(mf.GetName(), "nodegraph_") {
			continue
		}
		lines = append(lines, fmt.Sprintf("%-44s %s", mf.GetName(), summarize(mf)))
	}
	sort.Strings(lines)

	uptime := time.Since(m.startTime).Round(time.Second)
	lines = append(lines, "", fmt.Sprintf("%-44s %s", "uptime", uptime))
	s.WriteString(statsBoxStyle.Render(strings.Join(lines, "\n")))

	return contentStyle.Render(s.String())
}

// summarize folds every series of a family into one figure
func summarize(mf *dto.MetricFamily) string {
	var total float64
	var count uint64
	for _, metric := range mf.GetMetric() {
		switch mf.GetType() {
		case dto.MetricType_COUNTER:
			total += metric.GetCounter().GetValue()
		case dto.MetricType_GAUGE:
			total += metric.GetGauge().GetValue()
		case dto.MetricType_HISTOGRAM:
			count += metric.GetHistogram().GetSampleCount()
			total += metric.GetHistogram().GetSampleSum()
		}
	}
	if mf.GetType() == dto.MetricType_HISTOGRAM {
		if count == 0 {
			return "0 samples"
		}
		return fmt.Sprintf("%d samples, avg %.4g", count, total/float64(count))
	}
	return fmt.Sprintf("%g", total)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func main() {
	name := "shapes"
	if len(os.Args) > 1 {
		name = os.Args[1]
	}

	d, ok := demo.Lookup(name)
	if !ok {
		log.Fatalf("Unknown demo %q (available: %s)", name, strings.Join(demo.Names(), ", "))
	}

	cfg, err := config.Load(os.Getenv("NODEGRAPH_CONFIG"))
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	reg, err := ops.NewRegistry()
	if err != nil {
		log.Fatalf("Failed to register operations: %v", err)
	}

	lib, err := d.Build(reg)
	if err != nil {
		log.Fatalf("Failed to build demo: %v", err)
	}

	m := metrics.NewRegistry()
	e, err := eval.New(lib, reg,
		eval.WithConfig(cfg),
		eval.WithMetrics(m),
		eval.WithLogger(logging.NewNopLogger()),
	)
	if err != nil {
		log.Fatalf("Failed to create evaluator: %v", err)
	}
	defer e.Close()

	p := tea.NewProgram(initialModel(d, lib, e, m), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		log.Fatalf("Error running program: %v", err)
	}
}
