package controller

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	m "faultline.dev/pkg/faultline/internal/model"
)

const (
	// recentOutcomes is how many validation outcomes stay on screen while running.
	recentOutcomes = 8
	// chromeLines is the number of lines used by the header and the footer.
	chromeLines = 5
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	stageStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	faintStyle   = lipgloss.NewStyle().Faint(true)
	addedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	removedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

var outcomeStyles = map[m.ValidationOutcome]lipgloss.Style{
	m.Accepted:             lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
	m.BuildFailed:          lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
	m.TestBehaviorChanged:  lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
	m.Skipped:              faintStyle,
	m.InfrastructureFailed: lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
}

// TUI implements UI using Bubble Tea for interactive display.
type TUI struct {
	output io.Writer

	mu      sync.Mutex
	program *tea.Program
	done    chan struct{}
}

// NewTUI creates a new TUI.
func NewTUI(output io.Writer) *TUI {
	return &TUI{output: output}
}

type progressMsg Progress

type outcomeMsg m.LocationOutcome

type reportMsg m.Report

// Start launches the Bubble Tea program in the background.
func (t *TUI) Start(ctx context.Context, options ...StartOption) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.program != nil {
		return nil
	}

	cfg := startConfig(options)
	t.program = tea.NewProgram(newTUIModel(cfg.mode), tea.WithOutput(t.output), tea.WithAltScreen(), tea.WithContext(ctx))
	t.done = make(chan struct{})

	program, done := t.program, t.done

	go func() {
		defer close(done)

		_, _ = program.Run()
	}()

	return nil
}

// Close stops the program if it is still running.
func (t *TUI) Close(_ context.Context) {
	t.mu.Lock()
	program, done := t.program, t.done
	t.program = nil
	t.mu.Unlock()

	if program == nil {
		return
	}

	program.Quit()
	<-done
}

// Wait blocks until the user quits the program.
func (t *TUI) Wait(ctx context.Context) {
	t.mu.Lock()
	done := t.done
	t.mu.Unlock()

	if done == nil {
		return
	}

	select {
	case <-done:
	case <-ctx.Done():
	}
}

func (t *TUI) send(msg tea.Msg) {
	t.mu.Lock()
	program := t.program
	t.mu.Unlock()

	if program != nil {
		program.Send(msg)
	}
}

// DisplayProgress updates the stage line.
func (t *TUI) DisplayProgress(ctx context.Context, progress Progress) {
	if ctx.Err() != nil {
		return
	}

	t.send(progressMsg(progress))
}

// DisplayOutcome appends a validation outcome to the running list.
func (t *TUI) DisplayOutcome(ctx context.Context, outcome m.LocationOutcome) {
	if ctx.Err() != nil {
		return
	}

	t.send(outcomeMsg(outcome))
}

// DisplayReport switches the program to the scrollable ranking.
func (t *TUI) DisplayReport(ctx context.Context, report m.Report) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	t.send(reportMsg(report))

	return nil
}

// DisplayInstrumentation prints a colored diff; it does not need the program.
func (t *TUI) DisplayInstrumentation(ctx context.Context, file m.Path, diff string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if diff == "" {
		_, err := fmt.Fprintf(t.output, "%s: no probes inserted\n", file)
		return err
	}

	_, err := fmt.Fprint(t.output, colorDiff(diff))

	return err
}

func colorDiff(diff string) string {
	var b strings.Builder

	for _, line := range strings.SplitAfter(diff, "\n") {
		trimmed := strings.TrimSuffix(line, "\n")

		switch {
		case strings.HasPrefix(trimmed, "+++"), strings.HasPrefix(trimmed, "---"):
			b.WriteString(titleStyle.Render(trimmed))
		case strings.HasPrefix(trimmed, "+"):
			b.WriteString(addedStyle.Render(trimmed))
		case strings.HasPrefix(trimmed, "-"):
			b.WriteString(removedStyle.Render(trimmed))
		case strings.HasPrefix(trimmed, "@@"):
			b.WriteString(stageStyle.Render(trimmed))
		default:
			b.WriteString(trimmed)
		}

		if strings.HasSuffix(line, "\n") {
			b.WriteByte('\n')
		}
	}

	return b.String()
}

// tuiModel is the Bubble Tea model behind TUI.
type tuiModel struct {
	mode     StartMode
	progress Progress
	outcomes []m.LocationOutcome
	report   *m.Report
	viewport viewport.Model
	ready    bool
	width    int
	height   int
}

func newTUIModel(mode StartMode) tuiModel {
	return tuiModel{mode: mode}
}

func (tm tuiModel) Init() tea.Cmd {
	return nil
}

func (tm tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		tm.width, tm.height = msg.Width, msg.Height
		tm.resize()

		return tm, nil

	case progressMsg:
		tm.progress = Progress(msg)
		return tm, nil

	case outcomeMsg:
		tm.outcomes = append(tm.outcomes, m.LocationOutcome(msg))
		if len(tm.outcomes) > recentOutcomes {
			tm.outcomes = tm.outcomes[len(tm.outcomes)-recentOutcomes:]
		}

		return tm, nil

	case reportMsg:
		report := m.Report(msg)
		tm.report = &report
		tm.resize()

		return tm, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return tm, tea.Quit
		}
	}

	if tm.report == nil {
		return tm, nil
	}

	var cmd tea.Cmd
	tm.viewport, cmd = tm.viewport.Update(msg)

	return tm, cmd
}

func (tm *tuiModel) resize() {
	if tm.width == 0 || tm.height == 0 {
		return
	}

	height := tm.height - chromeLines
	if height < 1 {
		height = 1
	}

	if !tm.ready {
		tm.viewport = viewport.New(tm.width, height)
		tm.ready = true
	} else {
		tm.viewport.Width = tm.width
		tm.viewport.Height = height
	}

	if tm.report != nil {
		tm.viewport.SetContent(renderReport(*tm.report))
	}
}

func (tm tuiModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("faultline - fault localization"))
	b.WriteString("\n\n")

	if tm.report == nil {
		tm.renderRunning(&b)
		return b.String()
	}

	if !tm.ready {
		b.WriteString(renderReport(*tm.report))
		return b.String()
	}

	b.WriteString(tm.viewport.View())
	b.WriteString("\n")
	b.WriteString(faintStyle.Render(fmt.Sprintf("%3.f%% | ↑/k up | ↓/j down | q quit", tm.viewport.ScrollPercent()*100)))

	return b.String()
}

func (tm tuiModel) renderRunning(b *strings.Builder) {
	if tm.mode == ModeView {
		b.WriteString(faintStyle.Render("loading report..."))
		return
	}

	stage := string(tm.progress.Stage)
	if stage == "" {
		stage = "starting"
	}

	b.WriteString(stageStyle.Render(stage))

	if tm.progress.Total > 0 {
		fmt.Fprintf(b, " %d/%d", tm.progress.Done, tm.progress.Total)
	}

	b.WriteString("\n\n")

	for _, o := range tm.outcomes {
		style, ok := outcomeStyles[o.Outcome]
		if !ok {
			style = faintStyle
		}

		fmt.Fprintf(b, "  %s:%d %s\n", o.File, o.Line, style.Render(o.Outcome.String()))
	}
}

func renderReport(report m.Report) string {
	var b strings.Builder

	fmt.Fprintf(&b, "run %s  formula %s  failing %d  passing %d\n\n",
		report.RunID, report.Formula, report.TotalFailed, report.TotalPassed)

	if len(report.Ranking) == 0 {
		b.WriteString("No suspicious locations.\n")
		return b.String()
	}

	b.WriteString(renderRankingTable(report.Ranking, 0))

	for _, loc := range report.Ranking {
		if len(loc.Predicates) == 0 {
			continue
		}

		fmt.Fprintf(&b, "\n#%d %s:%d\n", loc.Rank, loc.File, loc.Line)

		for _, p := range loc.Predicates {
			marker := ""
			if p.OnlyFailing {
				marker = " *"
			}

			fmt.Fprintf(&b, "    %-40s %.4f (%d/%d)%s\n", p.Expression, p.Score, p.Failed, p.Passed, marker)
		}
	}

	if len(report.OnlyFailing) > 0 {
		b.WriteString("\ncovered only by failing tests:\n")

		for _, key := range report.OnlyFailing {
			fmt.Fprintf(&b, "  %s\n", key)
		}
	}

	return b.String()
}
