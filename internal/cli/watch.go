package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/kholzweiler/planfreeze/pkg/engine"
	"github.com/kholzweiler/planfreeze/pkg/model"
	"github.com/kholzweiler/planfreeze/pkg/observability"
)

// visibleIterations caps the table to the most recent rows.
const visibleIterations = 15

// =============================================================================
// Watch Messages - Engine Hook Events
// =============================================================================

// iterationMsg carries one completed iteration's metrics.
type iterationMsg struct {
	iteration int
	adjusted  int
	frozen    int
	meanScore float64
}

// frozenMsg announces an element freeze.
type frozenMsg struct {
	element   int
	iteration int
	cascade   bool
}

// doneMsg terminates the watch once the run completes.
type doneMsg struct {
	reason     string
	iterations int
	duration   time.Duration
	err        error
}

// watchHooks forwards engine events to the bubbletea program.
type watchHooks struct {
	observability.NoopEngineHooks
	program *tea.Program
}

func (h *watchHooks) OnIterationComplete(_ context.Context, iteration, adjusted, frozen int, meanScore float64) {
	h.program.Send(iterationMsg{iteration: iteration, adjusted: adjusted, frozen: frozen, meanScore: meanScore})
}

func (h *watchHooks) OnElementFrozen(_ context.Context, element, iteration int, cascade bool) {
	h.program.Send(frozenMsg{element: element, iteration: iteration, cascade: cascade})
}

func (h *watchHooks) OnResolveComplete(_ context.Context, reason string, iterations int, duration time.Duration, err error) {
	h.program.Send(doneMsg{reason: reason, iterations: iterations, duration: duration, err: err})
}

// =============================================================================
// WatchModel - Live Convergence Table
// =============================================================================

// watchModel is the bubbletea model showing per-iteration convergence.
type watchModel struct {
	elements    int
	rows        []iterationMsg
	frozenTotal int
	cascades    int
	done        *doneMsg
	quit        bool
}

func newWatchModel(elements int) watchModel {
	return watchModel{elements: elements}
}

func (m watchModel) Init() tea.Cmd {
	return nil
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quit = true
			return m, tea.Quit
		}
	case iterationMsg:
		m.rows = append(m.rows, msg)
	case frozenMsg:
		m.frozenTotal++
		if msg.cascade {
			m.cascades++
		}
	case doneMsg:
		m.done = &msg
		return m, tea.Quit
	}
	return m, nil
}

func (m watchModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Resolving placement"))
	b.WriteString("\n")
	b.WriteString(StyleDim.Render(fmt.Sprintf("%d elements · q to abort", m.elements)))
	b.WriteString("\n\n")

	start := 0
	if len(m.rows) > visibleIterations {
		start = len(m.rows) - visibleIterations
	}
	rows := [][]string{}
	for _, r := range m.rows[start:] {
		rows = append(rows, []string{
			fmt.Sprintf("%d", r.iteration),
			fmt.Sprintf("%d", r.adjusted),
			fmt.Sprintf("%d", r.frozen),
			fmt.Sprintf("%.3f", r.meanScore),
		})
	}

	headerStyle := lipgloss.NewStyle().Foreground(colorGray).Bold(true)
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("Iter", "Adjusted", "Frozen", "Mean Score").
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == -1 {
				return headerStyle
			}
			return lipgloss.NewStyle().Foreground(colorWhite)
		})
	b.WriteString(t.Render())
	b.WriteString("\n")
	b.WriteString(StyleDim.Render(fmt.Sprintf("  %d frozen (%d by cascade)", m.frozenTotal, m.cascades)))
	b.WriteString("\n")

	if m.done != nil {
		style := StyleSuccess
		if m.done.reason != string(engine.ReasonConverged) {
			style = StyleWarning
		}
		b.WriteString("\n")
		b.WriteString(style.Render(fmt.Sprintf("%s after %d iterations (%s)",
			m.done.reason, m.done.iterations, m.done.duration.Round(time.Millisecond))))
		b.WriteString("\n")
	}

	return b.String()
}

// =============================================================================
// Runner Integration
// =============================================================================

// resolveWithWatch runs the resolution with a live convergence table. Engine
// hooks are redirected to the TUI for the duration of the run and restored
// afterwards.
func (c *CLI) resolveWithWatch(ctx context.Context, runner *engine.Runner, doc model.Document, opts engine.Options) (*engine.Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	program := tea.NewProgram(newWatchModel(len(doc.Elements)), tea.WithContext(ctx))

	observability.SetEngineHooks(&watchHooks{program: program})
	defer observability.Reset()

	type outcome struct {
		result *engine.Result
		err    error
	}
	resultCh := make(chan outcome, 1)
	go func() {
		result, err := runner.Execute(ctx, doc, opts)
		resultCh <- outcome{result: result, err: err}
		// Cached results skip the engine, so no completion hook fires.
		// A duplicate doneMsg after the hook-driven one is ignored.
		if err != nil {
			program.Send(doneMsg{reason: "failed", err: err})
		} else if result.CacheInfo.ResolutionHit {
			program.Send(doneMsg{
				reason:     string(result.Report.Reason),
				iterations: result.Report.Iterations,
				duration:   result.Report.Elapsed,
			})
		}
	}()

	final, err := program.Run()
	if err != nil {
		cancel()
	}
	if m, ok := final.(watchModel); ok && m.quit {
		cancel()
	}

	out := <-resultCh
	return out.result, out.err
}
