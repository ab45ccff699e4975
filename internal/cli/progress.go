package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"charm.land/bubbles/v2/progress"
	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/aibus/dar-go/pkg/dar"
)

// Theme holds the color scheme for the progress display.
type Theme struct {
	Status  lipgloss.Color
	Success lipgloss.Color
	Error   lipgloss.Color
	Hint    lipgloss.Color
}

// defaultTheme provides default colors.
var defaultTheme = Theme{
	Status:  lipgloss.Color("#5FAFD7"), // light blue
	Success: lipgloss.Color("#00D787"), // green
	Error:   lipgloss.Color("#FF005F"), // red
	Hint:    lipgloss.Color("#6C6C6C"), // dim gray
}

func (t Theme) statusStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Status)
}

func (t Theme) completedStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Success).Bold(true)
}

func (t Theme) errorStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Error).Bold(true)
}

func (t Theme) hintStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Hint).Italic(true)
}

// jobUpdateMsg carries a polled job state.
type jobUpdateMsg struct {
	job *dar.Job
}

// jobDoneMsg is sent once the wait has returned.
type jobDoneMsg struct {
	job *dar.Job
	err error
}

// progressModel renders the training progress of one job. It does not poll
// by itself: the SDK wait loop pushes updates through the observer.
type progressModel struct {
	job      *dar.Job
	progress progress.Model
	theme    Theme
	done     bool
	quitting bool
	err      error
}

func newProgressModel() progressModel {
	return progressModel{
		progress: progress.New(
			progress.WithDefaultBlend(),
			progress.WithWidth(40),
		),
		theme: defaultTheme,
	}
}

func (m progressModel) Init() tea.Cmd {
	return m.progress.Init()
}

func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			return m, tea.Quit
		}

	case jobUpdateMsg:
		m.job = msg.job
		return m, nil

	case jobDoneMsg:
		if msg.job != nil {
			m.job = msg.job
		}
		m.err = msg.err
		m.done = true
		return m, tea.Quit

	case progress.FrameMsg:
		var cmd tea.Cmd
		m.progress, cmd = m.progress.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m progressModel) View() tea.View {
	return tea.NewView(m.renderContent())
}

func (m progressModel) renderContent() string {
	if m.done || m.quitting {
		return m.finalView()
	}
	if m.job == nil {
		return "Waiting for training job...\n"
	}

	status := m.theme.statusStyle().Render(fmt.Sprintf("[%s]", m.job.Status))
	bar := m.progress.ViewAs(m.job.Progress)
	hint := m.theme.hintStyle().Render("Press Ctrl+C to stop waiting, training continues on the service")
	return fmt.Sprintf("%s %s %s\n%s\n", status, bar, m.job.ID, hint)
}

func (m progressModel) finalView() string {
	if m.quitting {
		msg := "\nStopped waiting. The job continues on the service.\n"
		if m.job != nil {
			msg = fmt.Sprintf("\nStopped waiting. Job %s continues on the service.\nUse 'darctl wait job %s' to resume.\n",
				m.job.ID, m.job.ID)
		}
		return m.theme.hintStyle().Render(msg)
	}
	if m.err != nil {
		return m.theme.errorStyle().Render(fmt.Sprintf("\n✗ Job failed: %s\n", m.err))
	}
	return m.theme.completedStyle().Render("✓ Training completed") + "\n"
}

// waitFunc runs a blocking job wait and reports every polled state to
// observe.
type waitFunc func(ctx context.Context, observe func(*dar.Job)) (*dar.Job, error)

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// runJobProgress runs wait and shows its progress: an interactive bar on a
// terminal, plain status lines otherwise. Quitting the bar cancels the
// wait and is not an error.
func runJobProgress(ctx context.Context, out io.Writer, wait waitFunc) (*dar.Job, error) {
	if !isTerminal(out) {
		return wait(ctx, func(j *dar.Job) {
			fmt.Fprintf(out, "job %s: %s (%.0f%%)\n", j.ID, j.Status, j.Progress*100)
		})
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(newProgressModel())
	var (
		job     *dar.Job
		waitErr error
		done    = make(chan struct{})
	)
	go func() {
		defer close(done)
		job, waitErr = wait(ctx, func(j *dar.Job) { p.Send(jobUpdateMsg{job: j}) })
		p.Send(jobDoneMsg{job: job, err: waitErr})
	}()

	finalModel, err := p.Run()
	cancel()
	<-done
	if err != nil {
		return nil, fmt.Errorf("progress UI error: %w", err)
	}
	if m, ok := finalModel.(progressModel); ok && m.quitting {
		return nil, nil
	}
	return job, waitErr
}
