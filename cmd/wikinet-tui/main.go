// Command wikinet-tui browses a similarity network checkpoint in the terminal.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/latebit/wikinet/internal/app"
	"github.com/latebit/wikinet/internal/checkpoint"
	"github.com/latebit/wikinet/internal/config"
	"github.com/latebit/wikinet/internal/logging"
)

type focus int

const (
	focusViewport focus = iota
	focusSearch
)

// textSource supplies article text for the reading view.
type textSource interface {
	Text(ctx context.Context, title string) (string, error)
}

type model struct {
	search   textinput.Model
	viewport viewport.Model
	focus    focus
	mode     viewMode

	net      *network
	path     string
	items    []graphListItem
	graphIdx int

	texts   textSource // nil disables article text
	current string
	seq     uint64
	loading bool
	err     error

	width  int
	height int
	ready  bool
}

// articleResult is sent when an article's text has been fetched.
type articleResult struct {
	title string
	text  string
	err   error
	seq   uint64
}

func initialModel(path string, n *network, texts textSource) model {
	ti := textinput.New()
	ti.Placeholder = "find article"
	ti.Prompt = "/ "

	return model{
		search: ti,
		focus:  focusViewport,
		mode:   viewGraph,
		net:    n,
		path:   path,
		items:  flattenGraph(n),
		texts:  texts,
	}
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		if m.ready {
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		headerHeight := 2 // search bar + divider
		footerHeight := 1 // status bar
		viewportHeight := m.height - headerHeight - footerHeight
		if viewportHeight < 1 {
			viewportHeight = 1
		}

		if !m.ready {
			m.viewport = viewport.New(m.width, viewportHeight)
			m.ready = true
		} else {
			m.viewport.Width = m.width
			m.viewport.Height = viewportHeight
		}
		m.search.Width = m.width - 4
		if m.mode == viewGraph {
			m.refreshGraph()
		}
		return m, nil

	case articleResult:
		if msg.seq != m.seq {
			// A newer article was requested meanwhile.
			return m, nil
		}
		m.loading = false
		m.err = msg.err
		m.showArticle(msg.title, msg.text)
		return m, nil
	}

	return m, nil
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		return m, tea.Quit
	case tea.KeyTab:
		return m.toggleFocus(), nil
	}

	if m.focus == focusSearch {
		switch msg.Type {
		case tea.KeyEnter:
			query := m.search.Value()
			idx := findItem(m.items, query)
			if idx < 0 {
				m.err = fmt.Errorf("no article matching %q", query)
				return m, nil
			}
			m.err = nil
			m.graphIdx = idx
			m.mode = viewGraph
			m.focus = focusViewport
			m.search.Blur()
			m.search.SetValue("")
			m.refreshGraph()
			return m, nil
		case tea.KeyEscape:
			m.focus = focusViewport
			m.search.Blur()
			return m, nil
		}
		var cmd tea.Cmd
		m.search, cmd = m.search.Update(msg)
		return m, cmd
	}

	if m.mode == viewGraph {
		return m.handleGraphKey(msg)
	}

	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "esc", "backspace", "g":
		m.mode = viewGraph
		m.err = nil
		m.refreshGraph()
		return m, nil
	case "/":
		m.focus = focusSearch
		m.search.Focus()
		return m, nil
	}
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m model) toggleFocus() model {
	if m.focus == focusSearch {
		m.focus = focusViewport
		m.search.Blur()
	} else {
		m.focus = focusSearch
		m.search.Focus()
	}
	return m
}

func (m *model) refreshGraph() {
	if m.ready {
		m.viewport.SetContent(renderGraphView(m.items, m.graphIdx, m.width))
	}
}

// openArticle switches to the reading view and fetches the article text.
func (m model) openArticle(title string) (tea.Model, tea.Cmd) {
	m.mode = viewArticle
	m.current = title
	m.err = nil
	m.seq++

	if m.texts == nil {
		m.showArticle(title, "")
		return m, nil
	}

	m.loading = true
	m.showArticle(title, "")
	seq, texts := m.seq, m.texts
	return m, func() tea.Msg {
		text, err := texts.Text(context.Background(), title)
		return articleResult{title: title, text: text, err: err, seq: seq}
	}
}

func (m *model) showArticle(title, text string) {
	if !m.ready {
		return
	}
	body := articleMarkdown(m.net, title, text)
	rendered, err := renderMarkdown(body, m.width)
	if err != nil {
		rendered = body
	}
	m.viewport.SetContent(rendered)
	m.viewport.GotoTop()
}

func (m model) View() string {
	if !m.ready {
		return "Loading..."
	}

	var b strings.Builder

	barStyle := lipgloss.NewStyle().
		Padding(0, 1).
		Width(m.width)
	if m.focus == focusSearch {
		barStyle = barStyle.Bold(true)
		b.WriteString(barStyle.Render(m.search.View()))
	} else {
		b.WriteString(barStyle.Faint(true).Render(m.path))
	}
	b.WriteByte('\n')

	b.WriteString(strings.Repeat("─", m.width))
	b.WriteByte('\n')

	b.WriteString(m.viewport.View())
	b.WriteByte('\n')

	b.WriteString(m.statusBarView())

	return b.String()
}

func (m model) statusBarView() string {
	style := lipgloss.NewStyle().
		Width(m.width).
		Padding(0, 1)

	if m.loading {
		return style.Render("Loading " + m.current + "...")
	}
	if m.err != nil {
		return style.Foreground(lipgloss.Color("9")).Render("Error: " + m.err.Error())
	}

	parts := []string{
		"seed: " + m.net.seed,
		fmt.Sprintf("%d articles", m.net.g.NodeCount()),
		fmt.Sprintf("%d edges", m.net.g.EdgeCount()),
	}
	if m.net.runID != "" {
		parts = append(parts, "run "+short(m.net.runID))
	}
	parts = append(parts, fmt.Sprintf("%d%%", int(m.viewport.ScrollPercent()*100)))
	return style.Render(strings.Join(parts, "  "))
}

func short(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func renderMarkdown(body string, width int) (string, error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width-4),
	)
	if err != nil {
		return "", err
	}
	return r.Render(body)
}

// newTextSource builds the article source used for the reading view. Logs
// are dropped so they do not draw over the screen.
func newTextSource(c *config.Config) (textSource, func(), error) {
	src, cleanup, err := app.NewSource(c, logging.Discard())
	if err != nil {
		return nil, nil, err
	}
	return src, cleanup, nil
}

var (
	configPath string
	articleDir string
	language   string
	noText     bool
)

var rootCmd = &cobra.Command{
	Use:          "wikinet-tui [checkpoint]",
	Short:        "Browse a similarity network checkpoint (.gexf or .json)",
	Args:         cobra.MaximumNArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("dir") {
			c.Source.Kind, c.Source.Dir = "dir", articleDir
		}
		if cmd.Flags().Changed("lang") {
			c.Source.Language = language
		}

		path := c.Run.Output
		if len(args) == 1 {
			path = args[0]
		}
		snap, err := checkpoint.ReadFile(path)
		if err != nil {
			return err
		}
		n, err := newNetwork(snap)
		if err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}

		var texts textSource
		if !noText {
			src, cleanup, err := newTextSource(c)
			if err != nil {
				return err
			}
			defer cleanup()
			texts = src
		}

		p := tea.NewProgram(
			initialModel(path, n, texts),
			tea.WithAltScreen(),
			tea.WithMouseCellMotion(),
		)
		_, err = p.Run()
		return err
	},
}

func init() {
	rootCmd.Flags().StringVar(&configPath, "config", os.Getenv("WIKINET_CONFIG"), "config file (.toml, .yaml)")
	rootCmd.Flags().StringVar(&articleDir, "dir", "", "read article text from a directory of markdown files")
	rootCmd.Flags().StringVar(&language, "lang", "en", "Wikipedia language code for article text")
	rootCmd.Flags().BoolVar(&noText, "no-text", false, "do not fetch article text")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
