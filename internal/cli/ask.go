package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/williammiras/dash/internal/app"
	"github.com/williammiras/dash/internal/db"
	"github.com/williammiras/dash/internal/llm"
	"github.com/williammiras/dash/internal/models"
	"github.com/williammiras/dash/internal/parsing"
)

const (
	greeting       = "👋 Hi there! I'm your AI dataset scout, but you can call me DASH. Tell me about your project, and I'll find the best datasets to help you get started."
	projectPrompt  = "📝 What is your project about, and what kind of data do you need?"
	rawHeading     = "🧾 Here's what I found:"
	summaryHeading = "📊 Here's a dataset summary I found:"
	parseWarning   = "⚠️ Error parsing response:"
)

var (
	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("69"))
	labelStyle   = lipgloss.NewStyle().Bold(true)
	linkStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#00A3E0")).Underline(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")).Italic(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true)
)

type askOptions struct {
	raw     bool
	session string
}

// asker is the part of the service the ask command needs.
type asker struct {
	agent    llm.Agent
	parser   *parsing.OutputParser
	history  db.HistoryStore
	model    string
	maxTurns int
}

func NewAskCommand() *cobra.Command {
	var opts askOptions
	cmd := &cobra.Command{
		Use:   "ask [query...]",
		Short: "Ask DASH for datasets",
		Long:  "Describe your project and get dataset recommendations. Without arguments DASH asks interactively.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAsk(cmd, args, opts)
		},
	}
	cmd.Flags().BoolVar(&opts.raw, "raw", false, "print the agent's answer without structured parsing")
	cmd.Flags().StringVar(&opts.session, "session", "", "conversation id to continue (needs a persistent history driver)")
	return cmd
}

func runAsk(cmd *cobra.Command, args []string, opts askOptions) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := LoadConfig()
	if err != nil {
		return err
	}
	a, err := app.New(ctx, cfg, app.Options{LogOutput: cmd.ErrOrStderr()})
	if err != nil {
		return err
	}
	defer a.Close(context.WithoutCancel(ctx))

	out := cmd.OutOrStdout()
	query := strings.TrimSpace(strings.Join(args, " "))
	if query == "" {
		if query, err = promptQuery(out); err != nil {
			return err
		}
	}

	s := asker{
		agent:    a.Agent,
		parser:   a.Parser,
		history:  a.History,
		model:    cfg.LLM.Model,
		maxTurns: cfg.History.MaxTurns,
	}
	return s.ask(ctx, out, query, opts)
}

func promptQuery(out io.Writer) (string, error) {
	fmt.Fprintf(out, "\n%s\n\n", headingStyle.Render(greeting))
	var query string
	err := huh.NewInput().
		Title(projectPrompt).
		Value(&query).
		Validate(func(s string) error {
			if strings.TrimSpace(s) == "" {
				return errors.New("please describe your project")
			}
			return nil
		}).
		Run()
	if err != nil {
		return "", fmt.Errorf("failed to read query: %w", err)
	}
	return strings.TrimSpace(query), nil
}

func (s asker) ask(ctx context.Context, out io.Writer, query string, opts askOptions) error {
	var history []models.Turn
	if opts.session != "" && s.history != nil {
		session, err := s.history.GetSession(ctx, opts.session)
		switch {
		case errors.Is(err, db.ErrSessionNotFound):
		case err != nil:
			return fmt.Errorf("failed to load conversation %s: %w", opts.session, err)
		default:
			history = session.Turns
		}
	}

	res, err := s.agent.Invoke(ctx, query, history)
	if err != nil {
		return err
	}
	if res == nil {
		return llm.ErrEmptyResponse
	}

	if opts.raw {
		fmt.Fprintf(out, "\n%s\n%s\n", headingStyle.Render(rawHeading), res.Output)
	} else {
		renderResult(out, s.parser.ParseOrPassthrough(res.Output))
	}

	if opts.session != "" && s.history != nil {
		if err := s.history.AppendTurns(ctx, opts.session, s.model, s.maxTurns, models.Exchange(query, res.Output)...); err != nil {
			return fmt.Errorf("failed to save conversation %s: %w", opts.session, err)
		}
	}
	return nil
}

func renderResult(out io.Writer, result parsing.Result) {
	if !result.OK() {
		fmt.Fprintf(out, "\n%s %s\n", errorStyle.Render(parseWarning), result.Err)
		fmt.Fprintf(out, "\n%s %s\n", labelStyle.Render("Raw response:"), result.Raw)
		return
	}
	renderAnswer(out, result.Value)
}

func renderAnswer(out io.Writer, q *models.DataQuery) {
	var b strings.Builder
	b.WriteString(headingStyle.Render(summaryHeading) + "\n\n")
	b.WriteString(labelStyle.Render("Summary") + "\n" + q.Summary + "\n\n")
	b.WriteString(labelStyle.Render("Why it fits") + "\n" + q.RelevancyExplained + "\n\n")
	b.WriteString(labelStyle.Render("Sources") + "\n")
	if len(q.Sources) == 0 {
		b.WriteString(mutedStyle.Render("none") + "\n")
	}
	for i, src := range q.Sources {
		fmt.Fprintf(&b, "%d. %s\n", i+1, linkStyle.Render(src))
	}
	if len(q.ToolsUsed) > 0 {
		b.WriteString("\n" + mutedStyle.Render("Tools used: "+strings.Join(q.ToolsUsed, ", ")) + "\n")
	}
	fmt.Fprint(out, "\n"+b.String())
}
