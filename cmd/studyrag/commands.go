package main

import (
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"studyrag/internal/config"
	"studyrag/internal/logger"
	"studyrag/internal/store"
	"studyrag/internal/tui"
)

// cli carries state shared by every subcommand of one invocation.
type cli struct {
	cfgPath string
	app     *app
}

func newRootCmd() (*cobra.Command, *cli) {
	c := &cli{}
	root := &cobra.Command{
		Use:           "studyrag",
		Short:         "Ask questions and generate quizzes from your study notes",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.setup(cmd)
		},
	}
	root.PersistentFlags().StringVar(&c.cfgPath, "config", "",
		"path to YAML config (default ./config.yaml, then ~/.config/studyrag/config.yaml)")

	root.AddCommand(
		c.ingestCmd(),
		c.askCmd(),
		c.quizCmd(),
		c.docsCmd(),
		c.removeCmd(),
		c.chatCmd(),
	)
	return root, c
}

// close releases the app built by setup, if any.
func (c *cli) close() error {
	if c.app == nil {
		return nil
	}
	return c.app.Close()
}

func (c *cli) setup(cmd *cobra.Command) error {
	var (
		cfg *config.AppConfig
		err error
	)
	if c.cfgPath == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(c.cfgPath)
	}
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	log, err := logger.New(cfg.Log.Mode, cfg.Log.Level)
	if err != nil {
		return err
	}
	c.app = newApp(log)
	return c.app.build(cmd.Context(), cfg)
}

func (c *cli) ingestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ingest <subject> <file>...",
		Short: "Extract, chunk and index notes (.txt, .md, .pdf, .docx) for a subject",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			subject := args[0]
			var failed int
			for _, path := range args[1:] {
				res, err := c.app.svc.IngestFile(cmd.Context(), subject, path)
				if err != nil {
					failed++
					cmd.PrintErrf("  %s: %v\n", path, err)
					continue
				}
				if res.Empty {
					cmd.Printf("  %s: no text found, skipped\n", res.Name)
					continue
				}
				cmd.Printf("  %s: %d chunks (id %s)\n", res.Name, res.Chunks, res.DocumentID)
				if res.Summary != "" {
					cmd.Printf("      %s\n", res.Summary)
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d files failed", failed, len(args)-1)
			}
			return nil
		},
	}
}

func (c *cli) askCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ask <subject> <question>...",
		Short: "Answer a question from a subject's notes",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			question := strings.Join(args[1:], " ")
			cmd.Println(c.app.svc.Ask(cmd.Context(), args[0], question))
			return nil
		},
	}
}

func (c *cli) quizCmd() *cobra.Command {
	quiz := &cobra.Command{
		Use:   "quiz <subject>",
		Short: "Generate a new multiple-choice quiz for a subject",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := c.app.svc.GenerateQuiz(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			cmd.Println(tui.RenderQuiz(q))
			return nil
		},
	}
	quiz.AddCommand(&cobra.Command{
		Use:   "show <subject>",
		Short: "Show the most recent quiz for a subject",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := c.app.svc.CurrentQuiz(cmd.Context(), args[0])
			if errors.Is(err, store.ErrQuizNotFound) {
				cmd.Println("No quiz yet.")
				return nil
			}
			if err != nil {
				return err
			}
			cmd.Printf("Quiz %s (%s)\n\n", q.ID, q.CreatedAt.Format("2006-01-02 15:04"))
			cmd.Println(tui.RenderQuiz(q))
			return nil
		},
	})
	return quiz
}

func (c *cli) docsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "docs <subject>",
		Short: "List a subject's documents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			docs, err := c.app.svc.Documents(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if len(docs) == 0 {
				cmd.Println("No documents.")
				return nil
			}
			for _, d := range docs {
				cmd.Printf("  %s  %s  (%d chars)\n", d.ID, d.Name, len([]rune(d.Text)))
			}
			return nil
		},
	}
}

func (c *cli) removeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <subject> <document-id>",
		Short: "Delete a document and its vectors",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.app.svc.RemoveDocument(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			cmd.Println("Removed.")
			return nil
		},
	}
}

func (c *cli) chatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat <subject>",
		Short: "Interactive Q&A over a subject's notes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			docs, err := c.app.svc.Documents(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			summary := fmt.Sprintf("%d documents. Ctrl+C to quit.", len(docs))
			m := tui.New(cmd.Context(), c.app.svc, args[0], summary)
			_, err = tea.NewProgram(m, tea.WithContext(cmd.Context()), tea.WithAltScreen()).Run()
			return err
		},
	}
}
