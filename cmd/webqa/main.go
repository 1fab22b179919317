package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"webqa/internal/api"
	"webqa/internal/config"
	"webqa/internal/domain"
	"webqa/internal/tui"
)

var (
	cfgFile  string
	logLevel string
	askURL   string
	showSrc  bool
	logFile  string
	addr     string
)

var rootCmd = &cobra.Command{
	Use:   "webqa",
	Short: "Ask questions about a web page",
	Long: `webqa fetches a single web page, splits its text into chunks, indexes
them and answers questions grounded in the most relevant chunks.`,
	SilenceUsage: true,
}

var indexCmd = &cobra.Command{
	Use:   "index <url>",
	Short: "Fetch and index a web page",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(os.Stderr)
		if err != nil {
			return err
		}
		a, err := newApp(cmd.Context(), cfg, slog.Default())
		if err != nil {
			return err
		}
		defer a.Close()

		report, err := a.pipeline.IndexWebsite(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Indexed %s\n", report.URL)
		if report.Title != "" {
			fmt.Fprintf(out, "Title:  %s\n", report.Title)
		}
		fmt.Fprintf(out, "Chunks: %d\n", report.Chunks)
		if report.Summary != "" {
			fmt.Fprintf(out, "\n%s\n", report.Summary)
		}
		if cfg.VectorStore.Type == "memory" {
			fmt.Fprintln(cmd.ErrOrStderr(), "\nnote: the memory vector store does not persist; use `webqa ask --url` or vector_store.type sqlite")
		}
		return nil
	},
}

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer a question about the indexed page",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(os.Stderr)
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		a, err := newApp(ctx, cfg, slog.Default())
		if err != nil {
			return err
		}
		defer a.Close()

		if askURL != "" {
			if _, err := a.pipeline.IndexWebsite(ctx, askURL); err != nil {
				return err
			}
		} else if _, err := a.pipeline.Restore(ctx, a.resolve); err != nil {
			return err
		}

		ans, err := a.pipeline.Ask(ctx, strings.Join(args, " "))
		if errors.Is(err, domain.ErrNoIndex) {
			return fmt.Errorf("%w (pass --url, or index with a persistent vector store)", err)
		}
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, ans.Text)
		if showSrc {
			fmt.Fprintln(out, "\nSources:")
			for i, s := range ans.Sources {
				fmt.Fprintf(out, "[%d] score=%.3f %s\n", i+1, s.Score, s.Chunk.ChunkID)
			}
		}
		return nil
	},
}

var chatCmd = &cobra.Command{
	Use:   "chat [url]",
	Short: "Interactive terminal chat",
	Long: `Launch a terminal UI. Type /index <url> to index a page; any other
line is asked as a question. Ctrl+C quits.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var sink io.Writer = io.Discard
		if logFile != "" {
			f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if err != nil {
				return err
			}
			defer f.Close()
			sink = f
		}
		cfg, err := loadConfig(sink)
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		a, err := newApp(ctx, cfg, slog.Default())
		if err != nil {
			return err
		}
		defer a.Close()
		if _, err := a.pipeline.Restore(ctx, a.resolve); err != nil {
			slog.Warn("restore index failed", "error", err)
		}

		timeout := cfg.Fetcher.Timeout()*time.Duration(cfg.Fetcher.MaxAttempts) + cfg.Answer.Timeout()
		m := tui.New(a.pipeline, timeout)
		if len(args) == 1 {
			m = m.IndexOnStart(args[0])
		}
		_, err = tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
		return err
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(os.Stdout)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("addr") {
			cfg.Server.Addr = addr
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, cfg, slog.Default())
		if err != nil {
			return err
		}
		defer a.Close()
		if ok, err := a.pipeline.Restore(ctx, a.resolve); err != nil {
			slog.Warn("restore index failed", "error", err)
		} else if ok {
			slog.Info("serving restored index", "url", a.pipeline.Status().SourceURL)
		}

		reqTimeout, shutdownTimeout := cfg.Server.Timeouts()
		return api.NewServer(cfg.Server.Addr, a.pipeline, reqTimeout, slog.Default()).Start(ctx, shutdownTimeout)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to YAML config file (default ./config.yaml, then ~/.config/webqa/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error (overrides config)")

	askCmd.Flags().StringVar(&askURL, "url", "", "index this URL before asking")
	askCmd.Flags().BoolVar(&showSrc, "sources", false, "print the retrieved chunks")
	chatCmd.Flags().StringVar(&logFile, "log-file", "", "write logs to this file")
	serveCmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")

	rootCmd.AddCommand(indexCmd, askCmd, chatCmd, serveCmd)
}

func main() {
	_ = godotenv.Load()
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the config and installs the default logger writing to w.
func loadConfig(w io.Writer) (*config.AppConfig, error) {
	var (
		cfg *config.AppConfig
		err error
	)
	if cfgFile == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(cfgFile)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	setupLogging(cfg.LogLevel, w)
	return cfg, nil
}

func setupLogging(level string, w io.Writer) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}
