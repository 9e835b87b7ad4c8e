package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"ragpdf/internal/app"
	"ragpdf/internal/config"
	"ragpdf/internal/credential"
	"ragpdf/internal/logger"
	"ragpdf/internal/session"
	"ragpdf/internal/tui"
)

type rootFlags struct {
	configPath string
	logLevel   string
	logFile    string
	dir        string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	root := &cobra.Command{
		Use:           "ragpdf",
		Short:         "Ask questions about a PDF",
		Long:          "ragpdf indexes one PDF and answers questions about it with retrieval-augmented generation.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := loadConfig(flags.configPath)
			if err != nil {
				return err
			}
			return runTUI(cmd.Context(), cfg, flags)
		},
	}
	root.PersistentFlags().StringVar(&flags.configPath, "config", "", "path to YAML config (default ./ragpdf.yaml or ~/.config/ragpdf/config.yaml)")
	root.Flags().StringVar(&flags.logLevel, "log-level", "", "log level: debug, info, warn, error, disabled")
	root.Flags().StringVar(&flags.logFile, "log-file", "", "log file (default <tmp>/ragpdf.log)")
	root.Flags().StringVar(&flags.dir, "dir", "", "directory the file picker starts in")
	root.AddCommand(newConfigCmd(flags))
	return root
}

func loadConfig(path string) (*config.AppConfig, string, error) {
	if path == "" {
		cfg, p, err := config.LoadDefault()
		if err != nil {
			return nil, "", fmt.Errorf("load config: %w", err)
		}
		return cfg, p, nil
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", fmt.Errorf("load config: %w", err)
	}
	return cfg, path, nil
}

func runTUI(ctx context.Context, cfg *config.AppConfig, flags *rootFlags) error {
	if ctx == nil {
		ctx = context.Background()
	}
	out, closeLog, err := openLog(flags.logFile, cfg.Log.File)
	if err != nil {
		return err
	}
	defer closeLog()

	level := cfg.Log.Level
	if flags.logLevel != "" {
		level = flags.logLevel
	}
	log := logger.NewLogger(&logger.Config{
		Level:      logger.ParseLevel(level),
		Output:     out,
		JSON:       cfg.Log.JSON,
		TimeFormat: "15:04:05",
	})
	ctx = logger.ContextWithLogger(ctx, log)
	log.Info("starting", "embedder", cfg.Embedder.Type, "generator", cfg.Generator.Type, "store", cfg.VectorStore.Type)

	sess := session.New(app.NewFactory(cfg), session.Config{
		TopK:                cfg.Retrieval.TopK,
		SummaryMaxSentences: cfg.Summarizer.MaxSentences,
	})
	defer sess.Close(ctx)

	secret := credential.FromEnv(cfg.Credential.Env)
	if secret == "" && !cfg.NeedsCredential() {
		secret = "offline"
	}
	m := tui.New(ctx, sess, tui.Options{Secret: secret, Dir: flags.dir})
	if _, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run(); err != nil {
		return fmt.Errorf("failed to run TUI: %w", err)
	}
	return nil
}

// openLog opens the log destination. The terminal belongs to the TUI, so logs go
// to a file.
func openLog(flagPath, cfgPath string) (io.Writer, func(), error) {
	path := flagPath
	if path == "" {
		path = cfgPath
	}
	if path == "" {
		path = filepath.Join(os.TempDir(), "ragpdf.log")
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}

func newConfigCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := flags.configPath
			if path == "" {
				p, err := config.DefaultUserConfigPath()
				if err != nil {
					return err
				}
				path = p
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := config.Save(path, config.Default()); err != nil {
				return fmt.Errorf("write config: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, path, err := loadConfig(flags.configPath)
			if err != nil {
				return err
			}
			if cfg.VectorStore.Qdrant != nil && cfg.VectorStore.Qdrant.APIKey != "" {
				masked := *cfg.VectorStore.Qdrant
				masked.APIKey = "<redacted>"
				cfg.VectorStore.Qdrant = &masked
			}
			data, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "# %s\n%s", path, data)
			return nil
		},
	}

	cmd.AddCommand(initCmd, showCmd)
	return cmd
}
