// Package cmd implements the scrum command line.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/joho/godotenv"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/tec-more/odoo-plugins/internal/analysis"
	"github.com/tec-more/odoo-plugins/internal/config"
	"github.com/tec-more/odoo-plugins/internal/hooks"
	"github.com/tec-more/odoo-plugins/internal/outline"
	"github.com/tec-more/odoo-plugins/internal/style"
)

// envPrefix prefixes environment overrides, e.g. SCRUM_AI_MODEL.
const envPrefix = "SCRUM"

// app is the state shared by the commands of one invocation.
type app struct {
	fs      afero.Fs
	v       *viper.Viper
	cfg     *config.Config
	logger  *zap.Logger
	workDir string

	cfgFile string
	verbose bool
	noColor bool

	newChatModel func(ctx context.Context, cfg *config.AIConfig) (model.BaseChatModel, error)
	now          func() time.Time
}

func newApp() *app {
	return &app{
		fs:           afero.NewOsFs(),
		v:            viper.New(),
		newChatModel: analysis.NewChatModel,
		now:          time.Now,
	}
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	if err := newRootCmd(newApp()).Execute(); err != nil {
		return 1
	}
	return 0
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "scrum",
		Short: "Turn requirement outlines into Scrum backlogs",
		Long: `scrum parses requirement outlines (markdown-like text, JSON or YAML)
into epics, features, user stories and tasks, imports them into a backlog,
scores them with an AI analyst and tracks sprint burndown.

Configuration comes from scrum.toml, a .env file, SCRUM_* environment
variables and flags, in increasing precedence.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&a.cfgFile, "config", "c", config.FileName, "config file")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")
	flags.BoolVar(&a.noColor, "no-color", false, "disable colored output")
	flags.String("log-format", "", "log format (console or json)")
	_ = a.v.BindPFlag("log.format", flags.Lookup("log-format"))

	root.AddCommand(
		newParseCmd(a),
		newImportCmd(a),
		newAnalyzeCmd(a),
		newBurndownCmd(a),
		newHooksCmd(a),
	)
	return root
}

// setup loads .env, the config file and overrides, then builds the logger.
func (a *app) setup(cmd *cobra.Command) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading .env: %w", err)
	}

	a.v.SetEnvPrefix(envPrefix)
	a.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	a.v.AutomaticEnv()

	cfg, err := config.Load(a.cfgFile)
	if err != nil {
		return err
	}
	if err := cfg.Override(a.v); err != nil {
		return err
	}
	a.cfg = cfg

	if a.logger == nil {
		logger, err := newLogger(cfg.Log, a.verbose)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		a.logger = logger
	}

	if a.workDir == "" {
		if a.workDir, err = os.Getwd(); err != nil {
			return fmt.Errorf("getting working directory: %w", err)
		}
	}

	style.Init(cmd.OutOrStdout(), a.noColor)
	a.logger.Debug("config loaded",
		zap.String("path", a.cfgFile),
		zap.String("model", cfg.AI.GetModel()),
		zap.Int("max_concurrent", cfg.Import.GetMaxConcurrent()))
	return nil
}

// newLogger builds a stderr zap logger from the [log] section.
func newLogger(cfg config.LogConfig, verbose bool) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if cfg.Format == "console" || cfg.Format == "" {
		zc.Encoding = "console"
		zc.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	}

	level := zapcore.InfoLevel
	if cfg.Level != "" {
		parsed, err := zapcore.ParseLevel(cfg.Level)
		if err != nil {
			return nil, err
		}
		level = parsed
	}
	if verbose {
		level = zapcore.DebugLevel
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.OutputPaths = []string{"stderr"}
	zc.ErrorOutputPaths = []string{"stderr"}
	return zc.Build()
}

// parser builds an outline parser from the [outline] section.
func (a *app) parser() *outline.Parser {
	return outline.NewParser(outline.Options{
		TaskMarkers: a.cfg.Outline.TaskMarkers,
		DefaultName: a.cfg.Outline.DefaultName,
	})
}

// hookRunner loads hooks.json from the configured hooks directory.
func (a *app) hookRunner() (*hooks.HookRunner, error) {
	return hooks.NewHookRunner(a.workDir, a.cfg.Import.GetHooksDir(), a.logger)
}
