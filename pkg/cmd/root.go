package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sipwatch/sipwatch/pkg/config"
	"github.com/sipwatch/sipwatch/pkg/system"
)

const defaultEnvFile = ".env"

type Config struct {
	ConfigPath   string
	EnvFile      string
	OutputWriter io.Writer
}

type runtimeState struct {
	configPath string
	envFile    string
	debug      bool
	cfg        *config.Config
	log        *zap.Logger
	writer     io.Writer
}

type runtimeKey struct{}

func DefaultConfig() Config {
	return Config{
		EnvFile:      defaultEnvFile,
		OutputWriter: os.Stdout,
	}
}

func NewRootCommand(cfg Config) *cobra.Command {
	rt := &runtimeState{configPath: cfg.ConfigPath, envFile: cfg.EnvFile, writer: cfg.OutputWriter}

	root := &cobra.Command{
		Use:   "sipwatch",
		Short: "Watch SIP registrations and email on failure and recovery",
		Long: `sipwatch checks the registration status of voip.ms SIP accounts and emails
an operator once when an account loses its registration and once when it is
restored. Run it from cron or a systemd timer, or use "sipwatch watch".`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if rt.writer == nil {
				rt.writer = os.Stdout
			}
			log, err := system.NewLogger(rt.debug)
			if err != nil {
				return fmt.Errorf("failed to build logger: %w", err)
			}
			rt.log = log

			if cmd.Name() == "version" || cmd.Name() == "completion" {
				return nil
			}
			return rt.loadConfig(cmd.Flags().Changed("config"))
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCheck(cmd, "table")
		},
	}

	root.PersistentFlags().StringVar(&rt.configPath, "config", rt.configPath, "Path to config file (env SIPWATCH_CONFIG)")
	root.PersistentFlags().StringVar(&rt.envFile, "env-file", rt.envFile, "Optional .env file loaded before the environment is read")
	root.PersistentFlags().BoolVar(&rt.debug, "debug", false, "Enable debug level logging")

	root.SetContext(context.WithValue(context.Background(), runtimeKey{}, rt))

	root.AddCommand(
		NewCheckCommand(),
		NewWatchCommand(),
		NewSMSCommand(),
		NewMarkerCommand(),
		NewConfigCommand(),
		NewCompletionCommand(),
		NewVersionCommand(),
	)

	return root
}

func getRuntime(cmd *cobra.Command) (*runtimeState, error) {
	rt, ok := cmd.Context().Value(runtimeKey{}).(*runtimeState)
	if !ok || rt == nil {
		return nil, errors.New("runtime not initialized")
	}
	return rt, nil
}

// loadConfig builds the effective configuration: .env file, YAML file,
// environment overrides, defaults, then secrets. A missing config file is
// only an error when the path was given explicitly.
func (rt *runtimeState) loadConfig(explicit bool) error {
	if err := config.LoadEnvFile(rt.envFile); err != nil {
		return err
	}

	path := rt.configPath
	if path == "" {
		path = config.DefaultConfigPath()
		explicit = os.Getenv(config.EnvConfig) != ""
	}

	cfg, err := config.Load(path)
	if err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		rt.log.Debug("No config file found, using environment only", zap.String("path", path))
		cfg = config.Config{}
	}

	if err := cfg.ApplyEnv(); err != nil {
		return err
	}
	cfg.Defaults()
	if err := cfg.ResolveSecrets(); err != nil {
		return err
	}
	rt.cfg = &cfg
	return nil
}

func (rt *runtimeState) Writer() io.Writer {
	if rt.writer != nil {
		return rt.writer
	}
	return os.Stdout
}

func (rt *runtimeState) Logger() *zap.Logger {
	if rt.log != nil {
		return rt.log
	}
	return zap.NewNop()
}

// ValidConfig returns the loaded configuration after full validation.
func (rt *runtimeState) ValidConfig() (*config.Config, error) {
	if rt.cfg == nil {
		return nil, errors.New("config not loaded")
	}
	if err := rt.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return rt.cfg, nil
}
