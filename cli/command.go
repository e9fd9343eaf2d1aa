package cli

import (
	"os"

	"github.com/grovetools/basin/config"
	"github.com/grovetools/basin/errors"
	"github.com/grovetools/basin/logging"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// CommandOptions holds the options shared by every basin command.
type CommandOptions struct {
	ConfigFile string
	Verbose    bool
	JSONOutput bool
}

// NewStandardCommand creates a command with the standard basin flags.
func NewStandardCommand(use, short string) *cobra.Command {
	cmd := &cobra.Command{
		Use:           use,
		Short:         short,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().Bool("json", false, "Output in JSON format")
	cmd.PersistentFlags().StringP("config", "c", "", "Path to basin.yml or basin.toml")

	return cmd
}

// GetLogger returns the CLI logger, adjusted for --verbose and --json.
func GetLogger(cmd *cobra.Command) *logrus.Logger {
	logger := logging.NewLogger("basin").Logger

	opts := GetOptions(cmd)
	if opts.Verbose {
		logger.SetLevel(logrus.DebugLevel)
	}
	if opts.JSONOutput {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	return logger
}

// GetOptions extracts the standard options from a command.
func GetOptions(cmd *cobra.Command) CommandOptions {
	configFile, _ := cmd.Flags().GetString("config")
	verbose, _ := cmd.Flags().GetBool("verbose")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	return CommandOptions{
		ConfigFile: configFile,
		Verbose:    verbose,
		JSONOutput: jsonOutput,
	}
}

// InitConfig resolves the config file path. An empty result with a nil
// error means no config file exists, which is fine for most commands.
func InitConfig(configFile string) (string, error) {
	if configFile != "" {
		return configFile, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}

	found, err := config.FindConfigFile(cwd)
	if err != nil {
		if errors.Is(err, errors.ErrCodeConfigNotFound) {
			return "", nil
		}
		return "", err
	}
	return found, nil
}

// LoadConfig loads the config selected by --config or found from the working
// directory. Without a config file it returns defaults rooted at the working
// directory.
func LoadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, err := InitConfig(GetOptions(cmd).ConfigFile)
	if err != nil {
		return nil, err
	}
	if path != "" {
		return config.Load(path)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	cfg := &config.Config{Dir: cwd}
	cfg.SetDefaults()
	cfg.Root = cwd
	return cfg, nil
}
