// Package cli defines the vpn-launcher command-line interface using cobra.
//
// Every command loads the launcher configuration first. connect runs the
// full chain: the profile is turned into a start descriptor, the helper is
// provisioned for this machine's architecture and started on the configured
// host. The remaining commands expose single stages for inspection.
package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/yllada/vpn-launcher/common"
)

// Version, Commit, and Date are set by main from build-time values.
var (
	Version = "dev"
	Commit  = ""
	Date    = ""
)

var rootCmd = &cobra.Command{
	Use:   common.CommandName,
	Short: "Provision and launch the bundled OpenVPN helper",
	Long: `vpn-launcher selects the helper binary matching this machine's
architecture, extracts it into a private cache, and starts it with the
profile's configuration on its standard input.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		common.CloseLogger()
	},
}

func init() {
	rootCmd.SetVersionTemplate(common.CommandName + " v{{.Version}}\n")

	rootCmd.SetGlobalNormalizationFunc(normalizeFlag)

	pf := rootCmd.PersistentFlags()
	pf.StringP("config", "c", "", "Configuration file (YAML or .toml)")
	pf.BoolP("verbose", "v", false, "Enable verbose logging")

	rootCmd.AddCommand(connectCmd)
	rootCmd.AddCommand(disconnectCmd)
	rootCmd.AddCommand(provisionCmd)
	rootCmd.AddCommand(abiCmd)
	rootCmd.AddCommand(argvCmd)
	rootCmd.AddCommand(profileCmd)
	rootCmd.AddCommand(credentialsCmd)
	rootCmd.AddCommand(bundleCmd)
	rootCmd.AddCommand(statusCmd)
}

// normalizeFlag accepts snake_case spellings of flags, matching the
// configuration file keys.
func normalizeFlag(f *pflag.FlagSet, name string) pflag.NormalizedName {
	return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
}

// setup loads the configuration and initializes logging.
func setup(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("config")
	verbose, _ := cmd.Flags().GetBool("verbose")

	e, err := loadEnv(path)
	if err != nil {
		return err
	}

	level := common.ParseLogLevel(e.cfg.LogLevel)
	if verbose {
		level = common.LevelDebug
	}
	maxSize, _ := e.cfg.LogMaxBytes()
	if err := common.InitLogger(common.LogConfig{
		Level:       level,
		EnableFile:  true,
		MaxFileSize: maxSize,
		MaxBackups:  e.cfg.LogMaxBackups,
	}); err != nil {
		common.LogWarn("Could not initialize file logging: %v", err)
	}

	env = e
	common.LogDebug("Loaded configuration from %s", e.cfg.Path())
	return nil
}

// Execute runs the root command and exits on error.
func Execute() {
	rootCmd.Version = Version
	if Commit != "" {
		rootCmd.Version = fmt.Sprintf("%s (%s %s)", Version, Commit, Date)
	}
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, styleError.Render("Error:"), err)
		os.Exit(1)
	}
}
