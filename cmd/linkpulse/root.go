package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/user/linkpulse/internal/util"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

var (
	cfgFile   string
	logLevel  string
	logFormat string
	cfg       *util.Config
)

// rootCmd represents the base command.
var rootCmd = &cobra.Command{
	Use:   "linkpulse",
	Short: "Continuous network reachability monitor",
	Long: `linkpulse probes a list of network targets on a fixed interval and keeps,
for each one, a rolling latency history, RTT and packet-loss statistics,
and a log of downtime incidents. Path traces can be run on demand.

It runs as a background daemon, as an interactive terminal dashboard, or
behind a small web API with live websocket updates.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig(cmd)
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is $HOME/.linkpulse/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "",
		"log format (json, console)")

	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(uiCmd)
	rootCmd.AddCommand(webCmd)
	rootCmd.AddCommand(traceCmd)
	rootCmd.AddCommand(targetsCmd)
	rootCmd.AddCommand(parseCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(completionCmd)
}

func initConfig(cmd *cobra.Command) error {
	var err error
	cfg, err = util.LoadConfig(cfgFile)
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if logFormat != "" {
		cfg.LogFormat = logFormat
	}

	// The terminal UI owns the screen; log to the file only.
	if cmd == uiCmd {
		l, err := util.NewFileLogger(cfg.LogLevel, cfg.LogFile)
		if err != nil {
			return err
		}
		util.SetLogger(l)
		return nil
	}

	// The background daemon's stderr is already redirected to the log file.
	file := cfg.LogFile
	if cmd == startCmd && foreground && os.Getenv(daemonEnv) == "1" {
		file = ""
	}
	if _, err := util.InitLogger(cfg.LogLevel, cfg.LogFormat, file); err != nil {
		return err
	}
	return nil
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return nil
	},
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("linkpulse version %s\n", version)
	},
}

var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion script",
	Long: `Generate shell completion script for linkpulse.

To load completions:

Bash:
  $ source <(linkpulse completion bash)

Zsh:
  $ source <(linkpulse completion zsh)

Fish:
  $ linkpulse completion fish | source

PowerShell:
  PS> linkpulse completion powershell | Out-String | Invoke-Expression
`,
	DisableFlagsInUseLine: true,
	ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
	Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		switch args[0] {
		case "bash":
			return cmd.Root().GenBashCompletion(out)
		case "zsh":
			return cmd.Root().GenZshCompletion(out)
		case "fish":
			return cmd.Root().GenFishCompletion(out, true)
		default:
			return cmd.Root().GenPowerShellCompletionWithDesc(out)
		}
	},
}
