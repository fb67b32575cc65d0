// Command finctl runs the tax, budget and debt calculators from the shell.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/boddenberg/finplan-bfa-go/internal/infra/observability"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var version = "dev"

// app carries the settings shared by every subcommand.
type app struct {
	v      *viper.Viper
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New(), logger: zap.NewNop()}
	var cfgFile string

	root := &cobra.Command{
		Use:           "finctl",
		Short:         "Personal finance planner: tax, budget and debt tools",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.initConfig(cfgFile)
		},
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.config/finctl/config.toml)")
	root.PersistentFlags().StringP("output", "o", "text", "output format (text, json)")
	root.PersistentFlags().String("log-level", "warn", "log level (debug, info, warn, error)")

	_ = a.v.BindPFlag("output", root.PersistentFlags().Lookup("output"))
	_ = a.v.BindPFlag("log_level", root.PersistentFlags().Lookup("log-level"))

	root.AddCommand(a.taxCmd())
	root.AddCommand(a.budgetCmd())
	root.AddCommand(a.debtsCmd())
	root.AddCommand(versionCmd())
	return root
}

func (a *app) initConfig(cfgFile string) error {
	if cfgFile != "" {
		a.v.SetConfigFile(cfgFile)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			a.v.AddConfigPath(fmt.Sprintf("%s/.config/finctl", home))
		}
		a.v.AddConfigPath(".")
		a.v.SetConfigName("config")
		a.v.SetConfigType("toml")
	}

	a.v.SetEnvPrefix("FINCTL")
	a.v.AutomaticEnv()

	if err := a.v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}

	switch out := a.v.GetString("output"); out {
	case outputText, outputJSON:
	default:
		return fmt.Errorf("invalid output format: %s", out)
	}

	a.logger = observability.NewLogger(a.v.GetString("log_level"))
	return nil
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "finctl %s\n", version)
		},
	}
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	cancel()

	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
