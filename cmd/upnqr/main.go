package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dharsanguruparan/upnqr/internal/config"
)

var (
	composeFile string
	configPath  string
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rootCmd := newRootCommand()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "upnqr: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "upnqr",
		Short: "UPN QR development CLI",
		Long: `upnqr builds UPN QR payment payloads and symbols from invoice records or PDF files,
and wraps the docker compose stack used to run the services locally.`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to the application config file")
	cmd.AddCommand(
		newPayloadCmd(),
		newRenderCmd(),
		newInspectCmd(),
		newExtractCmd(),
		newProcessCmd(),
		newStackCmd(),
	)
	return cmd
}

// loadConfig reads the --config file on top of the defaults.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(config.RoleCLI); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newStackCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stack",
		Short: "Manage the docker compose stack (postgres, redis, minio and the services)",
	}
	cmd.PersistentFlags().StringVarP(&composeFile, "compose-file", "f", "docker-compose.yml", "Compose file to use for stack commands")
	cmd.AddCommand(newUpCmd(), newDownCmd(), newLogsCmd())
	return cmd
}

func newUpCmd() *cobra.Command {
	var detach bool
	var skipBuild bool
	cmd := &cobra.Command{
		Use:   "up [service...]",
		Short: "Start the stack",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCommand(cmd.Context(), "docker", upArgs(composeFile, detach, skipBuild, args)...)
		},
	}
	cmd.Flags().BoolVarP(&detach, "detached", "d", true, "Run docker compose in detached mode")
	cmd.Flags().BoolVar(&skipBuild, "skip-build", false, "Skip rebuilding images before starting")
	return cmd
}

func upArgs(file string, detach, skipBuild bool, services []string) []string {
	args := []string{"compose", "-f", file, "up"}
	if !skipBuild {
		args = append(args, "--build")
	}
	if detach {
		args = append(args, "-d")
	}
	return append(args, services...)
}

func newDownCmd() *cobra.Command {
	var removeVolumes bool
	cmd := &cobra.Command{
		Use:   "down",
		Short: "Stop the stack",
		RunE: func(cmd *cobra.Command, args []string) error {
			composeArgs := []string{"compose", "-f", composeFile, "down"}
			if removeVolumes {
				composeArgs = append(composeArgs, "-v")
			}
			return runCommand(cmd.Context(), "docker", composeArgs...)
		},
	}
	cmd.Flags().BoolVarP(&removeVolumes, "volumes", "v", false, "Remove stack volumes")
	return cmd
}

func newLogsCmd() *cobra.Command {
	var follow bool
	cmd := &cobra.Command{
		Use:   "logs [service...]",
		Short: "Tail logs from the stack services",
		RunE: func(cmd *cobra.Command, args []string) error {
			composeArgs := []string{"compose", "-f", composeFile, "logs"}
			if follow {
				composeArgs = append(composeArgs, "--follow")
			}
			composeArgs = append(composeArgs, args...)
			return runCommand(cmd.Context(), "docker", composeArgs...)
		},
	}
	cmd.Flags().BoolVar(&follow, "follow", false, "Stream logs continuously")
	return cmd
}

func runCommand(ctx context.Context, name string, args ...string) error {
	execCmd := exec.CommandContext(ctx, name, args...)
	execCmd.Stdout = os.Stdout
	execCmd.Stderr = os.Stderr
	execCmd.Stdin = os.Stdin
	return execCmd.Run()
}
