package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"fractalexplorer/coordinator"
	"fractalexplorer/explorer"

	"github.com/spf13/cobra"
)

var (
	coordinatorSettingsFile string
	explorerSettingsFile    string
)

func mainCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fractalexplorer",
		Short: "Render and explore the Mandelbrot set and its Julia sets",
	}
	cmd.PersistentFlags().StringVar(&explorerSettingsFile, "settings", "", "json file with explorer settings")
	cmd.PersistentFlags().StringVar(&coordinatorSettingsFile, "coordinatorSettings", "", "json file with coordinator settings")

	cmd.AddCommand(
		renderCmd(),
		serveCmd(),
		coordinatorCmd(),
		workerCmd(),
		favouritesCmd(),
	)
	return cmd
}

func loadExplorerSettings() explorer.Settings {
	if explorerSettingsFile == "" {
		return explorer.DefaultSettings()
	}
	return explorer.NewSettings(explorerSettingsFile)
}

func loadCoordinatorSettings() coordinator.Settings {
	if coordinatorSettingsFile == "" {
		return coordinator.DefaultSettings()
	}
	return coordinator.NewSettings(coordinatorSettingsFile)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := mainCmd().ExecuteContext(ctx)
	if err != nil {
		// At this point the error has already been printed; no need to print again.
		os.Exit(1)
	}
}
