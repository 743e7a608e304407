package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"appguard-lab/internal/infrastructure/manifest"
)

var importCmd = &cobra.Command{
	Use:   "import <manifest.yaml>",
	Short: "Import a device inventory from a YAML manifest",
	Long: `Import the installed-app list of a device. An existing inventory for the
same device is replaced. --device overrides the device_id in the file.`,
	Args: cobra.ExactArgs(1),
	RunE: importCommand,
}

var appsCmd = &cobra.Command{
	Use:   "apps",
	Short: "List the apps of a device inventory",
	Args:  cobra.NoArgs,
	RunE:  appsCommand,
}

func init() {
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(appsCmd)
}

func importCommand(cmd *cobra.Command, args []string) error {
	inv, err := manifest.Load(args[0], deviceID)
	if err != nil {
		return err
	}

	e, err := loadEnv(cmd.Context())
	if err != nil {
		return err
	}
	defer e.Close()

	if err := e.inventory.SaveInventory(cmd.Context(), inv); err != nil {
		return fmt.Errorf("failed to save inventory: %w", err)
	}

	out := cmd.OutOrStdout()
	return emit(out, inv, func(w io.Writer) {
		fmt.Fprintf(w, "Imported %d apps for device %s\n", len(inv.Apps), inv.DeviceID)
	})
}

func appsCommand(cmd *cobra.Command, args []string) error {
	if err := requireDevice(); err != nil {
		return err
	}

	e, err := loadEnv(cmd.Context())
	if err != nil {
		return err
	}
	defer e.Close()

	apps, err := e.inventory.ListApps(cmd.Context(), deviceID)
	if err != nil {
		return err
	}

	return emit(cmd.OutOrStdout(), apps, func(w io.Writer) {
		renderApps(w, apps)
	})
}
