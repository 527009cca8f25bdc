package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yllada/vpn-launcher/provision"
)

var bundleCmd = &cobra.Command{
	Use:   "bundle",
	Short: "Work with SQLite asset bundles",
}

var bundlePackCmd = &cobra.Command{
	Use:   "pack <dir> <db>",
	Short: "Store every helper variant in a directory into a bundle",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := provision.PackBundle(args[1], args[0])
		if err != nil {
			return err
		}
		success("Packed %d asset(s) into %s", n, args[1])
		fmt.Println(styleDim.Render("Use it with asset_source: sqlite:" + args[1]))
		return nil
	},
}

var bundleListCmd = &cobra.Command{
	Use:   "list <db>",
	Short: "List the assets in a bundle",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		src, err := provision.NewSQLiteSource(args[0])
		if err != nil {
			return err
		}
		defer src.Close()

		names, err := src.Names()
		if err != nil {
			return err
		}
		for _, name := range names {
			fmt.Println(name)
		}
		return nil
	},
}

func init() {
	bundleCmd.AddCommand(bundlePackCmd)
	bundleCmd.AddCommand(bundleListCmd)
}
