package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yllada/vpn-launcher/vpn"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage VPN profiles",
}

var profileAddCmd = &cobra.Command{
	Use:   "add <name> <config-file>",
	Short: "Add a profile from an OpenVPN configuration file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		username, _ := cmd.Flags().GetString("username")
		savePassword, _ := cmd.Flags().GetBool("save-password")

		pm, err := env.profiles()
		if err != nil {
			return err
		}
		p := &vpn.Profile{
			Name:         args[0],
			ConfigPath:   args[1],
			Username:     username,
			SavePassword: savePassword,
		}
		if err := pm.Add(p); err != nil {
			return err
		}
		success("Added %s (%s)", p.Name, p.ID)
		if savePassword {
			fmt.Println(styleDim.Render("Store its password with: vpn-launcher credentials set " + p.Name))
		}
		return nil
	},
}

var profileListCmd = &cobra.Command{
	Use:   "list",
	Short: "List profiles",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		pm, err := env.profiles()
		if err != nil {
			return err
		}
		profiles := pm.List()
		if len(profiles) == 0 {
			fmt.Println("No VPN profiles configured.")
			return nil
		}

		rows := make([][]string, 0, len(profiles))
		for _, p := range profiles {
			state := "stopped"
			if p.Disabled {
				state = "disabled"
			} else if env.isRunning(p.ID) {
				state = "running"
			}
			lastUsed := "-"
			if !p.LastUsed.IsZero() {
				lastUsed = p.LastUsed.Format("2006-01-02 15:04")
			}
			rows = append(rows, []string{shortID(p.ID), p.Name, state, p.Username, lastUsed})
		}
		printTable([]string{"ID", "NAME", "STATE", "USER", "LAST USED"}, rows)
		return nil
	},
}

var profileRemoveCmd = &cobra.Command{
	Use:   "remove <profile>",
	Short: "Remove a profile and its saved password",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pm, err := env.profiles()
		if err != nil {
			return err
		}
		p, err := pm.Find(args[0])
		if err != nil {
			return err
		}
		if err := pm.Remove(p.ID); err != nil {
			return err
		}
		if creds, err := env.credentials(); err == nil {
			creds.Delete(p.ID)
		}
		success("Removed %s", p.Name)
		return nil
	},
}

func setDisabledCmd(use, short string, disabled bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <profile>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pm, err := env.profiles()
			if err != nil {
				return err
			}
			p, err := pm.Find(args[0])
			if err != nil {
				return err
			}
			if err := pm.SetDisabled(p.ID, disabled); err != nil {
				return err
			}
			success("%s %sd", p.Name, use)
			return nil
		},
	}
}

func init() {
	f := profileAddCmd.Flags()
	f.StringP("username", "u", "", "Username for authentication")
	f.Bool("save-password", false, "Inline the password saved in the keyring when launching")

	profileCmd.AddCommand(profileAddCmd)
	profileCmd.AddCommand(profileListCmd)
	profileCmd.AddCommand(profileRemoveCmd)
	profileCmd.AddCommand(setDisabledCmd("disable", "Prevent a profile from being launched", true))
	profileCmd.AddCommand(setDisabledCmd("enable", "Allow a disabled profile to be launched", false))
}
