package cli

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var credentialsCmd = &cobra.Command{
	Use:   "credentials",
	Short: "Manage saved profile passwords",
}

var credentialsSetCmd = &cobra.Command{
	Use:   "set <profile>",
	Short: "Save the password for a profile",
	Long: `Save the password for a profile. On a terminal the password is
prompted for without echo; otherwise the first line of standard input is used.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pm, err := env.profiles()
		if err != nil {
			return err
		}
		p, err := pm.Find(args[0])
		if err != nil {
			return err
		}

		password, err := readPassword(fmt.Sprintf("Password for %s: ", p.Name))
		if err != nil {
			return err
		}

		creds, err := env.credentials()
		if err != nil {
			return err
		}
		if err := creds.Set(p.ID, password); err != nil {
			return err
		}

		if !p.SavePassword {
			p.SavePassword = true
			if err := pm.Update(p); err != nil {
				return err
			}
		}
		success("Saved password for %s", p.Name)
		return nil
	},
}

var credentialsDeleteCmd = &cobra.Command{
	Use:   "delete <profile>",
	Short: "Delete the saved password of a profile",
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

		creds, err := env.credentials()
		if err != nil {
			return err
		}
		if err := creds.Delete(p.ID); err != nil {
			return err
		}

		p.SavePassword = false
		if err := pm.Update(p); err != nil {
			return err
		}
		success("Deleted password for %s", p.Name)
		return nil
	},
}

func readPassword(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		fmt.Fprint(os.Stderr, prompt)
		data, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", errors.New("no password on standard input")
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func init() {
	credentialsCmd.AddCommand(credentialsSetCmd)
	credentialsCmd.AddCommand(credentialsDeleteCmd)
}
