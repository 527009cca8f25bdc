package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/yllada/vpn-launcher/common"
	"github.com/yllada/vpn-launcher/launch"
	"github.com/yllada/vpn-launcher/provision"
)

var provisionCmd = &cobra.Command{
	Use:   "provision",
	Short: "Make the helper executable available and print its path",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		candidates := env.candidates()
		loc, err := provisionHelper(candidates)
		if err != nil {
			return err
		}

		state := "extracted"
		if loc.Prepared {
			state = "already prepared"
		}
		fmt.Println(loc.Path)
		fmt.Println(styleDim.Render(fmt.Sprintf("candidates: %s (%s)", strings.Join(candidates, " "), state)))
		return nil
	},
}

var abiCmd = &cobra.Command{
	Use:   "abi",
	Short: "Show the architecture candidates for this machine",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, device := env.abis()
		candidates := env.candidates()

		printTable([]string{"SOURCE", "ARCHITECTURES"}, [][]string{
			{"application", app},
			{"device", strings.Join(device, " ")},
			{"candidates", strings.Join(candidates, " ")},
		})
		if env.events.Count(common.SeverityWarning) > 0 {
			notice("The device preference does not match this build; only %s is tried", app)
		}
		if env.caps.RestrictsTempExecution {
			notice("Cache execution is restricted; the pre-installed helper is tried first")
		}
		return nil
	},
}

var argvCmd = &cobra.Command{
	Use:   "argv",
	Short: "Print the helper invocation",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		loc, err := provisionHelper(env.candidates())
		if err != nil {
			return err
		}
		for _, arg := range launch.BuildArguments(loc.Path) {
			fmt.Println(arg)
		}
		return nil
	},
}

func provisionHelper(candidates []string) (provision.Location, error) {
	m, closer, err := env.materializer()
	if err != nil {
		return provision.Location{}, err
	}
	defer closer.Close()

	return m.Provision(candidates)
}
