package cli

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/docker/go-units"
	"github.com/spf13/cobra"

	"github.com/yllada/vpn-launcher/host"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show running helpers",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		running, err := host.Running(env.cfg.StateDir)
		if err != nil {
			return err
		}
		if len(running) == 0 {
			fmt.Println("No running helpers.")
			return nil
		}

		names := map[string]string{}
		if pm, err := env.profiles(); err == nil {
			for _, p := range pm.List() {
				names[p.ID] = p.Name
			}
		}

		rows := make([][]string, 0, len(running))
		for _, u := range running {
			name := names[u.ProfileID]
			if name == "" {
				name = shortID(u.ProfileID)
			}
			rows = append(rows, []string{name, strconv.Itoa(u.PID), formatDuration(time.Since(u.Since)), logSize(u.LogPath)})
		}
		printTable([]string{"PROFILE", "PID", "UPTIME", "LOG"}, rows)
		return nil
	},
}

func logSize(path string) string {
	if path == "" {
		return "-"
	}
	info, err := os.Stat(path)
	if err != nil {
		return "-"
	}
	return units.HumanSize(float64(info.Size()))
}
