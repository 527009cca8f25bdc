package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/yllada/vpn-launcher/common"
	"github.com/yllada/vpn-launcher/config"
	"github.com/yllada/vpn-launcher/host"
	"github.com/yllada/vpn-launcher/launch"
	"github.com/yllada/vpn-launcher/vpn"
)

var connectCmd = &cobra.Command{
	Use:   "connect <profile>",
	Short: "Provision the helper and start it for a profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reason, _ := cmd.Flags().GetString("reason")
		replace, _ := cmd.Flags().GetBool("replace")
		wait, _ := cmd.Flags().GetBool("wait")

		pm, err := env.profiles()
		if err != nil {
			return err
		}
		creds, err := env.credentials()
		if err != nil {
			return err
		}
		mgr := vpn.NewManager(pm, creds)
		if env.cfg.Host == config.HostProcess {
			mgr.IsRunning = env.isRunning
		}
		mgr.OnStatusChange = func(profileID string, status vpn.ConnectionStatus) {
			common.LogDebug("Profile %s: %s", profileID, status)
		}

		m, closer, err := env.materializer()
		if err != nil {
			return err
		}
		defer closer.Close()

		h, release, err := env.host()
		if err != nil {
			return err
		}
		defer release()
		if ph, ok := h.(*host.ProcessHost); ok {
			ph.OnOutput = mgr.ObserveOutput
		}

		caps := env.caps
		if wait {
			caps.RequiresForegroundStart = true
		}

		app, device := env.abis()
		l := &launch.Launcher{
			AppABI:      app,
			DeviceABIs:  device,
			Provisioner: m,
			Descriptors: mgr,
			Host:        h,
			Caps:        caps,
			Sink:        env.sink,
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		res, err := l.Launch(ctx, launch.Request{ProfileID: args[0], Reason: reason, Replace: replace})
		if err != nil {
			return fmt.Errorf("%s: %w", res.Outcome, err)
		}
		if res.Outcome == launch.Skipped {
			notice("%s was not launched: profile is disabled or already running (use --replace)", args[0])
			return nil
		}

		inst := res.Instance
		if inst.PID != 0 {
			success("Started %s (pid %d)", args[0], inst.PID)
		} else {
			success("Started %s as %s", args[0], inst.Name)
		}
		fmt.Println(styleDim.Render(fmt.Sprintf("%v", res.Argv)))

		if !caps.RequiresForegroundStart {
			return nil
		}
		return waitForeground(ctx, mgr, inst)
	},
}

// waitForeground blocks until a foreground helper exits. Interrupting the
// launcher stops the helper.
func waitForeground(ctx context.Context, mgr *vpn.Manager, inst *host.Instance) error {
	err := inst.Wait()
	if ctx.Err() != nil {
		err = nil
	}
	mgr.Exited(inst.ProfileID, err)

	conn, ok := mgr.GetConnection(inst.ProfileID)
	if ok && conn.Status == vpn.StatusError {
		return errors.New(conn.LastError)
	}
	if err != nil {
		return fmt.Errorf("helper exited: %w", err)
	}
	return nil
}

var disconnectCmd = &cobra.Command{
	Use:   "disconnect <profile>",
	Short: "Stop the helper running a profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pm, err := env.profiles()
		if err != nil {
			return err
		}
		profile, err := pm.Find(args[0])
		if err != nil {
			return err
		}

		h, release, err := env.host()
		if err != nil {
			return err
		}
		defer release()

		switch h := h.(type) {
		case *host.SystemdHost:
			err = h.Stop(cmd.Context(), profile.ID)
		case *host.ProcessHost:
			if env.isRunning(profile.ID) {
				err = h.Stop(profile.ID)
			} else {
				notice("%s is not running", profile.Name)
				return nil
			}
		}
		if err != nil {
			return fmt.Errorf("failed to disconnect: %w", err)
		}
		success("Disconnected from %s", profile.Name)
		return nil
	},
}

func init() {
	f := connectCmd.Flags()
	f.StringP("reason", "r", "user", "Reason recorded with the start")
	f.Bool("replace", false, "Stop a running instance of the profile first")
	f.BoolP("wait", "w", false, "Start in the foreground and wait for the helper to exit")
}
