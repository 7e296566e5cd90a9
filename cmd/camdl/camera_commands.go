package main

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"camdl/internal/api"
	"camdl/internal/eventstream"
	"camdl/internal/logging"
)

func newPingCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "ping <ip>",
		Short: "Check whether a camera answers on the network",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ip := strings.TrimSpace(args[0])
			return ctx.withClient(func(client *api.Client) error {
				resp, err := client.Ping(cmd.Context(), ip)
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, resp)
				}
				out := cmd.OutOrStdout()
				if !resp.Success {
					return errors.New(resp.Message)
				}
				fmt.Fprintln(out, renderStatusLine("Camera "+ip, statusOK, resp.Message, shouldColorize(out)))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newDownloadCommand(ctx *commandContext) *cobra.Command {
	var cameraType string
	var ip string

	cmd := &cobra.Command{
		Use:   "download",
		Short: "Download files from a camera and stream its progress",
		Long: "Download files from a camera and stream its progress.\n\n" +
			"Without --type or --ip the last used camera selection is reused.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				cameraType, ip := strings.ToLower(strings.TrimSpace(cameraType)), strings.TrimSpace(ip)
				if cameraType == "" || ip == "" {
					saved, err := client.Settings(cmd.Context())
					if err != nil {
						return err
					}
					if cameraType == "" {
						cameraType = saved.LastUsed.CameraType
					}
					if ip == "" {
						if addr, ok := saved.Cameras[cameraType]; ok {
							ip = addr.IP
						}
					}
				}
				if cameraType == "" || ip == "" {
					return errors.New("camera type and ip are required (use --type and --ip)")
				}

				out := cmd.OutOrStdout()
				view := newProgressView(out, shouldColorize(out))
				fmt.Fprintf(out, "Downloading from %s camera at %s\n", cameraLabel(cameraType), ip)
				terminal, err := client.Download(cmd.Context(), cameraType, ip, view.handle)
				view.finish()
				if err != nil {
					return err
				}
				if !terminal.Success {
					return errors.New(terminal.Message())
				}
				fmt.Fprintln(out, terminal.Message())
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&cameraType, "type", "t", "", "Camera type (e.g. siyi, xfrobot)")
	cmd.Flags().StringVar(&ip, "ip", "", "Camera IP address")
	return cmd
}

// progressView prints relayed child output. On a terminal, lines carrying an
// "n/m" fraction drive a progress bar instead of being echoed.
type progressView struct {
	out io.Writer
	bar *progressbar.ProgressBar
	tty bool
}

func newProgressView(out io.Writer, tty bool) *progressView {
	return &progressView{out: out, tty: tty}
}

func (v *progressView) handle(ev eventstream.Event) {
	switch ev.Kind {
	case eventstream.KindHeartbeat, eventstream.KindTerminal:
		return
	case eventstream.KindError:
		v.clear()
		fmt.Fprintln(v.out, "error: "+ev.Text)
		return
	}
	if v.tty {
		if percent, stage := logging.ParseProgressLine(ev.Text); percent >= 0 {
			v.progress(percent, stage)
			return
		}
	}
	v.clear()
	fmt.Fprintln(v.out, ev.Text)
}

func (v *progressView) progress(percent float64, stage string) {
	if v.bar == nil {
		v.bar = progressbar.NewOptions(100,
			progressbar.OptionSetWriter(v.out),
			progressbar.OptionSetWidth(30),
			progressbar.OptionShowBytes(false),
			progressbar.OptionSetPredictTime(false),
			progressbar.OptionEnableColorCodes(true),
		)
	}
	if stage != "" {
		v.bar.Describe(stage)
	}
	_ = v.bar.Set(int(percent))
}

func (v *progressView) clear() {
	if v.bar != nil {
		_ = v.bar.Clear()
	}
}

func (v *progressView) finish() {
	if v.bar == nil {
		return
	}
	_ = v.bar.Finish()
	fmt.Fprintln(v.out)
	v.bar = nil
}

func newSettingsCommand(ctx *commandContext) *cobra.Command {
	settingsCmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change saved camera addresses",
	}
	settingsCmd.AddCommand(newSettingsShowCommand(ctx))
	settingsCmd.AddCommand(newSettingsSetCommand(ctx))
	return settingsCmd
}

func newSettingsShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show saved camera addresses and the last used selection",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				resp, err := client.Settings(cmd.Context())
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, resp)
				}
				types := make([]string, 0, len(resp.Cameras))
				for cameraType := range resp.Cameras {
					types = append(types, cameraType)
				}
				sort.Strings(types)
				rows := make([][]string, 0, len(types))
				for _, cameraType := range types {
					rows = append(rows, []string{
						cameraLabel(cameraType),
						valueOrDash(resp.Cameras[cameraType].IP),
						yesNo(cameraType == resp.LastUsed.CameraType),
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable([]column{
					{header: "Camera"},
					{header: "IP"},
					{header: "Last used"},
				}, rows))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newSettingsSetCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set <type> <ip>",
		Short: "Save the address for a camera type and mark it last used",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				resp, err := client.SaveSettings(cmd.Context(), strings.TrimSpace(args[0]), strings.TrimSpace(args[1]))
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), resp.Message)
				return nil
			})
		},
	}
	return cmd
}
