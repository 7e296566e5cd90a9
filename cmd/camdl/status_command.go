package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"camdl/internal/api"
	"camdl/internal/daemonrun"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	var wait time.Duration

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon status, preflight checks, and active downloads",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			var status api.DaemonStatus
			if wait > 0 {
				status, err = client.WaitReady(cmd.Context(), wait)
			} else {
				status, err = client.Status(cmd.Context())
			}
			out := cmd.OutOrStdout()
			if err != nil {
				if !isConnRefused(err) {
					return wrapDialError(err, client.BaseURL())
				}
				if jsonOutput {
					return writeJSON(cmd, api.DaemonStatus{Running: false})
				}
				message := "Not running"
				if pid := daemonrun.ReadPID(ctx.configValue()); pid > 0 {
					message = fmt.Sprintf("API unreachable at %s (pid file names %d)", client.BaseURL(), pid)
				}
				fmt.Fprintln(out, renderStatusLine("camdl", statusError, message, shouldColorize(out)))
				return nil
			}
			if jsonOutput {
				return writeJSON(cmd, status)
			}
			printStatus(out, status, shouldColorize(out))
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().DurationVar(&wait, "wait", 0, "Wait up to this long for the daemon to answer")
	return cmd
}

func printStatus(out io.Writer, status api.DaemonStatus, colorize bool) {
	lines := renderSectionHeader("Daemon", colorize)
	if status.Running {
		lines = append(lines, renderStatusLine("camdl", statusOK, fmt.Sprintf("Running (pid %d, started %s)", status.PID, formatSince(status.StartedAt)), colorize))
	} else {
		lines = append(lines, renderStatusLine("camdl", statusWarn, "Stopped", colorize))
	}
	lines = append(lines,
		renderStatusLine("Download dir", statusInfo, status.DownloadDir, colorize),
		renderStatusLine("Settings", statusInfo, status.SettingsPath, colorize),
		renderStatusLine("Lock", statusInfo, status.LockFilePath, colorize),
	)
	labels := make([]string, 0, len(status.CameraTypes))
	for _, cameraType := range status.CameraTypes {
		labels = append(labels, cameraLabel(cameraType))
	}
	lines = append(lines, renderStatusLine("Cameras", statusInfo, strings.Join(labels, ", "), colorize))
	lines = append(lines, renderStatusLine("Jobs", statusInfo,
		fmt.Sprintf("%d active, %d launched, %d reaped", status.Jobs.Active, status.Jobs.Launched, status.Jobs.Reaped), colorize))

	if len(status.Checks) > 0 {
		lines = append(lines, "")
		lines = append(lines, renderSectionHeader("Checks", colorize)...)
		for _, check := range status.Checks {
			lines = append(lines, renderStatusLine(check.Name, checkKind(check.Passed), check.Detail, colorize))
		}
	}
	for _, line := range lines {
		fmt.Fprintln(out, line)
	}

	if len(status.Sessions) == 0 {
		return
	}
	fmt.Fprintln(out)
	for _, line := range renderSectionHeader("Downloads", colorize) {
		fmt.Fprintln(out, line)
	}
	rows := make([][]string, 0, len(status.Sessions))
	for _, session := range status.Sessions {
		rows = append(rows, []string{
			session.ID,
			cameraLabel(session.CameraType),
			session.Address,
			session.State,
			formatSince(session.StartedAt),
			formatSince(session.LastProgressAt),
		})
	}
	fmt.Fprintln(out, renderTable([]column{
		{header: "Session"},
		{header: "Camera"},
		{header: "Address"},
		{header: "State"},
		{header: "Started"},
		{header: "Last progress"},
	}, rows))
}
