package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"camdl/internal/api"
)

func newFilesCommand(ctx *commandContext) *cobra.Command {
	filesCmd := &cobra.Command{
		Use:   "files",
		Short: "Inspect, export, or clear downloaded files",
	}
	filesCmd.AddCommand(newFilesCountCommand(ctx))
	filesCmd.AddCommand(newFilesZipCommand(ctx))
	filesCmd.AddCommand(newFilesDeleteCommand(ctx))
	return filesCmd
}

func newFilesCountCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "count",
		Short: "Count downloaded images and videos",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				resp, err := client.CountFiles(cmd.Context())
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, resp)
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable([]column{
					{header: "Images", align: alignRight},
					{header: "Videos", align: alignRight},
					{header: "Other", align: alignRight},
					{header: "Size", align: alignRight},
					{header: "Free", align: alignRight},
				}, [][]string{{
					fmt.Sprintf("%d", resp.Images),
					fmt.Sprintf("%d", resp.Videos),
					fmt.Sprintf("%d", resp.Other),
					formatBytes(resp.TotalBytes),
					formatBytes(resp.FreeBytes),
				}}))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newFilesZipCommand(ctx *commandContext) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "zip",
		Short: "Save all downloaded files as a zip archive",
		Long: "Save all downloaded files as a zip archive.\n\n" +
			"The archive is written to --output, or under the daemon's suggested name in the current directory. Use --output - for stdout.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				output = strings.TrimSpace(output)
				if output == "-" {
					_, _, err := client.DownloadZip(cmd.Context(), cmd.OutOrStdout())
					return err
				}

				dir := "."
				if output != "" {
					dir = filepath.Dir(output)
				}
				tmp, err := os.CreateTemp(dir, ".camdl-*.zip.partial")
				if err != nil {
					return fmt.Errorf("create archive: %w", err)
				}
				tmpPath := tmp.Name()
				defer os.Remove(tmpPath)

				name, size, err := client.DownloadZip(cmd.Context(), tmp)
				if closeErr := tmp.Close(); err == nil && closeErr != nil {
					err = fmt.Errorf("close archive: %w", closeErr)
				}
				if err != nil {
					return err
				}
				target := output
				if target == "" {
					target = filepath.Join(dir, filepath.Base(name))
				}
				if err := os.Rename(tmpPath, target); err != nil {
					return fmt.Errorf("save archive: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Saved %s (%s)\n", target, formatBytes(size))
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Archive destination path")
	return cmd
}

func newFilesDeleteCommand(ctx *commandContext) *cobra.Command {
	var confirmed bool

	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete every downloaded file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !confirmed {
				return errors.New("refusing to delete downloaded files without --yes")
			}
			return ctx.withClient(func(client *api.Client) error {
				resp, err := client.DeleteFiles(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), resp.Message)
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&confirmed, "yes", "y", false, "Confirm deletion")
	return cmd
}
