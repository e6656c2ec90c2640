package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"carousel/internal/api"
	"carousel/internal/config"
	"carousel/internal/daemon"
	"carousel/internal/deps"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon, dependency, and directory status",
		RunE: func(cmd *cobra.Command, args []string) error {
			status := fetchStatus(cmd, ctx)
			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), status)
			}
			renderStatus(cmd, ctx, status)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit status as JSON")
	return cmd
}

// fetchStatus asks the daemon first and falls back to a local snapshot when
// it cannot be reached, so status stays useful while nothing is running.
func fetchStatus(cmd *cobra.Command, ctx *commandContext) *api.DaemonStatus {
	if client, err := ctx.newClient(); err == nil {
		if status, err := client.Status(cmd.Context()); err == nil {
			return status
		}
	}
	return localStatusSnapshot(ctx.configValue())
}

func localStatusSnapshot(cfg *config.Config) *api.DaemonStatus {
	status := &api.DaemonStatus{}
	if cfg == nil {
		return status
	}
	status.IndexDBPath = cfg.DatabasePath()
	status.LockFilePath = daemon.LockPath(cfg)
	for _, dep := range deps.CheckSystemDeps(cfg) {
		status.Dependencies = append(status.Dependencies, api.DependencyStatus{
			Name:        dep.Name,
			Command:     dep.Command,
			Description: dep.Description,
			Optional:    dep.Optional,
			Available:   dep.Available,
			Detail:      dep.Detail,
		})
	}
	for _, dir := range deps.CheckDataDirectories(cfg) {
		status.Directories = append(status.Directories, api.DirectoryStatus{
			Name:   dir.Name,
			Path:   dir.Path,
			Passed: dir.Passed,
			Detail: dir.Detail,
		})
	}
	return status
}

func renderStatus(cmd *cobra.Command, ctx *commandContext, status *api.DaemonStatus) {
	stdout := cmd.OutOrStdout()
	colorize := shouldColorize(stdout)

	fmt.Fprintln(stdout, renderSectionHeader("Daemon", colorize))
	if status.Running {
		detail := fmt.Sprintf("running (pid %d)", status.PID)
		if status.StartedAt != "" {
			detail = fmt.Sprintf("running (pid %d, since %s)", status.PID, formatTimestamp(status.StartedAt))
		}
		fmt.Fprintln(stdout, renderStatusLine("Daemon", statusOK, detail, colorize))
	} else {
		fmt.Fprintln(stdout, renderStatusLine("Daemon", statusError, "not running; start it with `carousel serve`", colorize))
	}
	fmt.Fprintln(stdout, renderStatusLine("Server", statusInfo, ctx.serverAddress(), colorize))
	fmt.Fprintln(stdout, renderStatusLine("Active sessions", statusInfo, strconv.Itoa(status.ActiveSessions), colorize))
	if status.IndexDBPath != "" {
		fmt.Fprintln(stdout, renderStatusLine("Session index", statusInfo, status.IndexDBPath, colorize))
	}
	if status.LockFilePath != "" {
		fmt.Fprintln(stdout, renderStatusLine("Lock file", statusInfo, status.LockFilePath, colorize))
	}
	fmt.Fprintln(stdout)

	fmt.Fprintln(stdout, renderSectionHeader("Dependencies", colorize))
	for _, line := range dependencyLines(status.Dependencies, colorize) {
		fmt.Fprintln(stdout, line)
	}
	fmt.Fprintln(stdout)

	fmt.Fprintln(stdout, renderSectionHeader("Directories", colorize))
	for _, dir := range status.Directories {
		kind := statusOK
		if !dir.Passed {
			kind = statusError
		}
		detail := dir.Path
		if dir.Detail != "" {
			detail = fmt.Sprintf("%s (%s)", dir.Path, dir.Detail)
		}
		fmt.Fprintln(stdout, renderStatusLine(dir.Name, kind, detail, colorize))
	}
}

func dependencyLines(dependencies []api.DependencyStatus, colorize bool) []string {
	lines := make([]string, 0, len(dependencies)+1)
	missing := make([]string, 0)
	for _, dep := range dependencies {
		if dep.Available {
			message := "ready"
			if dep.Command != "" {
				message = fmt.Sprintf("ready (command: %s)", dep.Command)
			}
			lines = append(lines, renderStatusLine(dep.Name, statusOK, message, colorize))
			continue
		}

		detail := strings.TrimSpace(dep.Detail)
		if detail == "" {
			detail = "not available"
		}
		kind := statusError
		if dep.Optional {
			kind = statusWarn
		}
		lines = append(lines, renderStatusLine(dep.Name, kind, detail, colorize))
		if !dep.Optional {
			missing = append(missing, dep.Command)
		}
	}
	if len(missing) > 0 {
		lines = append(lines, renderStatusLine("Missing", statusWarn, fmt.Sprintf("install %s before converting", strings.Join(missing, ", ")), colorize))
	}
	return lines
}
