package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/alexhamidi/typing-tracker/internal/plugin"
)

func newPluginsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "plugins",
		Short: "List the corrective plugins that would be loaded",
		Args:  cobra.NoArgs,
		RunE:  runPluginsCmd,
	}
}

func runPluginsCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	mgr := plugin.NewManager(cfg.Plugins.Dir, nil)
	if err := mgr.Discover(); err != nil {
		return fmt.Errorf("failed to discover plugins in %s: %w", cfg.Plugins.Dir, err)
	}

	out := cmd.OutOrStdout()
	list := mgr.List()
	if len(list) == 0 {
		fmt.Fprintf(out, "no plugins in %s\n", mgr.PluginDir())
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tVERSION\tACTIONS\tPATH")
	for _, p := range list {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", p.Manifest.Name, p.Manifest.Version, strings.Join(p.Manifest.Actions, ","), p.Path)
	}
	if _, err := fmt.Fprintf(w, "\nundo via %s/%s: %v, alert via %s/%s: %v\n",
		plugin.UndoPlugin, plugin.UndoAction, supported(mgr, plugin.UndoPlugin, plugin.UndoAction),
		plugin.AlertPlugin, plugin.AlertAction, supported(mgr, plugin.AlertPlugin, plugin.AlertAction)); err != nil {
		return err
	}
	return w.Flush()
}

func supported(mgr *plugin.Manager, name, action string) bool {
	p, err := mgr.Get(name)
	return err == nil && p.Supports(action)
}
