// Command sfkit is the plugin development tool: scaffold a new plugin
// package and pack it into an installable archive.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sitekit/siteforge/internal/plugin/packaging"
)

func main() {
	root := &cobra.Command{
		Use:          "sfkit",
		Short:        "SiteForge plugin development tool",
		SilenceUsage: true,
	}

	pluginCmd := &cobra.Command{
		Use:   "plugin",
		Short: "Plugin package commands",
	}
	pluginCmd.AddCommand(initCmd(), packCmd())
	root.AddCommand(pluginCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init <name>",
		Short: "Create a new plugin package from a template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := strings.ToLower(strings.ReplaceAll(args[0], " ", "-"))
			dir := filepath.Join("plugins", name)
			if err := os.MkdirAll(dir, 0755); err != nil {
				return fmt.Errorf("create directory: %w", err)
			}

			mainClass := toClassName(name) + "Plugin"

			descriptor := fmt.Sprintf(`pluginId: %s
version: 0.1.0
mainClass: %s
pluginType: component
entry: main.js
`, name, mainClass)
			if err := os.WriteFile(filepath.Join(dir, "plugin.yaml"), []byte(descriptor), 0644); err != nil {
				return err
			}

			entry := fmt.Sprintf(`function %s() {}

%s.prototype.manifests = function() {
	return [{
		pluginId: %q,
		pluginVersion: "0.1.0",
		componentId: %q,
		displayName: %q,
		category: "ui",
		defaultProps: {},
		capabilities: { canHaveChildren: false }
	}];
};

%s.prototype.onLoad = function(ctx) {
	ctx.log("loaded");
};
`, mainClass, mainClass, name, toClassName(name), toClassName(name), mainClass)
			if err := os.WriteFile(filepath.Join(dir, "main.js"), []byte(entry), 0644); err != nil {
				return err
			}

			fmt.Printf("Created plugin package: %s/\n", dir)
			fmt.Println()
			fmt.Println("Next steps:")
			fmt.Printf("  edit %s/main.js\n", dir)
			fmt.Printf("  sfkit plugin pack %s\n", dir)
			return nil
		},
	}
}

func packCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "pack <dir>",
		Short: "Pack a plugin directory into an installable archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := args[0]
			out := output
			if out == "" {
				out = filepath.Base(filepath.Clean(dir)) + ".zip"
			}
			if err := packaging.Pack(dir, out); err != nil {
				return err
			}
			fmt.Printf("Packed %s -> %s\n", dir, out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output archive path")
	return cmd
}

func toClassName(name string) string {
	words := strings.Split(name, "-")
	for i, w := range words {
		if len(w) > 0 {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, "")
}
