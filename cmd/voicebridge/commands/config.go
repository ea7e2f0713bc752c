package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage CLI configuration",
	Long: `Manage contexts and bridge settings.

A context is a named directory holding a bridge.yaml settings file, so you
can keep separate dev/staging/prod endpoints and switch between them.

Examples:
  voicebridge config list-contexts
  voicebridge config add-context staging
  voicebridge config use-context dev
  voicebridge config current-context
  voicebridge config set dev api_key sk-xxx
  voicebridge config get dev api_key
  voicebridge config view dev`,
}

var configListContextsCmd = &cobra.Command{
	Use:     "list-contexts",
	Aliases: []string{"ls"},
	Short:   "List all contexts",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := getStore()
		if err != nil {
			return err
		}
		infos, err := s.Contexts()
		if err != nil {
			return err
		}

		if len(infos) == 0 {
			fmt.Println("No contexts configured.")
			fmt.Println("Create one with: voicebridge config add-context <name>")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ACTIVE\tNAME\tTRANSPORT")
		for _, info := range infos {
			marker := ""
			if info.Active {
				marker = "*"
			}
			transport := info.Transport
			if transport == "" {
				transport = "(not configured)"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", marker, info.Name, transport)
		}
		w.Flush()
		return nil
	},
}

var configAddContextCmd = &cobra.Command{
	Use:   "add-context <name>",
	Short: "Create a new context",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := getStore()
		if err != nil {
			return err
		}
		dir, err := s.Create(args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Context %q created with a starter %s.\n", args[0], filepath.Join(dir, "bridge.yaml"))
		fmt.Printf("Fill in the endpoints with: voicebridge config set %s <key> <value>\n", args[0])
		return nil
	},
}

var configDeleteContextCmd = &cobra.Command{
	Use:   "delete-context <name>",
	Short: "Delete a context and its bridge settings",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := getStore()
		if err != nil {
			return err
		}
		if err := s.Remove(args[0]); err != nil {
			return err
		}
		fmt.Printf("Context %q deleted.\n", args[0])
		return nil
	},
}

var configUseContextCmd = &cobra.Command{
	Use:   "use-context <name>",
	Short: "Set the active context",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := getStore()
		if err != nil {
			return err
		}
		if err := s.SetActive(args[0]); err != nil {
			return err
		}
		fmt.Printf("Active context set to %q.\n", args[0])
		return nil
	},
}

var configCurrentContextCmd = &cobra.Command{
	Use:   "current-context",
	Short: "Show the active context",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := getStore()
		if err != nil {
			return err
		}
		if s.Active == "" {
			fmt.Println("No active context set.")
			return nil
		}
		fmt.Println(s.Active)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <context> <key> <value>",
	Short: "Set one bridge setting in a context",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := getStore()
		if err != nil {
			return err
		}
		contextDir, err := s.Resolve(args[0])
		if err != nil {
			return err
		}

		// Edit the raw YAML map rather than the typed struct, so unknown
		// keys survive a round trip and typos are visible in the file.
		values, err := loadRawBridge(contextDir)
		if err != nil {
			return err
		}
		values[args[1]] = args[2]

		data, err := yaml.Marshal(values)
		if err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Join(contextDir, "bridge.yaml"), data, 0644); err != nil {
			return err
		}
		fmt.Printf("Set %s in context %q.\n", args[1], args[0])
		return nil
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get <context> <key>",
	Short: "Get one bridge setting from a context",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := getStore()
		if err != nil {
			return err
		}
		contextDir, err := s.Resolve(args[0])
		if err != nil {
			return err
		}
		values, err := loadRawBridge(contextDir)
		if err != nil {
			return err
		}
		v, ok := values[args[1]]
		if !ok {
			return fmt.Errorf("key %q not set in context %q", args[1], args[0])
		}
		fmt.Println(v)
		return nil
	},
}

var configViewCmd = &cobra.Command{
	Use:   "view [context]",
	Short: "Show the bridge settings of a context",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := getStore()
		if err != nil {
			return err
		}
		name := ""
		if len(args) == 1 {
			name = args[0]
		}
		contextDir, err := s.Resolve(name)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(filepath.Join(contextDir, "bridge.yaml"))
		if err != nil {
			return err
		}
		os.Stdout.Write(data)
		return nil
	},
}

func loadRawBridge(contextDir string) (map[string]any, error) {
	values := map[string]any{}
	data, err := os.ReadFile(filepath.Join(contextDir, "bridge.yaml"))
	if err != nil {
		if os.IsNotExist(err) {
			return values, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(data, &values); err != nil {
		return nil, err
	}
	return values, nil
}

func init() {
	configCmd.AddCommand(configListContextsCmd)
	configCmd.AddCommand(configAddContextCmd)
	configCmd.AddCommand(configDeleteContextCmd)
	configCmd.AddCommand(configUseContextCmd)
	configCmd.AddCommand(configCurrentContextCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configViewCmd)
	rootCmd.AddCommand(configCmd)
}
