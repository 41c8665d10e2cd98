package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ownlingo/unibot/assistant/preferences"
)

func prefsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prefs",
		Short: "Show or change local preferences",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List every preference with its effective value",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openPrefs()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			infoColor.Fprintf(out, "# %s\n", store.Path())
			for _, key := range allKeys(store) {
				keyColor.Fprintf(out, "%-24s", key)
				fmt.Fprintf(out, " %v\n", effective(store, key))
			}
			return nil
		},
	}

	getCmd := &cobra.Command{
		Use:   "get <key>",
		Short: "Print one preference",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openPrefs()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), effective(store, args[0]))
			return nil
		},
	}

	setCmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Store a preference; true/false and numbers keep their type",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openPrefs()
			if err != nil {
				return err
			}
			var value any
			if err := yaml.Unmarshal([]byte(args[1]), &value); err != nil || value == nil {
				value = args[1]
			}
			return store.Set(args[0], value)
		},
	}

	unsetCmd := &cobra.Command{
		Use:   "unset <key>",
		Short: "Restore one preference to its default",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openPrefs()
			if err != nil {
				return err
			}
			return store.Delete(args[0])
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Restore every preference except the theme",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openPrefs()
			if err != nil {
				return err
			}
			return preferences.Clear(store)
		},
	}

	fontCmd := &cobra.Command{
		Use:       "font <bigger|smaller|reset>",
		Short:     "Step the text size",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"bigger", "smaller", "reset"},
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openPrefs()
			if err != nil {
				return err
			}
			scale := preferences.Float(store, preferences.KeyFontScale, 1)
			switch args[0] {
			case "bigger":
				scale = preferences.StepFontScale(scale, 1)
			case "smaller":
				scale = preferences.StepFontScale(scale, -1)
			case "reset":
				scale = 1
			default:
				return fmt.Errorf("unknown step %q", args[0])
			}
			if err := store.Set(preferences.KeyFontScale, scale); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "font scale %.1f (%dpx)\n", scale, preferences.FontPixels(scale))
			return nil
		},
	}

	cmd.AddCommand(listCmd, getCmd, setCmd, unsetCmd, clearCmd, fontCmd)
	return cmd
}

// allKeys merges the known settings with whatever else the store holds
func allKeys(store preferences.Store) []string {
	seen := make(map[string]bool)
	var keys []string
	for k := range preferences.Defaults {
		seen[k] = true
		keys = append(keys, k)
	}
	for _, k := range store.Keys() {
		if !seen[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// effective reads key with its typed default, or the raw stored value for unknown keys
func effective(store preferences.Store, key string) any {
	switch def := preferences.Defaults[key].(type) {
	case bool:
		return preferences.Bool(store, key, def)
	case float64:
		return preferences.Float(store, key, def)
	case string:
		return preferences.String(store, key, def)
	}
	v, _ := store.Get(key)
	return v
}
