package client

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// NewMapCommand constructs the `map` command group for named-map CRUD
// against one topic's Engine-backed map, over HTTP.
func NewMapCommand(baseURL BaseURLFunc) *cobra.Command {
	mapCmd := &cobra.Command{Use: "map", Short: "Named map operations"}
	mapCmd.AddCommand(
		newMapGetCommand(baseURL),
		newMapKeysCommand(baseURL),
		newMapPutCommand(baseURL),
		newMapDeleteCommand(baseURL),
	)
	return mapCmd
}

func newMapGetCommand(baseURL BaseURLFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get",
		Short: "Get one entry from a named map",
		RunE: func(cmd *cobra.Command, _ []string) error {
			topic, _ := cmd.Flags().GetString("topic")
			name, _ := cmd.Flags().GetString("name")
			key, _ := cmd.Flags().GetString("key")

			var value json.RawMessage
			url := fmt.Sprintf("%s/v1/topics/%s/maps/%s/%s", baseURL(), topic, name, key)
			if err := httpJSON("GET", url, nil, &value); err != nil {
				return err
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), string(value))
			return err
		},
	}
	cmd.Flags().String("topic", "", "Topic ID")
	cmd.Flags().String("name", "", "Map name")
	cmd.Flags().String("key", "", "Entry key")
	return cmd
}

func newMapKeysCommand(baseURL BaseURLFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "List a named map's keys",
		RunE: func(cmd *cobra.Command, _ []string) error {
			topic, _ := cmd.Flags().GetString("topic")
			name, _ := cmd.Flags().GetString("name")

			var keys []string
			url := fmt.Sprintf("%s/v1/topics/%s/maps/%s", baseURL(), topic, name)
			if err := httpJSON("GET", url, nil, &keys); err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			return enc.Encode(keys)
		},
	}
	cmd.Flags().String("topic", "", "Topic ID")
	cmd.Flags().String("name", "", "Map name")
	return cmd
}

func newMapPutCommand(baseURL BaseURLFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "put",
		Short: "Put a value into a named map",
		RunE: func(cmd *cobra.Command, _ []string) error {
			topic, _ := cmd.Flags().GetString("topic")
			name, _ := cmd.Flags().GetString("name")
			key, _ := cmd.Flags().GetString("key")
			value, _ := cmd.Flags().GetString("value")
			scope, _ := cmd.Flags().GetString("scope")

			var raw json.RawMessage
			if err := json.Unmarshal([]byte(value), &raw); err != nil {
				raw, _ = json.Marshal(value)
			}
			url := fmt.Sprintf("%s/v1/topics/%s/maps/%s/%s?scope=%s", baseURL(), topic, name, key, scope)
			if err := httpJSON("PUT", url, map[string]any{"value": raw}, nil); err != nil {
				return err
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), "status: OK")
			return err
		},
	}
	cmd.Flags().String("topic", "", "Topic ID")
	cmd.Flags().String("name", "", "Map name")
	cmd.Flags().String("key", "", "Entry key")
	cmd.Flags().String("value", "", "Value (JSON, or plain text)")
	cmd.Flags().String("scope", "topic", "Entry scope: topic|connection")
	return cmd
}

func newMapDeleteCommand(baseURL BaseURLFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete an entry from a named map",
		RunE: func(cmd *cobra.Command, _ []string) error {
			topic, _ := cmd.Flags().GetString("topic")
			name, _ := cmd.Flags().GetString("name")
			key, _ := cmd.Flags().GetString("key")

			url := fmt.Sprintf("%s/v1/topics/%s/maps/%s/%s", baseURL(), topic, name, key)
			if err := httpJSON("DELETE", url, nil, nil); err != nil {
				return err
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), "status: OK")
			return err
		},
	}
	cmd.Flags().String("topic", "", "Topic ID")
	cmd.Flags().String("name", "", "Map name")
	cmd.Flags().String("key", "", "Entry key")
	return cmd
}
