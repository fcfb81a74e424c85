package client

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// NewListCommand constructs the `list` command group for named-list CRUD
// against one topic's Engine-backed list, over HTTP.
func NewListCommand(baseURL BaseURLFunc) *cobra.Command {
	listCmd := &cobra.Command{Use: "list", Short: "Named list operations"}
	listCmd.AddCommand(
		newListItemsCommand(baseURL),
		newListInsertCommand(baseURL),
		newListSetCommand(baseURL),
		newListDeleteCommand(baseURL),
		newListMoveCommand(baseURL),
	)
	return listCmd
}

func newListItemsCommand(baseURL BaseURLFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "items",
		Short: "List a named list's items head to tail",
		RunE: func(cmd *cobra.Command, _ []string) error {
			topic, _ := cmd.Flags().GetString("topic")
			name, _ := cmd.Flags().GetString("name")

			var items []map[string]json.RawMessage
			url := fmt.Sprintf("%s/v1/topics/%s/lists/%s", baseURL(), topic, name)
			if err := httpJSON("GET", url, nil, &items); err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(items)
		},
	}
	cmd.Flags().String("topic", "", "Topic ID")
	cmd.Flags().String("name", "", "List name")
	return cmd
}

func newListInsertCommand(baseURL BaseURLFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "insert",
		Short: "Insert a value into a named list",
		RunE: func(cmd *cobra.Command, _ []string) error {
			topic, _ := cmd.Flags().GetString("topic")
			name, _ := cmd.Flags().GetString("name")
			value, _ := cmd.Flags().GetString("value")
			ref, _ := cmd.Flags().GetString("ref")
			before, _ := cmd.Flags().GetBool("before")
			scope, _ := cmd.Flags().GetString("scope")

			var raw json.RawMessage
			if err := json.Unmarshal([]byte(value), &raw); err != nil {
				raw, _ = json.Marshal(value)
			}
			body := map[string]any{"value": raw, "before": before, "scope": scope}
			if ref != "" {
				body["ref"] = ref
			}
			var out map[string]string
			url := fmt.Sprintf("%s/v1/topics/%s/lists/%s", baseURL(), topic, name)
			if err := httpJSON("POST", url, body, &out); err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			return enc.Encode(out)
		},
	}
	cmd.Flags().String("topic", "", "Topic ID")
	cmd.Flags().String("name", "", "List name")
	cmd.Flags().String("value", "", "Value (JSON, or plain text)")
	cmd.Flags().String("ref", "", "Reference entry key (optional)")
	cmd.Flags().Bool("before", false, "Insert before ref (or at head with no ref)")
	cmd.Flags().String("scope", "topic", "Entry scope: topic|connection")
	return cmd
}

func newListSetCommand(baseURL BaseURLFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Rewrite the value at a list entry",
		RunE: func(cmd *cobra.Command, _ []string) error {
			topic, _ := cmd.Flags().GetString("topic")
			name, _ := cmd.Flags().GetString("name")
			key, _ := cmd.Flags().GetString("key")
			value, _ := cmd.Flags().GetString("value")

			var raw json.RawMessage
			if err := json.Unmarshal([]byte(value), &raw); err != nil {
				raw, _ = json.Marshal(value)
			}
			url := fmt.Sprintf("%s/v1/topics/%s/lists/%s/%s", baseURL(), topic, name, key)
			if err := httpJSON("PUT", url, map[string]any{"value": raw}, nil); err != nil {
				return err
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), "status: OK")
			return err
		},
	}
	cmd.Flags().String("topic", "", "Topic ID")
	cmd.Flags().String("name", "", "List name")
	cmd.Flags().String("key", "", "Entry key")
	cmd.Flags().String("value", "", "New value")
	return cmd
}

func newListDeleteCommand(baseURL BaseURLFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete a list entry",
		RunE: func(cmd *cobra.Command, _ []string) error {
			topic, _ := cmd.Flags().GetString("topic")
			name, _ := cmd.Flags().GetString("name")
			key, _ := cmd.Flags().GetString("key")

			url := fmt.Sprintf("%s/v1/topics/%s/lists/%s/%s", baseURL(), topic, name, key)
			if err := httpJSON("DELETE", url, nil, nil); err != nil {
				return err
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), "status: OK")
			return err
		},
	}
	cmd.Flags().String("topic", "", "Topic ID")
	cmd.Flags().String("name", "", "List name")
	cmd.Flags().String("key", "", "Entry key")
	return cmd
}

func newListMoveCommand(baseURL BaseURLFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "move",
		Short: "Relocate a list entry relative to another",
		RunE: func(cmd *cobra.Command, _ []string) error {
			topic, _ := cmd.Flags().GetString("topic")
			name, _ := cmd.Flags().GetString("name")
			key, _ := cmd.Flags().GetString("key")
			ref, _ := cmd.Flags().GetString("ref")
			before, _ := cmd.Flags().GetBool("before")

			url := fmt.Sprintf("%s/v1/topics/%s/lists/%s/%s/move", baseURL(), topic, name, key)
			if err := httpJSON("POST", url, map[string]any{"ref": ref, "before": before}, nil); err != nil {
				return err
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), "status: OK")
			return err
		},
	}
	cmd.Flags().String("topic", "", "Topic ID")
	cmd.Flags().String("name", "", "List name")
	cmd.Flags().String("key", "", "Entry key to move")
	cmd.Flags().String("ref", "", "Reference entry key")
	cmd.Flags().Bool("before", false, "Move before ref (default: after)")
	return cmd
}
