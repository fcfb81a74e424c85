package client

import (
	"github.com/spf13/cobra"
)

// NewRoot constructs a root Cobra command for the topicd client. It
// registers the map and list command groups against baseURL's HTTP
// transport.
func NewRoot(baseURL BaseURLFunc) *cobra.Command {
	root := &cobra.Command{
		Use:   "topicdctl",
		Short: "topicd client commands",
	}
	root.AddCommand(NewMapCommand(baseURL))
	root.AddCommand(NewListCommand(baseURL))
	return root
}
