package cli

import (
	"github.com/spf13/cobra"

	"llamactx/internal/registry"
	"llamactx/pkg/types"
)

// NewModelsCommand creates the command listing GGUF files in a directory.
func NewModelsCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		dir    string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "models",
		Short: "List GGUF model files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if dir == "" {
				dir = rootOpts.cfg.ModelsDir
			}
			models, err := registry.LoadDir(dir)
			if err != nil {
				return WrapExitError(ExitCommandError, "scan models", err)
			}
			if asJSON {
				if models == nil {
					models = []types.Model{}
				}
				return writeJSON(cmd.OutOrStdout(), types.ModelsResponse{Models: models})
			}
			return renderModels(cmd.OutOrStdout(), models)
		},
	}
	cmd.Flags().StringVarP(&dir, "dir", "d", "", "directory to scan (defaults to models_dir)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}
