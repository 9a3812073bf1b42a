package cli

import (
	"github.com/spf13/cobra"
)

// NewInspectCommand creates the command printing a model's details.
func NewInspectCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		model  string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "inspect --model <file.gguf>",
		Short: "Open a model and print its details",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(rootOpts)
			if err != nil {
				return err
			}
			defer a.close()
			info, err := a.sess.LoadModelWith(cmd.Context(), a.contextParams(model, 0))
			if err != nil {
				return WrapExitError(ExitCommandError, "load model", err)
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), info)
			}
			return renderDetails(cmd.OutOrStdout(), info)
		},
	}
	cmd.Flags().StringVarP(&model, "model", "m", "", "path to a GGUF model file")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	_ = cmd.MarkFlagRequired("model")
	return cmd
}
