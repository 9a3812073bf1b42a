package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewBenchCommand creates the benchmark command.
func NewBenchCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		model          string
		pp, tg, pl, nr int
	)
	cmd := &cobra.Command{
		Use:   "bench --model <file.gguf>",
		Short: "Measure prompt processing and generation speed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(rootOpts)
			if err != nil {
				return err
			}
			defer a.close()
			ctx := cmd.Context()
			if _, err := a.sess.LoadModelWith(ctx, a.contextParams(model, 0)); err != nil {
				return WrapExitError(ExitCommandError, "load model", err)
			}
			out, err := a.sess.Bench(ctx, pp, tg, pl, nr)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), out)
			return err
		},
	}
	cmd.Flags().StringVarP(&model, "model", "m", "", "path to a GGUF model file")
	cmd.Flags().IntVar(&pp, "pp", 512, "prompt tokens to process")
	cmd.Flags().IntVar(&tg, "tg", 128, "tokens to generate")
	cmd.Flags().IntVar(&pl, "pl", 1, "parallel sequences")
	cmd.Flags().IntVar(&nr, "nr", 1, "repetitions")
	_ = cmd.MarkFlagRequired("model")
	return cmd
}
