package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// NewTokenizeCommand creates the command printing token ids for text.
func NewTokenizeCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		model     string
		roundTrip bool
	)
	cmd := &cobra.Command{
		Use:   "tokenize --model <file.gguf> <text...>",
		Short: "Print the token ids of text",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(rootOpts)
			if err != nil {
				return err
			}
			defer a.close()
			ctx := cmd.Context()
			p := a.contextParams(model, 0)
			p.VocabOnly = true
			if _, err := a.sess.LoadModelWith(ctx, p); err != nil {
				return WrapExitError(ExitCommandError, "load model", err)
			}
			toks, err := a.sess.Tokenize(ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}
			if err := renderTokens(cmd.OutOrStdout(), toks); err != nil {
				return err
			}
			if !roundTrip {
				return nil
			}
			text, err := a.sess.Detokenize(ctx, toks)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%q\n", text)
			return err
		},
	}
	cmd.Flags().StringVarP(&model, "model", "m", "", "path to a GGUF model file")
	cmd.Flags().BoolVar(&roundTrip, "detokenize", false, "also print the text decoded back from the ids")
	_ = cmd.MarkFlagRequired("model")
	return cmd
}
