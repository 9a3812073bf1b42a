package cli

import (
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"llamactx/internal/engine"
)

type runOptions struct {
	model     string
	ctxLen    int
	stream    bool
	maxTokens int
	temp      float32
	stop      []string
	grammar   string
}

// NewRunCommand creates the one-shot completion command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	o := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run --model <file.gguf> <prompt...>",
		Short: "Complete a single prompt",
		Long: `Open the model, complete the prompt once and print the result.

Interrupting with Ctrl-C stops the generation and prints what was produced.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(rootOpts, o, strings.Join(args, " "), cmd)
		},
	}
	cmd.Flags().StringVarP(&o.model, "model", "m", "", "path to a GGUF model file")
	cmd.Flags().IntVar(&o.ctxLen, "ctx", 0, "context length (0 keeps the configured value)")
	cmd.Flags().BoolVar(&o.stream, "stream", false, "print fragments as they are produced")
	cmd.Flags().IntVarP(&o.maxTokens, "n-predict", "n", 0, "maximum tokens to generate (0 keeps the configured value)")
	cmd.Flags().Float32Var(&o.temp, "temp", -1, "sampling temperature (negative keeps the configured value)")
	cmd.Flags().StringSliceVar(&o.stop, "stop", nil, "stop sequences")
	cmd.Flags().StringVar(&o.grammar, "grammar", "", "GBNF grammar constraining the output")
	_ = cmd.MarkFlagRequired("model")
	return cmd
}

func (o *runOptions) apply(p engine.CompletionParams) engine.CompletionParams {
	if o.maxTokens > 0 {
		p.MaxTokens = o.maxTokens
	}
	if o.temp >= 0 {
		p.Temperature = o.temp
	}
	if len(o.stop) > 0 {
		p.Stop = append([]string(nil), o.stop...)
	}
	if o.grammar != "" {
		p.Grammar = o.grammar
	}
	return p
}

func runRun(rootOpts *RootOptions, o *runOptions, prompt string, cmd *cobra.Command) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	a, err := newApp(rootOpts)
	if err != nil {
		return err
	}
	defer a.close()

	if _, err := a.sess.LoadModelWith(ctx, a.contextParams(o.model, o.ctxLen)); err != nil {
		return WrapExitError(ExitCommandError, "load model", err)
	}

	out := cmd.OutOrStdout()
	p := o.apply(rootOpts.cfg.Completion.WithPrompt(prompt))
	p.Stream = o.stream
	res, err := complete(ctx, a.sess, p, out)
	if err != nil {
		return err
	}
	if !o.stream {
		fmt.Fprint(out, res.Text)
	}
	fmt.Fprintln(out)
	return renderSummary(cmd.ErrOrStderr(), res)
}
