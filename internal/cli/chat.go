package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"

	"github.com/spf13/cobra"

	"llamactx/internal/engine"
	"llamactx/internal/httpapi"
	"llamactx/internal/llmctx"
)

type chatOptions struct {
	model     string
	ctxLen    int
	adminAddr string
	system    string
	template  string
}

// NewChatCommand creates the interactive chat command.
func NewChatCommand(rootOpts *RootOptions) *cobra.Command {
	o := &chatOptions{}
	cmd := &cobra.Command{
		Use:   "chat --model <file.gguf>",
		Short: "Chat with a model interactively",
		Long: `Start a chat session. Replies stream as they are generated.

Ctrl-C while a reply is streaming stops that reply; at the prompt it exits.
Commands: /save <path>, /load <path>, /tokens <text>, /info, /reset, /help, /quit.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(rootOpts, o, cmd)
		},
	}
	cmd.Flags().StringVarP(&o.model, "model", "m", "", "path to a GGUF model file")
	cmd.Flags().IntVar(&o.ctxLen, "ctx", 0, "context length (0 keeps the configured value)")
	cmd.Flags().StringVar(&o.adminAddr, "admin-addr", "", "serve health, status and metrics on this address")
	cmd.Flags().StringVar(&o.system, "system", "", "system message for the conversation")
	cmd.Flags().StringVar(&o.template, "template", "", "chat template name (empty uses the model's)")
	_ = cmd.MarkFlagRequired("model")
	return cmd
}

type repl struct {
	a        *app
	out      io.Writer
	errOut   io.Writer
	info     llmctx.OpenInfo
	template string
	system   string
	history  []engine.ChatMessage

	generating atomic.Bool
}

func runChat(rootOpts *RootOptions, o *chatOptions, cmd *cobra.Command) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	a, err := newApp(rootOpts)
	if err != nil {
		return err
	}
	defer a.close()

	addr := o.adminAddr
	if addr == "" {
		addr = rootOpts.cfg.Admin.Addr
	}
	if addr != "" {
		go func() {
			if err := httpapi.Serve(ctx, addr, httpapi.NewMux(a)); err != nil {
				rootOpts.log.Error().Err(err).Str("addr", addr).Msg("admin endpoint stopped")
			}
		}()
	}

	info, err := a.sess.LoadModelWith(ctx, a.contextParams(o.model, o.ctxLen))
	if err != nil {
		return WrapExitError(ExitCommandError, "load model", err)
	}

	r := &repl{
		a:        a,
		out:      cmd.OutOrStdout(),
		errOut:   cmd.ErrOrStderr(),
		info:     info,
		template: o.template,
		system:   o.system,
	}
	r.reset()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	defer signal.Stop(sigCh)
	go func() {
		for {
			select {
			case <-sigCh:
				if r.generating.Load() {
					_ = a.sess.Abort()
					continue
				}
				cancel()
			case <-ctx.Done():
				return
			}
		}
	}()

	fmt.Fprintf(r.out, "loaded %s (context %d). /help for commands.\n", dashIfEmpty(info.Model.Description), info.ContextID)
	return r.loop(ctx, readLines(ctx, cmd.InOrStdin()))
}

// readLines feeds lines from in until EOF or ctx is done.
func readLines(ctx context.Context, in io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	return lines
}

func (r *repl) loop(ctx context.Context, lines <-chan string) error {
	for {
		fmt.Fprint(r.out, "> ")
		var line string
		select {
		case <-ctx.Done():
			fmt.Fprintln(r.out)
			return nil
		case l, ok := <-lines:
			if !ok {
				fmt.Fprintln(r.out)
				return nil
			}
			line = strings.TrimSpace(l)
		}
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "/") {
			quit, err := r.command(ctx, line)
			if err != nil {
				fmt.Fprintf(r.errOut, "error: %v\n", err)
			}
			if quit {
				return nil
			}
			continue
		}
		if err := r.turn(ctx, line); err != nil {
			fmt.Fprintf(r.errOut, "error: %v\n", err)
		}
	}
}

func (r *repl) reset() {
	r.history = r.history[:0]
	if r.system != "" {
		r.history = append(r.history, engine.ChatMessage{Role: "system", Content: r.system})
	}
}

// prompt renders msgs with the model's chat template, falling back to a plain
// transcript when the engine cannot format chats.
func (r *repl) prompt(ctx context.Context, msgs []engine.ChatMessage) string {
	if p, err := r.a.sess.FormatChat(ctx, msgs, r.template); err == nil {
		return p
	}
	var b strings.Builder
	for _, m := range msgs {
		fmt.Fprintf(&b, "%s: %s\n", m.Role, m.Content)
	}
	b.WriteString("assistant:")
	return b.String()
}

func (r *repl) turn(ctx context.Context, text string) error {
	msgs := append(append([]engine.ChatMessage(nil), r.history...), engine.ChatMessage{Role: "user", Content: text})
	p := r.a.cfg.Completion.WithPrompt(r.prompt(ctx, msgs))
	p.Stream = true

	r.generating.Store(true)
	res, err := complete(ctx, r.a.sess, p, r.out)
	r.generating.Store(false)
	fmt.Fprintln(r.out)
	if err != nil {
		return err
	}
	if res.StoppedEarly {
		fmt.Fprintln(r.errOut, "[interrupted]")
	}
	r.history = append(msgs, engine.ChatMessage{Role: "assistant", Content: res.Text})
	return nil
}

func (r *repl) command(ctx context.Context, line string) (quit bool, err error) {
	name, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)
	switch name {
	case "/quit", "/exit":
		return true, nil
	case "/help":
		fmt.Fprintln(r.out, "/save <path>    persist the session state")
		fmt.Fprintln(r.out, "/load <path>    restore a saved session state")
		fmt.Fprintln(r.out, "/tokens <text>  show the token ids of text")
		fmt.Fprintln(r.out, "/info           show model details")
		fmt.Fprintln(r.out, "/reset          forget the conversation")
		fmt.Fprintln(r.out, "/quit           exit")
	case "/save":
		if arg == "" {
			return false, fmt.Errorf("usage: /save <path>")
		}
		n, err := r.a.sess.SaveState(ctx, arg, 0)
		if err != nil {
			return false, err
		}
		fmt.Fprintf(r.out, "saved %d tokens to %s\n", n, arg)
	case "/load":
		if arg == "" {
			return false, fmt.Errorf("usage: /load <path>")
		}
		st, err := r.a.sess.LoadState(ctx, arg)
		if err != nil {
			return false, err
		}
		fmt.Fprintf(r.out, "restored %d tokens from %s\n", st.TokensLoaded, arg)
	case "/tokens":
		toks, err := r.a.sess.Tokenize(ctx, arg)
		if err != nil {
			return false, err
		}
		return false, renderTokens(r.out, toks)
	case "/info":
		return false, renderDetails(r.out, r.info)
	case "/reset":
		r.reset()
		fmt.Fprintln(r.out, "conversation cleared")
	default:
		return false, fmt.Errorf("unknown command %s (try /help)", name)
	}
	return false, nil
}
