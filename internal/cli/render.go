package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"llamactx/internal/engine"
	"llamactx/internal/llmctx"
	"llamactx/pkg/types"
)

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func humanSize(n int64) string {
	if n < 0 {
		n = 0
	}
	return humanize.IBytes(uint64(n))
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func dashIfEmpty(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func renderModels(w io.Writer, models []types.Model) error {
	if len(models) == 0 {
		_, err := fmt.Fprintln(w, "no models found")
		return err
	}
	tw := newTable(w)
	fmt.Fprintln(tw, "NAME\tQUANT\tSIZE\tVALID\tPATH")
	for _, m := range models {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", m.Name, dashIfEmpty(m.Quant), humanSize(m.SizeBytes), yesNo(m.Valid), m.Path)
	}
	return tw.Flush()
}

func renderDetails(w io.Writer, info llmctx.OpenInfo) error {
	d := info.Model
	gpu := yesNo(info.GPU)
	if !info.GPU && info.ReasonNoGPU != "" {
		gpu += " (" + info.ReasonNoGPU + ")"
	}
	tw := newTable(w)
	fmt.Fprintf(tw, "context\t%d\n", info.ContextID)
	fmt.Fprintf(tw, "path\t%s\n", d.Path)
	fmt.Fprintf(tw, "description\t%s\n", dashIfEmpty(d.Description))
	fmt.Fprintf(tw, "size\t%s\n", humanSize(d.SizeBytes))
	fmt.Fprintf(tw, "parameters\t%d\n", d.NParams)
	fmt.Fprintf(tw, "vocab\t%d\n", d.NVocab)
	fmt.Fprintf(tw, "train context\t%d\n", d.NCtxTrain)
	fmt.Fprintf(tw, "chat template\t%s\n", yesNo(d.ChatTemplate))
	fmt.Fprintf(tw, "gpu\t%s\n", gpu)
	if err := tw.Flush(); err != nil {
		return err
	}
	if len(d.Metadata) == 0 {
		return nil
	}
	keys := make([]string, 0, len(d.Metadata))
	for k := range d.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fmt.Fprintln(w, "metadata:")
	for _, k := range keys {
		fmt.Fprintf(w, "  %s = %s\n", k, d.Metadata[k])
	}
	return nil
}

func stopReason(res engine.CompletionResult) string {
	switch {
	case res.StoppedEarly:
		return "interrupted"
	case res.StoppedWord:
		return "word " + strconv.Quote(res.StoppingWord)
	case res.StoppedLimit:
		return "limit"
	case res.StoppedEOS:
		return "eos"
	default:
		return "unknown"
	}
}

func renderSummary(w io.Writer, res engine.CompletionResult) error {
	line := fmt.Sprintf("%d tokens predicted, %d evaluated, %.2f tok/s, stop: %s",
		res.TokensPredicted, res.TokensEvaluated, res.Timings.PredictedPerSecond(), stopReason(res))
	if res.Truncated {
		line += ", truncated"
	}
	_, err := fmt.Fprintln(w, line)
	return err
}

func renderTokens(w io.Writer, tokens []int) error {
	ids := make([]string, len(tokens))
	for i, t := range tokens {
		ids[i] = strconv.Itoa(t)
	}
	_, err := fmt.Fprintf(w, "%d tokens\n%s\n", len(tokens), strings.Join(ids, " "))
	return err
}

func historyStatus(e types.HistoryEntry) string {
	switch {
	case e.Error != "":
		return "error: " + e.Error
	case e.StoppedEarly:
		return "stopped"
	default:
		return "ok"
	}
}

func renderHistory(w io.Writer, entries []types.HistoryEntry) error {
	if len(entries) == 0 {
		_, err := fmt.Fprintln(w, "no history")
		return err
	}
	tw := newTable(w)
	fmt.Fprintln(tw, "CREATED\tREQUEST\tCTX\tMODEL\tTOKENS\tDURATION\tSTATUS")
	for _, e := range entries {
		created := time.Unix(e.CreatedUnix, 0).UTC().Format("2006-01-02 15:04:05")
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%d/%d\t%dms\t%s\n",
			created, e.RequestID, e.ContextID, filepath.Base(e.Model),
			e.TokensPredicted, e.TokensEvaluated, e.DurationMS, historyStatus(e))
	}
	return tw.Flush()
}
