package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dd0wney/cluso-nodegraph/pkg/demo"
	"github.com/dd0wney/cluso-nodegraph/pkg/eval"
	"github.com/dd0wney/cluso-nodegraph/pkg/logging"
	"github.com/dd0wney/cluso-nodegraph/pkg/value"
)

var (
	demoEdit    bool
	demoSets    []string
	demoCompact bool

	demoCmd = &cobra.Command{
		Use:   "demo [name]",
		Short: "Evaluate an example network",
		Long: `Builds and evaluates an example network. With --edit or --set the
network is changed after the first pass and evaluated again, showing which
nodes were recomputed. Without a name the available demos are listed.`,
		Example: `  nodegraph demo numbers --edit
  nodegraph demo compound --set compound1/translate1.offset=0,120
  nodegraph demo shapes --set colorize1.stroke=#ff8800 --trace`,
		Args: cobra.MaximumNArgs(1),
		RunE: runDemo,
	}
)

func init() {
	demoCmd.Flags().BoolVar(&demoEdit, "edit", false, "apply the demo's built-in edit and evaluate again")
	demoCmd.Flags().StringArrayVar(&demoSets, "set", nil, "node.port=value edit applied before the second pass (repeatable)")
	demoCmd.Flags().BoolVar(&demoCompact, "compact", false, "print compact JSON")
}

// passReport is the JSON form of one evaluation pass
type passReport struct {
	Pass     string      `json:"pass"`
	Edits    []string    `json:"edits,omitempty"`
	Result   value.Value `json:"result"`
	Computed int         `json:"computed"`
	Cached   int         `json:"cached"`
	Reused   int         `json:"reused"`
	Failed   int         `json:"failed"`
	Duration string      `json:"duration"`
}

type demoReport struct {
	Demo   string       `json:"demo"`
	Passes []passReport `json:"passes"`
}

func runDemo(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return listDemos(cmd)
	}

	d, ok := demo.Lookup(args[0])
	if !ok {
		return fmt.Errorf("unknown demo %q (available: %s)", args[0], strings.Join(demo.Names(), ", "))
	}

	lib, err := d.Build(app.reg)
	if err != nil {
		return err
	}
	e, err := newEvaluator(lib, app.cfg)
	if err != nil {
		return err
	}
	defer e.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report := demoReport{Demo: d.Name}
	first, err := evaluatePass(ctx, e, nil)
	if err != nil {
		return err
	}
	report.Passes = append(report.Passes, first)

	var edits []string
	if demoEdit {
		msg, err := d.Edit(lib)
		if err != nil {
			return err
		}
		edits = append(edits, msg)
	}
	for _, s := range demoSets {
		msg, err := demo.Set(lib, s)
		if err != nil {
			return err
		}
		edits = append(edits, msg)
	}
	if len(edits) > 0 {
		second, err := evaluatePass(ctx, e, edits)
		if err != nil {
			return err
		}
		report.Passes = append(report.Passes, second)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	if !demoCompact {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(report); err != nil {
		return err
	}

	printSummary(cmd, report)
	return nil
}

func evaluatePass(ctx context.Context, e *eval.Evaluator, edits []string) (passReport, error) {
	v, err := e.EvaluateRendered(ctx)
	st := e.LastPass()
	app.recordPass(st, err)
	if err != nil {
		app.logger.Error("evaluation failed", logging.Error(err))
		return passReport{}, err
	}
	return passReport{
		Pass:     st.ID,
		Edits:    edits,
		Result:   v,
		Computed: st.Computed,
		Cached:   st.Cached,
		Reused:   st.Reused,
		Failed:   st.Failed,
		Duration: st.Duration.String(),
	}, nil
}

func listDemos(cmd *cobra.Command) error {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, titleStyle.Render("Demos"))
	for _, name := range demo.Names() {
		d, _ := demo.Lookup(name)
		fmt.Fprintf(out, "  %s  %s\n", nameStyle.Render(fmt.Sprintf("%-10s", name)), d.Description)
	}
	return nil
}

// printSummary writes a human readable recap to stderr so stdout stays JSON
func printSummary(cmd *cobra.Command, r demoReport) {
	var b strings.Builder
	for i, p := range r.Passes {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "pass %d  %s\n", i+1, dimStyle.Render(p.Pass))
		for _, e := range p.Edits {
			fmt.Fprintf(&b, "  %s\n", typeStyle.Render(e))
		}
		fmt.Fprintf(&b, "  result    %s\n", p.Result)
		fmt.Fprintf(&b, "  computed  %d  cached %d  reused %d\n", p.Computed, p.Cached, p.Reused)
		fmt.Fprintf(&b, "  duration  %s", p.Duration)
	}
	fmt.Fprintln(cmd.ErrOrStderr(), boxStyle.Render(b.String()))
	fmt.Fprintln(cmd.ErrOrStderr(), successStyle.Render("✓ "+r.Demo+" evaluated"))
}
