package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dd0wney/cluso-nodegraph/pkg/registry"
)

var opsCmd = &cobra.Command{
	Use:   "ops [prefix]",
	Short: "List registered operations and their signatures",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runOps,
}

func runOps(cmd *cobra.Command, args []string) error {
	prefix := ""
	if len(args) == 1 {
		prefix = args[0]
	}

	out := cmd.OutOrStdout()
	n := 0
	for _, sig := range app.reg.Signatures() {
		if !strings.HasPrefix(sig.Name, prefix) {
			continue
		}
		fmt.Fprintln(out, formatSignature(sig))
		n++
	}
	if n == 0 {
		return fmt.Errorf("no operations match %q", prefix)
	}
	fmt.Fprintln(out, dimStyle.Render(fmt.Sprintf("%d operations", n)))
	return nil
}

func formatSignature(sig registry.Signature) string {
	params := make([]string, 0, len(sig.Params))
	for _, p := range sig.Params {
		s := p.Name + ": " + typeStyle.Render(p.Type.String())
		switch {
		case p.AcceptsList:
			s += "[]"
		case p.Default != nil:
			s += dimStyle.Render(" = " + p.Default.String())
		}
		params = append(params, s)
	}

	line := fmt.Sprintf("%s(%s) -> %s", nameStyle.Render(sig.Name), strings.Join(params, ", "), typeStyle.Render(sig.Returns.String()))
	if sig.Elementwise {
		line += dimStyle.Render(" [elementwise over " + sig.ElementwiseParam + "]")
	}
	return line
}
