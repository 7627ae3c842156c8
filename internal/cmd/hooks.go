package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/charmbracelet/lipgloss/tree"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/tec-more/odoo-plugins/internal/hooks"
	"github.com/tec-more/odoo-plugins/internal/style"
)

func newHooksCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hooks",
		Short: "List configured import and analysis hooks",
		Long: `List the hooks configured in <hooks_dir>/hooks.json and the built-in
hook names they may reference.

Events: pre-import, post-import, import-failed, analysis-completed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runHooksList(cmd.OutOrStdout())
		},
	}
	cmd.AddCommand(newHooksRunCmd(a))
	return cmd
}

func newHooksRunCmd(a *app) *cobra.Command {
	var source string
	cmd := &cobra.Command{
		Use:   "run EVENT",
		Short: "Fire the hooks of one event",
		Long: `Fire every hook configured for EVENT once, outside an import, and
report each result. Useful for checking hooks.json.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runHooksFire(cmd.Context(), cmd.OutOrStdout(), hooks.EventType(args[0]), source)
		},
	}
	cmd.Flags().StringVar(&source, "source", "", "source path passed to the hooks")
	return cmd
}

func (a *app) runHooksList(out io.Writer) error {
	runner, err := a.hookRunner()
	if err != nil {
		return err
	}

	dir := a.cfg.Import.GetHooksDir()
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(a.workDir, dir)
	}
	t := tree.Root(style.Bold.Render("Hooks") + style.Dim.Render(" "+filepath.Join(dir, hooks.ConfigFile))).
		Enumerator(tree.RoundedEnumerator).
		EnumeratorStyle(style.Subtle)

	configured := 0
	for _, event := range hooks.AllEventTypes {
		if !runner.HasHooks(event) {
			continue
		}
		node := tree.Root(style.Info.Render(string(event)))
		for _, h := range runner.GetHooks(event) {
			node.Child(hookLabel(h))
			configured++
		}
		t.Child(node)
	}
	if configured == 0 {
		t.Child(style.Dim.Render("(none configured)"))
	}
	fmt.Fprintln(out, t.String())

	builtins := tree.Root(style.Bold.Render("Builtins")).
		Enumerator(tree.RoundedEnumerator).
		EnumeratorStyle(style.Subtle)
	for _, name := range hooks.GetBuiltinNames() {
		builtins.Child(name)
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, builtins.String())
	return nil
}

func hookLabel(h hooks.HookConfig) string {
	label := string(h.Type) + ": "
	switch h.Type {
	case hooks.HookTypeBuiltin:
		label += h.Builtin
	default:
		label += h.Cmd
	}
	if h.Timeout > 0 {
		label += style.Dim.Render(fmt.Sprintf(" (timeout %ds)", h.Timeout))
	}
	return label
}

func (a *app) runHooksFire(ctx context.Context, out io.Writer, event hooks.EventType, source string) error {
	if !event.Valid() {
		return fmt.Errorf("unknown event %q", event)
	}
	runner, err := a.hookRunner()
	if err != nil {
		return err
	}
	if !runner.HasHooks(event) {
		fmt.Fprintf(out, "%s no hooks configured for %s\n", style.WarningPrefix, event)
		return nil
	}

	results := runner.Fire(hooks.HookContext{
		EventType: event,
		AuditDir:  a.cfg.Import.GetAuditDir(),
		ImportID:  uuid.NewString(),
		Source:    source,
		Ctx:       ctx,
	})

	var failed error
	for i, r := range results {
		h := runner.GetHooks(event)[i]
		switch {
		case r.Err != nil:
			fmt.Fprintf(out, "%s %s %s\n", style.ErrorPrefix, hookLabel(h), style.Dim.Render(r.Message))
			failed = errors.Join(failed, r.Err)
		case r.Block:
			fmt.Fprintf(out, "%s %s blocked: %s\n", style.WarningPrefix, hookLabel(h), r.Message)
		default:
			fmt.Fprintf(out, "%s %s %s\n", style.SuccessPrefix, hookLabel(h), style.Dim.Render(r.Message))
		}
	}
	return failed
}
