package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tec-more/odoo-plugins/internal/backlog"
	"github.com/tec-more/odoo-plugins/internal/importer"
	"github.com/tec-more/odoo-plugins/internal/outline"
	"github.com/tec-more/odoo-plugins/internal/style"
)

type importOpts struct {
	Project string
	Hint    string
	DryRun  bool
	Output  string
}

func newImportCmd(a *app) *cobra.Command {
	var opts importOpts
	cmd := &cobra.Command{
		Use:   "import PATH...",
		Short: "Import outlines into a product backlog",
		Long: `Import one or more outline files into a product backlog.

Directories are searched for .txt, .md, .json and .yaml files. Imports run
concurrently, bounded by import.max_concurrent. Each file fires the
pre-import hooks before parsing and post-import or import-failed hooks
afterwards.

Records are kept in memory for the run; the command reports what was
created.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runImport(cmd.Context(), cmd.OutOrStdout(), args, opts)
		},
	}
	cmd.Flags().StringVarP(&opts.Project, "project", "p", "Product Backlog", "name of the receiving product backlog")
	cmd.Flags().StringVar(&opts.Hint, "hint", "", "format hint for every file (txt, md, json, yaml)")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "parse without creating records")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", outputAuto, "output format (auto, tree, json)")
	cmd.Flags().Int("max-concurrent", 0, "parallel imports (0 = unlimited)")
	_ = a.v.BindPFlag("import.max_concurrent", cmd.Flags().Lookup("max-concurrent"))
	return cmd
}

func (a *app) runImport(ctx context.Context, out io.Writer, paths []string, opts importOpts) error {
	runner, err := a.hookRunner()
	if err != nil {
		return err
	}

	store := backlog.NewMemoryStore()
	project := store.AddProject("project", opts.Project)

	im := importer.New(a.fs, store, importer.Options{
		Parser:        a.parser(),
		Hooks:         runner,
		Logger:        a.logger,
		AuditDir:      a.cfg.Import.GetAuditDir(),
		MaxConcurrent: a.cfg.Import.GetMaxConcurrent(),
	})

	files, err := a.expandPaths(im, paths)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return errors.New("no outline files found")
	}

	var hint outline.Format
	if opts.Hint != "" {
		hint = outline.FormatFromExt(opts.Hint)
	}
	reqs := make([]importer.Request, len(files))
	for i, f := range files {
		reqs[i] = importer.Request{
			Path:        f,
			Hint:        hint,
			ContainerID: project.ID,
			DryRun:      opts.DryRun,
		}
	}

	a.logger.Info("importing", zap.Int("files", len(files)), zap.Bool("dry_run", opts.DryRun))
	results, importErr := im.ImportAll(ctx, reqs)

	if resolveOutput(out, opts.Output) == outputJSON {
		if err := writeJSON(out, results); err != nil {
			return err
		}
		return importErr
	}

	for _, res := range results {
		if res == nil {
			continue
		}
		if res.Status == importer.StatusFailed {
			fmt.Fprintf(out, "%s %s: %s\n", style.ErrorPrefix, res.Source, res.Message)
			continue
		}
		fmt.Fprintf(out, "%s %s: %s\n", style.SuccessPrefix, res.Source, res.Message)
	}

	if !opts.DryRun {
		fmt.Fprintln(out)
		fmt.Fprintln(out, renderBacklog(store, project))
		points, _ := store.TotalStoryPoints(project.ID)
		b, s, t := store.Counts()
		fmt.Fprintf(out, "\n%s %d backlogs, %d stories, %d tasks, %g story points\n",
			style.Dim.Render("Total:"), b-1, s, t, points)
	}

	counts := im.Registry().CountByStatus()
	if failed := counts[importer.StatusFailed]; failed > 0 {
		fmt.Fprintf(out, "%s %d of %d imports failed\n", style.WarningPrefix, failed, len(results))
	}
	return importErr
}

// expandPaths replaces directories with the outline files inside them.
func (a *app) expandPaths(im *importer.Importer, paths []string) ([]string, error) {
	var files []string
	for _, p := range paths {
		isDir, err := afero.IsDir(a.fs, p)
		if err != nil || !isDir {
			// Missing files are reported by the import itself.
			files = append(files, p)
			continue
		}
		found, err := im.Discover(p)
		if err != nil {
			return nil, fmt.Errorf("searching %s: %w", p, err)
		}
		files = append(files, found...)
	}
	return files, nil
}
