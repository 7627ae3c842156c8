// Package importer drives an uploaded outline file through decoding,
// lifecycle hooks, parsing and materialization into backlog records.
package importer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tec-more/odoo-plugins/internal/backlog"
	"github.com/tec-more/odoo-plugins/internal/hooks"
	"github.com/tec-more/odoo-plugins/internal/outline"
)

// Common errors
var (
	ErrBlocked = errors.New("import blocked by hook")
	ErrNoStore = errors.New("no backlog store configured")
)

// DefaultMaxHistory bounds the status history kept per import.
const DefaultMaxHistory = 16

// Request describes one import.
type Request struct {
	// Path of the source file on the importer's filesystem.
	Path string

	// Hint overrides the format derived from the file extension.
	Hint outline.Format

	// ContainerID is the backlog that receives the tree. Required unless
	// DryRun is set.
	ContainerID string

	// DryRun parses without creating records.
	DryRun bool
}

// Result is the outcome of one import.
type Result struct {
	ID      string             `json:"id"`
	Source  string             `json:"source"`
	Format  outline.Format     `json:"format"`
	Status  Status             `json:"status"`
	Message string             `json:"message,omitempty"`
	Nodes   []*outline.Node    `json:"nodes,omitempty"`
	Created *backlog.Result    `json:"created,omitempty"`
	Hooks   []hooks.HookResult `json:"-"`
	Err     error              `json:"-"`
}

// Options configures an Importer. Zero values select defaults.
type Options struct {
	Parser        *outline.Parser
	Hooks         *hooks.HookRunner
	Registry      *Registry
	Logger        *zap.Logger
	AuditDir      string
	MaxConcurrent int // 0 = unlimited
	MaxHistory    int
}

// Importer runs imports. It is safe for concurrent use; each import owns
// its parse state.
type Importer struct {
	fs            afero.Fs
	store         backlog.Store
	parser        *outline.Parser
	hooks         *hooks.HookRunner
	registry      *Registry
	logger        *zap.Logger
	auditDir      string
	maxConcurrent int
	maxHistory    int
}

// New creates an Importer reading from fs and writing to store. store may
// be nil when only dry runs are made.
func New(fs afero.Fs, store backlog.Store, opts Options) *Importer {
	if opts.Parser == nil {
		opts.Parser = outline.NewParser(outline.Options{})
	}
	if opts.Registry == nil {
		opts.Registry = NewRegistry()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.MaxHistory == 0 {
		opts.MaxHistory = DefaultMaxHistory
	}
	return &Importer{
		fs:            fs,
		store:         store,
		parser:        opts.Parser,
		hooks:         opts.Hooks,
		registry:      opts.Registry,
		logger:        opts.Logger,
		auditDir:      opts.AuditDir,
		maxConcurrent: opts.MaxConcurrent,
		maxHistory:    opts.MaxHistory,
	}
}

// Registry returns the status registry shared by this importer's imports.
func (im *Importer) Registry() *Registry {
	return im.registry
}

// Import runs a single import. On failure the returned Result is still
// populated with the failed status and message alongside the error.
func (im *Importer) Import(ctx context.Context, req Request) (*Result, error) {
	id := uuid.NewString()
	tracker := im.registry.GetOrCreate(id, req.Path, im.maxHistory)
	log := im.logger.With(zap.String("import_id", id), zap.String("source", req.Path))

	hint := req.Hint
	if hint == "" {
		hint = outline.FormatFromExt(filepath.Ext(req.Path))
	}
	res := &Result{ID: id, Source: req.Path, Format: hint, Status: StatusPending}

	hctx := hooks.HookContext{
		AuditDir: im.auditDir,
		ImportID: id,
		Source:   req.Path,
		Format:   hint,
		Ctx:      ctx,
	}

	fail := func(err error) (*Result, error) {
		msg := failureMessage(req.Path, err)
		tracker.Update(StatusFailed, msg)
		res.Status = StatusFailed
		res.Message = msg
		res.Err = err
		log.Warn("import failed", zap.Error(err))

		fc := hctx
		fc.EventType = hooks.EventImportFailed
		fc.Err = err
		res.Hooks = append(res.Hooks, im.hooks.Fire(fc)...)
		return res, err
	}

	if !req.DryRun {
		if req.ContainerID == "" {
			return fail(backlog.ErrContainerRequired)
		}
		if im.store == nil {
			return fail(ErrNoStore)
		}
	}

	tracker.Update(StatusParsing, "")
	res.Status = StatusParsing
	log.Debug("reading source", zap.String("format", string(hint)))

	data, err := afero.ReadFile(im.fs, req.Path)
	if err != nil {
		return fail(fmt.Errorf("reading %s: %w", req.Path, err))
	}
	text, err := outline.DecodeText(data, hint)
	if err != nil {
		return fail(&outline.ParseError{Format: hint, Err: err})
	}

	pre := hctx
	pre.EventType = hooks.EventPreImport
	pre.Text = text
	preResults := im.hooks.Fire(pre)
	res.Hooks = append(res.Hooks, preResults...)
	if blocked, ok := hooks.Blocked(preResults); ok {
		return fail(fmt.Errorf("%w: %s", ErrBlocked, strings.TrimSpace(blocked.Message)))
	}

	nodes, err := im.parser.Parse(text, hint)
	if err != nil {
		return fail(err)
	}
	res.Nodes = nodes
	tracker.Update(StatusParsed, fmt.Sprintf("%d nodes", outline.Count(nodes)))
	res.Status = StatusParsed
	log.Debug("parsed outline", zap.Int("roots", len(nodes)), zap.Int("nodes", outline.Count(nodes)))

	if !req.DryRun {
		created, err := backlog.Materialize(ctx, im.store, req.ContainerID, nodes)
		if err != nil {
			return fail(err)
		}
		res.Created = created
		msg := fmt.Sprintf("created %d backlogs, %d stories, %d tasks",
			len(created.Backlogs), len(created.Stories), len(created.Tasks))
		tracker.Update(StatusMaterialized, msg)
		res.Status = StatusMaterialized
		res.Message = msg
	}

	post := hctx
	post.EventType = hooks.EventPostImport
	post.Nodes = nodes
	res.Hooks = append(res.Hooks, im.hooks.Fire(post)...)

	log.Info("import finished", zap.String("status", string(res.Status)), zap.Int("nodes", outline.Count(nodes)))
	return res, nil
}

// ImportAll runs the requests concurrently, bounded by MaxConcurrent.
// Results are returned in request order. A failing import does not stop
// the others; the returned error joins every failure.
func (im *Importer) ImportAll(ctx context.Context, reqs []Request) ([]*Result, error) {
	results := make([]*Result, len(reqs))
	errs := make([]error, len(reqs))

	var g errgroup.Group
	if im.maxConcurrent > 0 {
		g.SetLimit(im.maxConcurrent)
	}
	for i, req := range reqs {
		i, req := i, req
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				errs[i] = err
				return nil
			}
			results[i], errs[i] = im.Import(ctx, req)
			return nil
		})
	}
	_ = g.Wait()

	return results, errors.Join(errs...)
}

// Discover lists the importable files under dir: files whose extension maps
// to a known format, sorted by path. Hidden directories are skipped.
func (im *Importer) Discover(dir string) ([]string, error) {
	var paths []string
	err := afero.Walk(im.fs, dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if path != dir && strings.HasPrefix(info.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if outline.FormatFromExt(filepath.Ext(path)).Known() {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", dir, err)
	}
	sort.Strings(paths)
	return paths, nil
}

func failureMessage(source string, err error) string {
	if source == "" {
		source = "source"
	}
	var perr *outline.ParseError
	if errors.As(err, &perr) {
		return fmt.Sprintf("Failed to parse %s: %v", source, perr.Err)
	}
	return fmt.Sprintf("Failed to import %s: %v", source, err)
}
