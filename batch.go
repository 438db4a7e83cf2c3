package mailmerge

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/zeebo/blake3"
	"golang.org/x/sync/errgroup"

	"github.com/aerissecure/mailmerge/internal/logging"
)

// Encoder persists a generated document in one output format.
type Encoder interface {
	// Extension is the file extension without the leading dot, e.g. "docx".
	Extension() string
	Encode(w io.Writer, doc *Document) error
}

// ErrorPolicy selects what a batch does when a row fails.
type ErrorPolicy int

const (
	// Abort stops at the first failing row and returns its error.
	Abort ErrorPolicy = iota
	// Continue records failing rows, finishes the remaining ones and returns
	// a *BatchError at the end.
	Continue
)

func (p ErrorPolicy) String() string {
	switch p {
	case Abort:
		return "abort"
	case Continue:
		return "continue"
	default:
		return "ErrorPolicy(" + strconv.Itoa(int(p)) + ")"
	}
}

// ParseErrorPolicy parses the String form of an ErrorPolicy.
func ParseErrorPolicy(s string) (ErrorPolicy, error) {
	switch strings.ToLower(s) {
	case "", "abort":
		return Abort, nil
	case "continue":
		return Continue, nil
	}
	return 0, fmt.Errorf("unknown error policy %q", s)
}

// Options configures a batch run.
type Options struct {
	Mapping          Mapping
	FilenameColumn   string
	OutputDir        string
	Encoder          Encoder
	Collision        Collision
	OnError          ErrorPolicy
	Workers          int  // <= 1 processes rows sequentially
	SubstituteTables bool // also substitute tokens in table cells
	Manifest         bool // write manifest.json into OutputDir
	TemplateName     string
	RunID            string       // tagged onto every log record as run_id
	Logger           *slog.Logger // untagged; Generate adds run_id itself
}

// Output describes one written file.
type Output struct {
	Row       int    `json:"row"`
	Name      string `json:"name"`
	Path      string `json:"-"`
	Digest    string `json:"blake3"`
	Overwrote bool   `json:"overwrote,omitempty"`
}

// Result summarizes a batch run.
type Result struct {
	RunID   string
	Written int // number of documents written, overwrites included
	Outputs []Output
	Failed  []*RowError
}

type rowJob struct {
	row  Row
	name Name
}

// Generate renders one document per row and writes each to
// <OutputDir>/<name>.<ext>, creating OutputDir if needed.  idx may be nil, in
// which case the template is indexed first.  Rows are named in order before any
// work starts, so names do not depend on Workers.
func Generate(ctx context.Context, tmpl *Template, idx *Index, rows []Row, opts Options) (*Result, error) {
	if tmpl == nil {
		return nil, fmt.Errorf("%w: no template", ErrMalformedTemplate)
	}
	if opts.Encoder == nil {
		return nil, errors.New("no encoder configured")
	}
	if opts.FilenameColumn == "" {
		return nil, errors.New("no filename column configured")
	}
	if idx == nil {
		idx = NewIndex(tmpl)
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	log = logging.WithRun(log, opts.RunID)

	outDir := opts.OutputDir
	if outDir == "" {
		outDir = "."
	}
	if err := ensureWritable(outDir); err != nil {
		return nil, err
	}

	renderer := NewRenderer(tmpl, idx, opts.Mapping, RenderOptions{SubstituteTables: opts.SubstituteTables})
	required := append(opts.Mapping.Columns(), opts.FilenameColumn)
	res := &Result{RunID: opts.RunID}

	log.Info("generating documents",
		"template", opts.TemplateName,
		"rows", len(rows),
		"variables", len(idx.Variables()),
		"mapped", len(opts.Mapping),
		"output", outDir,
		"format", opts.Encoder.Extension())

	// ---- name every row up front ----
	var runErr error
	namer := NewNamer(opts.Collision)
	jobs := make([]rowJob, 0, len(rows))
	for _, row := range rows {
		if col, ok := missingColumn(row, required); ok {
			rerr := &RowError{Row: row.Number, Column: col, Err: ErrMissingColumn}
			if opts.OnError == Abort {
				res.Failed = append(res.Failed, rerr)
				runErr = rerr
				break
			}
			log.Warn("skipping row", "row", row.Number, "error", rerr)
			res.Failed = append(res.Failed, rerr)
			continue
		}
		value, _ := row.Text(opts.FilenameColumn)
		name := namer.Next(row.Number, value)
		switch {
		case name.Fallback:
			log.Warn("filename column is empty after sanitizing, using fallback",
				"row", row.Number, "value", value, "name", name.Base)
		case name.Renamed:
			log.Warn("filename collision, added suffix", "row", row.Number, "name", name.Base)
		case name.Reused:
			log.Warn("filename collision, earlier output will be overwritten", "row", row.Number, "name", name.Base)
		}
		jobs = append(jobs, rowJob{row: row, name: name})
	}

	// ---- render and write ----
	var mu sync.Mutex
	process := func(j rowJob) error {
		out, err := writeRow(renderer, opts.Encoder, outDir, j)
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			rerr := &RowError{Row: j.row.Number, Err: err}
			res.Failed = append(res.Failed, rerr)
			if opts.OnError == Abort {
				return rerr
			}
			log.Warn("row failed", "row", j.row.Number, "error", err)
			return nil
		}
		log.Debug("wrote document", "row", out.Row, "path", out.Path)
		res.Outputs = append(res.Outputs, out)
		res.Written++
		return nil
	}

	switch {
	case runErr != nil:
		// aborted while naming; nothing is written
	case opts.Workers <= 1:
		for _, j := range jobs {
			if err := ctx.Err(); err != nil {
				runErr = err
				break
			}
			if err := process(j); err != nil {
				runErr = err
				break
			}
		}
	default:
		runErr = runParallel(ctx, jobs, opts.Workers, process)
	}

	slices.SortFunc(res.Outputs, func(a, b Output) int { return a.Row - b.Row })
	slices.SortFunc(res.Failed, func(a, b *RowError) int { return a.Row - b.Row })

	if opts.Manifest {
		m := newManifest(opts, res)
		if err := m.writeFile(filepath.Join(outDir, ManifestName)); err != nil {
			return res, errors.Join(runErr, err)
		}
	}

	if runErr != nil {
		return res, runErr
	}

	log.Info("documents generated", "written", res.Written, "failed", len(res.Failed))
	if len(res.Failed) > 0 {
		return res, &BatchError{Failed: res.Failed}
	}
	return res, nil
}

// runParallel processes jobs on a bounded worker pool.  Jobs sharing a name
// stay in one task so overwrites keep row order.
func runParallel(ctx context.Context, jobs []rowJob, workers int, process func(rowJob) error) error {
	var order []string
	groups := make(map[string][]rowJob)
	for _, j := range jobs {
		key := strings.ToLower(j.name.Base)
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], j)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, key := range order {
		group := groups[key]
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			for _, j := range group {
				if err := gctx.Err(); err != nil {
					return err
				}
				if err := process(j); err != nil {
					return err
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// createOutput opens an output file for writing.
var createOutput = func(path string) (io.WriteCloser, error) { return os.Create(path) }

func writeRow(r *Renderer, enc Encoder, outDir string, j rowJob) (Output, error) {
	doc := r.Render(j.row)
	path := filepath.Join(outDir, j.name.Base+"."+enc.Extension())

	f, err := createOutput(path)
	if err != nil {
		return Output{}, fmt.Errorf("%w: %v", ErrOutputNotWritable, err)
	}
	h := blake3.New()
	if err := enc.Encode(io.MultiWriter(f, h), doc); err != nil {
		f.Close()
		os.Remove(path)
		return Output{}, fmt.Errorf("encode %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return Output{}, fmt.Errorf("close %s: %w", path, err)
	}

	return Output{
		Row:       j.row.Number,
		Name:      filepath.Base(path),
		Path:      path,
		Digest:    hex.EncodeToString(h.Sum(nil)),
		Overwrote: j.name.Reused,
	}, nil
}

// ensureWritable creates dir if absent and probes it with a temporary file.
func ensureWritable(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("%w: %v", ErrOutputNotWritable, err)
	}
	f, err := os.CreateTemp(dir, ".mailmerge-*")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrOutputNotWritable, err)
	}
	name := f.Name()
	f.Close()
	return os.Remove(name)
}

func missingColumn(row Row, required []string) (string, bool) {
	for _, c := range required {
		if !row.Has(c) {
			return c, true
		}
	}
	return "", false
}
