// Command mailmerge fills a DOCX template once per row of a spreadsheet or CSV
// file and writes one document per row.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/google/uuid"

	"github.com/aerissecure/mailmerge"
	"github.com/aerissecure/mailmerge/docx"
	"github.com/aerissecure/mailmerge/internal/config"
	"github.com/aerissecure/mailmerge/internal/logging"
	"github.com/aerissecure/mailmerge/table"
)

const version = "0.2.0"

// Globals are flags shared by every command.
type Globals struct {
	LogLevel  string `name:"log-level" help:"Log level (debug, info, warn, error)" default:"info" env:"MAILMERGE_LOG_LEVEL"`
	LogFormat string `name:"log-format" help:"Log format (text, json)" default:"text" env:"MAILMERGE_LOG_FORMAT"`

	out io.Writer
	log *slog.Logger
}

// CLI defines the command-line interface for mailmerge.
type CLI struct {
	Globals

	Vars      VarsCmd      `cmd:"" help:"List the variables of a template"`
	Columns   ColumnsCmd   `cmd:"" help:"List the columns of a data file"`
	Generate  GenerateCmd  `cmd:"" help:"Generate one document per data row"`
	Preview   PreviewCmd   `cmd:"" help:"Render one data row as HTML on stdout"`
	ExportCSV ExportCSVCmd `cmd:"" name:"export-csv" help:"Write a data file as normalized CSV"`
	Version   VersionCmd   `cmd:"" help:"Print version information"`
}

func (g *Globals) setup(stdout, stderr io.Writer) error {
	level, err := logging.ParseLevel(g.LogLevel)
	if err != nil {
		return err
	}
	format, err := logging.ParseFormat(g.LogFormat)
	if err != nil {
		return err
	}
	g.out = stdout
	g.log = logging.New(stderr, level, format)
	return nil
}

// -----------------------------------------------------------------------------
// vars
// -----------------------------------------------------------------------------

// VarsCmd lists template variables.
type VarsCmd struct {
	Template string `arg:"" help:"DOCX template" type:"existingfile"`
}

func (c *VarsCmd) Run(g *Globals) error {
	src, err := docx.Open(c.Template)
	if err != nil {
		return err
	}
	idx := mailmerge.NewIndex(src.Template)
	tableOnly := make(map[string]bool)
	for _, v := range idx.InTablesOnly() {
		tableOnly[v] = true
	}
	for _, v := range idx.Variables() {
		if tableOnly[v] {
			fmt.Fprintf(g.out, "%s\t(table only)\n", v)
			continue
		}
		fmt.Fprintf(g.out, "%s\t%d\n", v, len(idx.Positions(v)))
	}
	return nil
}

// -----------------------------------------------------------------------------
// columns
// -----------------------------------------------------------------------------

// ColumnsCmd lists data columns.
type ColumnsCmd struct {
	Data  string `arg:"" help:"Data file (xlsx, xlsm, csv, tsv, txt)" type:"existingfile"`
	Sheet string `help:"Worksheet name (default: first sheet)"`
}

func (c *ColumnsCmd) Run(g *Globals) error {
	ds, err := table.Load(c.Data, table.Options{Sheet: c.Sheet})
	if err != nil {
		return err
	}
	for _, col := range ds.Columns {
		fmt.Fprintln(g.out, col)
	}
	fmt.Fprintf(g.out, "%d rows\n", len(ds.Rows))
	return nil
}

// -----------------------------------------------------------------------------
// generate
// -----------------------------------------------------------------------------

// GenerateCmd runs a batch.  Flags override values from --job.
type GenerateCmd struct {
	Job              string            `help:"YAML job file" type:"existingfile" env:"MAILMERGE_JOB"`
	Template         string            `short:"t" help:"DOCX template" type:"path"`
	Data             string            `short:"d" help:"Data file" type:"path"`
	Sheet            string            `help:"Worksheet name (default: first sheet)"`
	Output           string            `short:"o" help:"Output directory" type:"path"`
	FilenameColumn   string            `short:"n" name:"filename-column" help:"Column used for output file names"`
	Map              map[string]string `short:"m" help:"Variable to column mapping, e.g. name=Name"`
	AutoMap          bool              `name:"auto-map" help:"Map variables to columns with the same name (case-insensitive)"`
	Collision        string            `help:"Duplicate file name policy (suffix, overwrite)"`
	OnError          string            `name:"on-error" help:"Row failure policy (abort, continue)"`
	Workers          int               `short:"w" help:"Rows processed concurrently"`
	SubstituteTables bool              `name:"substitute-tables" help:"Also substitute variables inside tables"`
	Manifest         bool              `help:"Write manifest.json into the output directory"`
	Format           string            `short:"f" help:"Output format (docx, html)"`
}

func (c *GenerateCmd) job() (*config.Job, error) {
	job := &config.Job{}
	if c.Job != "" {
		var err error
		if job, err = config.LoadFile(c.Job); err != nil {
			return nil, err
		}
	}
	override := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	override(&job.Template, c.Template)
	override(&job.Data, c.Data)
	override(&job.Sheet, c.Sheet)
	override(&job.Output, c.Output)
	override(&job.FilenameColumn, c.FilenameColumn)
	override(&job.Collision, c.Collision)
	override(&job.OnError, c.OnError)
	override(&job.Format, c.Format)
	if c.Workers > 0 {
		job.Workers = c.Workers
	}
	job.AutoMap = job.AutoMap || c.AutoMap
	job.SubstituteTables = job.SubstituteTables || c.SubstituteTables
	job.Manifest = job.Manifest || c.Manifest
	job.Mapping = job.ColumnMapping().Merge(c.Map)

	if job.Output == "" {
		job.Output = "output_documents"
	}
	if job.Format == "" {
		job.Format = "docx"
	}
	if job.Template == "" || job.Data == "" {
		return nil, fmt.Errorf("a template and a data file are required")
	}
	if job.FilenameColumn == "" {
		return nil, fmt.Errorf("a filename column is required")
	}
	return job, job.Validate()
}

func (c *GenerateCmd) Run(g *Globals) error {
	job, err := c.job()
	if err != nil {
		return err
	}
	in, err := loadInputs(job.Template, job.Data, job.Sheet)
	if err != nil {
		return err
	}

	mapping := mailmerge.Mapping(job.Mapping)
	if job.AutoMap {
		mapping = mailmerge.AutoMap(in.index.Variables(), in.data.Columns).Merge(mapping)
	}
	if err := mapping.Validate(in.index, in.data.Columns); err != nil {
		return err
	}
	if unmapped := unmappedVariables(in.index, mapping); len(unmapped) > 0 {
		g.log.Warn("variables without a mapping are left as-is", "variables", strings.Join(unmapped, ","))
	}

	collision, _ := mailmerge.ParseCollision(job.Collision)
	onError, _ := mailmerge.ParseErrorPolicy(job.OnError)
	var enc mailmerge.Encoder = in.source.Encoder()
	if job.Format == "html" {
		enc = docx.HTMLEncoder{}
	}

	runID := uuid.New().String()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	res, err := mailmerge.Generate(ctx, in.source.Template, in.index, in.data.Rows, mailmerge.Options{
		Mapping:          mapping,
		FilenameColumn:   job.FilenameColumn,
		OutputDir:        job.Output,
		Encoder:          enc,
		Collision:        collision,
		OnError:          onError,
		Workers:          job.Workers,
		SubstituteTables: job.SubstituteTables,
		Manifest:         job.Manifest,
		TemplateName:     in.source.Template.Name,
		RunID:            runID,
		Logger:           g.log,
	})
	if res != nil {
		fmt.Fprintf(g.out, "%d documents generated in %s\n", res.Written, job.Output)
	}
	return err
}

// -----------------------------------------------------------------------------
// preview
// -----------------------------------------------------------------------------

// PreviewCmd renders a single row.
type PreviewCmd struct {
	Template         string            `arg:"" help:"DOCX template" type:"existingfile"`
	Data             string            `arg:"" help:"Data file" type:"existingfile"`
	Sheet            string            `help:"Worksheet name (default: first sheet)"`
	Row              int               `short:"r" help:"1-based data row to render" default:"1"`
	Map              map[string]string `short:"m" help:"Variable to column mapping, e.g. name=Name"`
	AutoMap          bool              `name:"auto-map" help:"Map variables to columns with the same name (case-insensitive)" default:"true" negatable:""`
	SubstituteTables bool              `name:"substitute-tables" help:"Also substitute variables inside tables"`
}

func (c *PreviewCmd) Run(g *Globals) error {
	in, err := loadInputs(c.Template, c.Data, c.Sheet)
	if err != nil {
		return err
	}
	if c.Row < 1 || c.Row > len(in.data.Rows) {
		return fmt.Errorf("row %d out of range (1-%d)", c.Row, len(in.data.Rows))
	}

	mapping := mailmerge.Mapping(c.Map).Merge(nil)
	if c.AutoMap {
		mapping = mailmerge.AutoMap(in.index.Variables(), in.data.Columns).Merge(mapping)
	}
	r := mailmerge.NewRenderer(in.source.Template, in.index, mapping, mailmerge.RenderOptions{SubstituteTables: c.SubstituteTables})
	return docx.HTMLEncoder{}.Encode(g.out, r.Render(in.data.Rows[c.Row-1]))
}

// -----------------------------------------------------------------------------
// export-csv
// -----------------------------------------------------------------------------

// ExportCSVCmd converts a data file to CSV.
type ExportCSVCmd struct {
	Data  string `arg:"" help:"Data file" type:"existingfile"`
	Sheet string `help:"Worksheet name (default: first sheet)"`
	Out   string `short:"o" help:"Output CSV file (default: stdout)" type:"path"`
}

func (c *ExportCSVCmd) Run(g *Globals) error {
	ds, err := table.Load(c.Data, table.Options{Sheet: c.Sheet})
	if err != nil {
		return err
	}
	if c.Out == "" {
		return table.WriteCSV(g.out, ds)
	}
	f, err := os.Create(c.Out)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", c.Out, err)
	}
	if err := table.WriteCSV(f, ds); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// VersionCmd prints the version.
type VersionCmd struct{}

func (c *VersionCmd) Run(g *Globals) error {
	fmt.Fprintf(g.out, "mailmerge version %s\n", version)
	return nil
}

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

type inputs struct {
	source *docx.Source
	index  *mailmerge.Index
	data   *mailmerge.Dataset
}

func loadInputs(templatePath, dataPath, sheet string) (*inputs, error) {
	src, err := docx.Open(templatePath)
	if err != nil {
		return nil, err
	}
	ds, err := table.Load(dataPath, table.Options{Sheet: sheet})
	if err != nil {
		return nil, err
	}
	return &inputs{source: src, index: mailmerge.NewIndex(src.Template), data: ds}, nil
}

func unmappedVariables(idx *mailmerge.Index, m mailmerge.Mapping) []string {
	var out []string
	for _, v := range idx.Variables() {
		if _, ok := m[v]; !ok {
			out = append(out, v)
		}
	}
	return out
}

func run(args []string, stdout, stderr io.Writer) error {
	var cli CLI
	parser, err := kong.New(&cli,
		kong.Name("mailmerge"),
		kong.Description("Generate one document per data row from a DOCX template"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{Compact: true}),
		kong.Writers(stdout, stderr),
	)
	if err != nil {
		return err
	}
	ctx, err := parser.Parse(args)
	if err != nil {
		return err
	}
	if err := cli.Globals.setup(stdout, stderr); err != nil {
		return err
	}
	return ctx.Run(&cli.Globals)
}

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "mailmerge:", err)
		os.Exit(1)
	}
}
