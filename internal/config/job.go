// Package config loads mail merge job files.
//
// A job file pins everything a generate run needs so it can be repeated:
//
//	template: letter.docx
//	data: customers.xlsx
//	sheet: Sheet1
//	output: out
//	filename_column: Name
//	auto_map: true
//	mapping:
//	  name: Name
//	  amount: Balance
//	collision: suffix      # or overwrite
//	on_error: abort        # or continue
//	workers: 4
//	substitute_tables: false
//	manifest: true
//	format: docx           # or html
//
// Relative paths are resolved against the job file's directory.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/aerissecure/mailmerge"
)

// Job is the parsed form of a job file.
type Job struct {
	Template         string            `yaml:"template"`
	Data             string            `yaml:"data"`
	Sheet            string            `yaml:"sheet,omitempty"`
	Output           string            `yaml:"output"`
	FilenameColumn   string            `yaml:"filename_column"`
	AutoMap          bool              `yaml:"auto_map,omitempty"`
	Mapping          map[string]string `yaml:"mapping,omitempty"`
	Collision        string            `yaml:"collision,omitempty"`
	OnError          string            `yaml:"on_error,omitempty"`
	Workers          int               `yaml:"workers,omitempty"`
	SubstituteTables bool              `yaml:"substitute_tables,omitempty"`
	Manifest         bool              `yaml:"manifest,omitempty"`
	Format           string            `yaml:"format,omitempty"`
}

// LoadFile loads and parses the job file at path.
func LoadFile(path string) (*Job, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read job file %s: %w", path, err)
	}

	job, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	job.resolve(filepath.Dir(path))
	return job, nil
}

// Parse parses YAML data into a Job and applies defaults.
func Parse(data []byte) (*Job, error) {
	var job Job
	if err := yaml.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("failed to parse job YAML: %w", err)
	}
	applyDefaults(&job)
	if err := job.Validate(); err != nil {
		return nil, err
	}
	return &job, nil
}

// applyDefaults fills in default values for optional fields.
func applyDefaults(job *Job) {
	if job.Output == "" {
		job.Output = "output_documents"
	}
	if job.Collision == "" {
		job.Collision = mailmerge.CollisionSuffix.String()
	}
	if job.OnError == "" {
		job.OnError = mailmerge.Abort.String()
	}
	if job.Workers <= 0 {
		job.Workers = 1
	}
	if job.Format == "" {
		job.Format = "docx"
	}
}

// Validate checks the enumerated fields.
func (j *Job) Validate() error {
	if _, err := mailmerge.ParseCollision(j.Collision); err != nil {
		return err
	}
	if _, err := mailmerge.ParseErrorPolicy(j.OnError); err != nil {
		return err
	}
	switch j.Format {
	case "docx", "html":
	default:
		return fmt.Errorf("unknown output format %q", j.Format)
	}
	return nil
}

// ColumnMapping returns the explicit mapping entries.
func (j *Job) ColumnMapping() mailmerge.Mapping {
	return mailmerge.Mapping(j.Mapping).Merge(nil)
}

func (j *Job) resolve(dir string) {
	for _, p := range []*string{&j.Template, &j.Data, &j.Output} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(dir, *p)
		}
	}
}

// Marshal serializes a Job to YAML.
func Marshal(job *Job) ([]byte, error) {
	return yaml.Marshal(job)
}

// WriteFile writes job to path.
func WriteFile(job *Job, path string) error {
	data, err := Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write job file %s: %w", path, err)
	}
	return nil
}
