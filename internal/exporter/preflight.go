package exporter

import (
	"context"
	"fmt"

	"github.com/dbsmedya/goexport/internal/format"
	"github.com/dbsmedya/goexport/internal/logger"
	"github.com/dbsmedya/goexport/internal/schema"
)

// PreflightError represents a preflight check failure.
type PreflightError struct {
	Check   string
	Message string
	Tables  []string
	Details map[string]string
}

func (e *PreflightError) Error() string {
	if len(e.Tables) > 0 {
		return fmt.Sprintf("%s: %s (tables: %v)", e.Check, e.Message, e.Tables)
	}
	return fmt.Sprintf("%s: %s", e.Check, e.Message)
}

// FitsWarning names a column written as text because its type has no
// binary table mapping.
type FitsWarning struct {
	Table    string
	Column   string
	DataType string
}

// PreflightChecker validates a task against the source before exporting.
type PreflightChecker struct {
	task     *Task
	maxWidth int
	logger   *logger.Logger

	warnings []FitsWarning
}

// NewPreflightChecker creates a new preflight checker. maxWidth is the FITS
// string width used for columns without a declared length.
func NewPreflightChecker(task *Task, maxWidth int, log *logger.Logger) (*PreflightChecker, error) {
	if task == nil {
		return nil, fmt.Errorf("task is nil")
	}
	if task.dataset == nil {
		return nil, fmt.Errorf("dataset is nil")
	}
	if log == nil {
		log = logger.NewDefault()
	}
	return &PreflightChecker{task: task, maxWidth: maxWidth, logger: log}, nil
}

// RunAllChecks runs all preflight checks.
func (p *PreflightChecker) RunAllChecks(ctx context.Context) error {
	p.logger.Info("Running preflight checks...")

	if err := p.task.validate(); err != nil {
		return &PreflightError{Check: "DESTINATION_CHECK", Message: err.Error()}
	}

	var tables []schema.SourceQuery
	for _, src := range p.task.Sources {
		if src.IsTable() {
			tables = append(tables, src)
		}
	}

	if err := p.ValidateTablesExist(ctx, tables); err != nil {
		return err
	}
	if err := p.ValidateColumns(ctx); err != nil {
		return err
	}

	p.logger.Info("All preflight checks PASSED")
	return nil
}

// ValidateTablesExist checks that every table source exists.
func (p *PreflightChecker) ValidateTablesExist(ctx context.Context, sources []schema.SourceQuery) error {
	p.logger.Debug("Checking table existence...")

	var missing []string
	for _, src := range sources {
		ok, err := p.task.dataset.TableExists(ctx, src.Table)
		if err != nil {
			return err
		}
		if !ok {
			missing = append(missing, src.Table.String())
		}
	}

	if len(missing) > 0 {
		return &PreflightError{
			Check:   "TABLE_EXISTENCE_CHECK",
			Message: "Tables not found in source database",
			Tables:  missing,
		}
	}

	p.logger.Debugf("Table existence check PASSED (%d tables)", len(sources))
	return nil
}

// ValidateColumns reads the column list of every table source and checks
// that FITS destinations can map each column. Unmapped types are written
// as strings and reported through Warnings.
func (p *PreflightChecker) ValidateColumns(ctx context.Context) error {
	p.logger.Debug("Checking columns...")
	p.warnings = nil

	var unreadable []string
	details := make(map[string]string)
	for i, src := range p.task.Sources {
		if !src.IsTable() {
			continue
		}
		cols, err := p.task.dataset.Columns(ctx, src.Table)
		if err != nil {
			unreadable = append(unreadable, src.Table.String())
			details[src.Table.String()] = err.Error()
			continue
		}

		formatName, err := p.task.formats.Resolve(p.task.Destinations[i].Format, p.task.Destinations[i].FileName)
		if err != nil {
			return err
		}
		if formatName != "fits" {
			continue
		}

		list := make([]schema.Column, 0, cols.Len())
		for el := cols.Front(); el != nil; el = el.Next() {
			list = append(list, el.Value)
		}
		for _, fc := range format.FitsColumns(list, p.maxWidth) {
			if fc.Fallback {
				p.warnings = append(p.warnings, FitsWarning{
					Table:    src.Name(),
					Column:   fc.Source.Name,
					DataType: fc.Source.DataType,
				})
				p.logger.Warnf("Column %s.%s of type %s will be written as text", src.Name(), fc.Source.Name, fc.Source.DataType)
			}
		}
	}

	if len(unreadable) > 0 {
		return &PreflightError{
			Check:   "COLUMN_CHECK",
			Message: "Columns could not be read",
			Tables:  unreadable,
			Details: details,
		}
	}
	return nil
}

// Warnings returns the FITS fallback columns found by the last ValidateColumns.
func (p *PreflightChecker) Warnings() []FitsWarning {
	return p.warnings
}
