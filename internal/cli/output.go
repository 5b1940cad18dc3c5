package cli

import (
	"fmt"

	"github.com/dl-alexandre/ghmirror/internal/types"
	"github.com/dl-alexandre/ghmirror/internal/utils"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/olekukonko/tablewriter"
)

// OutputWriter handles CLI output formatting
type OutputWriter struct {
	format   types.OutputFormat
	quiet    bool
	verbose  bool
	traceID  string
	warnings []types.CLIWarning
}

// NewOutputWriter creates a new output writer
func NewOutputWriter(format types.OutputFormat, quiet, verbose bool) *OutputWriter {
	return &OutputWriter{
		format:   format,
		quiet:    quiet,
		verbose:  verbose,
		traceID:  uuid.New().String(),
		warnings: []types.CLIWarning{},
	}
}

// AddWarning adds a warning to the output
func (w *OutputWriter) AddWarning(code, message, severity string) {
	w.warnings = append(w.warnings, types.CLIWarning{
		Code:     code,
		Message:  message,
		Severity: severity,
	})
}

// WriteSuccess writes a successful result
func (w *OutputWriter) WriteSuccess(command string, data interface{}) error {
	if w.format == types.OutputFormatJSON {
		return w.writeJSON(w.envelope(command, data, nil))
	}
	for _, warning := range w.warnings {
		w.Log("Warning: %s", warning.Message)
	}
	return w.writeTable(data)
}

// WriteResult writes data together with an error, for runs that finished but not cleanly.
// The returned error carries the exit code.
func (w *OutputWriter) WriteResult(command string, data interface{}, cliErr types.CLIError) error {
	if w.format == types.OutputFormatJSON {
		if err := w.writeJSON(w.envelope(command, data, []types.CLIError{cliErr})); err != nil {
			return err
		}
		return utils.NewAppError(cliErr)
	}
	if err := w.writeTable(data); err != nil {
		return err
	}
	fmt.Fprintf(stderr, "Error [%s]: %s\n", cliErr.Code, cliErr.Message)
	return utils.NewAppError(cliErr)
}

// WriteError writes an error result and returns it as an *utils.AppError
func (w *OutputWriter) WriteError(command string, cliErr types.CLIError) error {
	if w.format == types.OutputFormatJSON {
		if err := w.writeJSON(w.envelope(command, nil, []types.CLIError{cliErr})); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(stderr, "Error [%s]: %s\n", cliErr.Code, cliErr.Message)
	}
	return utils.NewAppError(cliErr)
}

func (w *OutputWriter) envelope(command string, data interface{}, errs []types.CLIError) types.CLIOutput {
	if errs == nil {
		errs = []types.CLIError{}
	}
	return types.CLIOutput{
		SchemaVersion: utils.SchemaVersion,
		TraceID:       w.traceID,
		Command:       command,
		Data:          data,
		Warnings:      w.warnings,
		Errors:        errs,
	}
}

func (w *OutputWriter) writeJSON(output types.CLIOutput) error {
	encoder := json.NewEncoder(stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(output)
}

func (w *OutputWriter) writeTable(data interface{}) error {
	if renderable, ok := data.(types.TableRenderable); ok {
		return w.renderTable(renderable.AsTableRenderer())
	}
	if renderer, ok := data.(types.TableRenderer); ok {
		return w.renderTable(renderer)
	}
	// Fallback to JSON for types without a table form
	encoder := json.NewEncoder(stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

func (w *OutputWriter) renderTable(renderer types.TableRenderer) error {
	rows := renderer.Rows()
	if len(rows) == 0 {
		if !w.quiet {
			fmt.Fprintln(stdout, renderer.EmptyMessage())
		}
		return nil
	}

	table := tablewriter.NewWriter(stdout)
	table.SetHeader(renderer.Headers())
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)

	for _, row := range rows {
		table.Append(row)
	}

	table.Render()
	return nil
}

// Log writes to stderr if not quiet
func (w *OutputWriter) Log(format string, args ...interface{}) {
	if !w.quiet {
		fmt.Fprintf(stderr, format+"\n", args...)
	}
}

// Verbose writes to stderr if verbose is enabled
func (w *OutputWriter) Verbose(format string, args ...interface{}) {
	if w.verbose {
		fmt.Fprintf(stderr, "[VERBOSE] "+format+"\n", args...)
	}
}
