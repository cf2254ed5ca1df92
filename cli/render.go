package cli

import (
	"encoding/json"
	"io"

	"github.com/grovetools/wizard/errors"
	"github.com/grovetools/wizard/logging"
	"github.com/grovetools/wizard/pkg/engine"
	"github.com/grovetools/wizard/pkg/packagekit"
)

// queryJSON is the --json shape of one inspected file.
type queryJSON struct {
	Path    string                     `json:"path"`
	Details []packagekit.PackageDetail `json:"details"`
	Error   *errors.WizardError        `json:"error,omitempty"`
}

// WriteQueryJSON writes the results as a JSON array.
func WriteQueryJSON(w io.Writer, results []engine.QueryResult) error {
	out := make([]queryJSON, 0, len(results))
	for _, r := range results {
		entry := queryJSON{Path: r.Path, Details: r.Details}
		if entry.Details == nil {
			entry.Details = []packagekit.PackageDetail{}
		}
		if r.Err != nil {
			if wizErr, ok := errors.As(r.Err); ok {
				entry.Error = wizErr
			} else {
				entry.Error = errors.Wrap(r.Err, errors.ErrCodeInternal, r.Err.Error())
			}
		}
		out = append(out, entry)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// RenderQueryResults prints the results for people.
func RenderQueryResults(pretty *logging.PrettyLogger, results []engine.QueryResult) {
	for i, r := range results {
		if i > 0 {
			pretty.Blank()
		}
		pretty.Path("file", r.Path)
		if r.Err != nil {
			pretty.ErrorPretty("inspection failed", r.Err)
			continue
		}
		if len(r.Details) == 0 {
			pretty.WarnPretty("no package details reported")
			continue
		}
		for j, d := range r.Details {
			if j > 0 {
				pretty.Divider()
			}
			RenderDetail(pretty, d)
		}
	}
}

// RenderDetail prints one package.
func RenderDetail(pretty *logging.PrettyLogger, d packagekit.PackageDetail) {
	pretty.Field("name", d.Name)
	if d.Version != "" {
		pretty.Field("version", d.Version)
	}
	if d.Architecture != "" {
		pretty.Field("arch", d.Architecture)
	}
	pretty.Field("size", d.Size)
	if d.Summary != "" {
		pretty.Field("summary", d.Summary)
	}
	if d.License != "" {
		pretty.Field("license", d.License)
	}
	if d.URL != "" {
		pretty.Path("url", d.URL)
	}
	if d.Description != "" {
		pretty.Code(d.Description)
	}
}
