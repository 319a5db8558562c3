package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/JonMunkholm/csvsql/internal/core"
	"github.com/JonMunkholm/csvsql/internal/render"
	"github.com/goccy/go-json"
)

// previewAll dry-runs every job and prints what loading would do, as JSON
// when format is json and as a short report otherwise.
func previewAll(ctx context.Context, out io.Writer, svc *core.Service, jobs []core.ImportJob, format render.Format) error {
	previews := make([]*core.PreviewResponse, 0, len(jobs))
	for _, job := range jobs {
		opts := svc.Defaults()
		opts.Table = job.Table

		resp, err := previewFile(ctx, svc, job.Path, opts)
		if err != nil {
			return fmt.Errorf("%s: %w", job.Path, err)
		}
		previews = append(previews, resp)
	}

	if format == render.FormatJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(previews)
	}
	for _, p := range previews {
		writePreview(out, p)
	}
	return nil
}

func previewFile(ctx context.Context, svc *core.Service, path string, opts core.Options) (*core.PreviewResponse, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &core.SourceReadError{Source: path, Err: err}
	}
	defer f.Close()

	if info, err := f.Stat(); err == nil {
		opts.Size = info.Size()
	}
	return svc.Preview(ctx, f, path, opts)
}

func writePreview(w io.Writer, p *core.PreviewResponse) {
	header := "no"
	if p.Header {
		header = "yes"
	}
	fmt.Fprintf(w, "%s -> %s\n", p.Source, p.Table)
	fmt.Fprintf(w, "  delimiter: %s, header: %s\n", p.Delimiter, header)
	fmt.Fprintf(w, "  schema: %s\n", p.Schema)

	switch {
	case p.Conflict != "":
		fmt.Fprintf(w, "  table exists, conflict: %s\n", p.Conflict)
	case p.TableExists:
		fmt.Fprintln(w, "  table exists, rows would be appended")
	}

	fmt.Fprintf(w, "  rows: %d total, %d valid, %d rejected\n",
		p.Summary.TotalRows, p.Summary.ValidRows, p.Summary.ErrorRows)
	for _, e := range p.ErrorSamples {
		loc := fmt.Sprintf("line %d", e.Line)
		if e.Column != "" {
			loc += ", column " + e.Column
		}
		fmt.Fprintf(w, "    %s: %s\n", loc, strings.TrimSpace(e.Reason))
	}
}
