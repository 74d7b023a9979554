package dashboard

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"paramcheck/internal/report"
)

//go:embed templates/*.tmpl
var templates embed.FS

// Options fill the dashboard template.
type Options struct {
	Title string
	// DatasourceUID is the Grafana datasource pointing at GreptimeDB. When
	// empty it is read from GREPTIMEDB_DATASOURCE_UID.
	DatasourceUID string
	Database      string
}

type templateData struct {
	Options
	FindingsTable string
	DevicesTable  string
	ValuesTable   string
}

// Render writes the Grafana dashboards for the result tables to outDir and
// returns the paths written.
func Render(outDir string, opts Options) ([]string, error) {
	if opts.DatasourceUID == "" {
		opts.DatasourceUID = os.Getenv("GREPTIMEDB_DATASOURCE_UID")
	}
	if opts.DatasourceUID == "" {
		return nil, errors.New("no datasource uid: set --datasource or GREPTIMEDB_DATASOURCE_UID")
	}
	if opts.Title == "" {
		opts.Title = "Parameter verification"
	}
	if opts.Database == "" {
		opts.Database = "public"
	}
	data := templateData{
		Options:       opts,
		FindingsTable: report.FindingsTable,
		DevicesTable:  report.DevicesTable,
		ValuesTable:   report.ValuesTable,
	}

	tpl, err := template.ParseFS(templates, "templates/*.tmpl")
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, err
	}
	var written []string
	for _, t := range tpl.Templates() {
		var buf strings.Builder
		if err := t.Execute(&buf, data); err != nil {
			return written, fmt.Errorf("render %s: %w", t.Name(), err)
		}
		if !json.Valid([]byte(buf.String())) {
			return written, fmt.Errorf("render %s: output is not valid JSON", t.Name())
		}
		outPath := filepath.Join(outDir, strings.TrimSuffix(t.Name(), ".tmpl"))
		if err := os.WriteFile(outPath, []byte(buf.String()), 0o644); err != nil {
			return written, err
		}
		written = append(written, outPath)
	}
	return written, nil
}
