package dashboard

import (
	"encoding/json"
	"os"
	"strings"
	"testing"
)

func TestRenderMissingDatasource(t *testing.T) {
	t.Setenv("GREPTIMEDB_DATASOURCE_UID", "")
	if _, err := Render(t.TempDir(), Options{}); err == nil {
		t.Fatalf("expected error for missing datasource uid")
	}
}

func TestRenderSuccess(t *testing.T) {
	t.Setenv("GREPTIMEDB_DATASOURCE_UID", "uid1")

	paths, err := Render(t.TempDir(), Options{Database: "fleet"})
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	if len(paths) != 1 || !strings.HasSuffix(paths[0], "paramcheck-dashboard.json") {
		t.Fatalf("unexpected paths %v", paths)
	}
	b, err := os.ReadFile(paths[0])
	if err != nil {
		t.Fatalf("read dashboard: %v", err)
	}
	if !strings.Contains(string(b), "uid1") {
		t.Fatalf("greptime uid not rendered")
	}
	if !strings.Contains(string(b), "fleet.param_findings") {
		t.Fatalf("findings table not rendered")
	}
	var dash struct {
		Panels []struct{ Title string } `json:"panels"`
	}
	if err := json.Unmarshal(b, &dash); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(dash.Panels) != 4 {
		t.Fatalf("expected 4 panels, got %d", len(dash.Panels))
	}
}

func TestRenderExplicitOptions(t *testing.T) {
	t.Setenv("GREPTIMEDB_DATASOURCE_UID", "")
	paths, err := Render(t.TempDir(), Options{DatasourceUID: "abc", Title: "Bench"})
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	b, _ := os.ReadFile(paths[0])
	if !strings.Contains(string(b), `"title": "Bench"`) {
		t.Fatalf("title not rendered")
	}
}
