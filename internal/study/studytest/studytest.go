// Package studytest writes small registered studies for tests.
package studytest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/KaramelBytes/tabloom-cli/internal/study"
)

const meta = `{
  "column_names_to_labels": {"SEXO": "Gender", "ZONE": "Zone", "Q1": "Knows the brand", "P1": "Overall rating", "OE1": "Why?"},
  "variable_value_labels": {
    "SEXO": {"1": "Men", "2": "Women"},
    "ZONE": "{1: 'North', 2: 'South'}",
    "Q1": {"1": "Yes", "2": "No"},
    "P1": {"1": "1. Very bad", "2": "2. Bad", "3": "3. Neutral", "4": "4. Good", "5": "5. Very good"}
  }
}`

const sidecar = `{"config": {
  "filters": [],
  "cross_variables": [{"label": "Gender", "codes": ["SEXO"]}],
  "section_variables": []
}}`

// Rows is the respondent count of the fixture: 40 men and 40 women. Q1 is
// "Yes" for 36 men and 20 women.
const Rows = 80

// Write registers a study called name under studiesDir and returns it.
func Write(t *testing.T, studiesDir, name string) *study.Study {
	t.Helper()
	dir := filepath.Join(studiesDir, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	var b strings.Builder
	b.WriteString("ID,SEXO,ZONE,Q1,P1,OE1\n")
	for i := 0; i < Rows; i++ {
		sexo, yes := 1, i < 36
		if i >= 40 {
			sexo, yes = 2, i < 60
		}
		q1 := 2
		if yes {
			q1 = 1
		}
		fmt.Fprintf(&b, "%d,%d,%d,%d,%d,answer %d\n", i+1, sexo, 1+i%2, q1, 1+i%5, i+1)
	}
	files := map[string]string{
		"wave.csv":          b.String(),
		"wave.meta.json":    meta,
		"wave.sidecar.json": sidecar,
	}
	for f, content := range files {
		if err := os.WriteFile(filepath.Join(dir, f), []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", f, err)
		}
	}
	s := study.New(name, "wave.csv", dir)
	s.SidecarPath = "wave.sidecar.json"
	if err := s.Save(); err != nil {
		t.Fatalf("save study: %v", err)
	}
	return s
}
