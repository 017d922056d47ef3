package normalize

import (
	"reflect"
	"testing"
)

func TestFromAPI_KeyReplacement(t *testing.T) {
	raw := map[string]any{
		"container-title": []any{"Geochimica et ", "Cosmochimica Acta"},
		"is-referenced-by-count": float64(12),
		"issued": map[string]any{
			"date-parts": []any{[]any{float64(2019), float64(8)}},
		},
	}

	got := FromAPI(raw)

	if _, ok := got["container-title"]; ok {
		t.Error("hyphenated key survived normalization")
	}
	if got["container_title"] != "Geochimica et Cosmochimica Acta" {
		t.Errorf("container_title = %v, want concatenated string", got["container_title"])
	}
	if got["is_referenced_by_count"] != float64(12) {
		t.Errorf("is_referenced_by_count = %v", got["is_referenced_by_count"])
	}

	issued, ok := got["issued"].(map[string]any)
	if !ok {
		t.Fatalf("issued = %T, want nested map", got["issued"])
	}
	if _, ok := issued["date_parts"]; !ok {
		t.Error("nested key not replaced")
	}
}

func TestFromAPI_Deterministic(t *testing.T) {
	raw := map[string]any{
		"DOI":   "10.1016/J.GCA.2019.08.005",
		"title": []any{"A Title"},
	}

	a := FromAPI(raw)
	b := FromAPI(raw)
	if !reflect.DeepEqual(a, b) {
		t.Errorf("FromAPI not deterministic: %v != %v", a, b)
	}
	if a["DOI"] != "10.1016/j.gca.2019.08.005" {
		t.Errorf("DOI = %v, want lowercased", a["DOI"])
	}
}

func TestFromBibTeX_FieldMapping(t *testing.T) {
	entry := map[string]string{
		"doi":       "10.1/ABC",
		"url":       "https://example.com/paper",
		"pages":     "100-110",
		"number":    "4",
		"ENTRYTYPE": "article",
		"ID":        "Jennings2019",
		"journal":   "Nature",
		"year":      "2019",
	}

	got := FromBibTeX(entry)

	want := map[string]any{
		"DOI":             "10.1/abc",
		"URL":             "https://example.com/paper",
		"page":            "100-110",
		"issue":           "4",
		"type":            "article",
		"label":           "Jennings2019",
		"container_title": "Nature",
		"year":            "2019",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("FromBibTeX() = %v, want %v", got, want)
	}
}

func TestFromBibTeX_Booktitle(t *testing.T) {
	got := FromBibTeX(map[string]string{"booktitle": "Proceedings of Things"})
	if got["title"] != "Proceedings of Things" {
		t.Errorf("title = %v, want booktitle value", got["title"])
	}
}

func TestNormalizeDOI(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "10.1234/test", "10.1234/test"},
		{"uppercase", "10.1234/TEST", "10.1234/test"},
		{"https prefix", "https://doi.org/10.1234/test", "10.1234/test"},
		{"http prefix", "http://doi.org/10.1234/test", "10.1234/test"},
		{"doi colon prefix", "doi:10.1234/test", "10.1234/test"},
		{"whitespace", "  10.1234/test  ", "10.1234/test"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DOI(tt.input); got != tt.want {
				t.Errorf("DOI(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
