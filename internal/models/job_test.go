package models

import (
	"encoding/json"
	"testing"
)

func TestJobSpaceUnmarshalFlat(t *testing.T) {
	var spaces []JobSpace
	data := `[{"id":3,"name":"smtlib","maxStages":2,"hasChildren":true},{"id":4,"name":"sat"}]`
	if err := json.Unmarshal([]byte(data), &spaces); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if len(spaces) != 2 {
		t.Fatalf("got %d spaces, want 2", len(spaces))
	}
	want := JobSpace{ID: 3, Name: "smtlib", MaxStages: 2, HasChildren: true}
	if spaces[0] != want {
		t.Errorf("spaces[0] = %+v, want %+v", spaces[0], want)
	}
	if spaces[1].HasChildren {
		t.Error("spaces[1] should default to no children")
	}
}

func TestJobSpaceUnmarshalTreeNode(t *testing.T) {
	data := `{"data":"QF_BV","attr":{"id":"12","name":"QF_BV","maxStages":"1"},"state":"closed"}`
	var s JobSpace
	if err := json.Unmarshal([]byte(data), &s); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	want := JobSpace{ID: 12, Name: "QF_BV", MaxStages: 1, HasChildren: true}
	if s != want {
		t.Errorf("got %+v, want %+v", s, want)
	}
}

func TestJobSpaceUnmarshalTreeNodeLeaf(t *testing.T) {
	data := `{"data":"leaf","attr":{"id":"5"},"state":"leaf"}`
	var s JobSpace
	if err := json.Unmarshal([]byte(data), &s); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if s.Name != "leaf" {
		t.Errorf("Name = %q, want fallback to data", s.Name)
	}
	if s.HasChildren {
		t.Error("leaf should have no children")
	}
}

func TestJobSpaceUnmarshalBadID(t *testing.T) {
	var s JobSpace
	if err := json.Unmarshal([]byte(`{"attr":{"id":"x"}}`), &s); err == nil {
		t.Error("expected error for non-numeric id")
	}
}

func TestParseDownloadKind(t *testing.T) {
	tests := []struct {
		in      string
		want    DownloadKind
		wantErr bool
	}{
		{"csv", DownloadJob, false},
		{"", DownloadJob, false},
		{"xml", DownloadJobXML, false},
		{"output", DownloadJobOutput, false},
		{"j_outputs", DownloadJobOutput, false},
		{"pdf", "", true},
	}
	for _, tt := range tests {
		got, err := ParseDownloadKind(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseDownloadKind(%q) error = %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseDownloadKind(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
	if DownloadJob.Extension() != ".csv" || DownloadJobOutput.Extension() != ".zip" {
		t.Error("unexpected extensions")
	}
}

func TestDataTablePageDecode(t *testing.T) {
	data := `{"sEcho":4,"iTotalRecords":120,"iTotalDisplayRecords":7,"aaData":[["a","b"]]}`
	var p DataTablePage
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		t.Fatal(err)
	}
	if p.Echo != 4 || p.TotalRecords != 120 || p.TotalFiltered != 7 || len(p.Rows) != 1 {
		t.Errorf("decoded %+v", p)
	}
}
