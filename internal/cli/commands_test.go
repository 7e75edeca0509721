package cli

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/starexec/jobview/internal/models"
)

const (
	solverCell = `<a title="z3" href="/starexec/secure/details/solver.jsp?id=31" target="_blank">z3</a>`
	configCell = `<a class="configLink" title="default" id="77" href="/starexec/secure/details/configuration.jsp?id=77">default</a>`
)

// executeCLI runs the root command with args and returns what it printed.
func executeCLI(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())

	root := NewRootCmd()
	AddCommands(root)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

// serverArgs points the CLI at srv with a throwaway config file.
func serverArgs(t *testing.T, srv *httptest.Server, args ...string) []string {
	t.Helper()
	base := []string{
		"--config", filepath.Join(t.TempDir(), "config"),
		"--url", srv.URL + "/starexec",
		"--api-key", "test-key",
		"--job", "5",
	}
	return append(base, args...)
}

func newServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestSpacesOutputFormats(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/starexec/services/space/5/jobspaces/false" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Token test-key" {
			t.Errorf("Authorization = %q", got)
		}
		_, _ = w.Write([]byte(`[{"data":"QF_BV","attr":{"id":"12","name":"QF_BV","maxStages":"1"},"state":"closed"}]`))
	})

	out, err := executeCLI(t, "", serverArgs(t, srv, "spaces", "-o", "json")...)
	if err != nil {
		t.Fatalf("spaces -o json: %v\n%s", err, out)
	}
	var spaces []models.JobSpace
	if err := json.Unmarshal([]byte(out), &spaces); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if len(spaces) != 1 || spaces[0].ID != 12 || !spaces[0].HasChildren {
		t.Errorf("spaces = %+v", spaces)
	}

	out, err = executeCLI(t, "", serverArgs(t, srv, "ls")...)
	if err != nil {
		t.Fatalf("ls: %v", err)
	}
	for _, want := range []string{"ID", "NAME", "QF_BV", "yes"} {
		if !strings.Contains(out, want) {
			t.Errorf("table output misses %q:\n%s", want, out)
		}
	}

	out, err = executeCLI(t, "", serverArgs(t, srv, "spaces", "-o", "yaml")...)
	if err != nil {
		t.Fatalf("spaces -o yaml: %v", err)
	}
	if !strings.Contains(out, "name: QF_BV") {
		t.Errorf("yaml output:\n%s", out)
	}
}

func TestUnknownOutputFormat(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})
	_, err := executeCLI(t, "", serverArgs(t, srv, "spaces", "-o", "xml")...)
	if err == nil || !strings.Contains(err.Error(), "unknown output format") {
		t.Fatalf("err = %v", err)
	}
}

func TestMissingJobID(t *testing.T) {
	_, err := executeCLI(t, "", "--config", filepath.Join(t.TempDir(), "config"), "--api-key", "k", "spaces")
	if err == nil || !strings.Contains(err.Error(), "job_id") {
		t.Fatalf("err = %v, want missing job id", err)
	}
}

func TestStatsTable(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/starexec/services/jobs/5/solvers/pagination/56/false/true/0" {
			t.Errorf("path = %s", r.URL.Path)
		}
		rows, _ := json.Marshal([][]string{{solverCell, configCell, "3/4", "1", "0", "0", "12.5"}})
		_, _ = w.Write([]byte(`{"sEcho":0,"iTotalRecords":1,"iTotalDisplayRecords":1,"aaData":` + string(rows) + `}`))
	})

	out, err := executeCLI(t, "", serverArgs(t, srv, "stats", "--space", "56")...)
	if err != nil {
		t.Fatalf("stats: %v\n%s", err, out)
	}
	for _, want := range []string{"z3", "default (77)", "3/4", "12.500s"} {
		if !strings.Contains(out, want) {
			t.Errorf("stats output misses %q:\n%s", want, out)
		}
	}
}

func TestPairsTooMany(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":false,"code":1,"message":"too many pairs"}`))
	})
	_, err := executeCLI(t, "", serverArgs(t, srv, "pairs", "--space", "56")...)
	if err == nil || !strings.Contains(err.Error(), "job download") {
		t.Fatalf("err = %v, want a hint to download the job", err)
	}
}

func TestPairsRejectsBadPage(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})
	if _, err := executeCLI(t, "", serverArgs(t, srv, "pairs", "--space", "56", "--page", "0")...); err == nil {
		t.Fatal("expected an error for page 0")
	}
}

func TestJobDelete(t *testing.T) {
	var deleted []string
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/starexec/services/delete/job" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatal(err)
		}
		deleted = r.PostForm["selectedIds[]"]
		_, _ = w.Write([]byte(`{"success":true}`))
	})

	out, err := executeCLI(t, "no\n", serverArgs(t, srv, "job", "delete")...)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if !strings.Contains(out, "Deletion cancelled") || deleted != nil {
		t.Fatalf("declined deletion still ran: %v\n%s", deleted, out)
	}

	if _, err := executeCLI(t, "", serverArgs(t, srv, "job", "delete", "7", "8", "--yes")...); err != nil {
		t.Fatalf("delete --yes: %v", err)
	}
	if strings.Join(deleted, ",") != "7,8" {
		t.Errorf("deleted = %v, want [7 8]", deleted)
	}

	if _, err := executeCLI(t, "", serverArgs(t, srv, "job", "delete", "seven", "--yes")...); err == nil {
		t.Error("expected an error for a non-numeric job id")
	}
}

func TestJobRenameValidatesLocally(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})
	if _, err := executeCLI(t, "", serverArgs(t, srv, "job", "rename", "--name", "bad<name>")...); err == nil {
		t.Fatal("expected a validation error")
	}
}

func TestDownloadWritesFile(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if r.URL.Path != "/starexec/secure/download" || q.Get("type") != "job" || q.Get("id") != "5" || q.Get("returnids") != "true" {
			t.Errorf("unexpected request %s", r.URL)
		}
		_, _ = w.Write([]byte("benchmark,solver\nmult16.smt2,z3\n"))
	})

	path := filepath.Join(t.TempDir(), "pairs.csv")
	out, err := executeCLI(t, "", serverArgs(t, srv, "download", "--out", path, "--ids")...)
	if err != nil {
		t.Fatalf("download: %v\n%s", err, out)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "mult16.smt2,z3") {
		t.Errorf("file = %q", data)
	}

	// An existing file is kept unless the user agrees.
	if _, err := executeCLI(t, "n\n", serverArgs(t, srv, "job", "download", "--out", path)...); err != nil {
		t.Fatal(err)
	}
}

func TestDownloadFailureRemovesFile(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	})
	path := filepath.Join(t.TempDir(), "out.zip")
	if _, err := executeCLI(t, "", serverArgs(t, srv, "job", "download", "--kind", "output", "--out", path)...); err == nil {
		t.Fatal("expected an error")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("partial file left behind: %v", err)
	}
}

func TestDownloadRejectsUnknownKind(t *testing.T) {
	_, err := executeCLI(t, "", "--config", filepath.Join(t.TempDir(), "config"), "job", "download", "--kind", "pdf")
	if err == nil {
		t.Fatal("expected an error for an unknown kind")
	}
}
