package web

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cyberchip-wang/s3uploader-ui/internal/explorer"
	"github.com/cyberchip-wang/s3uploader-ui/internal/paths"
)

func render(t *testing.T, name string, data any) string {
	t.Helper()
	r, err := NewRenderer()
	if err != nil {
		t.Fatal(err)
	}
	w := httptest.NewRecorder()
	if err := r.Render(w, http.StatusOK, name, data); err != nil {
		t.Fatal(err)
	}
	return w.Body.String()
}

func TestViews(t *testing.T) {
	want := []NavItem{
		{Label: "Upload", Path: "/upload"},
		{Label: "Input Files", Path: "/files/input"},
		{Label: "Output Files", Path: "/files/output"},
	}
	got := Views()
	if len(got) != len(want) {
		t.Fatalf("got %d views", len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("view %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestFilesPageLoading(t *testing.T) {
	body := render(t, PageFiles, FilesPage{
		Page:   NewPage("Input Files", "alice", "", "/files/input"),
		Folder: paths.FolderInput,
		State:  explorer.State{Loading: true},
	})
	if !strings.Contains(body, `role="progressbar"`) {
		t.Error("spinner missing while loading")
	}
	if strings.Contains(body, "<table>") {
		t.Error("table rendered while loading")
	}
	for _, s := range []string{"Application", "Web application to upload files to S3", "Upload", "Input Files", "Output Files"} {
		if !strings.Contains(body, s) {
			t.Errorf("page missing %q", s)
		}
	}
}

func TestFilesPageEntries(t *testing.T) {
	size := int64(2048)
	body := render(t, PageFiles, FilesPage{
		Page:   NewPage("Input Files", "alice", "", "/files/input"),
		Folder: paths.FolderInput,
		State: explorer.State{
			Files: []explorer.Entry{
				{Key: "alice/input/a.csv", Name: "a.csv", Size: &size},
				{Key: "alice/input/b.txt", Name: "b.txt"},
			},
			Selected: []string{"alice/input/a.csv"},
		},
	})
	if !strings.Contains(body, "a.csv") || !strings.Contains(body, "2 KB") {
		t.Error("entry missing")
	}
	if n := strings.Count(body, " checked>"); n != 1 {
		t.Errorf("%d checked entries, want 1", n)
	}
	if strings.Contains(body, "disabled") {
		t.Error("actions disabled with a selection")
	}
	if strings.Contains(body, "No files") {
		t.Error("empty state shown with files")
	}
}

func TestFilesPageEmptyAndError(t *testing.T) {
	body := render(t, PageFiles, FilesPage{
		Page:   NewPage("Output Files", "alice", "We couldn't prepare your folders.", "/files/output"),
		Folder: paths.FolderOutput,
		State:  explorer.State{Error: explorer.MsgLoadFailed},
	})
	for _, s := range []string{"No files", "No files found in this folder.", "Failed to load files. Please try again later.", "/files/output/dismiss", "/banner/dismiss", "disabled"} {
		if !strings.Contains(body, s) {
			t.Errorf("page missing %q", s)
		}
	}
}

func TestLoginPageHasNoNav(t *testing.T) {
	body := render(t, PageLogin, LoginPage{Page: NewPage("Sign in", "", "", ""), Next: "/files/input"})
	if strings.Contains(body, "<nav>") {
		t.Error("navigation shown before sign-in")
	}
	if !strings.Contains(body, `value="/files/input"`) {
		t.Error("next path not carried")
	}
}

func TestStatic(t *testing.T) {
	w := httptest.NewRecorder()
	Static().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/static/app.css", nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), ".spinner") {
		t.Errorf("status = %d", w.Code)
	}
}
