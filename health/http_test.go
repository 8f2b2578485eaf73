package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestHTTPChecker(t *testing.T) {
	tests := []struct {
		name string
		code int
		want Status
	}{
		{name: "ok", code: http.StatusOK, want: StatusHealthy},
		{name: "server error", code: http.StatusBadGateway, want: StatusDegraded},
		{name: "forbidden", code: http.StatusForbidden, want: StatusUnhealthy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.code)
			}))
			defer srv.Close()

			got := NewHTTPChecker("remote", srv.URL+"/squidid", nil).Check(context.Background())
			if got.Status != tt.want {
				t.Errorf("Check() = %v, want %v", got.Status, tt.want)
			}
			if got.Details["status_code"] != tt.code {
				t.Errorf("status_code = %v", got.Details["status_code"])
			}
		})
	}
}

func TestHTTPChecker_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	got := NewHTTPChecker("remote", url, nil).Check(context.Background())
	if got.Status != StatusUnhealthy || got.Error == nil {
		t.Errorf("Check() = %+v, want unhealthy with error", got)
	}
}

func TestDirChecker(t *testing.T) {
	root := t.TempDir()

	if got := NewDirChecker("cache-root", root).Check(context.Background()); got.Status != StatusHealthy {
		t.Errorf("writable dir: %v %s", got.Status, got.Message)
	}

	missing := filepath.Join(root, "nope")
	if got := NewDirChecker("cache-root", missing).Check(context.Background()); got.Status != StatusDegraded {
		t.Errorf("missing dir: %v", got.Status)
	}

	file := filepath.Join(root, "file")
	if err := os.WriteFile(file, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if got := NewDirChecker("cache-root", file).Check(context.Background()); got.Status != StatusUnhealthy {
		t.Errorf("file: %v", got.Status)
	}

	entries, _ := os.ReadDir(root)
	if len(entries) != 1 {
		t.Errorf("probe file left behind: %v", entries)
	}
}
