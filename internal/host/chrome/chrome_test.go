package chrome

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/chromedp/chromedp"
)

func TestOptionsTranslate(t *testing.T) {
	base := len(chromedp.DefaultExecAllocatorOptions)
	if got := len(allocatorOptions(Options{})); got != base {
		t.Fatalf("zero options added %d allocator options", got-base)
	}
	opts := Options{ExecPath: "/usr/bin/chromium", UserAgent: "UA", Width: 1280, Height: 720, Headful: true}
	if got := len(allocatorOptions(opts)); got != base+4 {
		t.Fatalf("expected 4 extra allocator options, got %d", got-base)
	}
	if got := len(emulationTasks(Options{Timezone: "Asia/Tokyo", Locale: "ja-JP"})); got != 2 {
		t.Fatalf("expected 2 emulation tasks, got %d", got)
	}
	if got := len(emulationTasks(Options{})); got != 0 {
		t.Fatalf("expected no emulation tasks, got %d", got)
	}
}

func TestCaptureInChrome(t *testing.T) {
	if os.Getenv("ARGUS_TEST_CHROME") == "" {
		t.Skip("ARGUS_TEST_CHROME not set")
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html><head></head><body>argus</body></html>"))
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()
	snap, err := Capture(ctx, srv.URL, Options{Timezone: "Europe/Paris"})
	if err != nil {
		t.Fatal(err)
	}
	if snap.Navigator == nil || snap.Navigator.UserAgent == nil {
		t.Fatal("navigator missing from snapshot")
	}
	if snap.Timezone == nil || snap.Timezone.Zone == nil || *snap.Timezone.Zone != "Europe/Paris" {
		t.Fatalf("timezone = %+v", snap.Timezone)
	}
	if snap.Location.URL == "" {
		t.Fatal("location missing")
	}
}
