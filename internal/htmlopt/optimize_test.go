package htmlopt

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
)

const page = `<!DOCTYPE html>
<html>
<head>
<script>window.CONFIG = {a: 1};</script>
<script src="https://fonts.googleapis.com/loader.js"></script>
<script src="https://maps.googleapis.com/maps/api/js?key=x"></script>
</head>
<body>
<script src="/js/app.js"></script>
<script src="/js/vendor.js" defer></script>
<script src="https://mc.yandex.ru/metrika/tag.js"></script>
<script>console.log("inline");</script>
</body>
</html>`

func attrs(t *testing.T, html, src string) (bool, bool) {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatal(err)
	}
	sel := doc.Find(`script[src="` + src + `"]`)
	if sel.Length() != 1 {
		t.Fatalf("script %s not found", src)
	}
	_, async := sel.Attr("async")
	_, deferred := sel.Attr("defer")
	return async, deferred
}

func TestOptimize(t *testing.T) {
	out, stats, err := Optimize(page)
	if err != nil {
		t.Fatal(err)
	}

	want := Stats{Total: 7, DeferAdded: 1, AsyncAdded: 3, SkippedCritical: 1, SkippedAlready: 1}
	if stats != want {
		t.Fatalf("stats=%+v want %+v", stats, want)
	}

	cases := []struct {
		src                  string
		wantAsync, wantDefer bool
	}{
		{"https://fonts.googleapis.com/loader.js", true, false},
		{"https://maps.googleapis.com/maps/api/js?key=x", true, true},
		{"/js/app.js", false, true},
		{"/js/vendor.js", false, true},
		{"https://mc.yandex.ru/metrika/tag.js", true, false},
	}
	for _, tc := range cases {
		async, deferred := attrs(t, out, tc.src)
		if async != tc.wantAsync || deferred != tc.wantDefer {
			t.Fatalf("%s: async=%v defer=%v", tc.src, async, deferred)
		}
	}
	if !strings.Contains(out, "window.CONFIG") {
		t.Fatal("inline config script lost")
	}
}

func TestImprovement(t *testing.T) {
	if (Stats{}).Improvement() != 0 {
		t.Fatal("empty stats should report 0")
	}
	if got := (Stats{Total: 4, DeferAdded: 1, AsyncAdded: 1}).Improvement(); got != 50 {
		t.Fatalf("improvement=%v", got)
	}
}

func TestOptimizeFile(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "index.html")
	if err := os.WriteFile(in, []byte(page), 0o644); err != nil {
		t.Fatal(err)
	}

	out, stats, err := OptimizeFile(in, "")
	if err != nil {
		t.Fatal(err)
	}
	if out != filepath.Join(dir, "index_optimized.html") {
		t.Fatalf("out=%s", out)
	}
	if stats.Total != 7 {
		t.Fatalf("stats=%+v", stats)
	}
	backup, err := os.ReadFile(in + ".backup")
	if err != nil || string(backup) != page {
		t.Fatalf("backup missing or changed: %v", err)
	}
	if _, err := os.Stat(out); err != nil {
		t.Fatal(err)
	}
}
