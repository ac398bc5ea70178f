package htmlopt

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog/log"
)

// Scripts from these hosts load async; every other external script gets defer.
var externalPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)maxi-booking\.ru`),
	regexp.MustCompile(`(?i)googleapis\.com`),
	regexp.MustCompile(`(?i)google-analytics\.com`),
	regexp.MustCompile(`(?i)yandex\.ru/metrika`),
	regexp.MustCompile(`(?i)cdn\.`),
	regexp.MustCompile(`(?i)cloudflare\.com`),
}

var criticalMarkers = []string{"CONFIG"}

type Stats struct {
	Total           int
	DeferAdded      int
	AsyncAdded      int
	SkippedCritical int
	SkippedAlready  int
}

// Improvement is the share of scripts that got a loading attribute, in percent.
func (s Stats) Improvement() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.DeferAdded+s.AsyncAdded) / float64(s.Total) * 100
}

func IsExternal(src string) bool {
	for _, re := range externalPatterns {
		if re.MatchString(src) {
			return true
		}
	}
	return false
}

// Optimize adds async or defer to script tags that load a file. Tags that already
// carry one of them and inline scripts are left as they are.
func Optimize(html string) (string, Stats, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", Stats{}, err
	}

	stats := Stats{}
	doc.Find("script").Each(func(_ int, s *goquery.Selection) {
		stats.Total++

		_, hasDefer := s.Attr("defer")
		_, hasAsync := s.Attr("async")
		if hasDefer || hasAsync {
			stats.SkippedAlready++
			return
		}

		src, ok := s.Attr("src")
		if !ok || strings.TrimSpace(src) == "" {
			if isCritical(s.Text()) || s.ParentsFiltered("head").Length() > 0 {
				stats.SkippedCritical++
			}
			return
		}

		if IsExternal(src) {
			s.SetAttr("async", "")
			if strings.Contains(src, "maps.googleapis.com") {
				s.SetAttr("defer", "")
			}
			stats.AsyncAdded++
			log.Debug().Str("src", src).Msg("async")
			return
		}
		s.SetAttr("defer", "")
		stats.DeferAdded++
		log.Debug().Str("src", src).Msg("defer")
	})

	out, err := doc.Html()
	if err != nil {
		return "", Stats{}, err
	}
	return out, stats, nil
}

// OptimizeFile keeps a .backup copy of in and writes the result to out, which
// defaults to "<name>_optimized<ext>" next to in.
func OptimizeFile(in, out string) (string, Stats, error) {
	raw, err := os.ReadFile(in)
	if err != nil {
		return "", Stats{}, err
	}
	if err := os.WriteFile(in+".backup", raw, 0o644); err != nil {
		return "", Stats{}, fmt.Errorf("write backup: %w", err)
	}

	optimized, stats, err := Optimize(string(raw))
	if err != nil {
		return "", Stats{}, err
	}

	if out == "" {
		ext := filepath.Ext(in)
		out = strings.TrimSuffix(in, ext) + "_optimized" + ext
	}
	if err := os.WriteFile(out, []byte(optimized), 0o644); err != nil {
		return "", Stats{}, err
	}
	return out, stats, nil
}

func isCritical(content string) bool {
	for _, marker := range criticalMarkers {
		if strings.Contains(content, marker) {
			return true
		}
	}
	return false
}
