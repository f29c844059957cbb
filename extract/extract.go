// Package extract pulls embedded JSON blobs and numeric counters out of raw
// HTML from the platform's watch and channel pages. Those pages are not meant
// for machine consumption, so every helper tolerates missing or malformed
// structures: a failed extraction is a nil/false result, never an error.
package extract

import (
	"encoding/json"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// maxWalkDepth bounds the recursive JSON walk. Observed page data nests
// around 30 levels; anything deeper is treated as pathological and skipped.
const maxWalkDepth = 64

var (
	// Grouped digits with ., , or space as thousands separators ("12,453",
	// "12.453", "12 453"), falling back to a plain digit run.
	groupedNumberPattern = regexp.MustCompile(`\d{1,3}(?:[.,\x{00A0}\x{202F} ]\d{3})+|\d+`)

	// Multi-locale "watching now / viewers" phrasing used for free-text
	// viewer counts. Kept permissive on purpose.
	viewerPhrasePattern = regexp.MustCompile(`(?i)watching now|watching|viewers|espectadores|zuschauer|spectateurs|зрител|視聴中|assistindo`)

	// Stricter live phrasing for the page-level live check; bare "viewers"
	// appears on plenty of non-live surfaces.
	liveNowPhrasePattern = regexp.MustCompile(`(?i)watching now|人が視聴中|視聴中|assistindo agora|espectadores ao vivo`)

	nbspReplacer = strings.NewReplacer("\u00a0", " ", "\u202f", " ")

	// Compiled per-variable patterns for NamedJSON, cached across calls.
	namedPatternsMu sync.Mutex
	namedPatterns   = map[string][]*regexp.Regexp{}
)

// patternsFor returns the ordered candidate patterns locating an embedded
// JSON object assigned to name. Strongest terminator first.
func patternsFor(name string) []*regexp.Regexp {
	namedPatternsMu.Lock()
	defer namedPatternsMu.Unlock()
	if ps, ok := namedPatterns[name]; ok {
		return ps
	}
	q := regexp.QuoteMeta(name)
	ps := []*regexp.Regexp{
		regexp.MustCompile(`(?s)` + q + `\s*=\s*(\{.*?\})\s*;\s*</script>`),
		regexp.MustCompile(`(?s)` + q + `\s*=\s*(\{.*?\});`),
		regexp.MustCompile(`(?s)"` + q + `"\s*:\s*(\{.*?\})\s*[,;}]`),
	}
	namedPatterns[name] = ps
	return ps
}

// NamedJSON finds an assignment `name = {...};` or a quoted key
// `"name": {...}` in html and strict-parses the captured region. Returns nil
// when no candidate region parses.
func NamedJSON(html, name string) map[string]any {
	for _, p := range patternsFor(name) {
		for _, m := range p.FindAllStringSubmatch(html, 4) {
			var obj map[string]any
			if err := json.Unmarshal([]byte(m[1]), &obj); err == nil {
				return obj
			}
		}
	}
	return nil
}

// NumberFromText parses a locale-grouped integer out of free text
// ("1,234 watching now" -> 1234). Non-breaking spaces are normalized before
// matching. Returns false when no digit run is found.
func NumberFromText(text string) (int64, bool) {
	s := nbspReplacer.Replace(text)
	m := groupedNumberPattern.FindString(s)
	if m == "" {
		return 0, false
	}
	m = strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, m)
	n, err := strconv.ParseInt(m, 10, 64)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// Candidate tiers for FindConcurrentViewers, most trusted first.
const (
	tierViewCountRuns = iota
	tierViewCountSimpleText
	tierPhraseRuns
	tierPhraseString
	tierCount
)

// FindConcurrentViewers walks an arbitrarily nested decoded JSON tree looking
// for a concurrent-viewer number. Candidates are collected per trust tier in
// DFS order (map keys visited in sorted order) and the most trusted match
// wins:
//
//  1. viewCount.runs[].text concatenated and parsed
//  2. viewCount.simpleText parsed
//  3. any runs[] whose joined text matches viewer phrasing
//  4. any string field matching viewer phrasing
//
// The walk never panics outward; malformed substructures yield no candidates.
func FindConcurrentViewers(root any) (n int64, ok bool) {
	defer func() {
		if recover() != nil {
			n, ok = 0, false
		}
	}()

	var tiers [tierCount][]int64
	walkViewers(root, 0, &tiers)
	for _, tier := range tiers {
		for _, v := range tier {
			if v >= 0 {
				return v, true
			}
		}
	}
	return 0, false
}

func walkViewers(node any, depth int, tiers *[tierCount][]int64) {
	if depth > maxWalkDepth {
		return
	}
	switch v := node.(type) {
	case map[string]any:
		if vc, ok := v["viewCount"].(map[string]any); ok {
			if runs, ok := vc["runs"].([]any); ok {
				if n, ok := NumberFromText(joinRuns(runs)); ok {
					tiers[tierViewCountRuns] = append(tiers[tierViewCountRuns], n)
				}
			}
			if s, ok := vc["simpleText"].(string); ok {
				if n, ok := NumberFromText(s); ok {
					tiers[tierViewCountSimpleText] = append(tiers[tierViewCountSimpleText], n)
				}
			}
		}
		if runs, ok := v["runs"].([]any); ok {
			joined := joinRuns(runs)
			if viewerPhrasePattern.MatchString(joined) {
				if n, ok := NumberFromText(joined); ok {
					tiers[tierPhraseRuns] = append(tiers[tierPhraseRuns], n)
				}
			}
		}
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			child := v[k]
			if s, ok := child.(string); ok {
				if viewerPhrasePattern.MatchString(s) {
					if n, ok := NumberFromText(s); ok {
						tiers[tierPhraseString] = append(tiers[tierPhraseString], n)
					}
				}
				continue
			}
			walkViewers(child, depth+1, tiers)
		}
	case []any:
		for _, item := range v {
			walkViewers(item, depth+1, tiers)
		}
	}
}

// joinRuns concatenates the text fields of a runs[] array.
func joinRuns(runs []any) string {
	var b strings.Builder
	for _, r := range runs {
		if m, ok := r.(map[string]any); ok {
			if t, ok := m["text"].(string); ok {
				b.WriteString(t)
			}
		}
	}
	return b.String()
}

// IsLiveNowIndicated reports whether a watch page looks like a currently-live
// broadcast. The check is a deliberately permissive OR of a structured
// player-response flag, a loose flag-token substring, and free-text live
// phrasing: missing a real live stream costs more than a false positive,
// which the caller's verification path filters out downstream.
func IsLiveNowIndicated(html string) bool {
	if pr := NamedJSON(html, "ytInitialPlayerResponse"); pr != nil {
		if playerResponseIndicatesLive(pr) {
			return true
		}
	}
	if strings.Contains(html, `"isLiveNow":true`) || strings.Contains(html, `"isLive":true`) {
		return true
	}
	return liveNowPhrasePattern.MatchString(html)
}

// playerResponseIndicatesLive checks the structured live flags under a parsed
// player response: videoDetails.isLive and
// microformat.playerMicroformatRenderer.liveBroadcastDetails.isLiveNow.
func playerResponseIndicatesLive(pr map[string]any) bool {
	if vd, ok := pr["videoDetails"].(map[string]any); ok {
		if live, ok := vd["isLive"].(bool); ok && live {
			return true
		}
	}
	mf, ok := pr["microformat"].(map[string]any)
	if !ok {
		return false
	}
	pmr, ok := mf["playerMicroformatRenderer"].(map[string]any)
	if !ok {
		return false
	}
	lbd, ok := pmr["liveBroadcastDetails"].(map[string]any)
	if !ok {
		return false
	}
	live, ok := lbd["isLiveNow"].(bool)
	return ok && live
}
