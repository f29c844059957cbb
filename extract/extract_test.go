package extract

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestNamedJSON(t *testing.T) {
	tests := []struct {
		name    string
		html    string
		varName string
		wantNil bool
		wantKey string
	}{
		{
			name:    "script assignment with terminator",
			html:    `<script>var ytInitialData = {"contents":{"a":1}};</script>`,
			varName: "ytInitialData",
			wantKey: "contents",
		},
		{
			name:    "bare assignment",
			html:    `window.ytInitialPlayerResponse = {"videoDetails":{"isLive":true}};`,
			varName: "ytInitialPlayerResponse",
			wantKey: "videoDetails",
		},
		{
			name:    "quoted key form",
			html:    `{"player":{"args":{"player_response": {"x":1} ,"other":2}}}`,
			varName: "player_response",
			wantKey: "x",
		},
		{
			name:    "malformed json yields nil",
			html:    `var ytInitialData = {"unterminated": ;`,
			varName: "ytInitialData",
			wantNil: true,
		},
		{
			name:    "absent variable yields nil",
			html:    `<html><body>nothing here</body></html>`,
			varName: "ytInitialData",
			wantNil: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NamedJSON(tt.html, tt.varName)
			if tt.wantNil {
				if got != nil {
					t.Fatalf("NamedJSON() = %v, want nil", got)
				}
				return
			}
			if got == nil {
				t.Fatal("NamedJSON() = nil, want object")
			}
			if _, ok := got[tt.wantKey]; !ok {
				t.Errorf("NamedJSON() missing key %q: %v", tt.wantKey, got)
			}
		})
	}
}

func TestNumberFromText(t *testing.T) {
	tests := []struct {
		in     string
		want   int64
		wantOK bool
	}{
		{"12,453", 12453, true},
		{"12.453", 12453, true},
		{"12 453", 12453, true},
		{"12\u00a0453 watching now", 12453, true},
		{"12\u202f453", 12453, true},
		{"1,234 watching now", 1234, true},
		{"7 watching now", 7, true},
		{"0", 0, true},
		{"no digits here", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := NumberFromText(tt.in)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("NumberFromText(%q) = %d, %v; want %d, %v", tt.in, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func decodeTree(t *testing.T, s string) any {
	t.Helper()
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		t.Fatalf("bad test json: %v", err)
	}
	return v
}

func TestFindConcurrentViewers(t *testing.T) {
	tests := []struct {
		name   string
		tree   string
		want   int64
		wantOK bool
	}{
		{
			name:   "viewCount simpleText",
			tree:   `{"viewCount":{"simpleText":"1,234 watching now"}}`,
			want:   1234,
			wantOK: true,
		},
		{
			name:   "viewCount runs",
			tree:   `{"videoViewCountRenderer":{"viewCount":{"runs":[{"text":"12,453"},{"text":" watching now"}]}}}`,
			want:   12453,
			wantOK: true,
		},
		{
			name:   "runs over simpleText when both present",
			tree:   `{"viewCount":{"runs":[{"text":"500"},{"text":" watching"}],"simpleText":"999 watching now"}}`,
			want:   500,
			wantOK: true,
		},
		{
			name:   "phrase-matching runs fallback",
			tree:   `{"header":{"info":{"runs":[{"text":"2 048"},{"text":" viewers"}]}}}`,
			want:   2048,
			wantOK: true,
		},
		{
			name:   "phrase-matching string fallback, nested deep",
			tree:   `{"a":{"b":{"c":{"label":"3,072 people watching now"}}}}`,
			want:   3072,
			wantOK: true,
		},
		{
			name:   "localized phrase",
			tree:   `{"overlay":{"text":"12.453 espectadores"}}`,
			want:   12453,
			wantOK: true,
		},
		{
			name:   "no candidates",
			tree:   `{"title":"Some video","likes":"12,000 likes"}`,
			wantOK: false,
		},
		{
			name:   "non-object root",
			tree:   `"just a string"`,
			wantOK: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := FindConcurrentViewers(decodeTree(t, tt.tree))
			if ok != tt.wantOK {
				t.Fatalf("FindConcurrentViewers() ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && got != tt.want {
				t.Errorf("FindConcurrentViewers() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestFindConcurrentViewersNilAndDepth(t *testing.T) {
	if _, ok := FindConcurrentViewers(nil); ok {
		t.Error("nil root should yield no viewers")
	}

	// Build a tree deeper than the walk limit with the only candidate at the
	// bottom; it must be skipped rather than overflowing the stack.
	leaf := map[string]any{"viewCount": map[string]any{"simpleText": "42 watching now"}}
	node := any(leaf)
	for i := 0; i < maxWalkDepth+10; i++ {
		node = map[string]any{"wrap": node}
	}
	if _, ok := FindConcurrentViewers(node); ok {
		t.Error("candidate below depth limit should be ignored")
	}

	// Same candidate above the limit is found.
	shallow := map[string]any{"wrap": any(leaf)}
	if n, ok := FindConcurrentViewers(shallow); !ok || n != 42 {
		t.Errorf("shallow candidate = %d, %v; want 42, true", n, ok)
	}
}

func TestIsLiveNowIndicated(t *testing.T) {
	tests := []struct {
		name string
		html string
		want bool
	}{
		{
			name: "structured isLiveNow flag",
			html: `<script>var ytInitialPlayerResponse = {"microformat":{"playerMicroformatRenderer":{"liveBroadcastDetails":{"isLiveNow":true}}}};</script>`,
			want: true,
		},
		{
			name: "structured videoDetails isLive",
			html: `ytInitialPlayerResponse = {"videoDetails":{"isLive":true}};`,
			want: true,
		},
		{
			name: "loose token anywhere in html",
			html: `<html>... "isLiveNow":true ...</html>`,
			want: true,
		},
		{
			name: "free-text watching now phrase",
			html: `<span>1,234 watching now</span>`,
			want: true,
		},
		{
			name: "localized phrase",
			html: `<span>1.2万人が視聴中</span>`,
			want: true,
		},
		{
			name: "ended broadcast",
			html: `ytInitialPlayerResponse = {"microformat":{"playerMicroformatRenderer":{"liveBroadcastDetails":{"isLiveNow":false}}}}; <span>streamed 3 hours ago</span>`,
			want: false,
		},
		{
			name: "plain vod page",
			html: `<html><body>12,000 views</body></html>`,
			want: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsLiveNowIndicated(tt.html); got != tt.want {
				t.Errorf("IsLiveNowIndicated() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNamedJSONDoesNotPanicOnHugeInput(t *testing.T) {
	var b strings.Builder
	b.WriteString(`var ytInitialData = {"a":`)
	for i := 0; i < 1000; i++ {
		b.WriteString(`{"b":`)
	}
	// never closed: unparseable on purpose
	if got := NamedJSON(b.String(), "ytInitialData"); got != nil {
		t.Errorf("expected nil for unterminated blob, got %v", got)
	}
}
