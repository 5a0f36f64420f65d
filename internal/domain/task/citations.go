package task

import (
	"regexp"
	"strconv"
)

var citationMarker = regexp.MustCompile(`\[Source (\d+)\]`)

// Segment is a piece of rendered assistant text: either plain text or a
// resolved citation badge.
type Segment struct {
	Text  string  `json:"text,omitempty"`
	Badge *Source `json:"badge,omitempty"`
}

// RenderCitations splits text at [Source k] markers. Markers whose k matches a
// source id become badges; all other text, including unmatched markers, is
// kept verbatim.
func RenderCitations(text string, sources []Source) []Segment {
	byID := make(map[int]Source, len(sources))
	for _, s := range sources {
		byID[s.ID] = s
	}

	var segs []Segment
	plain := func(s string) {
		if s == "" {
			return
		}
		if n := len(segs); n > 0 && segs[n-1].Badge == nil {
			segs[n-1].Text += s
			return
		}
		segs = append(segs, Segment{Text: s})
	}

	last := 0
	for _, m := range citationMarker.FindAllStringSubmatchIndex(text, -1) {
		id, err := strconv.Atoi(text[m[2]:m[3]])
		src, ok := byID[id]
		if err != nil || !ok {
			continue
		}
		plain(text[last:m[0]])
		badge := src
		segs = append(segs, Segment{Badge: &badge})
		last = m[1]
	}
	plain(text[last:])
	return segs
}
