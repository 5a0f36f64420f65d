package task_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/rpggio/searchstudy/internal/domain/task"
)

func TestRenderCitations(t *testing.T) {
	who := task.Source{ID: 1, Title: "WHO", URL: "https://who.int"}
	fda := task.Source{ID: 2, Title: "FDA", URL: "https://fda.gov"}

	tests := []struct {
		name    string
		text    string
		sources []task.Source
		want    []task.Segment
	}{
		{
			name:    "unmatched marker stays text",
			text:    "See [Source 1] and [Source 3].",
			sources: []task.Source{who},
			want: []task.Segment{
				{Text: "See "},
				{Badge: &who},
				{Text: " and [Source 3]."},
			},
		},
		{
			name:    "adjacent markers",
			text:    "[Source 2][Source 1]",
			sources: []task.Source{who, fda},
			want:    []task.Segment{{Badge: &fda}, {Badge: &who}},
		},
		{
			name:    "no sources",
			text:    "Plain [Source 1] text",
			sources: nil,
			want:    []task.Segment{{Text: "Plain [Source 1] text"}},
		},
		{
			name:    "other bracket forms untouched",
			text:    "[source 1] [Source one] [Source 1 ] [1]",
			sources: []task.Source{who},
			want:    []task.Segment{{Text: "[source 1] [Source one] [Source 1 ] [1]"}},
		},
		{
			name:    "huge number",
			text:    "x [Source 99999999999999999999] y",
			sources: []task.Source{who},
			want:    []task.Segment{{Text: "x [Source 99999999999999999999] y"}},
		},
		{
			name: "empty",
			text: "",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := task.RenderCitations(tt.text, tt.sources)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("segments mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
