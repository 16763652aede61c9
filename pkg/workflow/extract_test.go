package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractTag(t *testing.T) {
	tests := []struct {
		name string
		text string
		tag  string
		want string
	}{
		{
			name: "round trip with trimming",
			text: "prefix <x> CONTENT </x> suffix",
			tag:  "x",
			want: "CONTENT",
		},
		{
			name: "inner whitespace preserved",
			text: "<x>line one\n  line two</x>",
			tag:  "x",
			want: "line one\n  line two",
		},
		{
			name: "case mismatch is empty",
			text: "<X>CONTENT</X>",
			tag:  "x",
			want: "",
		},
		{
			name: "nested tags returned verbatim",
			text: "<outer><inner>content</inner></outer>",
			tag:  "outer",
			want: "<inner>content</inner>",
		},
		{
			name: "non-greedy stops at first close",
			text: "<x>first</x> and <x>second</x>",
			tag:  "x",
			want: "first",
		},
		{
			name: "absent tag is empty",
			text: "no tags here",
			tag:  "x",
			want: "",
		},
		{
			name: "unclosed tag is empty",
			text: "<x>never closed",
			tag:  "x",
			want: "",
		},
		{
			name: "regex metacharacters in tag name are literal",
			text: "<a.b>match</a.b> <axb>wrong</axb>",
			tag:  "a.b",
			want: "match",
		},
		{
			name: "interior spans newlines",
			text: "<x>\nmultiline\ncontent\n</x>",
			tag:  "x",
			want: "multiline\ncontent",
		},
		{
			name: "empty tag name",
			text: "<x>content</x>",
			tag:  "",
			want: "",
		},
		{
			name: "empty interior is valid",
			text: "<x></x>",
			tag:  "x",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractTag(tt.text, tt.tag))
		})
	}
}
