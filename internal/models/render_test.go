package models_test

import (
	"strings"
	"testing"

	"github.com/modkit/chatstream/internal/models"
)

func TestRenderHTML(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		wantFrag string
	}{
		{
			name:     "heading",
			content:  "# Hello",
			wantFrag: "<h1",
		},
		{
			name:     "emphasis",
			content:  "some *emphasis* here",
			wantFrag: "<em>emphasis</em>",
		},
		{
			name:     "fenced code block",
			content:  "```go\nfmt.Println(\"hi\")\n```",
			wantFrag: "Println",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := models.RenderHTML(tt.content)
			if err != nil {
				t.Fatalf("RenderHTML() error = %v", err)
			}
			if !strings.Contains(got, tt.wantFrag) {
				t.Errorf("RenderHTML() = %q, want to contain %q", got, tt.wantFrag)
			}
		})
	}
}
