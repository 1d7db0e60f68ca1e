package feed

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractMentions(t *testing.T) {
	tests := []struct {
		name string
		body string
		want []string
	}{
		{
			name: "no mentions",
			body: "shipping the new onboarding flow today",
			want: nil,
		},
		{
			name: "single mention",
			body: "great work @jane.doe on the release",
			want: []string{"jane.doe"},
		},
		{
			name: "multiple mentions keep first-seen order",
			body: "@bob please sync with @alice and @bob again",
			want: []string{"bob", "alice"},
		},
		{
			name: "handles are lowercased",
			body: "thanks @Jane.Doe!",
			want: []string{"jane.doe"},
		},
		{
			name: "trailing sentence dot is not part of the handle",
			body: "ping @carol.",
			want: []string{"carol"},
		},
		{
			name: "mention mid-word is still extracted",
			body: "email-style text cc@dept counts",
			want: []string{"dept"},
		},
		{
			name: "bare at sign",
			body: "meet @ noon",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractMentions(tt.body)
			if tt.want == nil {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}
