package feed

import (
	"regexp"
	"strings"

	"github.com/samber/lo"
)

// Mention handles are email local parts, so the token charset mirrors what we
// accept on the left of the @ in an address.
var mentionPattern = regexp.MustCompile(`@([a-zA-Z0-9._%+\-]+)`)

// ExtractMentions pulls @handle tokens out of a post or comment body,
// lowercased and deduplicated in order of first appearance. Resolution
// against the directory happens later; unknown handles are simply dropped
// there.
func ExtractMentions(body string) []string {
	matches := mentionPattern.FindAllStringSubmatch(body, -1)
	if len(matches) == 0 {
		return nil
	}
	handles := lo.Map(matches, func(m []string, _ int) string {
		return strings.ToLower(strings.Trim(m[1], "."))
	})
	handles = lo.Filter(handles, func(h string, _ int) bool { return h != "" })
	return lo.Uniq(handles)
}
