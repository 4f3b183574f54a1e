package services

import (
	"bytes"
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"

	"jekyll-post-editor/pkg/models"
)

// reImage matches a markdown image reference ![alt](url).
var reImage = regexp.MustCompile(`!\[([^\]]*)\]\(([^)]+)\)`)

var previewRenderer = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(html.WithUnsafe()),
)

// NormalizeHeaders inserts the space kramdown requires between a run of one
// to six leading # characters and the header text. Correctly spaced headers
// and runs longer than six are left alone, so the fix-up is idempotent.
func NormalizeHeaders(markdown string) string {
	lines := strings.Split(markdown, "\n")
	for i, line := range lines {
		n := 0
		for n < len(line) && line[n] == '#' {
			n++
		}
		if n == 0 || n > 6 || n == len(line) {
			continue
		}
		rest := line[n:]
		if rest[0] == ' ' || strings.TrimSpace(rest) == "" {
			continue
		}
		lines[i] = line[:n] + " " + rest
	}
	return strings.Join(lines, "\n")
}

// RewriteStagedImageLinks repoints image references at their staged preview
// paths. staged maps an uploaded filename to the path its preview is served
// from; references are matched by final path segment only, and references
// with no staged entry pass through untouched.
func RewriteStagedImageLinks(markdown string, staged map[string]string) string {
	if len(staged) == 0 {
		return markdown
	}
	return reImage.ReplaceAllStringFunc(markdown, func(ref string) string {
		m := reImage.FindStringSubmatch(ref)
		preview, ok := staged[path.Base(m[2])]
		if !ok {
			return ref
		}
		return fmt.Sprintf("![%s](%s)", m[1], preview)
	})
}

// MarkdownIncludesImage reports whether some image reference in the markdown
// points at the given filename.
func MarkdownIncludesImage(filename, markdown string) bool {
	for _, m := range reImage.FindAllStringSubmatch(markdown, -1) {
		if path.Base(m[2]) == filename {
			return true
		}
	}
	return false
}

// SplitTags turns the comma separated tags input into an ordered list,
// trimming whitespace around each tag and dropping empty entries.
func SplitTags(tags string) []string {
	var result []string
	for _, tag := range strings.Split(tags, ",") {
		if trimmed := strings.TrimSpace(tag); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// CreateJekyllPostText assembles the full document text for a submission from
// its raw form fields.
func CreateJekyllPostText(markdown, author, title, tags, overlay, hero string) string {
	return RenderPostText(models.Post{
		Title:    title,
		Author:   author,
		Hero:     hero,
		Overlay:  overlay,
		Tags:     SplitTags(tags),
		Contents: markdown,
	})
}

// GetPreview converts markdown to HTML for the edit screen preview pane.
// Staged image references are rewritten first so the preview shows the
// uploaded image rather than a dead repository path.
func GetPreview(markdown string, staged map[string]string) (string, error) {
	rewritten := RewriteStagedImageLinks(markdown, staged)

	var buf bytes.Buffer
	if err := previewRenderer.Convert([]byte(rewritten), &buf); err != nil {
		return "", fmt.Errorf("render preview: %w", err)
	}
	return buf.String(), nil
}
