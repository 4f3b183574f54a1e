package services

import (
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-slug"
	"gopkg.in/yaml.v3"

	"jekyll-post-editor/pkg/models"
)

// leadBreakSection separates the post lead from the rest of the contents on
// the rendered site. The marker text is what the Jekyll theme expects,
// unusual dashes included, so it must never be "fixed".
const leadBreakSection = "{: .lead}\r\n<!–-break-–>\r\n"

// RenderPostText builds the canonical Jekyll document for a post: a front
// matter block with keys in fixed order, the lead break marker, then the
// header-normalized markdown contents. Front matter lines use CRLF endings to
// match the files already committed to the site repository; the body is
// appended with whatever line endings it came with.
func RenderPostText(post models.Post) string {
	var b strings.Builder
	b.WriteString("---\r\n")
	b.WriteString("layout: post\r\n")
	fmt.Fprintf(&b, "title: %s\r\n", post.Title)
	fmt.Fprintf(&b, "author: %s\r\n", post.Author)
	if len(post.Tags) > 0 {
		b.WriteString("tags:\r\n")
		for _, tag := range post.Tags {
			fmt.Fprintf(&b, "  - %s\r\n", tag)
		}
	}
	fmt.Fprintf(&b, "hero: %s\r\n", post.Hero)
	fmt.Fprintf(&b, "overlay: %s\r\n", strings.ToLower(post.Overlay))
	b.WriteString("published: true\r\n")
	b.WriteString("---\r\n")
	b.WriteString(leadBreakSection)
	b.WriteString(NormalizeHeaders(post.Contents))
	return b.String()
}

type frontMatterEnvelope struct {
	Layout    string   `yaml:"layout"`
	Title     string   `yaml:"title"`
	Author    string   `yaml:"author"`
	Tags      []string `yaml:"tags"`
	Hero      string   `yaml:"hero"`
	Overlay   string   `yaml:"overlay"`
	Published bool     `yaml:"published"`
}

// ParsePostText reconstructs a Post from a stored document. The body is kept
// byte for byte as committed, minus the lead break marker, so a rendered
// document parses back into an equivalent Post.
func ParsePostText(content []byte) (models.Post, error) {
	block, body, ok := splitFrontMatter(string(content))
	if !ok {
		return models.Post{}, fmt.Errorf("document has no front matter block")
	}

	var fm frontMatterEnvelope
	if err := yaml.Unmarshal([]byte(block), &fm); err != nil {
		return models.Post{}, fmt.Errorf("parse front matter: %w", err)
	}

	body = strings.TrimPrefix(body, "\r\n")
	body = strings.TrimPrefix(body, "\n")
	body = strings.TrimPrefix(body, leadBreakSection)

	return models.Post{
		Title:    fm.Title,
		Author:   fm.Author,
		Hero:     fm.Hero,
		Overlay:  fm.Overlay,
		Tags:     fm.Tags,
		Contents: body,
	}, nil
}

// splitFrontMatter separates the YAML block from the body. The closing
// delimiter must be a line consisting of exactly ---, so field values that
// happen to contain the characters do not end the block early.
func splitFrontMatter(str string) (block, body string, ok bool) {
	if !strings.HasPrefix(str, "---") {
		return "", "", false
	}
	rest := str[len("---"):]
	for i := 0; ; {
		j := strings.Index(rest[i:], "\n---")
		if j < 0 {
			return "", "", false
		}
		end := i + j
		after := strings.TrimPrefix(rest[end+len("\n---"):], "\r")
		if after == "" || strings.HasPrefix(after, "\n") {
			return rest[:end], after, true
		}
		i = end + 1
	}
}

// PostFilename derives the Jekyll storage filename for a new post:
// a date prefix followed by the slugified title.
func PostFilename(title string) string {
	s, err := slug.Normalize(title)
	if err != nil || s == "" {
		s = strings.ToLower(strings.Join(strings.Fields(title), "-"))
	}
	return fmt.Sprintf("%s-%s.md", time.Now().Format("2006-01-02"), s)
}
