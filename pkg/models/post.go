package models

// Post represents one blog post in the website repository.
type Post struct {
	Title    string   `json:"title"`
	Author   string   `json:"author"`
	Hero     string   `json:"hero"`
	Overlay  string   `json:"overlay"`
	Tags     []string `json:"tags"`
	Contents string   `json:"contents"`
	// Path is set when the post is an existing committed file being edited.
	Path string `json:"path,omitempty"`
	// Ref is set when the post under edit lives on a pull request branch.
	Ref string `json:"ref,omitempty"`
}

// SubmissionRequest is the raw form input for one post submission. Tags arrive
// as a single comma separated string and are split during document rendering.
type SubmissionRequest struct {
	Title    string `form:"title"`
	Author   string `form:"author"`
	Markdown string `form:"markdownArea"`
	Tags     string `form:"tags"`
	Overlay  string `form:"overlay"`
	Hero     string `form:"hero"`
	Path     string `form:"-"`
	Ref      string `form:"-"`
}
