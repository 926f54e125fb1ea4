package github

// User is the subset of a GitHub account the agents read.
type User struct {
	Login string `json:"login"`
}

// PullRequest mirrors the fields of GET /repos/{owner}/{repo}/pulls/{n} that are used.
// Additions and Deletions are only populated by the single-PR endpoint.
type PullRequest struct {
	Number    int     `json:"number"`
	Title     string  `json:"title"`
	User      User    `json:"user"`
	State     string  `json:"state"`
	HTMLURL   string  `json:"html_url"`
	Body      string  `json:"body"`
	CreatedAt string  `json:"created_at"`
	UpdatedAt string  `json:"updated_at"`
	MergedAt  *string `json:"merged_at"`
	Additions int     `json:"additions"`
	Deletions int     `json:"deletions"`
}

// Merged reports whether the PR carries a merge timestamp.
func (p PullRequest) Merged() bool {
	return p.MergedAt != nil && *p.MergedAt != ""
}

// File is one entry of GET /repos/{owner}/{repo}/pulls/{n}/files.
type File struct {
	Filename  string `json:"filename"`
	Status    string `json:"status"`
	Additions int    `json:"additions"`
	Deletions int    `json:"deletions"`
}
