package domain

// MaxFileContentChars is the largest file content accepted for transmission.
const MaxFileContentChars = 1_000_000

// FileContext is a repository file attached to a chat request.
type FileContext struct {
	Path        string `json:"path"`
	Content     string `json:"content"`
	Branch      string `json:"branch"`
	ContentHash string `json:"content_hash,omitempty"`
}

// Key returns the store key for the file, "branch:path".
func (f FileContext) Key() string {
	return FileKey(f.Path, f.Branch)
}

// FileKey builds the store key for a path on a branch.
func FileKey(path, branch string) string {
	return branch + ":" + path
}
