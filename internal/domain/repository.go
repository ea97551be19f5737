package domain

// ValidationStatus is the backend verdict on a repository.
type ValidationStatus string

const (
	ValidationUnknown  ValidationStatus = "unknown"
	ValidationValid    ValidationStatus = "valid"
	ValidationInvalid  ValidationStatus = "invalid"
	ValidationTooLarge ValidationStatus = "too_large"
	ValidationError    ValidationStatus = "error"
)

// RepositoryContext describes the repository a user is chatting about.
type RepositoryContext struct {
	URL              string           `json:"url"`
	Branch           string           `json:"branch"`
	Name             string           `json:"name"`
	Owner            string           `json:"owner"`
	IsPrivate        bool             `json:"is_private"`
	ValidationStatus ValidationStatus `json:"validation_status"`
	Cached           bool             `json:"cached"`
}

// SuggestedFile is a ranked file suggestion for chat context.
type SuggestedFile struct {
	Path   string  `json:"path"`
	Score  float64 `json:"score"`
	Reason string  `json:"reason,omitempty"`
	Size   int64   `json:"size,omitempty"`
}
