package domain

// OutputOption describes one user-selectable output setting for the UI.
type OutputOption struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}
