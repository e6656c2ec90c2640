package api

// Slide describes a single rendered page in a transport-friendly format.
type Slide struct {
	Ordinal  int    `json:"ordinal"`
	Filename string `json:"filename"`
	Path     string `json:"path"`
}

// ConversionResult is returned once per successful conversion.
type ConversionResult struct {
	SessionID      string  `json:"sessionId"`
	SourceFilename string  `json:"sourceFilename"`
	Title          string  `json:"title,omitempty"`
	TotalSlides    int     `json:"totalSlides"`
	Slides         []Slide `json:"slides"`
	ArchivePath    string  `json:"archivePath,omitempty"`
	ExpiresAt      string  `json:"expiresAt,omitempty"`
}

// SessionSummary describes a live session for listings.
type SessionSummary struct {
	ID             string `json:"id"`
	Title          string `json:"title,omitempty"`
	SourceFilename string `json:"sourceFilename"`
	TotalSlides    int    `json:"totalSlides"`
	Status         string `json:"status"`
	CreatedAt      string `json:"createdAt,omitempty"`
	ExpiresAt      string `json:"expiresAt,omitempty"`
}

// SessionListResponse wraps a collection of sessions for API responses.
type SessionListResponse struct {
	Sessions []SessionSummary `json:"sessions"`
}

// DependencyStatus captures availability of an external dependency.
type DependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail,omitempty"`
}

// DirectoryStatus captures readiness of a configured directory.
type DirectoryStatus struct {
	Name   string `json:"name"`
	Path   string `json:"path"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running        bool               `json:"running"`
	PID            int                `json:"pid"`
	StartedAt      string             `json:"startedAt,omitempty"`
	ActiveSessions int                `json:"activeSessions"`
	IndexDBPath    string             `json:"indexDbPath"`
	LockFilePath   string             `json:"lockFilePath"`
	Dependencies   []DependencyStatus `json:"dependencies"`
	Directories    []DirectoryStatus  `json:"directories"`
}

// ErrorResponse is the structured error payload every endpoint returns on
// failure.
type ErrorResponse struct {
	Error string `json:"error"`
}
