package models

import "time"

// Storage rows that back the narrative collaborator and the file validator.
// They are not part of the public job model.

// Schema is a stored JSON schema document addressed by version, e.g.
// "project-file/v1".
type Schema struct {
	ID          int64     `json:"id"`
	Version     string    `json:"version"`
	Description string    `json:"description,omitempty"`
	Document    string    `json:"schema_json"`
	Created     time.Time `json:"created"`
	Updated     time.Time `json:"updated"`
}

// Template is a versioned prompt template. SchemaVersion names the schema the
// model response must satisfy; empty means unchecked.
type Template struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	Version       string    `json:"version"`
	Text          string    `json:"template_text"`
	SchemaVersion string    `json:"schema_version,omitempty"`
	Metadata      string    `json:"metadata,omitempty"`
	Created       time.Time `json:"created"`
	Updated       time.Time `json:"updated"`
}
