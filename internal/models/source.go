package models

import "time"

// SourceStatus controls whether the poller visits a source.
type SourceStatus string

const (
	SourceActive   SourceStatus = "active"
	SourceInactive SourceStatus = "inactive"
)

// DefaultCheckFrequencyMinutes is applied when a source is registered without one.
const DefaultCheckFrequencyMinutes = 60

// Source is a monitored page whose content is hashed on every poll.
type Source struct {
	ID                    string       `json:"id"`
	Name                  string       `json:"name"`
	URL                   string       `json:"url"`
	CheckFrequencyMinutes int          `json:"checkFrequencyMinutes"`
	LastHash              *string      `json:"lastHash"`
	LastCheckedAt         *time.Time   `json:"lastCheckedAt"`
	Status                SourceStatus `json:"status"`
}

// NewSource fills the defaults a freshly registered source carries.
func NewSource(id, name, url string) Source {
	return Source{
		ID:                    id,
		Name:                  name,
		URL:                   url,
		CheckFrequencyMinutes: DefaultCheckFrequencyMinutes,
		Status:                SourceActive,
	}
}

// IsActive reports whether the poller should check this source.
func (s Source) IsActive() bool { return s.Status == SourceActive }
