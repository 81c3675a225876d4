package models

import "time"

// OpportunityWritten carries the before/after snapshots of one opportunity write.
// A nil After means the document was deleted; a nil Before means it was created.
type OpportunityWritten struct {
	OpportunityID string       `json:"opportunityId"`
	Before        *Opportunity `json:"before,omitempty"`
	After         *Opportunity `json:"after,omitempty"`
	WrittenAt     time.Time    `json:"writtenAt"`
}
