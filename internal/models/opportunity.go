package models

import (
	"fmt"
	"time"
)

// VerificationStatus is the publication gate of an opportunity.
// Only unverified -> verified is acted on by the pipeline; rejected is terminal.
type VerificationStatus string

const (
	Unverified VerificationStatus = "unverified"
	Verified   VerificationStatus = "verified"
	Rejected   VerificationStatus = "rejected"
)

// ParseVerificationStatus converts a raw string, rejecting unknown values.
func ParseVerificationStatus(s string) (VerificationStatus, error) {
	v := VerificationStatus(s)
	switch v {
	case Unverified, Verified, Rejected:
		return v, nil
	}
	return "", fmt.Errorf("unknown verification status %q", s)
}

// Opportunity is a job or exam posting. It is publicly visible and
// notifiable only while Verified == Verified.
type Opportunity struct {
	ID             string             `json:"id"`
	Title          string             `json:"title"`
	State          string             `json:"state,omitempty"`
	Qualification  string             `json:"qualification,omitempty"`
	StartDate      string             `json:"startDate,omitempty"`
	EndDate        string             `json:"endDate,omitempty"`
	OfficialURL    string             `json:"officialUrl"`
	SourceID       string             `json:"sourceId,omitempty"`
	Verified       VerificationStatus `json:"verified"`
	LastVerifiedAt *time.Time         `json:"lastVerifiedAt"`
	CreatedAt      time.Time          `json:"createdAt"`
	UpdatedAt      time.Time          `json:"updatedAt"`
}

// IsVerified is the verification gate.
func (o Opportunity) IsVerified() bool { return o.Verified == Verified }

// MarkUnverified resets the gate. lastVerifiedAt is kept only for verified records.
func (o *Opportunity) MarkUnverified() {
	o.Verified = Unverified
	o.LastVerifiedAt = nil
}

// MarkVerified opens the gate and stamps the verification time.
func (o *Opportunity) MarkVerified(at time.Time) {
	o.Verified = Verified
	t := at.UTC()
	o.LastVerifiedAt = &t
}

// MarkRejected closes the gate for good.
func (o *Opportunity) MarkRejected() {
	o.Verified = Rejected
	o.LastVerifiedAt = nil
}
