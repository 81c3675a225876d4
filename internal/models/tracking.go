package models

import (
	"fmt"
	"time"
)

// TrackingStatus is a user's progress on an opportunity.
type TrackingStatus string

const (
	TrackingApplied   TrackingStatus = "applied"
	TrackingAdmitCard TrackingStatus = "admit_card"
	TrackingExamDone  TrackingStatus = "exam_done"
)

// TrackingStatuses lists accepted values in display order.
var TrackingStatuses = []TrackingStatus{TrackingApplied, TrackingAdmitCard, TrackingExamDone}

// ParseTrackingStatus converts a raw string, rejecting unknown values.
func ParseTrackingStatus(s string) (TrackingStatus, error) {
	for _, st := range TrackingStatuses {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown tracking status %q", s)
}

// Tracking is at most one row per (user, opportunity).
type Tracking struct {
	ID            string         `json:"id"`
	UserID        string         `json:"userId"`
	OpportunityID string         `json:"opportunityId"`
	Status        TrackingStatus `json:"status"`
	UpdatedAt     time.Time      `json:"updatedAt"`
}

// TrackingID builds the composite natural key.
func TrackingID(userID, opportunityID string) string {
	return userID + "_" + opportunityID
}
