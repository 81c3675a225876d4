// Package policy evaluates per-document access rules for the stored collections.
//
//	opportunities  read: anyone if verified, admin always   write: admin
//	sources        read/write: admin
//	tracking       read/write: the user named by the row's userId
//	users          read/write: the user whose uid is the document id
package policy

import (
	"errors"
	"strings"

	"github.com/govtrack/backend/internal/models"
)

// ErrForbidden is returned when a rule denies access.
var ErrForbidden = errors.New("forbidden")

// Collection names a stored collection.
type Collection string

const (
	Opportunities Collection = "opportunities"
	Sources       Collection = "sources"
	Tracking      Collection = "tracking"
	Users         Collection = "users"
)

// Action is what the caller wants to do with a document.
type Action int

const (
	Read Action = iota
	Write
)

// Resource describes the document an access decision is about.
type Resource struct {
	Collection Collection
	ID         string
	// OwnerID is the userId stored on tracking rows.
	OwnerID string
	// Verified is the verification status of an opportunity.
	Verified models.VerificationStatus
}

// Policy holds the rule parameters.
type Policy struct {
	adminEmail string
}

// New returns a policy granting admin rights to the identity carrying adminEmail.
func New(adminEmail string) Policy {
	return Policy{adminEmail: strings.ToLower(strings.TrimSpace(adminEmail))}
}

// IsAdmin reports whether actor is the configured admin.
func (p Policy) IsAdmin(actor *models.Identity) bool {
	if actor == nil || p.adminEmail == "" {
		return false
	}
	return strings.ToLower(strings.TrimSpace(actor.Email)) == p.adminEmail
}

// Allow evaluates the rules. A nil actor is an unauthenticated caller.
func (p Policy) Allow(actor *models.Identity, action Action, res Resource) bool {
	switch res.Collection {
	case Opportunities:
		if action == Read && res.Verified == models.Verified {
			return true
		}
		return p.IsAdmin(actor)
	case Sources:
		return p.IsAdmin(actor)
	case Tracking:
		return actor != nil && actor.UID != "" && actor.UID == res.OwnerID
	case Users:
		return actor != nil && actor.UID != "" && actor.UID == res.ID
	}
	return false
}

// Check is Allow returning ErrForbidden on denial.
func (p Policy) Check(actor *models.Identity, action Action, res Resource) error {
	if !p.Allow(actor, action, res) {
		return ErrForbidden
	}
	return nil
}
