// Package staterepo snapshots dialog state so an authentication attempt
// survives navigations and app switches within one browser tab's lifetime.
package staterepo

import (
	"context"
	"time"

	"github.com/jrsteele09/go-passwordless/passwordless"
)

// Snapshot is the persisted dialog state. The dialog owns it exclusively;
// this layer only serializes and merges, it never mutates independently.
type Snapshot struct {
	IsOpen          bool                                `json:"isOpen"`
	Step            string                              `json:"step,omitempty"`
	Email           string                              `json:"email,omitempty"`
	Code            string                              `json:"code,omitempty"`
	Phone           string                              `json:"phone,omitempty"`
	Session         *passwordless.AuthSession           `json:"session,omitempty"`
	SelectedMethod  string                              `json:"selectedMethod,omitempty"`
	ProfilePhone    string                              `json:"profilePhone,omitempty"`
	ProfileLocation string                              `json:"profileLocation,omitempty"`
	PendingProfile  *passwordless.UserProfileAttributes `json:"pendingProfile,omitempty"`
	SavedAt         time.Time                           `json:"savedAt,omitempty"`
}

// Partial is a sparse update: only non-nil fields are merged into the stored
// snapshot, so callers persist exactly the fields that changed.
type Partial struct {
	IsOpen          *bool
	Step            *string
	Email           *string
	Code            *string
	Phone           *string
	Session         *passwordless.AuthSession
	ClearSession    bool
	SelectedMethod  *string
	ProfilePhone    *string
	ProfileLocation *string
	PendingProfile  *passwordless.UserProfileAttributes
	ClearPending    bool
}

// Merge applies the partial to a snapshot. Unrelated fields are untouched,
// which makes saving the same partial twice equivalent to saving it once.
func Merge(base Snapshot, p Partial) Snapshot {
	if p.IsOpen != nil {
		base.IsOpen = *p.IsOpen
	}
	if p.Step != nil {
		base.Step = *p.Step
	}
	if p.Email != nil {
		base.Email = *p.Email
	}
	if p.Code != nil {
		base.Code = *p.Code
	}
	if p.Phone != nil {
		base.Phone = *p.Phone
	}
	if p.Session != nil {
		base.Session = p.Session
	}
	if p.ClearSession {
		base.Session = nil
	}
	if p.SelectedMethod != nil {
		base.SelectedMethod = *p.SelectedMethod
	}
	if p.ProfilePhone != nil {
		base.ProfilePhone = *p.ProfilePhone
	}
	if p.ProfileLocation != nil {
		base.ProfileLocation = *p.ProfileLocation
	}
	if p.PendingProfile != nil {
		base.PendingProfile = p.PendingProfile
	}
	if p.ClearPending {
		base.PendingProfile = nil
	}
	return base
}

// Repo stores one snapshot per browser-tab key with a short TTL.
//
// Load returns (nil, nil) when nothing is stored or the stored snapshot has
// expired; storage-level failures on Load are swallowed so a broken store
// degrades to "start over" rather than blocking the dialog.
type Repo interface {
	Save(ctx context.Context, key string, partial Partial) error
	Load(ctx context.Context, key string) (*Snapshot, error)
	Clear(ctx context.Context, key string) error
}
