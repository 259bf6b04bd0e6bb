package v1

import (
	"fmt"
	"strings"
	"time"

	"github.com/flanksource/gid-seminars/utils"
)

// AccessRestriction classifies who may attend an event.
type AccessRestriction string

const (
	AccessPublic       AccessRestriction = "Public"
	AccessRegistration AccessRestriction = "Registration Required"
	AccessNIHOnly      AccessRestriction = "NIH Only"
	AccessHHSOnly      AccessRestriction = "HHS Only"
	AccessMembersOnly  AccessRestriction = "Members Only"
	AccessUnknown      AccessRestriction = "Unknown"
)

var accessRestrictions = []AccessRestriction{
	AccessPublic, AccessRegistration, AccessNIHOnly, AccessHHSOnly, AccessMembersOnly, AccessUnknown,
}

// ParseAccessRestriction matches one of the enum values exactly.
func ParseAccessRestriction(s string) (AccessRestriction, bool) {
	for _, a := range accessRestrictions {
		if string(a) == s {
			return a, true
		}
	}
	return "", false
}

// DefaultEventDuration is used when an event has no end time.
const DefaultEventDuration = time.Hour

// Event is the normalized seminar record produced by every source.
type Event struct {
	ID                string            `json:"id"`
	SourceID          string            `json:"source_id"`
	Title             string            `json:"title"`
	Description       string            `json:"description,omitempty"`
	URL               string            `json:"url,omitempty"`
	Start             time.Time         `json:"start_datetime"`
	End               *time.Time        `json:"end_datetime,omitempty"`
	Timezone          string            `json:"timezone"`
	Location          string            `json:"location,omitempty"`
	Organizer         string            `json:"organizer,omitempty"`
	Category          string            `json:"category,omitempty"`
	Tags              []string          `json:"tags"`
	AccessRestriction AccessRestriction `json:"access_restriction"`
	RegistrationURL   string            `json:"registration_url,omitempty"`
	RecordingURL      string            `json:"recording_url,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
	Checksum          string            `json:"checksum"`
	Raw               map[string]any    `json:"raw_data,omitempty"`
}

// NewEvent normalizes the title, applies defaults and computes both
// fingerprints. It fails when the title is blank or the start is missing.
func NewEvent(e Event) (*Event, error) {
	e.Title = NormalizeTitle(e.Title)
	if e.SourceID == "" {
		return nil, &ValidationError{Field: "source_id", Message: "is required"}
	}
	if e.Title == "" {
		return nil, &ValidationError{SourceID: e.SourceID, Field: "title", Message: "is required"}
	}
	if e.Start.IsZero() {
		return nil, &ValidationError{SourceID: e.SourceID, Field: "start_datetime", Message: fmt.Sprintf("is required for %q", e.Title)}
	}
	if e.Timezone == "" {
		e.Timezone = utils.DefaultTimezone
	}
	if e.AccessRestriction == "" {
		e.AccessRestriction = AccessPublic
	}
	if e.Tags == nil {
		e.Tags = []string{}
	}
	now := utils.NaiveNow()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	if e.UpdatedAt.IsZero() {
		e.UpdatedAt = now
	}
	e.EnsureFingerprints()
	return &e, nil
}

// NormalizeTitle collapses whitespace runs and trims.
func NormalizeTitle(title string) string {
	return utils.NormalizeWhitespace(title)
}

// Identity is the primary key of an event: stable while the source, the
// URL (or title when there is no URL) and the start time stay the same.
func Identity(sourceID, url, title string, start time.Time) string {
	unique := url
	if unique == "" {
		unique = title
	}
	return utils.ShortHash(strings.Join([]string{sourceID, unique, utils.ISOFormat(start)}, "|"))
}

// ChangeFingerprint covers only what a reader would notice changing.
// Category, tags and access restriction are excluded.
func ChangeFingerprint(title, description, url string, start time.Time) string {
	return utils.ShortHash(strings.Join([]string{title, description, url, utils.ISOFormat(start)}, "|"))
}

func (e *Event) ComputeID() string {
	return Identity(e.SourceID, e.URL, e.Title, e.Start)
}

func (e *Event) ComputeChecksum() string {
	return ChangeFingerprint(e.Title, e.Description, e.URL, e.Start)
}

// EnsureFingerprints fills ID and Checksum when they are empty.
func (e *Event) EnsureFingerprints() {
	if e.ID == "" {
		e.ID = e.ComputeID()
	}
	if e.Checksum == "" {
		e.Checksum = e.ComputeChecksum()
	}
}

// EffectiveEnd returns End, or Start plus one hour.
func (e Event) EffectiveEnd() time.Time {
	if e.End != nil && !e.End.IsZero() {
		return *e.End
	}
	return e.Start.Add(DefaultEventDuration)
}

func (e Event) String() string {
	return fmt.Sprintf("%s[%s] %s @ %s", e.SourceID, e.ID, e.Title, utils.ISOFormat(e.Start))
}

var accessPhrases = []struct {
	phrase string
	access AccessRestriction
}{
	{"nih only", AccessNIHOnly},
	{"hhs only", AccessHHSOnly},
	{"members only", AccessMembersOnly},
	{"registration", AccessRegistration},
}

// ClassifyAccess derives the access restriction from phrases in a title.
// The first matching phrase wins, anything else is Public.
func ClassifyAccess(title string) AccessRestriction {
	lower := strings.ToLower(title)
	for _, p := range accessPhrases {
		if strings.Contains(lower, p.phrase) {
			return p.access
		}
	}
	return AccessPublic
}
