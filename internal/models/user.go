package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// Gender is the participant's own gender as sent to the matching service.
type Gender string

const (
	GenderMale   Gender = "MALE"
	GenderFemale Gender = "FEMALE"
	GenderOther  Gender = "OTHER"
)

// GenderPreference is the gender a participant wants to be matched with.
type GenderPreference string

const (
	PreferMale   GenderPreference = "MALE"
	PreferFemale GenderPreference = "FEMALE"
	PreferBoth   GenderPreference = "BOTH"
)

// NormalizeGender maps free-form input ("man", "Female", "other", ...) onto the
// fixed enumeration. The second result is false when the input is unknown.
func NormalizeGender(s string) (Gender, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "male", "man", "m":
		return GenderMale, true
	case "female", "woman", "f", "w":
		return GenderFemale, true
	case "other", "o", "non-binary", "nonbinary":
		return GenderOther, true
	}
	return "", false
}

// NormalizeGenderPreference maps the form tiles ("man", "woman", "both") and
// the wire values onto the fixed enumeration.
func NormalizeGenderPreference(s string) (GenderPreference, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "male", "man", "m":
		return PreferMale, true
	case "female", "woman", "f", "w":
		return PreferFemale, true
	case "both", "any", "b":
		return PreferBoth, true
	}
	return "", false
}

// Participant is the durable identity of one chat user on one installation.
// ParticipantID is generated once and never changes while the record exists
// in the session store.
type Participant struct {
	ParticipantID         string           `json:"participantId"`
	DisplayName           string           `json:"displayName"`
	BirthYear             int              `json:"birthYear"`
	Gender                Gender           `json:"gender"`
	GenderPreference      GenderPreference `json:"genderPreference"`
	Interests             []string         `json:"interests"`
	InterestFilterEnabled bool             `json:"interestFilterEnabled"`
}

// EnsureID generates a new UUID if the participant does not have one yet.
// It reports whether an ID was generated.
func (p *Participant) EnsureID() bool {
	if p.ParticipantID != "" {
		return false
	}
	p.ParticipantID = uuid.New().String()
	return true
}

// QueuedProfile is the wire form of a Participant sent to POST /enqueue.
// The reference server stores it as-is, so it doubles as a gorm model.
type QueuedProfile struct {
	ParticipantID         string           `gorm:"primaryKey" json:"participantId"`
	Name                  string           `gorm:"type:text;not null" json:"name"`
	BirthYear             int              `json:"birthYear"`
	Gender                Gender           `gorm:"type:text" json:"gender"`
	GenderPreference      GenderPreference `gorm:"type:text" json:"genderPreference"`
	Interests             pq.StringArray   `gorm:"type:text[]" json:"interests"`
	InterestFilterEnabled bool             `json:"interestFilterEnabled"`
	Region                string           `json:"region"`
	Country               string           `json:"country"`
	Friends               pq.StringArray   `gorm:"type:text[]" json:"friends"`
	BlockedUsers          pq.StringArray   `gorm:"type:text[]" json:"blockedUsers"`
	QueuedAt              time.Time        `json:"-"`
}

// BeforeCreate is a GORM hook that fills the participant ID if it is missing.
func (q *QueuedProfile) BeforeCreate(tx *gorm.DB) (err error) {
	if q.ParticipantID == "" {
		q.ParticipantID = uuid.New().String()
	}
	return
}

// NewQueuedProfile derives the wire payload from a participant. Gender fields
// are normalized and interests are dropped when the filter is disabled.
func NewQueuedProfile(p Participant, region, country string) QueuedProfile {
	gender, ok := NormalizeGender(string(p.Gender))
	if !ok {
		gender = GenderOther
	}
	pref, ok := NormalizeGenderPreference(string(p.GenderPreference))
	if !ok {
		pref = PreferBoth
	}

	interests := pq.StringArray{}
	if p.InterestFilterEnabled {
		interests = append(interests, p.Interests...)
	}

	return QueuedProfile{
		ParticipantID:         p.ParticipantID,
		Name:                  p.DisplayName,
		BirthYear:             p.BirthYear,
		Gender:                gender,
		GenderPreference:      pref,
		Interests:             interests,
		InterestFilterEnabled: p.InterestFilterEnabled,
		Region:                region,
		Country:               country,
		Friends:               pq.StringArray{},
		BlockedUsers:          pq.StringArray{},
	}
}

// Peer returns the short form of the profile used inside a session handle.
func (q *QueuedProfile) Peer() PeerParticipant {
	return PeerParticipant{ParticipantID: q.ParticipantID, DisplayName: q.Name}
}
