// Package models holds the persisted entity shapes of spec.md §3. Dynamic
// config that the original design left as free-form JSON (audience rules)
// is a validated tagged struct here instead, per spec.md §9's redesign note.
package models

import "time"

// Gender is a closed set so AudienceRules.Gender can't silently accept
// garbage values that would make eligibility matching undefined.
type Gender string

const (
	GenderAny    Gender = "all"
	GenderMale   Gender = "M"
	GenderFemale Gender = "F"
)

// User is created by the Enrollment Engine. No plaintext personal number is
// ever stored — only pnHash, a keyed hash.
type User struct {
	ID                  string    `json:"id"`
	PNHash              string    `json:"pnHash"`
	Gender              Gender    `json:"gender"`
	BirthYear           int       `json:"birthYear"`
	RegionCodes         []string  `json:"regionCodes,omitempty"`
	DeviceKeyThumbprint string    `json:"deviceKeyThumbprint"`
	EnrolledAt          time.Time `json:"enrolledAt"`
	UpdatedAt           time.Time `json:"updatedAt"`
}

// Age returns the user's age in whole years as of "now", using only the
// birth-year bucket (spec.md §4.6: never expose exact DOB).
func (u *User) Age(now time.Time) int {
	return now.Year() - u.BirthYear
}

// HasRegion reports whether the user is associated with regionCode.
func (u *User) HasRegion(regionCode string) bool {
	for _, r := range u.RegionCodes {
		if r == regionCode {
			return true
		}
	}
	return false
}

// EnrollmentState is the state machine position of an in-progress
// enrollment (spec.md §4.4).
type EnrollmentState string

const (
	EnrollmentStarted    EnrollmentState = "started"
	EnrollmentDocumentOK EnrollmentState = "document_ok"
	EnrollmentLivenessOK EnrollmentState = "liveness_ok"
	EnrollmentMatched    EnrollmentState = "matched"
	EnrollmentIssued     EnrollmentState = "issued"
	EnrollmentFailed     EnrollmentState = "failed"
)

// EnrollmentSession is the ephemeral record of an in-progress enrollment.
type EnrollmentSession struct {
	ID                  string          `json:"id"`
	DeviceID            string          `json:"deviceId"`
	State               EnrollmentState `json:"state"`
	PersonalNumber      string          `json:"-"` // cleared once pnHash is derived; never persisted to disk
	Gender              Gender          `json:"gender,omitempty"`
	BirthYear           int             `json:"birthYear,omitempty"`
	Nationality         string          `json:"nationality,omitempty"`
	LivenessScore       float64         `json:"livenessScore,omitempty"`
	FaceMatchScore      float64         `json:"faceMatchScore,omitempty"`
	DeviceKeyThumbprint string          `json:"-"`
	FailureCount        int             `json:"failureCount"`
	CreatedAt           time.Time       `json:"createdAt"`
	ExpiresAt           time.Time       `json:"expiresAt"`
}

// Expired reports whether the session's TTL (spec.md: ≤ 1 hour) has lapsed.
func (s *EnrollmentSession) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// PollType classifies the kind of ballot a poll runs.
type PollType string

const (
	PollElection   PollType = "election"
	PollReferendum PollType = "referendum"
	PollSurvey     PollType = "survey"
)

// PollStatus is the lifecycle state of a Poll.
type PollStatus string

const (
	PollDraft     PollStatus = "draft"
	PollScheduled PollStatus = "scheduled"
	PollActive    PollStatus = "active"
	PollEnded     PollStatus = "ended"
	PollArchived  PollStatus = "archived"
)

// RewardConfig optionally credits voters for participating.
type RewardConfig struct {
	Enabled bool   `json:"enabled"`
	Amount  int64  `json:"amount"`
	Asset   string `json:"asset"`
}

// AudienceRules is the validated tagged variant of spec.md §3's free-form
// audience JSON. Zero-value fields mean "no restriction" on that axis.
type AudienceRules struct {
	Gender  Gender   `json:"gender,omitempty"` // "" or GenderAny means unrestricted
	Regions []string `json:"regions,omitempty"` // empty means universe
	MinAge  *int     `json:"minAge,omitempty"`
	MaxAge  *int     `json:"maxAge,omitempty"`
}

// Match implements spec.md §4.6's eligibility predicate.
func (r *AudienceRules) Match(u *User, now time.Time) bool {
	if r.Gender != "" && r.Gender != GenderAny && u.Gender != r.Gender {
		return false
	}
	if len(r.Regions) > 0 {
		matched := false
		for _, rc := range r.Regions {
			if u.HasRegion(rc) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	age := u.Age(now)
	if r.MinAge != nil && age < *r.MinAge {
		return false
	}
	if r.MaxAge != nil && age > *r.MaxAge {
		return false
	}
	return true
}

// Poll is the top-level ballot/survey/election entity.
type Poll struct {
	ID            string        `json:"id"`
	Title         string        `json:"title"`
	Description   string        `json:"description,omitempty"`
	Type          PollType      `json:"type"`
	Status        PollStatus    `json:"status"`
	StartAt       time.Time     `json:"startAt"`
	EndAt         time.Time     `json:"endAt"`
	Audience      AudienceRules `json:"audience"`
	MinKAnonymity int           `json:"minKAnonymity"`
	Reward        *RewardConfig `json:"reward,omitempty"`
	PublishedAt   *time.Time    `json:"publishedAt,omitempty"`
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`
}

// PollOption is an ordered child of an election/referendum Poll.
type PollOption struct {
	ID       string `json:"id"`
	PollID   string `json:"pollId"`
	Label    string `json:"label"`
	Position int    `json:"position"`
}

// SurveyQuestion is an ordered child of a survey Poll.
type SurveyQuestion struct {
	ID       string           `json:"id"`
	PollID   string           `json:"pollId"`
	Prompt   string           `json:"prompt"`
	Position int              `json:"position"`
	Options  []QuestionOption `json:"options,omitempty"`
}

// QuestionOption is an ordered child of a SurveyQuestion.
type QuestionOption struct {
	ID         string `json:"id"`
	QuestionID string `json:"questionId"`
	Label      string `json:"label"`
	Position   int    `json:"position"`
}

// DemographicBucket is the pre-bucketed, k-anonymity-safe snapshot copied
// onto a Vote at submission time (spec.md §4.7 step 6).
type DemographicBucket struct {
	Gender          Gender `json:"gender"`
	BirthYearBucket int    `json:"birthYearBucket"` // decade, e.g. 1990
	RegionCode      string `json:"regionCode,omitempty"`
}

// BucketBirthYear rounds y down to the nearest 10-year bucket boundary.
func BucketBirthYear(y int) int {
	return (y / 10) * 10
}

// Vote is intentionally free of any column referencing users, sessions,
// devices, IPs, or nullifiers (spec.md §3 invariant, tested in §8.2).
type Vote struct {
	ID          string            `json:"id"`
	PollID      string            `json:"pollId"`
	OptionID    string            `json:"optionId,omitempty"` // empty for survey responses
	SurveyBlob  []byte            `json:"surveyBlob,omitempty"` // opaque encoded survey response, when OptionID is empty
	Demographic DemographicBucket `json:"demographic"`
	CreatedAt   time.Time         `json:"createdAt"`
}

// Nullifier is the unique (poll_id, nullifier_hash) tag preventing double
// voting without identifying the voter.
type Nullifier struct {
	PollID        string    `json:"pollId"`
	NullifierHash string    `json:"nullifierHash"`
	VoteID        string    `json:"voteId"`
	CreatedAt     time.Time `json:"createdAt"`
}

// VoteAttestation is stored 1-to-1 with a Vote, separately, and is never
// joined back to users — used only for post-hoc forensic anchoring.
type VoteAttestation struct {
	VoteID                  string    `json:"voteId"`
	Payload                 []byte    `json:"payload"`
	DeviceKeyThumbprintHash string    `json:"deviceKeyThumbprintHash"`
	NonceUsed               string    `json:"nonceUsed"`
	CreatedAt               time.Time `json:"createdAt"`
}

// AuditChainEntry is one link of the append-only audit hash chain.
type AuditChainEntry struct {
	Sequence        int64     `json:"sequence"`
	VoteID          string    `json:"voteId"`
	PollID          string    `json:"pollId"`
	OptionID        string    `json:"optionId,omitempty"`
	TimestampBucket int64     `json:"timestampBucket"`
	Hash            string    `json:"hash"`
	PrevHash        string    `json:"prevHash"`
	AnchorReceipt   *string   `json:"anchorReceipt,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
}

// Region is a stable administrative region reference.
type Region struct {
	Code       string  `json:"code"`
	NameEN     string  `json:"nameEn"`
	NameKA     string  `json:"nameKa"`
	ParentCode *string `json:"parentCode,omitempty"`
}
