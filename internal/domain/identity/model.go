package identity

// Consent is the participant's consent decision.
type Consent string

const (
	ConsentUndecided Consent = "undecided"
	ConsentGranted   Consent = "granted"
	ConsentDeclined  Consent = "declined"
)

// Decided reports whether a terminal decision has been recorded.
func (c Consent) Decided() bool {
	return c == ConsentGranted || c == ConsentDeclined
}

// Participant is the identity persisted for one browser.
type Participant struct {
	ID            string  `json:"participant_id"`
	RecruitmentID string  `json:"recruitment_id,omitempty"`
	Consent       Consent `json:"consent"`
}
