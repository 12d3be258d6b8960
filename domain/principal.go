package domain

// Principal is the identity resolved once per request from the session.
// A browser may hold an admin and a candidate login at the same time.
// It is passed by value so handlers cannot mutate it.
type Principal struct {
	AdminID           uint
	AdminUsername     string
	CandidateID       string
	CandidateUsername string
}

func (p Principal) IsAdmin() bool {
	return p.AdminID != 0
}

func (p Principal) IsCandidate() bool {
	return p.CandidateID != ""
}

func (p Principal) IsAnonymous() bool {
	return !p.IsAdmin() && !p.IsCandidate()
}

// CanAccessCandidate reports whether p may read the candidate's private data.
func (p Principal) CanAccessCandidate(candidateID string) bool {
	return p.IsAdmin() || (p.IsCandidate() && p.CandidateID == candidateID)
}
