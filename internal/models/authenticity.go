package models

// AuthenticitySignals are the five independent sub-scores combined into the
// final authenticity judgment. Each is in [0,1].
type AuthenticitySignals struct {
	VisualHash        float64 `json:"visualHash"`
	TextMatch         float64 `json:"textMatch"`
	HoloPattern       float64 `json:"holoPattern"`
	BorderConsistency float64 `json:"borderConsistency"`
	FontValidation    float64 `json:"fontValidation"`
}

// AuthenticityResult is the authenticity scorer's output.
type AuthenticityResult struct {
	Score        float64             `json:"authenticityScore"`
	FakeDetected bool                `json:"fakeDetected"`
	Rationale    string              `json:"rationale"`
	Signals      AuthenticitySignals `json:"signals"`
	VerifiedByAI bool                `json:"verifiedByAi"`
}

// ReferenceHash is a stored perceptual hash of a known-authentic sample,
// kept under authentic-samples/{card-name}/{hash}.json in the object store.
type ReferenceHash struct {
	CardName string `json:"cardName"`
	Hash     string `json:"hash"`
	Variant  string `json:"variant,omitempty"`
	Set      string `json:"set,omitempty"`
}
