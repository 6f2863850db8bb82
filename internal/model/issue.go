package model

// IssueKind classifies an enrichment finding.
type IssueKind string

const (
	IssueMissingYear       IssueKind = "missingYear"
	IssueMissingGender     IssueKind = "missingGender"
	IssueMissingExternalID IssueKind = "missingExternalId"
	IssueAmbiguousGender   IssueKind = "ambiguousGender"
	IssueAmbiguousYear     IssueKind = "ambiguousYear"
	IssueGenderConflict    IssueKind = "genderConflict" // explicit relay gender disagrees with leg composition
)

// EnrichmentIssue records an attribute the enrichment pass could not settle.
// Ambiguity is surfaced, never guessed: the subject entry keeps its blank
// attribute and the candidate values are listed for the review workflow.
type EnrichmentIssue struct {
	SubjectKey string    `json:"subject_key"`
	Kind       IssueKind `json:"kind"`
	Detail     string    `json:"detail,omitempty"`
	Candidates []string  `json:"candidates,omitempty"`
	Note       string    `json:"note,omitempty"` // optional assistant-drafted context, advisory only
}

// EnrichStats summarizes one enrichment run. Re-running with the same
// auxiliary input reports zero updates the second time.
type EnrichStats struct {
	Updated     int               `json:"updated"`
	BadgesAdded int               `json:"badges_added"`
	Ambiguous   []EnrichmentIssue `json:"ambiguous,omitempty"`
	Missing     []EnrichmentIssue `json:"missing,omitempty"` // attributes still blank after every pass
	AuxSkipped  int               `json:"aux_skipped,omitempty"`
}

// AnnotationReport describes one assistant annotation pass over the
// unsettled issues. Notes never change a dictionary entry; failures
// degrade to warnings, never abort the enrichment run.
type AnnotationReport struct {
	Enabled    bool     `json:"enabled"`
	Provider   string   `json:"provider,omitempty"`
	Model      string   `json:"model,omitempty"`
	StrictKeys bool     `json:"strict_keys"` // whether the key allowlist was enforced
	Annotated  int      `json:"annotated"`
	TokensUsed int      `json:"tokens_used,omitempty"`
	Warnings   []string `json:"warnings,omitempty"`
}
