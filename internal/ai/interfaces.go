package ai

import (
	"context"
)

// Intent labels produced by the classifiers. Anything the model cannot
// classify comes back as IntentUnknown and the workflow re-prompts.
const (
	IntentConfirmation = "confirmation"
	IntentDecline      = "decline"
	IntentCorrection   = "correction"
	IntentUnknown      = "unknown"
)

// PhoneExtraction discriminates the outcome of a phone extraction
type PhoneExtraction int

const (
	// PhoneAbsent means no phone number was found in the utterance
	PhoneAbsent PhoneExtraction = iota
	// PhoneInvalid means a number was found but failed format validation
	PhoneInvalid
	// PhoneValid means a well-formed number was extracted
	PhoneValid
)

// IntentClassifier classifies short visitor replies. Implementations
// degrade to IntentUnknown on any model or parse failure; they never
// surface errors to the workflow.
type IntentClassifier interface {
	// ClassifyYesNo sorts a reply into confirmation, decline, or unknown
	ClassifyYesNo(ctx context.Context, response string) string

	// ClassifyCorrection sorts a reply into confirmation, correction,
	// or unknown
	ClassifyCorrection(ctx context.Context, response string) string
}

// Extractor pulls structured fields out of free-form visitor speech.
// Missing or unparseable fields come back empty; failures are logged by
// the implementation, not returned.
type Extractor interface {
	// ExtractNamePurpose extracts the visitor's name and their reason
	// for visiting
	ExtractNamePurpose(ctx context.Context, input string) (name, purpose string)

	// ExtractVendorNamePurpose extracts a company-plus-person name and
	// purpose from a trade visitor's utterance
	ExtractVendorNamePurpose(ctx context.Context, input string) (name, purpose string)

	// ExtractPhone extracts a phone number and validates its format
	ExtractPhone(ctx context.Context, input string) (string, PhoneExtraction)
}
