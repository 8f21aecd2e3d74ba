package sql

import (
	libinjection "github.com/corazawaf/libinjection-go"
)

// InjectionCheckResult describes a SQL injection pattern detected in user
// input before it ever reaches the LLM or the database.
type InjectionCheckResult struct {
	IsSQLi      bool   // true if an injection pattern was detected
	Fingerprint string // libinjection fingerprint of the detected pattern
	Input       string // the text that was checked
}

// CheckQuestionForInjection runs libinjection over a natural-language
// question. A question that fingerprints as SQL injection is almost
// certainly an attempt to smuggle SQL through the generation prompt, so the
// pipeline refuses it before any prompt is built.
//
// Returns nil when the text is clean.
func CheckQuestionForInjection(question string) *InjectionCheckResult {
	isSQLi, fingerprint := libinjection.IsSQLi(question)
	if !isSQLi {
		return nil
	}
	return &InjectionCheckResult{
		IsSQLi:      true,
		Fingerprint: string(fingerprint),
		Input:       question,
	}
}
