package challenge

import (
	"net/url"
	"strings"

	"github.com/challenge75/internal/domain"
)

// Validation messages
const (
	MsgPrimaryLinkRequired = "primary link required"
	MsgPrimaryLinkInvalid  = "primary link must be a valid URL"
	MsgXPostLinkInvalid    = "x post link must be a valid URL"
	MsgContestLinkInvalid  = "contest link must be a valid URL"
)

// ValidateSubmission returns every problem with the submission fields.
// Secondary links are optional on every day, bonus days included.
func ValidateSubmission(in domain.SubmissionInput, isBonusDay bool) []string {
	var errs []string

	primary := strings.TrimSpace(in.DSALink)
	if primary == "" {
		errs = append(errs, MsgPrimaryLinkRequired)
	} else if !IsValidURL(primary) {
		errs = append(errs, MsgPrimaryLinkInvalid)
	}

	if link := strings.TrimSpace(in.XPostLink); link != "" && !IsValidURL(link) {
		errs = append(errs, MsgXPostLinkInvalid)
	}
	if link := strings.TrimSpace(in.ContestLink); link != "" && !IsValidURL(link) {
		errs = append(errs, MsgContestLinkInvalid)
	}

	return errs
}

// NormalizeDifficulty maps a label onto a known difficulty; missing or
// unrecognized labels become Medium
func NormalizeDifficulty(label string) domain.Difficulty {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "easy":
		return domain.DifficultyEasy
	case "hard":
		return domain.DifficultyHard
	default:
		return domain.DifficultyMedium
	}
}

// IsValidURL reports whether s is an absolute URL with a scheme
func IsValidURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil || u.Scheme == "" {
		return false
	}
	if strings.ContainsAny(s, " \t\n") {
		return false
	}
	return u.Host != "" || u.Opaque != ""
}

// OptionalLink trims a secondary link, mapping blank input to nil
func OptionalLink(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
