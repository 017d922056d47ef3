package work

import (
	"fmt"
	"unicode/utf8"
)

// Author represents a work author. Identity for deduplication is the exact
// (Given, Family) pair, not the surrogate ID.
type Author struct {
	ID                 int64    `json:"id"`
	Given              string   `json:"given"`
	Family             string   `json:"family"`
	Prefix             string   `json:"prefix,omitempty"`
	Suffix             string   `json:"suffix,omitempty"`
	ORCID              string   `json:"orcid,omitempty"`
	AuthenticatedORCID bool     `json:"authenticated_orcid,omitempty"`
	Affiliation        []string `json:"affiliation,omitempty"`
}

// Name returns "John Smith".
func (a Author) Name() string {
	if a.Given == "" {
		return a.Family
	}
	return fmt.Sprintf("%s %s", a.Given, a.Family)
}

// NameReverse returns "Smith, John".
func (a Author) NameReverse() string {
	if a.Given == "" {
		return a.Family
	}
	return fmt.Sprintf("%s, %s", a.Family, a.Given)
}

// GivenInitFamily returns "J. Smith".
func (a Author) GivenInitFamily() string {
	if a.Given == "" {
		return a.Family
	}
	init, _ := utf8.DecodeRuneInString(a.Given)
	return fmt.Sprintf("%c. %s", init, a.Family)
}

// FamilyGivenInit returns "Smith, J.".
func (a Author) FamilyGivenInit() string {
	if a.Given == "" {
		return a.Family
	}
	init, _ := utf8.DecodeRuneInString(a.Given)
	return fmt.Sprintf("%s, %c.", a.Family, init)
}
