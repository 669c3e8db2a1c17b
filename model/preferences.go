// Package model contains all domain models and data structures for the
// pushrelay delivery pipeline.
package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// tablePrefix is prepended to all table names returned by TableName methods.
const tablePrefix = "push_"

// Category is a named notification topic a subscriber opts into independently.
type Category string

// Known notification categories.
const (
	// CategoryNewJobs covers newly published job listings.
	CategoryNewJobs Category = "newJobs"

	// CategoryResults covers exam result announcements.
	CategoryResults Category = "results"

	// CategoryAdmitCards covers admit card releases.
	CategoryAdmitCards Category = "admitCards"

	// CategoryAnswerKeys covers answer key publications.
	CategoryAnswerKeys Category = "answerKeys"

	// CategoryGeneralUpdates is the unconditional broadcast category:
	// fan-out for it matches every active subscription regardless of
	// stored preference.
	CategoryGeneralUpdates Category = "generalUpdates"
)

// Categories returns all known categories in a stable order.
func Categories() []Category {
	return []Category{
		CategoryNewJobs,
		CategoryResults,
		CategoryAdmitCards,
		CategoryAnswerKeys,
		CategoryGeneralUpdates,
	}
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryNewJobs, CategoryResults, CategoryAdmitCards,
		CategoryAnswerKeys, CategoryGeneralUpdates:
		return true
	}
	return false
}

// Preferences is a subscriber's per-category opt-in set.
//
// The known categories are explicit fields; unknown keys arriving from the
// boundary are preserved in Extra so a newer client does not lose data when
// talking to an older server. Preferences serialize to a flat JSON object of
// category → bool, both over the wire and in the database column.
type Preferences struct {
	NewJobs        bool
	Results        bool
	AdmitCards     bool
	AnswerKeys     bool
	GeneralUpdates bool

	// Extra holds category keys this version does not model explicitly.
	Extra map[string]bool
}

// DefaultPreferences returns a preference set with every known category enabled.
// New subscriptions that do not state preferences start here.
func DefaultPreferences() Preferences {
	return Preferences{
		NewJobs:        true,
		Results:        true,
		AdmitCards:     true,
		AnswerKeys:     true,
		GeneralUpdates: true,
	}
}

// Enabled reports the stored opt-in for a category.
// Unknown categories are looked up in Extra and default to false.
func (p Preferences) Enabled(c Category) bool {
	switch c {
	case CategoryNewJobs:
		return p.NewJobs
	case CategoryResults:
		return p.Results
	case CategoryAdmitCards:
		return p.AdmitCards
	case CategoryAnswerKeys:
		return p.AnswerKeys
	case CategoryGeneralUpdates:
		return p.GeneralUpdates
	}
	return p.Extra[string(c)]
}

// Matches reports whether a notification of category c should fan out to a
// subscription holding these preferences. CategoryGeneralUpdates matches
// unconditionally; every other category requires an explicit opt-in.
func (p Preferences) Matches(c Category) bool {
	if c == CategoryGeneralUpdates {
		return true
	}
	return p.Enabled(c)
}

// MarshalJSON serializes the preference set as a flat category → bool object,
// including extension keys.
func (p Preferences) MarshalJSON() ([]byte, error) {
	m := make(map[string]bool, 5+len(p.Extra))
	for k, v := range p.Extra {
		m[k] = v
	}
	m[string(CategoryNewJobs)] = p.NewJobs
	m[string(CategoryResults)] = p.Results
	m[string(CategoryAdmitCards)] = p.AdmitCards
	m[string(CategoryAnswerKeys)] = p.AnswerKeys
	m[string(CategoryGeneralUpdates)] = p.GeneralUpdates
	return json.Marshal(m)
}

// UnmarshalJSON parses a flat category → bool object. Keys that are not known
// categories are kept in Extra.
func (p *Preferences) UnmarshalJSON(data []byte) error {
	var m map[string]bool
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	*p = Preferences{}
	for k, v := range m {
		switch Category(k) {
		case CategoryNewJobs:
			p.NewJobs = v
		case CategoryResults:
			p.Results = v
		case CategoryAdmitCards:
			p.AdmitCards = v
		case CategoryAnswerKeys:
			p.AnswerKeys = v
		case CategoryGeneralUpdates:
			p.GeneralUpdates = v
		default:
			if p.Extra == nil {
				p.Extra = make(map[string]bool)
			}
			p.Extra[k] = v
		}
	}
	return nil
}

// Value implements driver.Valuer so Preferences persist as a JSON column.
func (p Preferences) Value() (driver.Value, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner for reading the JSON column back.
func (p *Preferences) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*p = Preferences{}
		return nil
	case []byte:
		return json.Unmarshal(v, p)
	case string:
		return json.Unmarshal([]byte(v), p)
	default:
		return fmt.Errorf("cannot scan %T into Preferences", src)
	}
}
