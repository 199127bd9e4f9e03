package view

import (
	"fmt"

	"github.com/jon4hz/movin/internal/session"
	"github.com/jon4hz/movin/internal/settings"
	"github.com/samber/lo"
)

// Section is one of the top-level areas a user can navigate to.
type Section string

const (
	SectionEditor   Section = "editor"
	SectionAdvisor  Section = "advisor"
	SectionAnimator Section = "animator"
	SectionPricing  Section = "pricing"
	SectionProfile  Section = "profile"
)

// DefaultSection is shown until the user picks another one.
const DefaultSection = SectionEditor

// Sections lists the navigation entries in display order.
var Sections = []Section{
	SectionEditor,
	SectionAdvisor,
	SectionAnimator,
	SectionProfile,
	SectionPricing,
}

// Screen is what gets rendered.
type Screen string

const (
	ScreenLanguage Screen = "language"
	ScreenAdmin    Screen = "admin"
	ScreenEditor   Screen = Screen(SectionEditor)
	ScreenAdvisor  Screen = Screen(SectionAdvisor)
	ScreenAnimator Screen = Screen(SectionAnimator)
	ScreenPricing  Screen = Screen(SectionPricing)
	ScreenProfile  Screen = Screen(SectionProfile)
)

// ParseSection validates a section name.
func ParseSection(s string) (Section, error) {
	sec := Section(s)
	if !lo.Contains(Sections, sec) {
		return "", fmt.Errorf("unknown section %q", s)
	}
	return sec, nil
}

// Resolve picks the screen for the given state. The language picker wins
// until a language was confirmed, admin mode replaces the normal navigation.
func Resolve(snap session.Session, languageConfirmed bool, section Section) Screen {
	switch {
	case !languageConfirmed:
		return ScreenLanguage
	case snap.IsAdmin:
		return ScreenAdmin
	}
	if !lo.Contains(Sections, section) {
		section = DefaultSection
	}
	return Screen(section)
}

// Direction returns the text direction for a language.
func Direction(lang settings.Language) string {
	if lang == settings.LanguageFA {
		return "rtl"
	}
	return "ltr"
}
