// Package render localizes the spoken feedback lines sent with analysis
// results.
package render

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/louisbranch/study.space/internal/services/study/domain"
)

const (
	defaultReturnToSeat = "Please come back to your seat."
	defaultDistracted   = "Let's get back to studying."
	defaultPositive     = "Great focus, keep it up!"
)

// Localizer is the minimal message-printer contract required by the renderer.
type Localizer interface {
	Sprintf(key message.Reference, args ...any) string
}

var supported = []language.Tag{language.English, language.MustParse("pt-BR")}

var matcher = language.NewMatcher(supported)

// Catalog renders feedback lines from the registered x/text catalogs.
type Catalog struct{}

// NewCatalog returns a catalog backed by the default message catalog.
func NewCatalog() Catalog {
	return Catalog{}
}

// Feedback implements domain.Messages.
func (Catalog) Feedback(locale string, kind domain.FeedbackKind, distraction domain.Distraction) string {
	return Render(Printer(locale), kind, distraction)
}

// Printer returns a printer for the best supported match of locale.
func Printer(locale string) *message.Printer {
	return message.NewPrinter(MatchLocale(locale))
}

// MatchLocale resolves a profile locale to a supported language tag.
// Unknown or malformed locales fall back to English.
func MatchLocale(locale string) language.Tag {
	tag, err := language.Parse(strings.TrimSpace(locale))
	if err != nil {
		return language.English
	}
	_, index, confidence := matcher.Match(tag)
	if confidence == language.No {
		return language.English
	}
	return supported[index]
}

// Render returns the localized line for one feedback kind.
func Render(loc Localizer, kind domain.FeedbackKind, distraction domain.Distraction) string {
	switch kind {
	case domain.FeedbackReturnToSeat:
		return localizeWithFallback(loc, "feedback.return_to_seat", defaultReturnToSeat)
	case domain.FeedbackDistracted:
		generic := localizeWithFallback(loc, "feedback.distracted", defaultDistracted)
		if distraction == "" {
			return generic
		}
		return localizeWithFallback(loc, "feedback.distracted."+string(distraction), generic)
	case domain.FeedbackPositive:
		return localizeWithFallback(loc, "feedback.positive", defaultPositive)
	default:
		return ""
	}
}

func localize(loc Localizer, key string) string {
	if loc == nil {
		return key
	}
	return loc.Sprintf(key)
}

func localizeWithFallback(loc Localizer, key string, fallback string) string {
	value := strings.TrimSpace(localize(loc, key))
	if value == "" || value == key {
		return fallback
	}
	return value
}
