package render

import (
	"testing"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/louisbranch/study.space/internal/services/study/domain"
)

var _ domain.Messages = Catalog{}

func TestRenderUsesRegisteredCatalogs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		locale      string
		kind        domain.FeedbackKind
		distraction domain.Distraction
		want        string
	}{
		{"en", domain.FeedbackReturnToSeat, "", "Please come back to your seat."},
		{"en-US", domain.FeedbackPositive, "", "Great focus, keep it up!"},
		{"en", domain.FeedbackDistracted, domain.DistractionPhone, "Put the phone away and let's keep going."},
		{"en", domain.FeedbackDistracted, domain.DistractionOther, "Let's get back to studying."},
		{"pt-BR", domain.FeedbackReturnToSeat, "", "Volte para o seu lugar, por favor."},
		{"pt", domain.FeedbackDistracted, domain.DistractionSleeping, "Acorda, macaquinho! Hora de focar."},
		{"pt-BR", domain.FeedbackPositive, "", "Ótimo foco, continue assim!"},
		{"fr", domain.FeedbackPositive, "", "Great focus, keep it up!"},
		{"", domain.FeedbackReturnToSeat, "", "Please come back to your seat."},
		{"en", domain.FeedbackNone, "", ""},
	}
	catalog := NewCatalog()
	for _, tc := range tests {
		if got := catalog.Feedback(tc.locale, tc.kind, tc.distraction); got != tc.want {
			t.Errorf("Feedback(%q, %q, %q) = %q, want %q", tc.locale, tc.kind, tc.distraction, got, tc.want)
		}
	}
}

func TestMatchLocale(t *testing.T) {
	t.Parallel()

	tests := map[string]language.Tag{
		"pt-BR":    language.MustParse("pt-BR"),
		"pt":       language.MustParse("pt-BR"),
		"en-GB":    language.English,
		"de":       language.English,
		"not a ta": language.English,
	}
	for locale, want := range tests {
		if got := MatchLocale(locale); got != want {
			t.Errorf("MatchLocale(%q) = %s, want %s", locale, got, want)
		}
	}
}

func TestRenderWithNilLocalizerReturnsDefaults(t *testing.T) {
	t.Parallel()

	if got := Render(nil, domain.FeedbackDistracted, domain.DistractionPhone); got != defaultDistracted {
		t.Fatalf("distracted = %q, want %q", got, defaultDistracted)
	}
	if got := Render(nil, domain.FeedbackPositive, ""); got != defaultPositive {
		t.Fatalf("positive = %q, want %q", got, defaultPositive)
	}
}

func TestRenderMissingKeyFallsBack(t *testing.T) {
	t.Parallel()

	printer := message.NewPrinter(language.Japanese)
	if got := Render(printer, domain.FeedbackReturnToSeat, ""); got != defaultReturnToSeat {
		t.Fatalf("return to seat = %q, want %q", got, defaultReturnToSeat)
	}
}
