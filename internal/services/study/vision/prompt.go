package vision

import (
	"fmt"
	"strings"

	"github.com/louisbranch/study.space/internal/services/study/domain"
)

const systemPrompt = `You watch a webcam frame of a child studying at a desk. Decide whether the child is sitting at the desk and whether they are focused on their study material. Never describe the child's appearance.`

var strictness = map[int]string{
	1: "Be lenient: only clear, sustained distractions count.",
	2: "Be fairly lenient: brief glances away are fine.",
	3: "Use normal judgement.",
	4: "Be fairly strict: looking away from the material counts.",
	5: "Be strict: anything other than working on the material counts.",
}

func buildUserMessage(req domain.AnalysisRequest) string {
	var b strings.Builder

	rank := req.Rank
	if rank < domain.MinRank || rank > domain.MaxRank {
		rank = domain.MinRank
	}
	b.WriteString(fmt.Sprintf("Strictness level: %d of %d\n", rank, domain.MaxRank))
	b.WriteString(strictness[rank])
	b.WriteString("\n")

	locale := strings.TrimSpace(req.Profile.Locale)
	if locale == "" {
		locale = "en"
	}
	b.WriteString(fmt.Sprintf("Write the message in locale %s.\n", locale))
	if name := strings.TrimSpace(req.Profile.DisplayName); name != "" {
		b.WriteString(fmt.Sprintf("The child's name is %s.\n", name))
	}

	b.WriteString(`
Instructions:
1. Set is_on_seat to false when nobody is at the desk.
2. Set is_focused to true only when the child is working on the study material.
3. When not focused, pick the closest distraction; otherwise use "none".
4. Keep the message under 15 words.`)

	return b.String()
}
