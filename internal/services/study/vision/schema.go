package vision

import "github.com/louisbranch/study.space/internal/platform/llm"

// ObservationSchema constrains the model's verdict on one frame.
var ObservationSchema = &llm.Schema{
	Name:        "focus-observation",
	Description: "Whether the child in the frame is seated and focused on studying",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"is_focused": map[string]any{
				"type":        "boolean",
				"description": "True when the child is looking at study material",
			},
			"is_on_seat": map[string]any{
				"type":        "boolean",
				"description": "True when the child is sitting at the desk",
			},
			"distraction": map[string]any{
				"type":        "string",
				"enum":        []any{"none", "phone", "sleeping", "talking", "playing", "away", "other"},
				"description": "The main distraction when not focused",
			},
			"message": map[string]any{
				"type":        "string",
				"description": "One short, kind sentence addressed to the child",
			},
		},
		"required":             []any{"is_focused", "is_on_seat", "distraction"},
		"additionalProperties": false,
	},
}
