package render

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

func init() {
	lang := language.English

	message.SetString(lang, "feedback.return_to_seat", defaultReturnToSeat)
	message.SetString(lang, "feedback.distracted", defaultDistracted)
	message.SetString(lang, "feedback.distracted.phone", "Put the phone away and let's keep going.")
	message.SetString(lang, "feedback.distracted.sleeping", "Wake up, little monkey! Time to focus.")
	message.SetString(lang, "feedback.distracted.talking", "Let's save the chat for the break.")
	message.SetString(lang, "feedback.distracted.playing", "Toys can wait. Back to your books!")
	message.SetString(lang, "feedback.distracted.away", "Eyes on your work, please.")
	message.SetString(lang, "feedback.positive", defaultPositive)
}
