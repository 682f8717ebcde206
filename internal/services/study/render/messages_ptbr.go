package render

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

func init() {
	lang := language.MustParse("pt-BR")

	message.SetString(lang, "feedback.return_to_seat", "Volte para o seu lugar, por favor.")
	message.SetString(lang, "feedback.distracted", "Vamos voltar a estudar.")
	message.SetString(lang, "feedback.distracted.phone", "Guarde o celular e vamos continuar.")
	message.SetString(lang, "feedback.distracted.sleeping", "Acorda, macaquinho! Hora de focar.")
	message.SetString(lang, "feedback.distracted.talking", "Deixe a conversa para o intervalo.")
	message.SetString(lang, "feedback.distracted.playing", "Os brinquedos podem esperar. De volta aos livros!")
	message.SetString(lang, "feedback.distracted.away", "Olhos no seu trabalho, por favor.")
	message.SetString(lang, "feedback.positive", "Ótimo foco, continue assim!")
}
