package reply

import "strings"

// Language selects the reply language of the career conversation.
type Language string

const (
	English   Language = "english"
	Malayalam Language = "malayalam"
)

// ParseLanguage falls back to English for anything unrecognised.
func ParseLanguage(s string) Language {
	if Language(strings.ToLower(strings.TrimSpace(s))) == Malayalam {
		return Malayalam
	}
	return English
}

// Locale is the BCP 47 tag used for speech input and output.
func (l Language) Locale() string {
	if l == Malayalam {
		return "ml-IN"
	}
	return "en-US"
}

const basePrompt = "You are a friendly, encouraging career assistant. " +
	"Talk like a real human counselor having a conversation. " +
	"Do not repeat your name or a greeting in every message. " +
	"Keep answers short (two or three sentences), direct and helpful."

// SystemPrompt returns the instruction for the model.
func (l Language) SystemPrompt() string {
	if l != Malayalam {
		return basePrompt
	}
	return basePrompt + " The user wants the reply in Malayalam. " +
		"Answer in natural, conversational Malayalam like a friend would, without formal greetings. " +
		"Give only the Malayalam text, with no English translation in parentheses."
}
