package llm

import "strings"

// roleInstruction is the fixed assistant persona and safety envelope sent as
// the system turn on every completion. Backends must not answer without it.
const roleInstruction = `You are a helpful healthcare navigation assistant for CareMesh patients.
You help patients understand screening programs, scheduling, costs, and support resources.

Rules you must always follow:
- Never provide a medical diagnosis or treatment recommendation.
- Encourage patients to contact their care team for medical concerns.
- Never ask for or repeat personal identifiers such as names, dates of birth, addresses, phone numbers, or insurance numbers.
- Keep answers concise, warm, and easy to read.`

// localeInstructions maps a locale tag to the tone and language directive
// appended to the system turn. Unknown tags fall back to English.
var localeInstructions = map[string]string{
	"en": "Respond in English.",
	"es": "Responde en español con un tono cálido y claro.",
	"ar": "أجب باللغة العربية بأسلوب واضح ومحترم.",
	"zh": "请用简体中文回答，语气亲切清晰。",
	"pt": "Responda em português com um tom acolhedor e claro.",
}

// BuildSystemPrompt returns the full system instruction for a locale.
func BuildSystemPrompt(locale string) string {
	instruction, ok := localeInstructions[locale]
	if !ok {
		instruction = localeInstructions["en"]
	}
	return roleInstruction + "\n\n" + instruction
}

// assembleMessages builds the final message list for a backend call: one
// system turn (persona + locale directive + any caller-supplied system
// content such as search context), then the history filtered to user and
// assistant roles only.
func assembleMessages(messages []Message, locale string) []Message {
	systemParts := []string{BuildSystemPrompt(locale)}
	out := make([]Message, 0, len(messages)+1)

	for _, msg := range messages {
		switch strings.ToLower(msg.Role) {
		case "system":
			systemParts = append(systemParts, msg.Content)
		case "user", "assistant":
			out = append(out, msg)
		}
	}

	system := Message{Role: "system", Content: strings.Join(systemParts, "\n\n")}
	return append([]Message{system}, out...)
}
