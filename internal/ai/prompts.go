package ai

import "fmt"

// Marker every accepted proposal must carry in its first line. The
// prompt instructs the model to emit it; validation strips it. Responses
// without it are treated as the model ignoring instructions and rejected.
const proposalMarker = "generated"

const proposalTemplate = `Write a freelance job proposal message for the project below:

project = [
    Title: %s

    Description: %s
]

RULES:
- first line should be or say "generated" and then a new line
- proposal language should be %[3]s
- Be between 100 and 1000 characters
- Sound friendly and human
- Begin proposal with "Hello," in %[3]s then a new line, don't use Dear [Client] or Hello [Client]
- use the word "I" only when needed so it sounds like it is typed by a human freelancer applying for a job
- Don't use words like believe, feel or related emotional words. Sound confident saying I have %[4]d+ years experience in the field
- Don't list anything, write everything in paragraph form
- Include a very brief high-level summary of how I would approach the project
- Mention very briefly, possible solutions where relevant (but avoid technical detail)
- Towards the end of the proposal, ask the client to send a message for samples of similar projects
- Don't use exclamation marks, emojis or Best regards [Your Name]
- end with "Thanks."
- The proposal language should be the same language as the description (eg. english, polish, russian)
`

const languageTemplate = `You are a language detection system.
Your task: Detect the language of the following text.

Rules:
- Respond with only the language name.
- Respond with exactly one word (e.g., english).
- Do not include punctuation, explanations, or extra words.
- Do not return codes (e.g., "fr", "en"), only the full language name.

Text: %s
`

// ProposalPrompt renders the proposal-generation prompt.
func ProposalPrompt(title, description, language string, yearsExp int) string {
	return fmt.Sprintf(proposalTemplate, title, description, language, yearsExp)
}

// LanguagePrompt renders the language-detection prompt.
func LanguagePrompt(text string) string {
	return fmt.Sprintf(languageTemplate, text)
}
