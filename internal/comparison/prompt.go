package comparison

import "fmt"

// promptTemplate takes word1, word2 and sentence in that order.
const promptTemplate = `Help me compare the target English vocabularies "%s" and "%s" by telling me some simple stories that reveal what their means naturally in that specific context. And what's the key difference between them. These stories should illustrate not only the literal meaning but also the figurative meaning, if applicable.

I'm an English learner, so tell this story at an elementary third-grade level, using only simple words and sentences, and without slang, phrasal verbs, or complex grammar.

After the story, give any background or origin information (if it's known or useful), and explain the meaning of the vocabulary clearly.

Finally, give 10 numbered example sentences that show the phrase used today in each context, with different tenses and sentence types, including questions. Use **bold** formatting for the target vocabulary throughout.

If there are some situations we can use both of them without changing the meaning, and some other contexts which they can't be used interchangeably, please give me examples separately.

At the end, tell me that if I can use them interchangeably in this sentence "%s"

IMPORTANT: Format your response using proper Markdown syntax:
- Use ## for main headings
- Use ### for subheadings
- Use **text** for bold formatting
- Use numbered lists (1. 2. 3.) for examples
- Use - for bullet points when appropriate`

// BuildPrompt renders the comparison prompt for a word pair and example sentence.
func BuildPrompt(word1, word2, sentence string) string {
	return fmt.Sprintf(promptTemplate, word1, word2, sentence)
}
