package storyboard

import (
	"fmt"
	"strings"
)

const plannerPromptTemplate = `Return ONLY valid JSON, no markdown fences.
Plan a storyboard lesson that teaches the difference between two English words.

Teaching principles you must follow:
- Main goal: help the learner feel CERTAIN about when to use each word.
- Tell at least 2 separate mini stories. Each story focuses on one word and shows its meaning through action.
- Every story has exactly 4 frames in this order: setup, conflict, outcome, language_lock_in.
- Stories must show different meanings or situations. Never retell the same story with the other word.
- Keep characters, clothing and setting consistent inside a story so its frames look continuous.
- The language_lock_in frame names the word and ties it to what happened. Its narrationText must contain the phrase "in this story".

Input:
word1: %s
word2: %s
userSentence: %s

Output constraints:
- indexInStory is 0,1,2,3 inside each story.
- globalIndex numbers every frame across all stories, starting at 0 with no gaps or repeats.
- English level: simple, spoken, clear (roughly A2-B1).
- narrationText: 2-4 short spoken sentences, concrete and vivid.
- imagePrompt: visually rich scene direction for a cinematic landscape 16:9 frame. No words, subtitles, labels or letters in the image.
- finalConclusion.verdict is "yes", "no" or "depends": can the two words be swapped in userSentence?
- finalConclusion.sentenceFromUser repeats userSentence when one was given.
- finalConclusion.narrationText and recommendedUsage must not be empty.

JSON schema:
{
  "schemaVersion": "%s",
  "lessonObjective": "string",
  "styleConsistency": "string",
  "stories": [
    {
      "storyID": "story_a",
      "focusWord": "word1 or word2",
      "title": "string",
      "meaningSummary": "the meaning this story shows",
      "frames": [
        {
          "indexInStory": 0,
          "globalIndex": 0,
          "role": "setup|conflict|outcome|language_lock_in",
          "targetWord": "string",
          "title": "string",
          "caption": "string",
          "narrationText": "spoken English narration, 2-4 short sentences",
          "imagePrompt": "cinematic visual prompt, landscape 16:9, no text",
          "checkPrompt": "string or null",
          "expectedAnswer": "string or null"
        }
      ]
    }
  ],
  "finalConclusion": {
    "verdict": "yes|no|depends",
    "verdictReason": "string",
    "sentenceFromUser": "string",
    "recommendedUsage": "string",
    "toneDifferenceNote": "string",
    "narrationText": "string",
    "imagePrompt": "string"
  }
}`

// BuildPrompt renders the planning prompt. retryNote describes the previous
// attempt's failure and is omitted when empty.
func BuildPrompt(word1, word2, sentence, retryNote string) string {
	prompt := fmt.Sprintf(plannerPromptTemplate, word1, word2, sentence, SchemaVersion)
	if note := strings.TrimSpace(retryNote); note != "" {
		prompt += "\n\nRetry note: your previous answer was rejected. " + note + "\nFix this and return the complete JSON again."
	}
	return prompt
}
