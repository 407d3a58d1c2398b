package lesson

import (
	"fmt"
	"strings"

	"wordslearner/internal/storyboard"
)

// framePrompt builds the image prompt for one story frame. The recap splits
// the story's narration around the current frame so the image neither
// repeats earlier beats nor contradicts later ones.
func framePrompt(plan *storyboard.Plan, story *storyboard.Story, frame storyboard.FramePlan) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Create one cinematic landscape 16:9 illustration for a vocabulary storyboard.\n")
	if style := strings.TrimSpace(plan.StyleConsistency); style != "" {
		fmt.Fprintf(&b, "Visual style: %s\n", style)
	}
	fmt.Fprintf(&b, "Story %s: %q\n", story.StoryID, story.Title)
	fmt.Fprintf(&b, "Meaning focus: %s (word: %s)\n", story.MeaningSummary, story.FocusWord)
	fmt.Fprintf(&b, "This is frame %d of %d in the story (role: %s).\n\n",
		frame.IndexInStory+1, len(story.Frames), frame.Role)

	var before, after []string
	for _, other := range story.Frames {
		line := fmt.Sprintf("- Frame %d (%s): %s", other.IndexInStory+1, other.Role, strings.TrimSpace(other.NarrationText))
		switch {
		case other.IndexInStory < frame.IndexInStory:
			before = append(before, line)
		case other.IndexInStory > frame.IndexInStory:
			after = append(after, line)
		}
	}
	if len(before) > 0 {
		b.WriteString("Already happened:\n")
		b.WriteString(strings.Join(before, "\n"))
		b.WriteString("\n\n")
	}
	if len(after) > 0 {
		b.WriteString("Will happen later, do not contradict:\n")
		b.WriteString(strings.Join(after, "\n"))
		b.WriteString("\n\n")
	}

	fmt.Fprintf(&b, "Show this moment:\nTitle: %s\nCaption: %s\nNarration: %s\n\n",
		frame.Title, frame.Caption, strings.TrimSpace(frame.NarrationText))
	if hint := strings.TrimSpace(frame.ImagePrompt); hint != "" {
		fmt.Fprintf(&b, "Suggested direction (use if it fits the moment): %s\n", hint)
	}
	b.WriteString("No words, letters, captions or subtitles in the image.")
	return b.String()
}

func conclusionPrompt(plan *storyboard.Plan, word1, word2 string) string {
	c := plan.FinalConclusion
	var b strings.Builder
	fmt.Fprintf(&b, "Create one cinematic landscape 16:9 illustration that closes a lesson comparing %q and %q.\n", word1, word2)
	if style := strings.TrimSpace(plan.StyleConsistency); style != "" {
		fmt.Fprintf(&b, "Visual style: %s\n", style)
	}
	fmt.Fprintf(&b, "Verdict: %s. %s\n", c.Verdict.Title(), strings.TrimSpace(c.VerdictReason))
	if s := strings.TrimSpace(c.SentenceFromUser); s != "" {
		fmt.Fprintf(&b, "Learner sentence: %s\n", s)
	}
	fmt.Fprintf(&b, "Recommended usage: %s\n", strings.TrimSpace(c.RecommendedUsage))
	if tone := strings.TrimSpace(c.ToneDifferenceNote); tone != "" {
		fmt.Fprintf(&b, "Tone difference: %s\n", tone)
	}
	if hint := strings.TrimSpace(c.ImagePrompt); hint != "" {
		fmt.Fprintf(&b, "Suggested direction: %s\n", hint)
	}
	b.WriteString("No words, letters, captions or subtitles in the image.")
	return b.String()
}

func conclusionCheck(word1, word2, sentence string) string {
	if sentence = strings.TrimSpace(sentence); sentence == "" {
		return fmt.Sprintf("Are %q and %q interchangeable?", word1, word2)
	}
	return fmt.Sprintf("Are %q and %q interchangeable in: %s", word1, word2, sentence)
}
