package testsupport

import (
	"encoding/json"
	"fmt"
)

// ValidPlanJSON returns a two-story plan for word1 and word2 that passes
// storyboard validation when the user sentence is sentence.
func ValidPlanJSON(word1, word2, sentence string) string {
	type frame struct {
		IndexInStory   int    `json:"indexInStory"`
		GlobalIndex    int    `json:"globalIndex"`
		Role           string `json:"role"`
		TargetWord     string `json:"targetWord"`
		Title          string `json:"title"`
		Caption        string `json:"caption"`
		NarrationText  string `json:"narrationText"`
		ImagePrompt    string `json:"imagePrompt"`
		CheckPrompt    any    `json:"checkPrompt"`
		ExpectedAnswer any    `json:"expectedAnswer"`
	}
	type story struct {
		StoryID        string  `json:"storyID"`
		FocusWord      string  `json:"focusWord"`
		Title          string  `json:"title"`
		MeaningSummary string  `json:"meaningSummary"`
		Frames         []frame `json:"frames"`
	}
	roles := []string{"setup", "conflict", "outcome", "language_lock_in"}
	build := func(id, word, setting string, offset int) story {
		s := story{
			StoryID:        id,
			FocusWord:      word,
			Title:          fmt.Sprintf("%s at the %s", word, setting),
			MeaningSummary: fmt.Sprintf("%s as used at the %s", word, setting),
		}
		for i, role := range roles {
			narration := fmt.Sprintf("Scene %d at the %s.", i+1, setting)
			var check, expected any
			if role == "language_lock_in" {
				narration = fmt.Sprintf("In this story, %q fits the moment at the %s.", word, setting)
				check = "Which word fits here?"
				expected = word
			}
			s.Frames = append(s.Frames, frame{
				IndexInStory:   i,
				GlobalIndex:    offset + i,
				Role:           role,
				TargetWord:     word,
				Title:          fmt.Sprintf("%s %s", setting, role),
				Caption:        fmt.Sprintf("%s caption %d for %s", setting, i, word),
				NarrationText:  narration,
				ImagePrompt:    fmt.Sprintf("A %s scene, step %d", setting, i),
				CheckPrompt:    check,
				ExpectedAnswer: expected,
			})
		}
		return s
	}

	plan := map[string]any{
		"schemaVersion":    "v2",
		"lessonObjective":  fmt.Sprintf("Know when to use %s and %s", word1, word2),
		"styleConsistency": "soft watercolor",
		"stories": []story{
			build("story_a", word1, "harbor", 0),
			build("story_b", word2, "library", len(roles)),
		},
		"finalConclusion": map[string]any{
			"verdict":            "no",
			"verdictReason":      "The meanings differ.",
			"sentenceFromUser":   sentence,
			"recommendedUsage":   fmt.Sprintf("Use %s for one case and %s for the other.", word1, word2),
			"toneDifferenceNote": "Neutral tone for both.",
			"narrationText":      "Now you know the difference.",
			"imagePrompt":        "Both scenes side by side",
		},
	}
	data, err := json.Marshal(plan)
	if err != nil {
		panic(err)
	}
	return string(data)
}
