package storyboard

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/cases"

	"wordslearner/internal/services"
)

// Validation rule identifiers carried by ValidationError.
const (
	RuleStoryCount           = "story_count"
	RuleFrameCount           = "frame_count"
	RuleFrameRoles           = "frame_roles"
	RuleFrameIndexes         = "frame_indexes"
	RuleLockInGrounding      = "lock_in_grounding"
	RuleDuplicateGlobalIndex = "duplicate_global_index"
	RuleGlobalSequence       = "global_sequence"
	RuleDuplicateMeaning     = "duplicate_meaning"
	RuleConclusionIncomplete = "conclusion_incomplete"
	RuleMissingUserSentence  = "missing_user_sentence"
	RuleVerdict              = "verdict"
)

const minStories = 2

const groundingPhrase = "in this story"

// ValidationError reports the first structural rule a plan breaks.
type ValidationError struct {
	Rule   string
	Detail string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("storyboard %s: %s", e.Rule, e.Detail)
}

// Unwrap tags the error as a validation failure.
func (e *ValidationError) Unwrap() error {
	return services.ErrValidation
}

func invalid(rule, format string, args ...any) *ValidationError {
	return &ValidationError{Rule: rule, Detail: fmt.Sprintf(format, args...)}
}

// Validate checks the structural contract of plan. sentence is the learner's
// source sentence; when non-empty the conclusion must restate it.
func Validate(plan *Plan, sentence string) error {
	if plan == nil {
		return invalid(RuleStoryCount, "plan is empty")
	}
	if len(plan.Stories) < minStories {
		return invalid(RuleStoryCount, "need at least %d stories, got %d", minStories, len(plan.Stories))
	}

	for _, story := range plan.Stories {
		if err := validateStory(story); err != nil {
			return err
		}
	}

	seen := make(map[int]string, plan.FrameCount())
	indexes := make([]int, 0, plan.FrameCount())
	for _, story := range plan.Stories {
		for _, frame := range story.Frames {
			if owner, dup := seen[frame.GlobalIndex]; dup {
				return invalid(RuleDuplicateGlobalIndex, "globalIndex %d used by story %q and story %q", frame.GlobalIndex, owner, story.StoryID)
			}
			seen[frame.GlobalIndex] = story.StoryID
			indexes = append(indexes, frame.GlobalIndex)
		}
	}
	sort.Ints(indexes)
	for want, got := range indexes {
		if got != want {
			return invalid(RuleGlobalSequence, "global indexes must run 0..%d without gaps, got %v", len(indexes)-1, indexes)
		}
	}

	fingerprints := make(map[string]string, len(plan.Stories))
	for _, story := range plan.Stories {
		fp := Fingerprint(story)
		if other, dup := fingerprints[fp]; dup {
			return invalid(RuleDuplicateMeaning, "stories %q and %q tell the same story", other, story.StoryID)
		}
		fingerprints[fp] = story.StoryID
	}

	conclusion := plan.FinalConclusion
	switch conclusion.Verdict {
	case VerdictYes, VerdictNo, VerdictDepends:
	default:
		return invalid(RuleVerdict, "finalConclusion.verdict must be yes, no or depends, got %q", conclusion.Verdict)
	}
	if strings.TrimSpace(conclusion.NarrationText) == "" || strings.TrimSpace(conclusion.RecommendedUsage) == "" {
		return invalid(RuleConclusionIncomplete, "finalConclusion needs narrationText and recommendedUsage")
	}
	if strings.TrimSpace(sentence) != "" && strings.TrimSpace(conclusion.SentenceFromUser) == "" {
		return invalid(RuleMissingUserSentence, "finalConclusion.sentenceFromUser must restate the learner sentence")
	}
	return nil
}

func validateStory(story Story) error {
	if len(story.Frames) != FramesPerStory {
		return invalid(RuleFrameCount, "story %q needs %d frames, got %d", story.StoryID, FramesPerStory, len(story.Frames))
	}

	roles := make(map[Role]int, FramesPerStory)
	positions := make(map[int]bool, FramesPerStory)
	for _, frame := range story.Frames {
		roles[frame.Role]++
		positions[frame.IndexInStory] = true
	}
	for _, role := range StoryRoles {
		if roles[role] != 1 {
			return invalid(RuleFrameRoles, "story %q must use setup, conflict, outcome and language_lock_in once each", story.StoryID)
		}
	}
	for i := 0; i < FramesPerStory; i++ {
		if !positions[i] {
			return invalid(RuleFrameIndexes, "story %q indexInStory values must be 0,1,2,3", story.StoryID)
		}
	}

	for _, frame := range story.Frames {
		if frame.Role != RoleLanguageLockIn {
			continue
		}
		if !strings.Contains(strings.ToLower(frame.NarrationText), groundingPhrase) {
			return invalid(RuleLockInGrounding, "story %q language_lock_in narration must say %q", story.StoryID, groundingPhrase)
		}
	}
	return nil
}

// Fingerprint folds a story's title, meaning summary and captions into a
// case-folded, whitespace-collapsed key used to spot duplicate stories.
func Fingerprint(story Story) string {
	parts := make([]string, 0, len(story.Frames)+2)
	parts = append(parts, story.Title, story.MeaningSummary)
	for _, frame := range story.Frames {
		parts = append(parts, frame.Caption)
	}
	folded := cases.Fold().String(strings.Join(parts, " "))
	return strings.Join(strings.Fields(folded), " ")
}
