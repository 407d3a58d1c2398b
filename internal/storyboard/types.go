package storyboard

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"wordslearner/internal/services/llm"
)

// SchemaVersion is the plan schema requested from the model.
const SchemaVersion = "v2"

// Role is a frame's narrative position inside its story.
type Role string

const (
	RoleSetup          Role = "setup"
	RoleConflict       Role = "conflict"
	RoleOutcome        Role = "outcome"
	RoleLanguageLockIn Role = "language_lock_in"
)

// StoryRoles lists the roles every story must use exactly once, in story order.
var StoryRoles = []Role{RoleSetup, RoleConflict, RoleOutcome, RoleLanguageLockIn}

// FramesPerStory is the fixed story length.
const FramesPerStory = 4

// Verdict answers whether the two words are interchangeable in the sentence.
type Verdict string

const (
	VerdictYes     Verdict = "yes"
	VerdictNo      Verdict = "no"
	VerdictDepends Verdict = "depends"
)

// UnmarshalJSON accepts only the three known verdicts, case-insensitively.
func (v *Verdict) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("verdict: %w", err)
	}
	switch candidate := Verdict(strings.ToLower(strings.TrimSpace(raw))); candidate {
	case VerdictYes, VerdictNo, VerdictDepends:
		*v = candidate
		return nil
	default:
		return fmt.Errorf("verdict %q must be one of yes, no, depends", raw)
	}
}

// Title is the human-facing label used for the conclusion frame.
func (v Verdict) Title() string {
	switch v {
	case VerdictYes:
		return "Interchangeable"
	case VerdictNo:
		return "Not interchangeable"
	default:
		return "It depends"
	}
}

// Plan is the full lesson script returned by the planner.
type Plan struct {
	SchemaVersion    string          `json:"schemaVersion"`
	LessonObjective  string          `json:"lessonObjective"`
	StyleConsistency string          `json:"styleConsistency,omitempty"`
	Stories          []Story         `json:"stories"`
	FinalConclusion  FinalConclusion `json:"finalConclusion"`
}

// Story is one four-frame mini story focused on a word.
type Story struct {
	StoryID        string      `json:"storyID"`
	FocusWord      string      `json:"focusWord"`
	Title          string      `json:"title"`
	MeaningSummary string      `json:"meaningSummary"`
	Frames         []FramePlan `json:"frames"`
}

// FramePlan is one planned frame.
type FramePlan struct {
	IndexInStory   int    `json:"indexInStory"`
	GlobalIndex    int    `json:"globalIndex"`
	Role           Role   `json:"role"`
	TargetWord     string `json:"targetWord"`
	Title          string `json:"title"`
	Caption        string `json:"caption"`
	NarrationText  string `json:"narrationText"`
	ImagePrompt    string `json:"imagePrompt"`
	CheckPrompt    string `json:"checkPrompt,omitempty"`
	ExpectedAnswer string `json:"expectedAnswer,omitempty"`
}

// FinalConclusion closes the lesson with a verdict on the learner's sentence.
type FinalConclusion struct {
	Verdict            Verdict `json:"verdict"`
	VerdictReason      string  `json:"verdictReason"`
	SentenceFromUser   string  `json:"sentenceFromUser"`
	RecommendedUsage   string  `json:"recommendedUsage"`
	ToneDifferenceNote string  `json:"toneDifferenceNote"`
	NarrationText      string  `json:"narrationText"`
	ImagePrompt        string  `json:"imagePrompt"`
}

// PlannedFrame pairs a frame with the story it belongs to.
type PlannedFrame struct {
	Story *Story
	Frame FramePlan
}

// FrameCount is the number of story frames across the plan.
func (p *Plan) FrameCount() int {
	count := 0
	for _, story := range p.Stories {
		count += len(story.Frames)
	}
	return count
}

// OrderedFrames flattens every story's frames, sorted by global index.
func (p *Plan) OrderedFrames() []PlannedFrame {
	out := make([]PlannedFrame, 0, p.FrameCount())
	for i := range p.Stories {
		story := &p.Stories[i]
		for _, frame := range story.Frames {
			out = append(out, PlannedFrame{Story: story, Frame: frame})
		}
	}
	sort.SliceStable(out, func(a, b int) bool {
		return out[a].Frame.GlobalIndex < out[b].Frame.GlobalIndex
	})
	return out
}

// MaxGlobalIndex returns the largest global index used, or -1 for an empty plan.
func (p *Plan) MaxGlobalIndex() int {
	maxIndex := -1
	for _, story := range p.Stories {
		for _, frame := range story.Frames {
			if frame.GlobalIndex > maxIndex {
				maxIndex = frame.GlobalIndex
			}
		}
	}
	return maxIndex
}

// Decode parses a model response into a Plan. Markdown fences are removed
// first; unknown verdicts and mistyped fields are rejected.
func Decode(raw string) (*Plan, error) {
	var plan Plan
	if err := llm.DecodeJSON(raw, &plan); err != nil {
		return nil, err
	}
	return &plan, nil
}
