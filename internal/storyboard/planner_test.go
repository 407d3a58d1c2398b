package storyboard_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"wordslearner/internal/logging"
	"wordslearner/internal/services"
	"wordslearner/internal/storyboard"
	"wordslearner/internal/testsupport"
)

func TestPlannerReturnsFirstValidPlan(t *testing.T) {
	gen := testsupport.NewFakeText(testsupport.ValidPlanJSON("affect", "effect", "It will affect us."))
	planner := storyboard.NewPlanner(gen, 3, logging.NewNop())

	plan, err := planner.Plan(context.Background(), "affect", "effect", "It will affect us.")
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if len(plan.Stories) != 2 {
		t.Fatalf("stories = %d", len(plan.Stories))
	}
	prompts := gen.Prompts()
	if len(prompts) != 1 {
		t.Fatalf("calls = %d, want 1", len(prompts))
	}
	for _, want := range []string{"word1: affect", "word2: effect", "userSentence: It will affect us.", "in this story"} {
		if !strings.Contains(prompts[0], want) {
			t.Fatalf("prompt missing %q", want)
		}
	}
	if strings.Contains(prompts[0], "Retry note") {
		t.Fatal("first prompt should not carry a retry note")
	}
}

func TestPlannerRetriesWithNote(t *testing.T) {
	gen := testsupport.NewFakeText(
		"not json at all",
		testsupport.ValidPlanJSON("affect", "effect", ""),
	)
	planner := storyboard.NewPlanner(gen, 3, logging.NewNop())

	if _, err := planner.Plan(context.Background(), "affect", "effect", ""); err != nil {
		t.Fatalf("Plan: %v", err)
	}
	prompts := gen.Prompts()
	if len(prompts) != 2 {
		t.Fatalf("calls = %d, want 2", len(prompts))
	}
	if !strings.Contains(prompts[1], "Retry note") {
		t.Fatalf("second prompt missing retry note:\n%s", prompts[1])
	}
}

func TestPlannerRejectsPlanWithoutVerdict(t *testing.T) {
	valid := testsupport.ValidPlanJSON("affect", "effect", "")
	noVerdict := strings.Replace(valid, `"verdict":"no",`, "", 1)
	if noVerdict == valid {
		t.Fatal("fixture no longer carries a verdict to remove")
	}
	gen := testsupport.NewFakeText(noVerdict, valid)
	planner := storyboard.NewPlanner(gen, 3, logging.NewNop())

	plan, err := planner.Plan(context.Background(), "affect", "effect", "")
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if plan.FinalConclusion.Verdict != storyboard.VerdictNo {
		t.Fatalf("verdict = %q, want no", plan.FinalConclusion.Verdict)
	}
	prompts := gen.Prompts()
	if len(prompts) != 2 {
		t.Fatalf("calls = %d, want 2", len(prompts))
	}
	if !strings.Contains(prompts[1], "storyboard verdict:") {
		t.Fatalf("retry note should name the verdict rule:\n%s", prompts[1])
	}
}

func TestPlannerFailsAfterAttempts(t *testing.T) {
	gen := testsupport.NewFakeText(`{"schemaVersion":"v2","stories":[]}`)
	planner := storyboard.NewPlanner(gen, 0, nil)

	_, err := planner.Plan(context.Background(), "a", "b", "")
	var verr *storyboard.ValidationError
	if !errors.As(err, &verr) || verr.Rule != storyboard.RuleStoryCount {
		t.Fatalf("err = %v, want story_count validation error", err)
	}
	if gen.Calls() != storyboard.DefaultAttempts {
		t.Fatalf("calls = %d, want %d", gen.Calls(), storyboard.DefaultAttempts)
	}
	if !strings.Contains(gen.Prompts()[2], storyboard.RuleStoryCount) {
		t.Fatal("retry note should name the failed rule")
	}
}

func TestPlannerStopsOnPermanentTransportError(t *testing.T) {
	gen := &testsupport.FakeText{}
	gen.Push(testsupport.TextResponse{Err: services.NewProviderError("llm", services.KindAuthentication, "bad key", nil)})
	planner := storyboard.NewPlanner(gen, 3, nil)

	if _, err := planner.Plan(context.Background(), "a", "b", ""); err == nil {
		t.Fatal("expected error")
	}
	if gen.Calls() != 1 {
		t.Fatalf("calls = %d, want 1", gen.Calls())
	}
}

func TestPlannerRetriesTransientTransportError(t *testing.T) {
	gen := &testsupport.FakeText{}
	gen.Push(testsupport.TextResponse{Err: services.NewProviderError("llm", services.KindNetwork, "reset", nil)})
	gen.Push(testsupport.TextResponse{Fragments: []string{testsupport.ValidPlanJSON("a", "b", "")}})
	planner := storyboard.NewPlanner(gen, 3, nil)

	if _, err := planner.Plan(context.Background(), "a", "b", ""); err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if gen.Calls() != 2 {
		t.Fatalf("calls = %d, want 2", gen.Calls())
	}
}

func TestPlannerHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	gen := testsupport.NewFakeText(testsupport.ValidPlanJSON("a", "b", ""))
	planner := storyboard.NewPlanner(gen, 3, nil)

	if _, err := planner.Plan(ctx, "a", "b", ""); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
