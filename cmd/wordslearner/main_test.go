package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"wordslearner/internal/assets"
	"wordslearner/internal/config"
	"wordslearner/internal/store"
	"wordslearner/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	text       *testsupport.FakeText
	images     *testsupport.FakeImages
	audio      *testsupport.FakeAudio
}

func setupCLITestEnv(t *testing.T, textResponses ...string) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	configPath := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	writeTestConfig(t, configPath, cfg)

	env := &cliTestEnv{
		cfg:        cfg,
		configPath: configPath,
		text:       testsupport.NewFakeText(textResponses...),
		images:     testsupport.NewFakeImages(t),
		audio:      &testsupport.FakeAudio{},
	}

	previous := newPorts
	newPorts = func(ctx context.Context, cfg *config.Config, _ *slog.Logger) (*ports, error) {
		assetStore, err := assets.New(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return &ports{text: env.text, images: env.images, audio: env.audio, assets: assetStore}, nil
	}
	t.Cleanup(func() { newPorts = previous })
	return env
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func (env *cliTestEnv) run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	return runCLI(t, append([]string{"--config", env.configPath}, args...))
}

func runCLI(t *testing.T, args []string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func (env *cliTestEnv) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, stderr, err := env.run(t, args...)
	if err != nil {
		t.Fatalf("%v failed: %v (stderr: %s)", args, err, stderr)
	}
	return out
}

func decodeJSON[T any](t *testing.T, raw string) T {
	t.Helper()
	var v T
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		t.Fatalf("decode %q: %v", raw, err)
	}
	return v
}

func TestConfigInitWritesSampleAndValidateReadsIt(t *testing.T) {
	target := filepath.Join(t.TempDir(), "wordslearner", "config.toml")

	out, _, err := runCLI(t, []string{"config", "init", "--path", target})
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	if !strings.Contains(out, target) {
		t.Fatalf("expected path in output, got %q", out)
	}
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("sample config missing: %v", err)
	}

	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}); err == nil {
		t.Fatal("expected second init without --overwrite to fail")
	}
	if _, _, err := runCLI(t, []string{"config", "init", "--path", target, "--overwrite"}); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}

	env := setupCLITestEnv(t)
	out = env.mustRun(t, "config", "validate")
	if !strings.Contains(out, "Configuration valid") {
		t.Fatalf("unexpected validate output: %q", out)
	}
	if !strings.Contains(out, env.cfg.DatabasePath()) {
		t.Fatalf("expected database path in output: %q", out)
	}
}

func TestTaskAddListShowAndStats(t *testing.T) {
	env := setupCLITestEnv(t)

	added := decodeJSON[store.Task](t, env.mustRun(t, "--json", "task", "add", " affect ", "effect", "-s", "It will affect us."))
	if added.Word1 != "affect" || added.Status != store.TaskPending {
		t.Fatalf("unexpected task: %+v", added)
	}
	env.mustRun(t, "task", "add", "lie", "lay")

	tasks := decodeJSON[[]store.Task](t, env.mustRun(t, "--json", "task", "list"))
	if len(tasks) != 2 || tasks[0].ID != added.ID {
		t.Fatalf("expected oldest task first, got %+v", tasks)
	}
	pending := decodeJSON[[]store.Task](t, env.mustRun(t, "--json", "task", "list", "--status", "pending"))
	if len(pending) != 2 {
		t.Fatalf("expected 2 pending tasks, got %d", len(pending))
	}
	if _, _, err := env.run(t, "task", "list", "--status", "bogus"); err == nil {
		t.Fatal("expected unknown status to fail")
	}

	table := env.mustRun(t, "task", "list")
	if !strings.Contains(table, "affect / effect") || !strings.Contains(table, "Pending") {
		t.Fatalf("unexpected table: %q", table)
	}

	shown := env.mustRun(t, "task", "show", added.ID)
	if !strings.Contains(shown, "It will affect us.") {
		t.Fatalf("expected sentence in show output: %q", shown)
	}

	stats := decodeJSON[map[string]int](t, env.mustRun(t, "--json", "task", "stats"))
	if stats["pending"] != 2 || stats["failed"] != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}

	if _, _, err := env.run(t, "task", "add", "", "effect"); err == nil {
		t.Fatal("expected empty word to be rejected")
	}
}

func TestTaskRegenerateRemoveAndClear(t *testing.T) {
	env := setupCLITestEnv(t)
	st := testsupport.MustOpenStore(t, env.cfg)
	ctx := context.Background()

	failed := testsupport.NewTask(t, st, "lie", "lay", "")
	if err := st.FailTask(ctx, failed.ID, "boom"); err != nil {
		t.Fatalf("FailTask: %v", err)
	}
	done := testsupport.NewTask(t, st, "fewer", "less", "")
	if _, err := st.CompleteTask(ctx, done.ID, "answer"); err != nil {
		t.Fatalf("CompleteTask: %v", err)
	}
	keep := testsupport.NewTask(t, st, "farther", "further", "")

	env.mustRun(t, "task", "regenerate", failed.ID)
	task, err := st.GetTask(ctx, failed.ID)
	if err != nil || task.Status != store.TaskPending {
		t.Fatalf("expected regenerated task pending, got %+v (%v)", task, err)
	}

	if _, _, err := env.run(t, "task", "regenerate", "missing"); err == nil {
		t.Fatal("expected regenerate of unknown id to fail")
	}

	out := env.mustRun(t, "task", "clear")
	if !strings.Contains(out, "Removed 1 task(s)") {
		t.Fatalf("expected only the completed task cleared, got %q", out)
	}

	if _, _, err := env.run(t, "task", "clear", "--all", "--failed"); err == nil {
		t.Fatal("expected --all with --failed to be rejected")
	}

	env.mustRun(t, "task", "remove", keep.ID)
	if got, _ := st.GetTask(ctx, keep.ID); got != nil {
		t.Fatalf("expected task removed, got %+v", got)
	}
	if _, _, err := env.run(t, "task", "remove", keep.ID); err == nil {
		t.Fatal("expected second remove to fail")
	}

	env.mustRun(t, "task", "clear", "--all")
	count, err := st.CountTasks(ctx, store.TaskPending)
	if err != nil || count != 0 {
		t.Fatalf("expected empty queue, got %d (%v)", count, err)
	}
}

func TestCompareStreamsAndSavesHistory(t *testing.T) {
	env := setupCLITestEnv(t, "Use affect as a verb.")

	out := env.mustRun(t, "compare", "affect", "effect", "--sentence", "It will affect us.")
	if !strings.Contains(out, "Use affect as a verb.") || !strings.Contains(out, "Saved to history") {
		t.Fatalf("unexpected compare output: %q", out)
	}
	if !strings.Contains(env.text.Prompts()[0], "It will affect us.") {
		t.Fatalf("expected sentence in prompt: %q", env.text.Prompts()[0])
	}

	entries := decodeJSON[[]store.History](t, env.mustRun(t, "--json", "history", "list", "--unread"))
	if len(entries) != 1 || entries[0].Response != "Use affect as a verb." || entries[0].IsRead {
		t.Fatalf("unexpected history: %+v", entries)
	}

	shown := env.mustRun(t, "history", "show", entries[0].ID)
	if !strings.Contains(shown, "affect vs effect") {
		t.Fatalf("unexpected show output: %q", shown)
	}
	unread := decodeJSON[[]store.History](t, env.mustRun(t, "--json", "history", "list", "--unread"))
	if len(unread) != 0 {
		t.Fatalf("expected entry marked read after show, got %+v", unread)
	}
	env.mustRun(t, "history", "unread", entries[0].ID)
	if _, _, err := env.run(t, "history", "read", "missing"); err == nil {
		t.Fatal("expected marking unknown entry to fail")
	}
}

func TestCompareFailureSavesNothing(t *testing.T) {
	env := setupCLITestEnv(t)
	env.text.Push(testsupport.TextResponse{Fragments: []string{"partial "}, Err: errors.New("stream dropped")})

	if _, _, err := env.run(t, "compare", "affect", "effect"); err == nil {
		t.Fatal("expected compare to fail")
	}
	entries := decodeJSON[[]store.History](t, env.mustRun(t, "--json", "history", "list"))
	if len(entries) != 0 {
		t.Fatalf("expected no history, got %+v", entries)
	}
}

func TestHistoryExportImportRoundTrip(t *testing.T) {
	env := setupCLITestEnv(t)
	st := testsupport.MustOpenStore(t, env.cfg)
	ctx := context.Background()
	for _, pair := range [][2]string{{"affect", "effect"}, {"lie", "lay"}} {
		if _, err := st.AddHistory(ctx, pair[0], pair[1], "", "response for "+pair[0]); err != nil {
			t.Fatalf("AddHistory: %v", err)
		}
	}

	exportPath := filepath.Join(t.TempDir(), "history.json")
	_, stderr, err := env.run(t, "history", "export", "-o", exportPath)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if !strings.Contains(stderr, "Exported 2 entries") {
		t.Fatalf("unexpected export message: %q", stderr)
	}
	raw, err := os.ReadFile(exportPath)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	exported := decodeJSON[[]map[string]any](t, string(raw))
	if len(exported) != 2 {
		t.Fatalf("expected 2 exported entries, got %d", len(exported))
	}
	if _, ok := exported[0]["isRead"]; !ok {
		t.Fatalf("expected camelCase fields, got %v", exported[0])
	}

	env.mustRun(t, "history", "clear")
	if out := env.mustRun(t, "history", "list"); !strings.Contains(out, "No history") {
		t.Fatalf("expected empty history, got %q", out)
	}

	out := env.mustRun(t, "history", "import", exportPath)
	if !strings.Contains(out, "Imported 2 entries") {
		t.Fatalf("unexpected import output: %q", out)
	}
	out = env.mustRun(t, "history", "import", exportPath)
	if !strings.Contains(out, "Imported 2 entries") {
		t.Fatalf("unexpected re-import output: %q", out)
	}
	entries := decodeJSON[[]store.History](t, env.mustRun(t, "--json", "history", "list"))
	if len(entries) != 2 {
		t.Fatalf("expected import to upsert by id, got %d entries", len(entries))
	}

	searched := decodeJSON[[]store.History](t, env.mustRun(t, "--json", "history", "list", "--search", "LIE"))
	if len(searched) != 1 || searched[0].Word1 != "lie" {
		t.Fatalf("unexpected search result: %+v", searched)
	}
}

func TestLessonGenerateListShowAndDelete(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.ValidPlanJSON("affect", "effect", "It will affect us."))

	out := env.mustRun(t, "lesson", "generate", "affect", "effect", "-s", "It will affect us.")
	for _, want := range []string{"planning storyboard", "frame 1/9 (index 0)", "frame 9/9 (index 8)", "completed", "is ready"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in generate output: %q", want, out)
		}
	}

	lessons := decodeJSON[[]store.Lesson](t, env.mustRun(t, "--json", "lesson", "list"))
	if len(lessons) != 1 || lessons[0].Status != store.LessonReady {
		t.Fatalf("unexpected lessons: %+v", lessons)
	}
	id := lessons[0].ID

	detail := decodeJSON[lessonDetail](t, env.mustRun(t, "--json", "lesson", "show", id))
	if len(detail.Frames) != 9 {
		t.Fatalf("expected 9 frames, got %d", len(detail.Frames))
	}
	for i, frame := range detail.Frames {
		if frame.FrameIndex != i {
			t.Fatalf("frame %d has index %d", i, frame.FrameIndex)
		}
	}

	table := env.mustRun(t, "lesson", "show", id)
	imagePath := filepath.Join(env.cfg.Assets.RootDir, filepath.FromSlash(detail.Frames[0].ImageRelativePath))
	if !strings.Contains(table, "final_conclusion") {
		t.Fatalf("expected conclusion frame in table: %q", table)
	}
	if _, err := os.Stat(imagePath); err != nil {
		t.Fatalf("expected image on disk: %v", err)
	}

	env.mustRun(t, "lesson", "rate", id, "4")
	if _, _, err := env.run(t, "lesson", "rate", id, "9"); err == nil {
		t.Fatal("expected out-of-range rating to fail")
	}
	env.mustRun(t, "lesson", "duration", id, "42.5")
	rated := decodeJSON[lessonDetail](t, env.mustRun(t, "--json", "lesson", "show", id))
	if rated.Lesson.SelfRatingClarity == nil || *rated.Lesson.SelfRatingClarity != 4 {
		t.Fatalf("expected rating 4, got %+v", rated.Lesson.SelfRatingClarity)
	}
	if rated.Lesson.DurationSeconds == nil || *rated.Lesson.DurationSeconds != 42.5 {
		t.Fatalf("expected duration 42.5, got %+v", rated.Lesson.DurationSeconds)
	}

	env.mustRun(t, "lesson", "delete", id)
	if _, err := os.Stat(filepath.Dir(imagePath)); !os.IsNotExist(err) {
		t.Fatalf("expected lesson media removed, stat err=%v", err)
	}
	if _, _, err := env.run(t, "lesson", "show", id); err == nil {
		t.Fatal("expected deleted lesson to be missing")
	}
}

func TestLessonGenerateReportsFailure(t *testing.T) {
	env := setupCLITestEnv(t, "not json")

	_, _, err := env.run(t, "lesson", "generate", "affect", "effect")
	if err == nil {
		t.Fatal("expected generation to fail")
	}
	lessons := decodeJSON[[]store.Lesson](t, env.mustRun(t, "--json", "lesson", "list"))
	if len(lessons) != 1 || lessons[0].Status != store.LessonFailed {
		t.Fatalf("expected one failed lesson, got %+v", lessons)
	}
	if !strings.Contains(err.Error(), lessons[0].ID) {
		t.Fatalf("expected lesson id in error: %v", err)
	}
}

func TestStatusReportsUnreachableDaemon(t *testing.T) {
	env := setupCLITestEnv(t)
	env.cfg.Paths.APIBind = "127.0.0.1:1"
	writeTestConfig(t, env.configPath, env.cfg)

	_, _, err := env.run(t, "status")
	if err == nil || !strings.Contains(err.Error(), "not reachable") {
		t.Fatalf("expected unreachable error, got %v", err)
	}
}
