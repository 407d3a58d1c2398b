package daemon_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"testing"
	"time"

	"wordslearner/internal/assets"
	"wordslearner/internal/config"
	"wordslearner/internal/daemon"
	"wordslearner/internal/lesson"
	"wordslearner/internal/storyboard"
	"wordslearner/internal/store"
	"wordslearner/internal/taskqueue"
	"wordslearner/internal/testsupport"
)

type fixture struct {
	cfg    *config.Config
	store  *store.Store
	daemon *daemon.Daemon
	images *testsupport.FakeImages
}

func newFixture(t *testing.T, opts ...testsupport.ConfigOption) *fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}

	text := testsupport.NewFakeText(testsupport.ValidPlanJSON("affect", "effect", ""))
	mgr := taskqueue.NewManager(cfg, st, testsupport.NewFakeText("comparison"), nil)
	images := testsupport.NewFakeImages(t)
	assetStore := assets.NewFilesystemStore(cfg.Assets.RootDir, cfg.Assets.Folder)
	gen := lesson.NewGenerator(st, storyboard.NewPlanner(text, 3, nil), images, &testsupport.FakeAudio{}, assetStore, lesson.PresetsFromConfig(cfg), nil)

	d, err := daemon.New(cfg, st, nil, mgr, gen, assetStore)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() {
		d.Close()
	})
	return &fixture{cfg: cfg, store: st, daemon: d, images: images}
}

func (f *fixture) url(path string) string {
	return "http://" + f.daemon.Addr() + path
}

func doJSON(t *testing.T, method, url string, body any, token string, out any) int {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp.StatusCode
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestDaemonStartStop(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.daemon.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	status, err := f.daemon.Status(ctx)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !status.Running || status.LockFilePath != f.cfg.LockPath() {
		t.Fatalf("unexpected status %+v", status)
	}
	if err := f.daemon.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	f.daemon.Stop()
	status, err = f.daemon.Status(ctx)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.Running {
		t.Fatal("expected daemon to be stopped")
	}
}

func TestDaemonLockPreventsSecondInstance(t *testing.T) {
	f := newFixture(t)
	if err := f.daemon.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	other, err := store.Open(f.cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	assetStore := assets.NewFilesystemStore(f.cfg.Assets.RootDir, f.cfg.Assets.Folder)
	mgr := taskqueue.NewManager(f.cfg, other, testsupport.NewFakeText("x"), nil)
	gen := lesson.NewGenerator(other, storyboard.NewPlanner(testsupport.NewFakeText("x"), 1, nil), testsupport.NewFakeImages(t), &testsupport.FakeAudio{}, assetStore, lesson.Presets{}, nil)
	second, err := daemon.New(f.cfg, other, nil, mgr, gen, assetStore)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	defer second.Close()

	if err := second.Start(context.Background()); err == nil {
		t.Fatal("expected lock contention error")
	}
}

func TestDaemonFailsInterruptedTasksOnStart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	task := testsupport.NewTask(t, f.store, "stuck", "task", "")
	if err := f.store.MarkTaskGenerating(ctx, task.ID); err != nil {
		t.Fatalf("MarkTaskGenerating: %v", err)
	}

	if err := f.daemon.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	got, _ := f.store.GetTask(ctx, task.ID)
	if got.Status != store.TaskFailed || got.Error != store.InterruptedTaskMessage {
		t.Fatalf("unexpected task %+v", got)
	}
}

func TestAPITaskFlow(t *testing.T) {
	f := newFixture(t)
	if err := f.daemon.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	var created daemon.TaskView
	code := doJSON(t, http.MethodPost, f.url("/api/tasks"), daemon.WordPairRequest{Word1: "affect", Word2: "effect"}, "", &created)
	if code != http.StatusCreated || created.Task == nil || created.StatusLabel != "Pending" {
		t.Fatalf("POST /api/tasks = %d %+v", code, created)
	}

	waitFor(t, func() bool {
		var view daemon.TaskView
		doJSON(t, http.MethodGet, f.url("/api/tasks/"+created.ID), nil, "", &view)
		return view.Task != nil && view.Status == store.TaskCompleted
	})

	var list daemon.TaskListResponse
	if code := doJSON(t, http.MethodGet, f.url("/api/tasks?status=completed"), nil, "", &list); code != http.StatusOK || len(list.Tasks) != 1 {
		t.Fatalf("GET /api/tasks = %d %+v", code, list)
	}
	var errResp daemon.ErrorResponse
	if code := doJSON(t, http.MethodGet, f.url("/api/tasks?status=bogus"), nil, "", &errResp); code != http.StatusBadRequest {
		t.Fatalf("bad status filter = %d", code)
	}

	var history daemon.HistoryListResponse
	doJSON(t, http.MethodGet, f.url("/api/history?q=AFF&unread=1"), nil, "", &history)
	if len(history.History) != 1 || history.History[0].Response != "comparison" {
		t.Fatalf("history = %+v", history.History)
	}
	var entry store.History
	if code := doJSON(t, http.MethodPost, f.url("/api/history/"+history.History[0].ID+"/read"), nil, "", &entry); code != http.StatusOK || !entry.IsRead {
		t.Fatalf("mark read = %d %+v", code, entry)
	}
	if code := doJSON(t, http.MethodPost, f.url("/api/history/missing/read"), nil, "", nil); code != http.StatusNotFound {
		t.Fatalf("mark read missing = %d", code)
	}

	var regenerated daemon.TaskView
	if code := doJSON(t, http.MethodPost, f.url("/api/tasks/"+created.ID+"/regenerate"), nil, "", &regenerated); code != http.StatusOK {
		t.Fatalf("regenerate = %d", code)
	}
	if code := doJSON(t, http.MethodPost, f.url("/api/tasks/missing/regenerate"), nil, "", nil); code != http.StatusNotFound {
		t.Fatalf("regenerate missing = %d", code)
	}

	var status daemon.Status
	if code := doJSON(t, http.MethodGet, f.url("/api/status"), nil, "", &status); code != http.StatusOK || !status.Running {
		t.Fatalf("status = %d %+v", code, status)
	}
}

func TestAPILessonFlow(t *testing.T) {
	f := newFixture(t)
	if err := f.daemon.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if code := doJSON(t, http.MethodPost, f.url("/api/lessons"), daemon.WordPairRequest{Word1: "affect"}, "", nil); code != http.StatusBadRequest {
		t.Fatalf("missing word2 = %d", code)
	}

	var started daemon.LessonStartedResponse
	code := doJSON(t, http.MethodPost, f.url("/api/lessons"), daemon.WordPairRequest{Word1: "affect", Word2: "effect"}, "", &started)
	if code != http.StatusAccepted || started.LessonID == "" {
		t.Fatalf("POST /api/lessons = %d %+v", code, started)
	}

	var detail daemon.LessonDetailResponse
	waitFor(t, func() bool {
		detail = daemon.LessonDetailResponse{}
		doJSON(t, http.MethodGet, f.url("/api/lessons/"+started.LessonID), nil, "", &detail)
		return detail.Lesson.Status == store.LessonReady
	})
	if len(detail.Frames) != 9 || detail.Frames[8].FrameRole != lesson.ConclusionRole {
		t.Fatalf("frames = %d", len(detail.Frames))
	}
	if detail.Frames[0].ImageLocation == "" || detail.Lesson.StatusLabel != "Ready" {
		t.Fatalf("unexpected detail %+v", detail.Lesson)
	}

	var list daemon.LessonListResponse
	doJSON(t, http.MethodGet, f.url("/api/lessons"), nil, "", &list)
	if len(list.Lessons) != 1 {
		t.Fatalf("lessons = %d", len(list.Lessons))
	}
	if code := doJSON(t, http.MethodGet, f.url("/api/lessons/missing"), nil, "", nil); code != http.StatusNotFound {
		t.Fatalf("missing lesson = %d", code)
	}
}

func TestAPIRequiresToken(t *testing.T) {
	f := newFixture(t, testsupport.WithAPIToken("secret"))
	if err := f.daemon.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if code := doJSON(t, http.MethodGet, f.url("/api/status"), nil, "", nil); code != http.StatusUnauthorized {
		t.Fatalf("no token = %d", code)
	}
	if code := doJSON(t, http.MethodGet, f.url("/api/status"), nil, "wrong", nil); code != http.StatusUnauthorized {
		t.Fatalf("wrong token = %d", code)
	}
	if code := doJSON(t, http.MethodGet, f.url("/api/status"), nil, "secret", nil); code != http.StatusOK {
		t.Fatalf("good token = %d", code)
	}
}

func TestStatusLabel(t *testing.T) {
	if got := daemon.StatusLabel("language_lock_in"); got != "Language Lock In" {
		t.Fatalf("StatusLabel = %q", got)
	}
}

func TestStartLessonRacesStopCleanly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if err := f.daemon.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = f.daemon.StartLesson(ctx, "affect", "effect", "")
		}()
	}
	f.daemon.Stop()
	wg.Wait()

	if _, err := f.daemon.StartLesson(ctx, "affect", "effect", ""); err == nil {
		t.Fatal("expected StartLesson to refuse work after Stop")
	}
	lessons, err := f.store.ListLessons(ctx)
	if err != nil {
		t.Fatalf("ListLessons: %v", err)
	}
	for _, l := range lessons {
		if l.Status == store.LessonGenerating {
			t.Fatalf("lesson %s left generating after Stop", l.ID)
		}
	}
}
