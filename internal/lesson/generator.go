package lesson

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"wordslearner/internal/assets"
	"wordslearner/internal/config"
	"wordslearner/internal/logging"
	"wordslearner/internal/services"
	"wordslearner/internal/services/audiogen"
	"wordslearner/internal/services/imagegen"
	"wordslearner/internal/storyboard"
	"wordslearner/internal/store"
)

// ConclusionRole is the frame role of the synthesized closing frame.
const ConclusionRole = "final_conclusion"

// Planner produces a validated storyboard.
type Planner interface {
	Plan(ctx context.Context, word1, word2, sentence string) (*storyboard.Plan, error)
}

// LessonStore is the subset of the record store the generator writes to.
type LessonStore interface {
	CreateLesson(ctx context.Context, input store.NewLesson) (*store.Lesson, error)
	SetLessonStoryboard(ctx context.Context, id, storyboardJSON string) error
	AddFrame(ctx context.Context, frame *store.Frame) error
	MarkLessonReady(ctx context.Context, id string) error
	MarkLessonFailed(ctx context.Context, id, message string) error
}

// Presets are the fixed identifiers stamped on every lesson row.
type Presets struct {
	StylePreset      string
	VoicePreset      string
	ImageModel       string
	AudioModel       string
	GeneratorVersion string
}

// PresetsFromConfig derives lesson presets from the configured ports.
func PresetsFromConfig(cfg *config.Config) Presets {
	audioModel := cfg.Audio.Model
	if cfg.Audio.Provider == config.AudioProviderGoogle {
		audioModel = cfg.Audio.GoogleVoiceName
	}
	return Presets{
		StylePreset:      cfg.Lesson.StylePreset,
		VoicePreset:      cfg.Lesson.VoicePreset,
		ImageModel:       cfg.Image.Model,
		AudioModel:       audioModel,
		GeneratorVersion: cfg.Lesson.GeneratorVersion,
	}
}

// Generator drives a lesson from word pair to ready frames.
type Generator struct {
	store   LessonStore
	planner Planner
	images  imagegen.ImageGenerator
	audio   audiogen.AudioGenerator
	assets  assets.Store
	presets Presets
	logger  *slog.Logger
}

// NewGenerator wires a generator from its ports.
func NewGenerator(st LessonStore, planner Planner, images imagegen.ImageGenerator, audio audiogen.AudioGenerator, assetStore assets.Store, presets Presets, logger *slog.Logger) *Generator {
	return &Generator{
		store:   st,
		planner: planner,
		images:  images,
		audio:   audio,
		assets:  assetStore,
		presets: presets,
		logger:  logging.NewComponentLogger(logger, "lesson"),
	}
}

// run holds the state of one Generate call.
type run struct {
	lessonID string
	word1    string
	word2    string
	sentence string
	logger   *slog.Logger
	progress ProgressFunc
	anchors  map[string][]byte
}

// Generate creates a lesson and returns its id once every frame is stored.
// On failure the lesson is marked failed with the error text and the error
// is returned; frames written before the failure are kept. The lesson id is
// returned alongside the error when the lesson row exists.
func (g *Generator) Generate(ctx context.Context, word1, word2, sentence string, onProgress ProgressFunc) (string, error) {
	word1, word2, sentence = strings.TrimSpace(word1), strings.TrimSpace(word2), strings.TrimSpace(sentence)
	if word1 == "" || word2 == "" {
		return "", services.Wrap(services.ErrValidation, "lesson", "validate", "word1 and word2 are required", nil)
	}
	if onProgress == nil {
		onProgress = func(Progress) {}
	}

	lesson, err := g.store.CreateLesson(ctx, store.NewLesson{
		Word1:            word1,
		Word2:            word2,
		UserSentence:     sentence,
		StylePreset:      g.presets.StylePreset,
		VoicePreset:      g.presets.VoicePreset,
		ImageModel:       g.presets.ImageModel,
		AudioModel:       g.presets.AudioModel,
		GeneratorVersion: g.presets.GeneratorVersion,
	})
	if err != nil {
		return "", fmt.Errorf("create lesson: %w", err)
	}

	ctx = services.WithLessonID(ctx, lesson.ID)
	r := &run{
		lessonID: lesson.ID,
		word1:    word1,
		word2:    word2,
		sentence: sentence,
		logger:   g.logger.With(logging.LessonID(lesson.ID)),
		progress: onProgress,
		anchors:  make(map[string][]byte),
	}
	r.logger.Info("lesson generation started",
		logging.String("word1", word1),
		logging.String("word2", word2),
	)

	if err := g.generate(ctx, r); err != nil {
		g.markFailed(ctx, r, err)
		return lesson.ID, err
	}
	return lesson.ID, nil
}

func (g *Generator) generate(ctx context.Context, r *run) error {
	r.progress(Progress{Kind: ProgressPlanning, LessonID: r.lessonID})
	plan, err := g.planner.Plan(services.WithStage(ctx, "planning"), r.word1, r.word2, r.sentence)
	if err != nil {
		return r.stepFailed("plan storyboard", err)
	}
	encoded, err := json.Marshal(plan)
	if err != nil {
		return r.stepFailed("encode storyboard", err)
	}
	if err := g.store.SetLessonStoryboard(ctx, r.lessonID, string(encoded)); err != nil {
		return r.stepFailed("save storyboard", err)
	}

	frames := plan.OrderedFrames()
	total := len(frames) + 1
	for i, planned := range frames {
		r.progress(Progress{
			Kind:       ProgressGeneratingFrame,
			LessonID:   r.lessonID,
			Step:       i + 1,
			TotalSteps: total,
			FrameIndex: planned.Frame.GlobalIndex,
		})
		if err := g.storyFrame(ctx, r, plan, planned); err != nil {
			return err
		}
	}

	conclusionIndex := plan.MaxGlobalIndex() + 1
	r.progress(Progress{
		Kind:       ProgressGeneratingFrame,
		LessonID:   r.lessonID,
		Step:       total,
		TotalSteps: total,
		FrameIndex: conclusionIndex,
	})
	if err := g.conclusionFrame(ctx, r, plan, conclusionIndex); err != nil {
		return err
	}

	if err := g.store.MarkLessonReady(ctx, r.lessonID); err != nil {
		return r.stepFailed("mark lesson ready", err)
	}
	r.logger.Info("lesson ready", logging.Int("frames", total))
	r.progress(Progress{Kind: ProgressCompleted, LessonID: r.lessonID})
	return nil
}

func (g *Generator) storyFrame(ctx context.Context, r *run, plan *storyboard.Plan, planned storyboard.PlannedFrame) error {
	story, frame := planned.Story, planned.Frame
	var refs [][]byte
	anchor, anchored := r.anchors[story.StoryID]
	if anchored {
		refs = [][]byte{anchor}
	}

	image, relImage, relAudio, err := g.renderFrame(ctx, r, frame.GlobalIndex, framePrompt(plan, story, frame), refs, frame.NarrationText)
	if err != nil {
		return err
	}
	if !anchored {
		r.anchors[story.StoryID] = image
	}

	return g.addFrame(ctx, r, &store.Frame{
		LessonID:          r.lessonID,
		FrameIndex:        frame.GlobalIndex,
		FrameRole:         story.StoryID + ":" + string(frame.Role),
		Title:             frame.Title,
		Caption:           frame.Caption,
		NarrationText:     frame.NarrationText,
		ImagePrompt:       frame.ImagePrompt,
		ImageRelativePath: relImage,
		AudioRelativePath: relAudio,
		CheckPrompt:       frame.CheckPrompt,
		ExpectedAnswer:    frame.ExpectedAnswer,
	})
}

func (g *Generator) conclusionFrame(ctx context.Context, r *run, plan *storyboard.Plan, index int) error {
	c := plan.FinalConclusion
	prompt := conclusionPrompt(plan, r.word1, r.word2)
	_, relImage, relAudio, err := g.renderFrame(ctx, r, index, prompt, nil, c.NarrationText)
	if err != nil {
		return err
	}
	sentence := c.SentenceFromUser
	if strings.TrimSpace(sentence) == "" {
		sentence = r.sentence
	}
	return g.addFrame(ctx, r, &store.Frame{
		LessonID:          r.lessonID,
		FrameIndex:        index,
		FrameRole:         ConclusionRole,
		Title:             c.Verdict.Title(),
		Caption:           c.RecommendedUsage,
		NarrationText:     c.NarrationText,
		ImagePrompt:       prompt,
		ImageRelativePath: relImage,
		AudioRelativePath: relAudio,
		CheckPrompt:       conclusionCheck(r.word1, r.word2, sentence),
		ExpectedAnswer:    string(c.Verdict),
	})
}

// renderFrame generates and stores the image and narration for one frame,
// returning the raw image bytes and both relative paths.
func (g *Generator) renderFrame(ctx context.Context, r *run, index int, prompt string, refs [][]byte, narration string) ([]byte, string, string, error) {
	ctx = services.WithStage(ctx, "frame")
	logger := r.logger.With(logging.FrameIndex(index))

	image, err := g.images.GenerateImage(ctx, prompt, refs)
	if err != nil {
		return nil, "", "", r.stepFailed("generate image", err, logging.FrameIndex(index))
	}
	audio, err := g.audio.GenerateAudio(ctx, narration)
	if err != nil {
		return nil, "", "", r.stepFailed("generate audio", err, logging.FrameIndex(index))
	}

	relImage, err := g.assets.WriteImage(ctx, image, r.lessonID, index)
	if err != nil {
		return nil, "", "", r.stepFailed("store image", err, logging.FrameIndex(index))
	}
	relAudio, err := g.assets.WriteAudio(ctx, audio, r.lessonID, index)
	if err != nil {
		return nil, "", "", r.stepFailed("store audio", err, logging.FrameIndex(index))
	}
	logger.Debug("frame assets stored",
		logging.Int("refs", len(refs)),
		logging.Int("image_bytes", len(image)),
		logging.Int("audio_bytes", len(audio)),
	)
	return image, relImage, relAudio, nil
}

func (g *Generator) addFrame(ctx context.Context, r *run, frame *store.Frame) error {
	if err := g.store.AddFrame(ctx, frame); err != nil {
		return r.stepFailed("save frame", err, logging.FrameIndex(frame.FrameIndex))
	}
	r.logger.Info("frame saved",
		logging.FrameIndex(frame.FrameIndex),
		logging.String("role", frame.FrameRole),
	)
	return nil
}

// stepFailed logs which step broke and hands err back unchanged, so the
// lesson row and the caller see the cause's own message.
func (r *run) stepFailed(step string, err error, attrs ...logging.Attr) error {
	attrs = append(attrs, logging.String("step", step), logging.Error(err))
	r.logger.Warn("lesson step failed", logging.Args(attrs...)...)
	return err
}

// markFailed records the failure on the lesson row. The write runs even if
// ctx was cancelled; its own failure is only logged.
func (g *Generator) markFailed(ctx context.Context, r *run, cause error) {
	writeCtx := context.WithoutCancel(ctx)
	if err := g.store.MarkLessonFailed(writeCtx, r.lessonID, cause.Error()); err != nil {
		r.logger.Warn("could not record lesson failure", logging.Error(err))
	}
	attrs := []logging.Attr{
		logging.Error(cause),
		logging.String(logging.FieldImpact, "lesson marked failed; frames written so far are kept"),
	}
	if kind, ok := services.ProviderErrorKindOf(cause); ok {
		attrs = append(attrs, logging.String("provider_error_kind", string(kind)))
	}
	var verr *storyboard.ValidationError
	if errors.As(cause, &verr) {
		attrs = append(attrs, logging.String(logging.FieldErrorHint, "model output failed storyboard rule "+verr.Rule))
	}
	logging.ErrorWithContext(r.logger, "lesson generation failed", "lesson_failed", attrs...)
}
