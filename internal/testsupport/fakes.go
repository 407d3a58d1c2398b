package testsupport

import (
	"context"
	"errors"
	"iter"
	"sync"
	"testing"
)

// TextResponse is one scripted reply from FakeText. Fragments are streamed
// in order; Err, when set, is yielded after them.
type TextResponse struct {
	Fragments []string
	Err       error
}

// FakeText is a scripted llm.TextGenerator. Each call consumes the next
// response; the last response repeats once the script runs out.
type FakeText struct {
	mu        sync.Mutex
	responses []TextResponse
	prompts   []string
}

// NewFakeText returns a generator replying with the given full responses.
func NewFakeText(responses ...string) *FakeText {
	f := &FakeText{}
	for _, r := range responses {
		f.responses = append(f.responses, TextResponse{Fragments: []string{r}})
	}
	return f
}

// Push appends a scripted response.
func (f *FakeText) Push(resp TextResponse) *FakeText {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses = append(f.responses, resp)
	return f
}

// Prompts returns every prompt received so far.
func (f *FakeText) Prompts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.prompts...)
}

// Calls returns the number of StreamResponse calls.
func (f *FakeText) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

func (f *FakeText) StreamResponse(ctx context.Context, prompt string) iter.Seq2[string, error] {
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	var resp TextResponse
	switch n := len(f.responses); {
	case n == 0:
		resp = TextResponse{Err: errors.New("fake text: no scripted response")}
	case len(f.prompts) <= n:
		resp = f.responses[len(f.prompts)-1]
	default:
		resp = f.responses[n-1]
	}
	f.mu.Unlock()

	return func(yield func(string, error) bool) {
		for _, fragment := range resp.Fragments {
			if err := ctx.Err(); err != nil {
				yield("", err)
				return
			}
			if !yield(fragment, nil) {
				return
			}
		}
		if resp.Err != nil {
			yield("", resp.Err)
		}
	}
}

// ImageCall records one GenerateImage invocation.
type ImageCall struct {
	Prompt   string
	RefCount int
}

// FakeImages is an imagegen.ImageGenerator returning a small PNG. When FailOn
// is positive, that call (1-based) returns Err.
type FakeImages struct {
	FailOn int
	Err    error

	mu    sync.Mutex
	image []byte
	calls []ImageCall
}

// NewFakeImages builds a fake that returns a 32x18 PNG.
func NewFakeImages(t testing.TB) *FakeImages {
	t.Helper()
	return &FakeImages{image: PNG(t, 32, 18)}
}

func (f *FakeImages) GenerateImage(ctx context.Context, prompt string, refs [][]byte) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, ImageCall{Prompt: prompt, RefCount: len(refs)})
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.FailOn > 0 && len(f.calls) == f.FailOn {
		if f.Err != nil {
			return nil, f.Err
		}
		return nil, errors.New("fake image failure")
	}
	return append([]byte(nil), f.image...), nil
}

// Calls returns a copy of the recorded calls.
func (f *FakeImages) Calls() []ImageCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ImageCall(nil), f.calls...)
}

// RefCounts returns how many reference images each call carried.
func (f *FakeImages) RefCounts() []int {
	calls := f.Calls()
	out := make([]int, len(calls))
	for i, c := range calls {
		out[i] = c.RefCount
	}
	return out
}

// FakeAudio is an audiogen.AudioGenerator returning fixed bytes.
type FakeAudio struct {
	Err error

	mu    sync.Mutex
	texts []string
}

func (f *FakeAudio) GenerateAudio(ctx context.Context, text string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, text)
	if f.Err != nil {
		return nil, f.Err
	}
	return []byte("ID3fake-mp3:" + text), nil
}

// Texts returns the narration texts received.
func (f *FakeAudio) Texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.texts...)
}
