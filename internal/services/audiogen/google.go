package audiogen

import (
	"context"
	"fmt"
	"strings"

	texttospeech "cloud.google.com/go/texttospeech/apiv1"
	"cloud.google.com/go/texttospeech/apiv1/texttospeechpb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"wordslearner/internal/services"
)

const (
	googleProvider            = "google-tts"
	defaultGoogleLanguageCode = "en-US"
	defaultGoogleVoiceName    = "en-US-Standard-F"
)

// GoogleConfig selects the Cloud Text-to-Speech voice.
type GoogleConfig struct {
	LanguageCode string
	VoiceName    string
}

type synthesizeFunc func(ctx context.Context, req *texttospeechpb.SynthesizeSpeechRequest) (*texttospeechpb.SynthesizeSpeechResponse, error)

// GoogleClient synthesizes narration with Google Cloud Text-to-Speech.
// Credentials come from GOOGLE_APPLICATION_CREDENTIALS.
type GoogleClient struct {
	cfg        GoogleConfig
	synthesize synthesizeFunc
	close      func() error
}

// NewGoogleClient dials Cloud Text-to-Speech.
func NewGoogleClient(ctx context.Context, cfg GoogleConfig) (*GoogleClient, error) {
	client, err := texttospeech.NewClient(ctx)
	if err != nil {
		return nil, services.NewProviderError(googleProvider, services.KindMissingCredential, "create text-to-speech client", err)
	}
	return newGoogleClient(cfg, func(ctx context.Context, req *texttospeechpb.SynthesizeSpeechRequest) (*texttospeechpb.SynthesizeSpeechResponse, error) {
		return client.SynthesizeSpeech(ctx, req)
	}, client.Close), nil
}

func newGoogleClient(cfg GoogleConfig, synth synthesizeFunc, closer func() error) *GoogleClient {
	if strings.TrimSpace(cfg.LanguageCode) == "" {
		cfg.LanguageCode = defaultGoogleLanguageCode
	}
	if strings.TrimSpace(cfg.VoiceName) == "" {
		cfg.VoiceName = defaultGoogleVoiceName
	}
	if closer == nil {
		closer = func() error { return nil }
	}
	return &GoogleClient{cfg: cfg, synthesize: synth, close: closer}
}

// Model reports the voice recorded on lessons.
func (c *GoogleClient) Model() string {
	return c.cfg.VoiceName
}

// Close releases the underlying gRPC connection.
func (c *GoogleClient) Close() error {
	return c.close()
}

// GenerateAudio returns MP3 bytes for text.
func (c *GoogleClient) GenerateAudio(ctx context.Context, text string) ([]byte, error) {
	req := &texttospeechpb.SynthesizeSpeechRequest{
		Input: &texttospeechpb.SynthesisInput{
			InputSource: &texttospeechpb.SynthesisInput_Text{Text: text},
		},
		Voice: &texttospeechpb.VoiceSelectionParams{
			LanguageCode: c.cfg.LanguageCode,
			Name:         c.cfg.VoiceName,
		},
		AudioConfig: &texttospeechpb.AudioConfig{
			AudioEncoding: texttospeechpb.AudioEncoding_MP3,
		},
	}
	resp, err := c.synthesize(ctx, req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, classifyGRPC(err)
	}
	if len(resp.GetAudioContent()) == 0 {
		return nil, services.NewProviderError(googleProvider, services.KindAPIResponse, "empty audio content", nil)
	}
	return resp.GetAudioContent(), nil
}

func classifyGRPC(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return services.NewProviderError(googleProvider, services.KindNetwork, "synthesize speech", err)
	}
	var kind services.ProviderErrorKind
	switch st.Code() {
	case codes.Unauthenticated, codes.PermissionDenied:
		kind = services.KindAuthentication
	case codes.ResourceExhausted:
		kind = services.KindRateLimit
	case codes.Unavailable, codes.DeadlineExceeded:
		kind = services.KindNetwork
	case codes.InvalidArgument:
		perr := services.StatusError(googleProvider, 400, st.Message())
		perr.Err = err
		return perr
	default:
		kind = services.KindAPI
	}
	perr := services.NewProviderError(googleProvider, kind, fmt.Sprintf("%s: %s", st.Code(), st.Message()), nil)
	if kind == services.KindAPI {
		perr.StatusCode = 500
	}
	return perr
}
