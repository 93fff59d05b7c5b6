package google

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	speechpb "cloud.google.com/go/speech/apiv1/speechpb"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.LanguageCode != "en-US" {
		t.Errorf("expected default language 'en-US', got %s", cfg.LanguageCode)
	}
	if cfg.SampleRateHz != 8000 {
		t.Errorf("expected default sample rate 8000, got %d", cfg.SampleRateHz)
	}
	if cfg.InterimResults != true {
		t.Errorf("expected default interim results true, got %v", cfg.InterimResults)
	}
	if cfg.AudioEncoding != "LINEAR16" {
		t.Errorf("expected default encoding 'LINEAR16', got %s", cfg.AudioEncoding)
	}
}

func TestParseAudioEncoding(t *testing.T) {
	tests := []struct {
		input    string
		expected speechpb.RecognitionConfig_AudioEncoding
	}{
		{"LINEAR16", speechpb.RecognitionConfig_LINEAR16},
		{"MULAW", speechpb.RecognitionConfig_MULAW},
		{"FLAC", speechpb.RecognitionConfig_FLAC},
		{"AMR", speechpb.RecognitionConfig_AMR},
		{"AMR_WB", speechpb.RecognitionConfig_AMR_WB},
		{"OGG_OPUS", speechpb.RecognitionConfig_OGG_OPUS},
		{"SPEEX_WITH_HEADER_BYTE", speechpb.RecognitionConfig_SPEEX_WITH_HEADER_BYTE},
		{"WEBM_OPUS", speechpb.RecognitionConfig_WEBM_OPUS},
		{"UNKNOWN", speechpb.RecognitionConfig_LINEAR16}, // fallback
		{"invalid", speechpb.RecognitionConfig_LINEAR16}, // fallback
		{"", speechpb.RecognitionConfig_LINEAR16},        // fallback
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := parseAudioEncoding(tt.input)
			if got != tt.expected {
				t.Errorf("parseAudioEncoding(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestConfig_CustomValues(t *testing.T) {
	cfg := Config{
		LanguageCode:   "es-ES",
		SampleRateHz:   16000,
		InterimResults: false,
		AudioEncoding:  "MULAW",
	}

	if cfg.LanguageCode != "es-ES" {
		t.Errorf("expected language 'es-ES', got %s", cfg.LanguageCode)
	}
	if cfg.SampleRateHz != 16000 {
		t.Errorf("expected sample rate 16000, got %d", cfg.SampleRateHz)
	}
	if cfg.InterimResults != false {
		t.Errorf("expected interim results false, got %v", cfg.InterimResults)
	}
	if cfg.AudioEncoding != "MULAW" {
		t.Errorf("expected encoding 'MULAW', got %s", cfg.AudioEncoding)
	}
}

func TestParseAudioEncoding_CaseSensitive(t *testing.T) {
	// Encoding strings should be uppercase
	tests := []struct {
		input    string
		expected speechpb.RecognitionConfig_AudioEncoding
	}{
		{"linear16", speechpb.RecognitionConfig_LINEAR16}, // lowercase -> fallback
		{"Linear16", speechpb.RecognitionConfig_LINEAR16}, // mixed case -> fallback
		{"LINEAR16", speechpb.RecognitionConfig_LINEAR16}, // uppercase -> match
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := parseAudioEncoding(tt.input)
			if got != tt.expected {
				t.Errorf("parseAudioEncoding(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

// fakeStream satisfies Speech_StreamingRecognizeClient for the methods
// the adapter touches; the embedded interface covers the rest.
type fakeStream struct {
	speechpb.Speech_StreamingRecognizeClient
	mu        sync.Mutex
	sent      []*speechpb.StreamingRecognizeRequest
	responses chan *speechpb.StreamingRecognizeResponse
}

func (s *fakeStream) Send(req *speechpb.StreamingRecognizeRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, req)
	return nil
}

func (s *fakeStream) Recv() (*speechpb.StreamingRecognizeResponse, error) {
	resp, ok := <-s.responses
	if !ok {
		return nil, io.EOF
	}
	return resp, nil
}

func (s *fakeStream) CloseSend() error { return nil }

func (s *fakeStream) firstSent() *speechpb.StreamingRecognizeRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.sent) == 0 {
		return nil
	}
	return s.sent[0]
}

// recordingCallback captures relayed results; errs signals stream end.
type recordingCallback struct {
	mu       sync.Mutex
	partials []string
	finals   []string
	confs    []float64
	errs     chan error
}

func (c *recordingCallback) OnPartial(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.partials = append(c.partials, text)
}

func (c *recordingCallback) OnFinal(text string, confidence float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.finals = append(c.finals, text)
	c.confs = append(c.confs, confidence)
}

func (c *recordingCallback) OnError(err error) {
	c.errs <- err
}

func (c *recordingCallback) snapshot() (partials, finals []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.partials...), append([]string(nil), c.finals...)
}

func testAdapter(stream *fakeStream) *Adapter {
	return &Adapter{
		cfg: DefaultConfig(),
		newStream: func(ctx context.Context) (speechpb.Speech_StreamingRecognizeClient, error) {
			return stream, nil
		},
	}
}

func TestAdapter_StartSendsConfigFirst(t *testing.T) {
	stream := &fakeStream{responses: make(chan *speechpb.StreamingRecognizeResponse)}
	adapter := testAdapter(stream)
	cb := &recordingCallback{errs: make(chan error, 1)}

	if err := adapter.Start(context.Background(), cb); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	close(stream.responses)
	<-cb.errs

	first := stream.firstSent()
	if first == nil {
		t.Fatal("expected a config message to be sent on Start")
	}
	sc := first.GetStreamingConfig()
	if sc == nil {
		t.Fatal("first message must carry the streaming config")
	}
	if sc.Config.LanguageCode != "en-US" {
		t.Errorf("expected language en-US, got %s", sc.Config.LanguageCode)
	}
	if sc.Config.SampleRateHertz != 8000 {
		t.Errorf("expected sample rate 8000, got %d", sc.Config.SampleRateHertz)
	}
	if !sc.InterimResults {
		t.Error("expected interim results enabled")
	}
}

func TestAdapter_StartRelaysRecognitionResults(t *testing.T) {
	// Start must spawn the receive loop itself; the adapter interface
	// has no other entry point that could drain the stream.
	stream := &fakeStream{responses: make(chan *speechpb.StreamingRecognizeResponse, 3)}
	adapter := testAdapter(stream)
	cb := &recordingCallback{errs: make(chan error, 1)}

	if err := adapter.Start(context.Background(), cb); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}

	stream.responses <- &speechpb.StreamingRecognizeResponse{
		Results: []*speechpb.StreamingRecognitionResult{{
			Alternatives: []*speechpb.SpeechRecognitionAlternative{{Transcript: "we are"}},
		}},
	}
	stream.responses <- &speechpb.StreamingRecognizeResponse{
		Results: []*speechpb.StreamingRecognitionResult{
			{}, // no alternatives, must be skipped
			{
				IsFinal:      true,
				Alternatives: []*speechpb.SpeechRecognitionAlternative{{Transcript: "we are on track", Confidence: 0.92}},
			},
		},
	}
	close(stream.responses)

	select {
	case err := <-cb.errs:
		if err != io.EOF {
			t.Fatalf("expected io.EOF at stream end, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("receive loop never reached the end of the stream")
	}

	partials, finals := cb.snapshot()
	if len(partials) != 1 || partials[0] != "we are" {
		t.Errorf("expected one partial 'we are', got %v", partials)
	}
	if len(finals) != 1 || finals[0] != "we are on track" {
		t.Errorf("expected one final 'we are on track', got %v", finals)
	}
	if len(cb.confs) != 1 || cb.confs[0] < 0.91 || cb.confs[0] > 0.93 {
		t.Errorf("expected confidence near 0.92, got %v", cb.confs)
	}
}
