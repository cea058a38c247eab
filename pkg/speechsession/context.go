package speechsession

import "encoding/json"

// GrammarPhrase is a single phrase hint weighted for biasing recognition.
type GrammarPhrase struct {
	Text   string  `json:"text"`
	Weight float64 `json:"weight,omitempty"`
}

// DynamicGrammarBuilder accumulates phrase hints for the next turn's
// speech.context payload. SpeechContext.Build reads a copy and leaves the
// hints in place, so they are sent with every speech.context until Clear
// is called.
type DynamicGrammarBuilder struct {
	phrases []GrammarPhrase
}

// NewDynamicGrammarBuilder returns an empty builder.
func NewDynamicGrammarBuilder() *DynamicGrammarBuilder {
	return &DynamicGrammarBuilder{}
}

// AddPhrase appends a weighted phrase hint.
func (b *DynamicGrammarBuilder) AddPhrase(text string, weight float64) {
	b.phrases = append(b.phrases, GrammarPhrase{Text: text, Weight: weight})
}

// Clear discards all accumulated phrase hints.
func (b *DynamicGrammarBuilder) Clear() {
	b.phrases = nil
}

func (b *DynamicGrammarBuilder) snapshot() []GrammarPhrase {
	if len(b.phrases) == 0 {
		return nil
	}
	out := make([]GrammarPhrase, len(b.phrases))
	copy(out, b.phrases)
	return out
}

// audioSourceContext describes the attached capture device, installed
// into the context payload via SetDeviceInfo at recognize() time.
type audioSourceContext struct {
	Info any `json:"info,omitempty"`
}

type speechContextDoc struct {
	Grammar struct {
		Phrases []GrammarPhrase `json:"phrases,omitempty"`
	} `json:"grammar,omitempty"`
	Audio struct {
		Source audioSourceContext `json:"source"`
	} `json:"audio"`
}

// SpeechContext builds the per-turn JSON payload sent on the
// "speech.context" path: grammar hints plus audio device info.
type SpeechContext struct {
	grammar    *DynamicGrammarBuilder
	deviceInfo any
}

// NewSpeechContext returns a SpeechContext backed by the given grammar
// builder.
func NewSpeechContext(grammar *DynamicGrammarBuilder) *SpeechContext {
	if grammar == nil {
		grammar = NewDynamicGrammarBuilder()
	}
	return &SpeechContext{grammar: grammar}
}

// SetDeviceInfo installs the audio capture device description fetched at
// recognize() time.
func (c *SpeechContext) SetDeviceInfo(info any) {
	c.deviceInfo = info
}

// Build serializes the current context into a Text frame body.
func (c *SpeechContext) Build() ([]byte, error) {
	doc := speechContextDoc{}
	doc.Grammar.Phrases = c.grammar.snapshot()
	doc.Audio.Source = audioSourceContext{Info: c.deviceInfo}
	return json.Marshal(doc)
}
