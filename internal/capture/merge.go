package capture

import (
	"strings"

	"github.com/MrWong99/sitescope/pkg/provider/stt"
)

// Merge joins final utterances into one transcript.
//
// Texts are trimmed and joined with single spaces; empty utterances are
// dropped. The merged confidence averages the utterances that reported one,
// weighted by duration when every such utterance has a duration and equally
// otherwise. It stays zero when none reported a confidence. Word timings are
// kept as delivered. The merged transcript starts at the first utterance and
// spans through the end of the last.
func Merge(finals []stt.Transcript) stt.Transcript {
	var (
		texts    []string
		words    []stt.WordDetail
		kept     []stt.Transcript
		weighted = true
	)
	for _, f := range finals {
		text := strings.TrimSpace(f.Text)
		if text == "" {
			continue
		}
		texts = append(texts, text)
		words = append(words, f.Words...)
		kept = append(kept, f)
		if f.Confidence > 0 && f.Duration <= 0 {
			weighted = false
		}
	}
	if len(kept) == 0 {
		return stt.Transcript{IsFinal: true}
	}

	var sum, weight float64
	for _, f := range kept {
		if f.Confidence <= 0 {
			continue
		}
		w := 1.0
		if weighted {
			w = f.Duration.Seconds()
		}
		sum += f.Confidence * w
		weight += w
	}

	first, last := kept[0], kept[len(kept)-1]
	out := stt.Transcript{
		Text:      strings.Join(texts, " "),
		IsFinal:   true,
		Words:     words,
		Timestamp: first.Timestamp,
	}
	if weight > 0 {
		out.Confidence = sum / weight
	}
	if end := last.Timestamp + last.Duration; end > first.Timestamp {
		out.Duration = end - first.Timestamp
	}
	return out
}
