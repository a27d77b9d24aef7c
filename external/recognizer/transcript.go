package recognizer

import "strings"

type segment struct {
	text  string
	final bool
}

// transcriptAssembler folds per-utterance results into one running transcript.
// Final segments are committed; interim segments replace the previous tail.
type transcriptAssembler struct {
	committed []string
	interim   string
}

func (a *transcriptAssembler) apply(segments []segment) {
	if len(segments) == 0 {
		return
	}
	var interim []string
	for _, s := range segments {
		text := strings.TrimSpace(s.text)
		if text == "" {
			continue
		}
		if s.final {
			a.committed = append(a.committed, text)
			continue
		}
		interim = append(interim, text)
	}
	a.interim = strings.Join(interim, " ")
}

// commit moves any pending interim text into the committed transcript.
func (a *transcriptAssembler) commit(text string) {
	if t := strings.TrimSpace(text); t != "" {
		a.committed = append(a.committed, t)
	}
	a.interim = ""
}

func (a *transcriptAssembler) text() string {
	if a.interim == "" {
		return strings.Join(a.committed, " ")
	}
	return strings.Join(append(append([]string(nil), a.committed...), a.interim), " ")
}
