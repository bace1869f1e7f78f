package scoring

import "strings"

// Classification is the outcome of the music/non-music decision.
type Classification string

// Classification values.
const (
	ClassMusic     Classification = "music"
	ClassNonMusic  Classification = "non-music"
	ClassAmbiguous Classification = "ambiguous"
)

const generalAdmission = "general admission"

// admissionKeywords describe a ticket type rather than an attraction; they
// stop counting against an event once a music keyword is present.
var admissionKeywords = map[string]struct{}{
	"admission":      {},
	generalAdmission: {},
}

// Verdict is the classifier output including the keywords that fired.
type Verdict struct {
	Class        Classification
	IsMusic      bool
	MusicHits    []string
	NonMusicHits []string
}

// Classify decides whether name+description describe a music performance.
//
// Rules:
//   - each keyword counts once, by case-insensitive substring match;
//   - "general admission" with no music keyword is always non-music;
//   - with at least one music keyword, admission keywords are not counted;
//   - music wins only on a strict majority, ties are non-music and are
//     reported as ambiguous when both counts are non-zero.
func (s *Scorer) Classify(name, description string) Verdict {
	text := strings.ToLower(name + " " + description)

	music := matchKeywords(text, s.cfg.MusicKeywords)
	nonMusic := matchKeywords(text, s.cfg.NonMusicKeywords)

	if strings.Contains(text, generalAdmission) {
		if len(music) == 0 {
			return Verdict{Class: ClassNonMusic, NonMusicHits: nonMusic}
		}
		kept := nonMusic[:0]
		for _, kw := range nonMusic {
			if _, ticket := admissionKeywords[kw]; !ticket {
				kept = append(kept, kw)
			}
		}
		nonMusic = kept
	}

	v := Verdict{MusicHits: music, NonMusicHits: nonMusic}
	switch {
	case len(music) > len(nonMusic):
		v.Class, v.IsMusic = ClassMusic, true
	case len(music) > 0 && len(music) == len(nonMusic):
		v.Class = ClassAmbiguous
	default:
		v.Class = ClassNonMusic
	}
	return v
}

func matchKeywords(text string, keywords []string) []string {
	var hits []string
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			hits = append(hits, kw)
		}
	}
	return hits
}
