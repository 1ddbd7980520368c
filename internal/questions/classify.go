package questions

import (
	"regexp"
	"strings"
)

// Kind is the naming-convention family a raw column code belongs to.
type Kind int

const (
	Single Kind = iota
	MultiResponse
	Waved
	Backup
)

func (k Kind) String() string {
	switch k {
	case MultiResponse:
		return "multi"
	case Waved:
		return "waved"
	case Backup:
		return "backup"
	default:
		return "single"
	}
}

// Classification is the tagged result of Classify.
type Classification struct {
	Kind Kind
	// Base is the grouping key of the logical question.
	Base string
	// Wave is the wave token ("V1") for Waved codes.
	Wave string
	// Marker is 'A' or 'R' for MultiResponse codes.
	Marker byte
	// Sample is the sub-sample suffix of "CODE.{n}" codes.
	Sample string
}

var (
	multiRe = regexp.MustCompile(`^(F\d+)([AR])\d+`)
	waveRe  = regexp.MustCompile(`^V\d+$`)
)

// Classify maps a raw column code to its naming-convention family. Codes
// matching no known pattern fall through to Single keyed by the text before
// the first underscore.
func Classify(code string) Classification {
	if strings.Contains(code, "BACKUP") {
		return Classification{Kind: Backup, Base: code}
	}
	head, _, _ := strings.Cut(code, "_")
	if strings.Contains(code, "_V") {
		if w := waveToken(code); w != "" {
			return Classification{Kind: Waved, Base: head, Wave: w}
		}
	}
	if m := multiRe.FindStringSubmatch(head); m != nil {
		return Classification{Kind: MultiResponse, Base: m[1], Marker: m[2][0]}
	}
	c := Classification{Kind: Single, Base: head}
	if i := strings.LastIndexByte(head, '.'); i > 0 && i < len(head)-1 {
		c.Sample = head[i+1:]
	}
	return c
}

// waveToken returns the first "_V..." segment after the base. Strict V{n}
// tokens win; otherwise any segment starting with V counts.
func waveToken(code string) string {
	segs := strings.Split(code, "_")
	loose := ""
	for _, s := range segs[1:] {
		if waveRe.MatchString(s) {
			return s
		}
		if loose == "" && strings.HasPrefix(s, "V") {
			loose = s
		}
	}
	return loose
}

// ComposedKey returns the code without its wave qualifier, e.g.
// "P26_V1_R1" -> "P26_R1". It aligns the same item across waves.
func ComposedKey(code string) string {
	c := Classify(code)
	if c.Kind != Waved {
		return code
	}
	segs := strings.Split(code, "_")
	out := segs[:0:0]
	dropped := false
	for i, s := range segs {
		if i > 0 && !dropped && s == c.Wave {
			dropped = true
			continue
		}
		out = append(out, s)
	}
	return strings.Join(out, "_")
}
