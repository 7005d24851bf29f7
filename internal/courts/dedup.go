// Package courts merges the court-record hits returned by the per-jurisdiction
// adapters into one deduplicated list, ordered by case gravity for display.
package courts

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/clearcheck/dossier-api/internal/model"
)

// Dedup collapses duplicate records. Identity is the filing reference number
// when present, otherwise (jurisdiction, date, case class); the first record
// seen under a key wins and later duplicates are dropped.
func Dedup(records []model.CourtRecord) []model.CourtRecord {
	seen := make(map[string]struct{}, len(records))
	out := make([]model.CourtRecord, 0, len(records))
	for _, rec := range records {
		key := rec.DedupKey()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, rec)
	}
	return out
}

// Rank orders records by gravity, most severe first: the subject's role in
// the case, then the case-class weight, then filing date (most recent first).
// The sort is stable, so records tied on all three keys keep input order.
// Rank sorts a copy; the input slice is left alone.
func Rank(records []model.CourtRecord) []model.CourtRecord {
	out := make([]model.CourtRecord, len(records))
	copy(out, records)
	sort.SliceStable(out, func(i, j int) bool {
		ri, rj := roleWeight(out[i].Role), roleWeight(out[j].Role)
		if ri != rj {
			return ri > rj
		}
		ci, cj := ClassWeight(out[i].CaseClass), ClassWeight(out[j].CaseClass)
		if ci != cj {
			return ci > cj
		}
		return out[i].FiledAt.After(out[j].FiledAt)
	})
	return out
}

// DedupAndRank is the pipeline's entry point: dedup first, then order.
func DedupAndRank(records []model.CourtRecord) []model.CourtRecord {
	return Rank(Dedup(records))
}

func roleWeight(role model.CaseRole) int {
	switch role {
	case model.RoleDefendant:
		return 3
	case model.RolePlaintiff:
		return 2
	case model.RoleWitness:
		return 1
	default:
		return 0
	}
}

// classKeywords maps case-class weight to the substrings that identify it.
// Labels arrive from dozens of court indices in mixed casing and with
// diacritics, so matching is fold-then-substring.
var classKeywords = []struct {
	weight   int
	keywords []string
}{
	{3, []string{"trabalhista", "trabalho", "labor"}},
	{2, []string{"execucao", "execution", "enforcement"}},
	{1, []string{"cobranca", "collection", "civel", "civil"}},
}

// ClassWeight maps a case-class label to its gravity weight: labor 3,
// enforcement/execution 2, collection/civil 1, anything else 0.
func ClassWeight(caseClass string) int {
	label := foldLabel(caseClass)
	for _, entry := range classKeywords {
		for _, kw := range entry.keywords {
			if strings.Contains(label, kw) {
				return entry.weight
			}
		}
	}
	return 0
}

var foldTransformer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

func foldLabel(s string) string {
	folded, _, err := transform.String(foldTransformer, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(folded)
}
