// internal/app/rule_extractor.go
package app

import (
	"regexp"
	"sort"
	"strings"
	"time"

	"homework_reminder_bot/internal/domain/provider"
)

// RuleFallbackConfidence is the fixed moderate confidence assigned to
// drafts produced without a generative provider.
const RuleFallbackConfidence = 0.5

var datePatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`),        // YYYY-MM-DD
	regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})/(\d{2,4})\b`),  // D/M/Y
	regexp.MustCompile(`\b(\d{1,2})-(\d{1,2})-(\d{2,4})\b`),  // D-M-Y
}

// subjectLexicon maps keywords found in assignment text to a canonical
// subject name, covering the three languages the bot serves.
var subjectLexicon = map[string]string{
	"math": "Mathematics", "mathematics": "Mathematics", "matematik": "Mathematics",
	"algebra": "Mathematics", "fraction": "Mathematics", "数学": "Mathematics",
	"english": "English", "comprehension": "English", "essay": "English",
	"grammar": "English", "英语": "English", "英文": "English",
	"science": "Science", "sains": "Science", "experiment": "Science", "科学": "Science",
	"chinese": "Chinese", "华文": "Chinese", "中文": "Chinese",
	"malay": "Malay", "bahasa melayu": "Malay", "bahasa": "Malay", "karangan": "Malay",
	"history": "History", "sejarah": "History", "历史": "History",
	"geography": "Geography", "geografi": "Geography", "地理": "Geography",
	"art": "Art", "lukisan": "Art", "music": "Music", "muzik": "Music",
}

// stopwords excluded from keyword harvesting.
var ruleStopwords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "with": {}, "this": {}, "that": {},
	"please": {}, "homework": {}, "due": {}, "page": {}, "pages": {},
	"complete": {}, "finish": {}, "hantar": {}, "sebelum": {}, "tarikh": {},
}

// RuleExtractor is the deterministic last-resort structuring strategy:
// keyword and date-pattern matching over the raw OCR text. It always
// produces a draft, however partial.
type RuleExtractor struct {
	loc *time.Location
}

func NewRuleExtractor(loc *time.Location) *RuleExtractor {
	if loc == nil {
		loc = time.UTC
	}
	return &RuleExtractor{loc: loc}
}

// Extract builds a best-effort draft from raw text. Due dates already in the
// past relative to now are dropped rather than guessed at.
func (r *RuleExtractor) Extract(text string, now time.Time) provider.Draft {
	draft := provider.Draft{
		Subject:     r.detectSubject(text),
		Title:       r.deriveTitle(text),
		Description: strings.TrimSpace(text),
		Priority:    3,
		Keywords:    r.harvestKeywords(text),
		Confidence:  RuleFallbackConfidence,
	}
	if due, ok := r.findDueDate(text, now); ok {
		draft.DueDate = &due
	}
	return draft
}

func (r *RuleExtractor) detectSubject(text string) string {
	lower := strings.ToLower(text)
	for keyword, subject := range subjectLexicon {
		if strings.Contains(lower, keyword) {
			return subject
		}
	}
	return "General"
}

// deriveTitle takes the first non-empty line, truncated to a sane length.
func (r *RuleExtractor) deriveTitle(text string) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		runes := []rune(line)
		if len(runes) > 80 {
			return string(runes[:80])
		}
		return line
	}
	return "Untitled homework"
}

func (r *RuleExtractor) harvestKeywords(text string) []string {
	seen := make(map[string]struct{})
	var keywords []string
	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.Trim(word, ".,:;!?()[]\"'")
		if len([]rune(word)) < 4 {
			continue
		}
		if _, skip := ruleStopwords[word]; skip {
			continue
		}
		if _, dup := seen[word]; dup {
			continue
		}
		seen[word] = struct{}{}
		keywords = append(keywords, word)
		if len(keywords) == 8 {
			break
		}
	}
	sort.Strings(keywords)
	return keywords
}

// findDueDate returns the earliest future date mentioned in the text.
func (r *RuleExtractor) findDueDate(text string, now time.Time) (time.Time, bool) {
	var candidates []time.Time
	for i, pat := range datePatterns {
		for _, m := range pat.FindAllStringSubmatch(text, -1) {
			if t, ok := r.parseMatch(i, m); ok {
				candidates = append(candidates, t)
			}
		}
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Before(candidates[j]) })
	for _, c := range candidates {
		if !c.Before(now) {
			return c, true
		}
	}
	return time.Time{}, false
}

func (r *RuleExtractor) parseMatch(pattern int, m []string) (time.Time, bool) {
	var layoutIn string
	switch pattern {
	case 0:
		layoutIn = m[1] + "-" + m[2] + "-" + m[3]
		t, err := time.ParseInLocation("2006-01-02", layoutIn, r.loc)
		if err != nil {
			return time.Time{}, false
		}
		return endOfSchoolDay(t), true
	default:
		// Day-first, as written in the region the bot serves.
		day, month, year := m[1], m[2], m[3]
		if len(year) == 2 {
			year = "20" + year
		}
		t, err := time.ParseInLocation("2/1/2006", day+"/"+month+"/"+year, r.loc)
		if err != nil {
			return time.Time{}, false
		}
		return endOfSchoolDay(t), true
	}
}

// endOfSchoolDay anchors a bare date at 18:00 local so a same-day deadline
// is not treated as already past at noon.
func endOfSchoolDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 18, 0, 0, 0, t.Location())
}
