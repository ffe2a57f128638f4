// Package queryparse extracts structured hints from a natural-language
// query: date ranges, action verbs, and topic phrases. Extraction is best
// effort; expressions that do not parse are dropped rather than failing
// the query.
package queryparse

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/aaaton/golem/v4"
	"github.com/aaaton/golem/v4/dicts/en"
	"github.com/jdkato/prose/v2"
	"github.com/markusmobius/go-dateparser"
)

// DateRange is an inclusive day-granular interval.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether ts falls inside the range.
func (r DateRange) Contains(ts time.Time) bool {
	return !ts.Before(r.Start) && !ts.After(r.End)
}

// ParsedQuery is the structured view of a query string.
type ParsedQuery struct {
	Raw        string
	DateRanges []DateRange
	Actions    []string
	Topics     []string
}

// Parser holds the lemmatizer dictionary and the clock. Construction is
// expensive (the English dictionary loads once); Parse is cheap and safe
// for concurrent use.
type Parser struct {
	lemmas *golem.Lemmatizer
	now    func() time.Time
}

// New builds a parser that resolves relative dates against the wall clock.
func New() (*Parser, error) {
	return NewWithClock(time.Now)
}

// NewWithClock builds a parser with an explicit reference clock, so that
// "yesterday" resolves deterministically under test.
func NewWithClock(now func() time.Time) (*Parser, error) {
	lemmas, err := golem.New(en.New())
	if err != nil {
		return nil, fmt.Errorf("load lemmatizer dictionary: %w", err)
	}
	return &Parser{lemmas: lemmas, now: now}, nil
}

// dateExpr matches one date-like span: ISO dates, month-name dates with an
// optional day ordinal and year, bare relative words, and "N units ago"
// phrases. Month-name ranges like "March 1 to March 5" are stitched
// together by rangeRe before single-expression scanning runs.
const dateExpr = `(?:\d{4}-\d{2}-\d{2}` +
	`|(?:jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|jun(?:e)?|jul(?:y)?|aug(?:ust)?|sep(?:t(?:ember)?)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?)\.?\s+\d{1,2}(?:st|nd|rd|th)?(?:,?\s+\d{4})?` +
	`|\d{1,2}(?:st|nd|rd|th)?\s+(?:jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|jun(?:e)?|jul(?:y)?|aug(?:ust)?|sep(?:t(?:ember)?)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?)\.?(?:\s+\d{4})?` +
	`|yesterday|today|tomorrow` +
	`|(?:last|next|this)\s+(?:week|month|year|monday|tuesday|wednesday|thursday|friday|saturday|sunday)` +
	`|\d+\s+(?:days?|weeks?|months?|years?)\s+ago)`

var (
	rangeRe  = regexp.MustCompile(`(?i)(` + dateExpr + `)\s*(?:to|through|until|-)\s*(` + dateExpr + `)`)
	singleRe = regexp.MustCompile(`(?i)` + dateExpr)
)

// Parse extracts date ranges, lemmatized action verbs, and topic phrases.
// It never fails: a query with nothing recognizable comes back with empty
// slices and the raw text intact.
func (p *Parser) Parse(query string) ParsedQuery {
	parsed := ParsedQuery{Raw: query}

	covered := p.parseDates(query, &parsed)
	p.parseLanguage(query, covered, &parsed)
	return parsed
}

// parseDates scans for range and single date expressions, resolving each
// against the reference clock. It returns the byte spans consumed by date
// expressions so topic extraction can skip them.
func (p *Parser) parseDates(query string, out *ParsedQuery) [][2]int {
	var covered [][2]int

	for _, m := range rangeRe.FindAllStringSubmatchIndex(query, -1) {
		start, okS := p.resolve(query[m[2]:m[3]])
		end, okE := p.resolve(query[m[4]:m[5]])
		if !okS || !okE {
			continue
		}
		if end.Before(start) {
			start, end = end, start
		}
		out.DateRanges = append(out.DateRanges, DateRange{
			Start: dayStart(start),
			End:   dayEnd(end),
		})
		covered = append(covered, [2]int{m[0], m[1]})
	}

	for _, m := range singleRe.FindAllStringIndex(query, -1) {
		if overlaps(covered, m[0], m[1]) {
			continue
		}
		ts, ok := p.resolve(query[m[0]:m[1]])
		if !ok {
			continue
		}
		out.DateRanges = append(out.DateRanges, DateRange{
			Start: dayStart(ts),
			End:   dayEnd(ts),
		})
		covered = append(covered, [2]int{m[0], m[1]})
	}

	// Nothing matched the span scanner: try the whole query as one date
	// expression before giving up. This catches phrasings the scanner
	// does not know; for ordinary prose it simply fails to parse and is
	// dropped.
	if len(covered) == 0 {
		if left, right, ok := strings.Cut(query, " to "); ok {
			start, okS := p.resolve(left)
			end, okE := p.resolve(right)
			if okS && okE {
				if end.Before(start) {
					start, end = end, start
				}
				out.DateRanges = append(out.DateRanges, DateRange{
					Start: dayStart(start),
					End:   dayEnd(end),
				})
				return covered
			}
		}
		if ts, ok := p.resolve(query); ok {
			out.DateRanges = append(out.DateRanges, DateRange{
				Start: dayStart(ts),
				End:   dayEnd(ts),
			})
		}
	}
	return covered
}

// resolve parses one date expression. Ambiguous expressions prefer future
// dates, matching how people schedule ("friday" means the coming one).
func (p *Parser) resolve(expr string) (time.Time, bool) {
	cfg := &dateparser.Configuration{
		CurrentTime:         p.now(),
		PreferredDateSource: dateparser.Future,
	}
	dt, err := dateparser.Parse(cfg, strings.TrimSpace(expr))
	if err != nil || dt.Time.IsZero() {
		return time.Time{}, false
	}
	return dt.Time, true
}

// parseLanguage pulls verbs and topics out of the query. Verbs are
// lemmatized so "discussed" and "discussing" both become "discuss". Topics
// are named entities plus runs of proper nouns, minus anything that was
// already consumed as a date.
func (p *Parser) parseLanguage(query string, covered [][2]int, out *ParsedQuery) {
	doc, err := prose.NewDocument(query)
	if err != nil {
		return
	}

	seenAction := map[string]bool{}
	seenTopic := map[string]bool{}

	for _, ent := range doc.Entities() {
		if ent.Label == "PERSON" {
			continue
		}
		key := strings.ToLower(ent.Text)
		if seenTopic[key] || looksLikeDate(ent.Text) {
			continue
		}
		seenTopic[key] = true
		out.Topics = append(out.Topics, ent.Text)
	}

	var run []string
	flush := func() {
		if len(run) == 0 {
			return
		}
		topic := strings.Join(run, " ")
		run = nil
		key := strings.ToLower(topic)
		if seenTopic[key] || looksLikeDate(topic) {
			return
		}
		seenTopic[key] = true
		out.Topics = append(out.Topics, topic)
	}

	offset := 0
	for _, tok := range doc.Tokens() {
		// Token positions are recovered by scanning forward, since prose
		// does not expose byte offsets.
		idx := strings.Index(query[offset:], tok.Text)
		start := offset
		if idx >= 0 {
			start = offset + idx
			offset = start + len(tok.Text)
		}
		inDate := overlaps(covered, start, start+len(tok.Text))

		if strings.HasPrefix(tok.Tag, "VB") {
			flush()
			if inDate {
				continue
			}
			lemma := p.lemmas.Lemma(strings.ToLower(tok.Text))
			if lemma != "" && !seenAction[lemma] {
				seenAction[lemma] = true
				out.Actions = append(out.Actions, lemma)
			}
			continue
		}

		if (tok.Tag == "NNP" || tok.Tag == "NNPS") && !inDate {
			run = append(run, tok.Text)
			continue
		}
		flush()
	}
	flush()
}

func looksLikeDate(s string) bool {
	return singleRe.MatchString(s)
}

func overlaps(spans [][2]int, start, end int) bool {
	for _, s := range spans {
		if start < s[1] && end > s[0] {
			return true
		}
	}
	return false
}

func dayStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func dayEnd(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, int(time.Second-time.Nanosecond), t.Location())
}
