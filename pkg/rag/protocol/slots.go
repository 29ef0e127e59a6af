package protocol

import (
	"regexp"
	"strings"
)

// Slot is a piece of information required before a search may run.
type Slot string

const (
	SlotLocation Slot = "location"
	SlotTime     Slot = "time"
	SlotBudget   Slot = "budget"
)

// RequiredSlots in the order they are asked about.
var RequiredSlots = []Slot{SlotLocation, SlotTime, SlotBudget}

// matcher reports whether text mentions a slot.
type matcher interface {
	MatchString(text string) bool
}

type detector struct {
	slot        Slot
	present     []matcher
	indifferent *regexp.Regexp
}

// Gate decides from the user's own words whether a search has enough to go on.
type Gate struct {
	detectors    []detector
	indifference *regexp.Regexp
	continuation *regexp.Regexp
}

var (
	locationWords = regexp.MustCompile(`(?i)\b(downtown|uptown|old town|city cent(er|re)|centre|center|nearby|near me|close to me|walking distance|neighbou?rhood|district|around here|in town|online|virtual|outdoors?)\b`)
	// capitalized place after a preposition, e.g. "in Brooklyn", "at the Bowery"
	locationNamed = regexp.MustCompile(`\b(?:in|at|near|around|by)\s+(?:the\s+)?([A-Z][\p{L}'-]+)`)
	locationAny   = regexp.MustCompile(`(?i)\b(anywhere|wherever|any (place|location|area|neighbou?rhood))\b`)

	timeWords = regexp.MustCompile(`(?i)\b(today|tonight|tomorrow|weekends?|weekdays?|weeknights?|this week|next week|this month|next month|mondays?|tuesdays?|wednesdays?|thursdays?|fridays?|saturdays?|sundays?|mornings?|afternoons?|evenings?|night|after work|lunch ?time|january|february|march|april|june|july|august|september|october|november|december)\b`)
	timeClock = regexp.MustCompile(`(?i)\b\d{1,2}(:\d{2})?\s?(am|pm)\b|\b\d{1,2}[/.]\d{1,2}\b`)
	timeAny   = regexp.MustCompile(`(?i)\b(anytime|whenever|any (time|day|night|date))\b`)

	budgetWords  = regexp.MustCompile(`(?i)\b(cheap|budget|affordable|inexpensive|pricey|expensive|splurge|low[- ]cost|no cost|costs? nothing)\b`)
	budgetAmount = regexp.MustCompile(`(?i)[$€£]\s?\d+|\b\d+\s?[$€£]|\b\d+\s?(usd|eur|euros?|dollars?|bucks|ron|lei|gbp)\b|\b(under|below|less than|max|up to)\s+[$€£]?\d+`)
	// "free" as a price; group 1 catches availability like "I'm free" or "are you free"
	budgetFree   = regexp.MustCompile(`(?i)\b((?:i'?m|i am|we'?re|we are|you'?re|you are|are|am|is|be)\s+)?free\b`)
	budgetAny    = regexp.MustCompile(`(?i)\b(any (price|budget|cost)|money is no (object|issue)|no budget|price doesn'?t matter|don'?t care about (the )?(price|cost|money))\b`)

	indifferencePattern = regexp.MustCompile(`(?i)\b(surprise me|whatever( works| you (think|like|want))?|i don'?t care|doesn'?t matter|no preference|not picky|up to you|you (choose|pick|decide)|anything (goes|works|is fine)|dealer'?s choice)\b`)

	continuationPattern = regexp.MustCompile(`(?i)(^\s*(more|next|others?)\s*[.!?]*\s*$)|\b(show (me )?more|(any|some|a few) more|more (options|events|ideas|suggestions|like (this|that|these))|next (ones?|options?|page|events?)|other (options|ones|events|ideas)|something else|what else|another (one|option|event|idea)|different (ones|options|events))\b`)
)

// NewGate builds the gate for location, time and budget.
func NewGate() *Gate {
	return &Gate{
		detectors: []detector{
			{slot: SlotLocation, present: []matcher{locationWords, namedPlace{}}, indifferent: locationAny},
			{slot: SlotTime, present: []matcher{timeWords, timeClock}, indifferent: timeAny},
			{slot: SlotBudget, present: []matcher{budgetWords, budgetAmount, freePrice{}}, indifferent: budgetAny},
		},
		indifference: indifferencePattern,
		continuation: continuationPattern,
	}
}

// WithSlot registers an extra required slot, detected when any pattern matches.
func (g *Gate) WithSlot(slot Slot, patterns ...*regexp.Regexp) *Gate {
	present := make([]matcher, len(patterns))
	for i, p := range patterns {
		present[i] = p
	}
	g.detectors = append(g.detectors, detector{slot: slot, present: present})
	return g
}

// Slots lists the required slots in asking order.
func (g *Gate) Slots() []Slot {
	out := make([]Slot, len(g.detectors))
	for i, d := range g.detectors {
		out[i] = d.slot
	}
	return out
}

// Missing returns the slots not yet covered by any user utterance. A general
// indifference signal anywhere in the conversation covers every slot.
func (g *Gate) Missing(utterances []string) []Slot {
	if g.Indifferent(utterances) {
		return nil
	}

	text := strings.Join(utterances, "\n")
	var missing []Slot
	for _, d := range g.detectors {
		if d.indifferent != nil && d.indifferent.MatchString(text) {
			continue
		}
		if !matchAny(d.present, text) {
			missing = append(missing, d.slot)
		}
	}
	return missing
}

// Indifferent reports a "surprise me" style signal in any utterance.
func (g *Gate) Indifferent(utterances []string) bool {
	for _, u := range utterances {
		if g.indifference.MatchString(u) {
			return true
		}
	}
	return false
}

// IsContinuation reports whether the utterance asks for more of the same.
func (g *Gate) IsContinuation(utterance string) bool {
	return g.continuation.MatchString(utterance)
}

// namedPlace matches a capitalized name after a preposition unless the name is a
// day or month, so "by Friday" or "in March" stay time.
type namedPlace struct{}

func (namedPlace) MatchString(text string) bool {
	for _, m := range locationNamed.FindAllStringSubmatch(text, -1) {
		if !timeWords.MatchString(m[1]) {
			return true
		}
	}
	return false
}

// freePrice matches "free" unless it describes someone's availability.
type freePrice struct{}

func (freePrice) MatchString(text string) bool {
	for _, m := range budgetFree.FindAllStringSubmatch(text, -1) {
		if m[1] == "" {
			return true
		}
	}
	return false
}

func matchAny(patterns []matcher, text string) bool {
	for _, p := range patterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}
