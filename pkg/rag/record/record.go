package record

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Event is a parsed event listing as shown to the user.
type Event struct {
	Title       string `json:"title"`
	Date        string `json:"date"`
	Location    string `json:"location"`
	Cost        string `json:"cost"`
	Description string `json:"description"`
	URL         string `json:"url"`
}

const (
	DefaultTitle       = "Unknown Event"
	DefaultDate        = "TBD"
	DefaultLocation    = "Check Link"
	DefaultCost        = "Free"
	DefaultDescription = ""
	DefaultURL         = "#"

	// ItemKey marks a blob as an event listing
	ItemKey = "Event"
)

// DuplicateKeyPolicy decides which value survives when a key repeats in one blob.
type DuplicateKeyPolicy string

const (
	LastWins  DuplicateKeyPolicy = "last"
	FirstWins DuplicateKeyPolicy = "first"
)

// Parser turns raw "Key: value" blobs into events.
type Parser struct {
	Policy DuplicateKeyPolicy
}

func NewParser(policy DuplicateKeyPolicy) *Parser {
	if policy != FirstWins {
		policy = LastWins
	}
	return &Parser{Policy: policy}
}

// Parse uses the last-wins policy.
func Parse(raw string) Event {
	return NewParser(LastWins).Parse(raw)
}

// Parse never fails: unknown keys are ignored and missing fields take their defaults.
func (p *Parser) Parse(raw string) Event {
	fields := p.fields(raw)

	return Event{
		Title:       valueOr(fields, "Event", DefaultTitle),
		Date:        valueOr(fields, "Date", DefaultDate),
		Location:    valueOr(fields, "Location", DefaultLocation),
		Cost:        valueOr(fields, "Cost", DefaultCost),
		Description: valueOr(fields, "Description", DefaultDescription),
		URL:         valueOr(fields, "Source", DefaultURL),
	}
}

func (p *Parser) fields(raw string) map[string]string {
	fields := make(map[string]string)
	for _, line := range strings.Split(raw, "\n") {
		key, value, ok := strings.Cut(line, ": ")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if key == "" {
			continue
		}
		if _, exists := fields[key]; exists && p.Policy == FirstWins {
			continue
		}
		fields[key] = value
	}
	return fields
}

func valueOr(fields map[string]string, key, fallback string) string {
	if v, ok := fields[key]; ok && v != "" {
		return v
	}
	return fallback
}

// HasField reports whether any line of raw declares key, e.g. "Event: ...".
func HasField(raw, key string) bool {
	for _, line := range strings.Split(raw, "\n") {
		k, _, ok := strings.Cut(line, ":")
		if ok && strings.TrimSpace(k) == key {
			return true
		}
	}
	return false
}

// IsItem reports whether raw is an event listing rather than some other indexed text.
func IsItem(raw string) bool {
	return HasField(raw, ItemKey)
}

// Fingerprint identifies a blob by its exact text.
func Fingerprint(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
