package classifier

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"socialsync-be/internal/pkg/logger"
	"socialsync-be/pkg/llm"
	"socialsync-be/pkg/rag/prompt"
	"socialsync-be/pkg/store"

	"github.com/tidwall/gjson"
)

var ErrClassification = errors.New("classification failed")

// Tribe is a social style label. Keywords are added to searches once a session has one.
type Tribe struct {
	Name        string
	Description string
	Keywords    []string
}

var Tribes = []Tribe{
	{
		Name:        "Adventurer",
		Description: "energized by movement, the outdoors and trying new things with a lively group",
		Keywords:    []string{"outdoor", "active", "adventure"},
	},
	{
		Name:        "Connector",
		Description: "loves big crowds, mixers and meeting as many new people as possible",
		Keywords:    []string{"social", "meetup", "networking"},
	},
	{
		Name:        "Creative",
		Description: "happiest making things: art, music, crafts, workshops",
		Keywords:    []string{"workshop", "art", "music"},
	},
	{
		Name:        "Intellectual",
		Description: "drawn to ideas: talks, book clubs, museums, quizzes and debates",
		Keywords:    []string{"talk", "book club", "museum"},
	},
	{
		Name:        "Chill",
		Description: "prefers small, relaxed gatherings with a few people and a cozy atmosphere",
		Keywords:    []string{"relaxed", "cozy", "small group"},
	},
}

// Lookup finds a tribe by name, ignoring case.
func Lookup(name string) (Tribe, bool) {
	for _, t := range Tribes {
		if strings.EqualFold(t.Name, strings.TrimSpace(name)) {
			return t, true
		}
	}
	return Tribe{}, false
}

// Keywords returns the search keywords for a tribe, or nil for an unknown one.
func Keywords(name string) []string {
	t, ok := Lookup(name)
	if !ok {
		return nil
	}
	return t.Keywords
}

type Classifier struct {
	llmProvider llm.LLMProvider
	logger      logger.ILogger
}

func NewClassifier(llmProvider llm.LLMProvider, logger logger.ILogger) *Classifier {
	return &Classifier{llmProvider: llmProvider, logger: logger}
}

// Classify asks the model for the tribe that best fits the transcript.
func (c *Classifier) Classify(ctx context.Context, turns []store.Turn) (string, error) {
	labels := make([]prompt.Label, len(Tribes))
	for i, t := range Tribes {
		labels[i] = prompt.Label{Name: t.Name, Description: t.Description}
	}

	out, err := c.llmProvider.Generate(ctx, prompt.ClassifierPrompt(prompt.Transcript(turns), labels), llm.WithTemperature(0))
	if err != nil {
		c.logger.Warn("Classifier", "Generation failed", map[string]interface{}{
			"error": err.Error(),
		})
		return "", fmt.Errorf("%w: %w", ErrClassification, err)
	}

	name := ParseLabel(out)
	if name == "" {
		c.logger.Warn("Classifier", "No tribe in model output", map[string]interface{}{
			"output": out,
		})
		return "", fmt.Errorf("%w: no known tribe in %q", ErrClassification, out)
	}

	c.logger.Info("Classifier", "Tribe classified", map[string]interface{}{
		"tribe": name,
	})
	return name, nil
}

// ParseLabel reads the tribe from model output. JSON is preferred; otherwise the
// earliest tribe name mentioned wins. Returns "" when nothing matches.
func ParseLabel(out string) string {
	if start, end := strings.IndexByte(out, '{'), strings.LastIndexByte(out, '}'); start >= 0 && end > start {
		doc := out[start : end+1]
		if gjson.Valid(doc) {
			for _, path := range []string{"tribe", "label", "type", "personality"} {
				if t, ok := Lookup(gjson.Get(doc, path).String()); ok {
					return t.Name
				}
			}
		}
	}

	lower := strings.ToLower(out)
	best, bestAt := "", -1
	for _, t := range Tribes {
		at := strings.Index(lower, strings.ToLower(t.Name))
		if at >= 0 && (bestAt < 0 || at < bestAt) {
			best, bestAt = t.Name, at
		}
	}
	return best
}
