package clarification

import (
	"context"
	"fmt"
	"strings"

	"github.com/angelmondragon/forkcast-backend/internal/preferences"
	"github.com/angelmondragon/forkcast-backend/pkg/logger"
)

const (
	readyQuestion  = "Perfect! I have all preferences from your group. Ready to search for restaurants?"
	maxQuestionLen = 300
)

var fieldPhrases = map[string]string{
	preferences.FieldPrimaryLocation: "where you'd like to eat",
	preferences.FieldCuisineType:     "what kind of food the group wants",
	preferences.FieldGroupSize:       "how many people are coming",
	preferences.FieldTime:            "what time works",
	preferences.FieldPriceRange:      "your price range",
}

// Generator produces text for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type Service interface {
	Suggest(ctx context.Context, missing []string, prefs preferences.Preferences) string
}

type ServiceParams struct {
	Generator Generator
	Logger    *logger.Logger
}

type service struct {
	gen  Generator
	logg *logger.Logger
}

// NewService builds the clarification service. Without a generator every
// question comes from the built-in template.
func NewService(params ServiceParams) Service {
	return &service{gen: params.Generator, logg: params.Logger}
}

// Suggest returns one host-facing question covering every missing field.
// Model failures fall back to the template and are logged, never returned.
func (s *service) Suggest(ctx context.Context, missing []string, prefs preferences.Preferences) string {
	if len(missing) == 0 {
		return readyQuestion
	}
	fallback := templateQuestion(missing)
	if s.gen == nil {
		return fallback
	}

	out, err := s.gen.Generate(ctx, buildPrompt(missing, prefs))
	if err != nil {
		if s.logg != nil {
			s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "clarification model failed, using template")
		}
		return fallback
	}
	question := sanitize(out)
	if question == "" {
		return fallback
	}
	return question
}

func templateQuestion(missing []string) string {
	phrases := make([]string, 0, len(missing))
	for _, f := range missing {
		if p, ok := fieldPhrases[f]; ok {
			phrases = append(phrases, p)
		} else {
			phrases = append(phrases, strings.ReplaceAll(f, "_", " "))
		}
	}
	return fmt.Sprintf("I need to know %s to search effectively.", joinPhrases(phrases))
}

func joinPhrases(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	}
	return strings.Join(items[:len(items)-1], ", ") + " and " + items[len(items)-1]
}

func buildPrompt(missing []string, prefs preferences.Preferences) string {
	var b strings.Builder
	b.WriteString("You help a host plan a group restaurant outing. ")
	b.WriteString("Write ONE short, friendly question that asks the host for all of the missing details below at once. ")
	b.WriteString("Reply with the question only.\n\nMissing details:\n")
	for _, f := range missing {
		phrase := fieldPhrases[f]
		if phrase == "" {
			phrase = strings.ReplaceAll(f, "_", " ")
		}
		fmt.Fprintf(&b, "- %s\n", phrase)
	}

	known := preferences.MustHaves(prefs)
	if len(known) > 0 && known[0] != preferences.NoMustHaves {
		b.WriteString("\nAlready known:\n")
		for _, k := range known {
			fmt.Fprintf(&b, "- %s\n", k)
		}
	}
	return b.String()
}

func sanitize(out string) string {
	out = strings.TrimSpace(out)
	if i := strings.IndexByte(out, '\n'); i >= 0 {
		out = out[:i]
	}
	out = strings.Trim(strings.TrimSpace(out), "\"'`")
	if len(out) > maxQuestionLen {
		return ""
	}
	return out
}
