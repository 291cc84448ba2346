// Package generator produces story and grammar text with a remote language model.
package generator

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"text/template"
	"time"

	"github.com/jaam8/lingua_bot/internal/models"
)

type Config struct {
	Provider    string        `yaml:"LLM_PROVIDER" env:"LLM_PROVIDER" env-default:"openai"`
	OpenAIModel string        `yaml:"OPENAI_MODEL" env:"OPENAI_MODEL" env-default:"gpt-4o-mini"`
	GeminiKey   string        `yaml:"GEMINI_API_KEY" env:"GEMINI_API_KEY"`
	GeminiModel string        `yaml:"GEMINI_MODEL" env:"GEMINI_MODEL" env-default:"gemini-2.5-flash"`
	Temperature float64       `yaml:"LLM_TEMPERATURE" env:"LLM_TEMPERATURE" env-default:"0.7"`
	Timeout     time.Duration `yaml:"LLM_TIMEOUT" env:"LLM_TIMEOUT" env-default:"90s"`
}

// Generator does one blocking round trip to a model and returns its raw text.
type Generator interface {
	Generate(ctx context.Context, prompt *Prompt, vars map[string]string) (string, error)
}

type Prompt struct {
	name string
	tmpl *template.Template
}

func NewPrompt(name, text string) *Prompt {
	return &Prompt{
		name: name,
		tmpl: template.Must(template.New(name).Option("missingkey=error").Parse(text)),
	}
}

func (p *Prompt) Name() string {
	return p.name
}

// Render fills the template; a variable the template needs but vars lacks is an error.
func (p *Prompt) Render(vars map[string]string) (string, error) {
	var b strings.Builder
	if err := p.tmpl.Execute(&b, vars); err != nil {
		return "", fmt.Errorf("generator: render %s: %w", p.name, err)
	}
	return b.String(), nil
}

var StoryPrompt = NewPrompt("story",
	"Schreibe eine kurze deutsche Geschichte (150-200 Wörter) für Sprachlerner auf {{.level}} Niveau. "+
		"Das Thema der Geschichte sollte '{{.topic}}' sein, basierend auf dem Buch 'Atomic Habits'. "+
		"Gib der Geschichte auch einen passenden Titel. "+
		"Erstelle dann eine Multiple-Choice-Frage zur Geschichte mit drei Optionen (A, B, C). "+
		"Gib am Ende die richtige Antwort an (A, B oder C). "+
		"Formatiere die Ausgabe wie folgt:\n"+
		"TITEL: [Dein Titel hier]\n"+
		"GESCHICHTE: [Deine Geschichte hier]\n"+
		"FRAGE: [Deine Frage hier]\n"+
		"A. [Option A]\n"+
		"B. [Option B]\n"+
		"C. [Option C]\n"+
		"RICHTIGE ANTWORT: [A, B oder C]")

var GrammarPrompt = NewPrompt("grammar",
	"Erkläre ein Grammatikthema auf Deutsch-Niveau {{.level}}. "+
		"Dann erstelle eine einfache Multiple-Choice-Frage auf Deutsch zum Grammatikthema "+
		"mit drei Optionen (A, B, C). "+
		"Gib am Ende die richtige Antwort an (A, B oder C). "+
		"Formatiere die Ausgabe wie folgt:\n"+
		"GRAMMATIK: [Deine Erklärung hier]\n"+
		"FRAGE: [Deine Frage hier]\n"+
		"OPTIONEN:\n"+
		"A. [Option A]\n"+
		"B. [Option B]\n"+
		"C. [Option C]\n"+
		"RICHTIGE ANTWORT: [A, B oder C]")

// Topics are the story themes, taken from "Atomic Habits".
var Topics = []string{
	"Kleine Gewohnheiten, große Veränderungen",
	"Die Macht der 1% Verbesserung",
	"Identitätsbasierte Gewohnheiten",
	"Die vier Gesetze der Verhaltensänderung",
	"Das Gesetz der Offensichtlichkeit",
	"Das Gesetz der Attraktivität",
	"Das Gesetz der Einfachheit",
	"Das Gesetz der Zufriedenheit",
	"Umgebung gestalten für Erfolg",
	"Die Zwei-Minuten-Regel",
	"Gewohnheiten verfolgen und messen",
	"Der Verbündeten-Effekt",
}

func RandomTopic() string {
	return Topics[rand.IntN(len(Topics))]
}

func RandomLevel() models.DifficultyLevel {
	return models.Levels[rand.IntN(len(models.Levels))]
}

func StoryVars(topic string, level models.DifficultyLevel) map[string]string {
	return map[string]string{"topic": topic, "level": string(level)}
}

func GrammarVars(level models.DifficultyLevel) map[string]string {
	return map[string]string{"level": string(level)}
}

// checkOutput turns an empty model answer into a generation failure.
func checkOutput(prompt *Prompt, out string) (string, error) {
	if strings.TrimSpace(out) == "" {
		return "", fmt.Errorf("generator: %s: empty response: %w", prompt.Name(), models.ErrGenerationFailure)
	}
	return out, nil
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
