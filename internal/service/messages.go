package service

import (
	"errors"
	"fmt"

	"github.com/jaam8/lingua_bot/internal/models"
)

const (
	NoStoryMessage    = "Es konnte keine Geschichte aus der Datenbank abgerufen werden."
	DailyArmedMessage = "Tägliche deutsche Inhalte wurden eingerichtet. Sie erhalten jeden Tag um %s Uhr eine Geschichte und ein Grammatikthema."
)

func StoryMessage(story *models.StoryRecord) string {
	return fmt.Sprintf("Hier ist deine %s Deutsche Geschichte:\n\n%s\n\n%s", story.Level, story.Title, story.Content)
}

func GrammarMessage(level models.DifficultyLevel, content string) string {
	return fmt.Sprintf("Hier ist dein %s Grammatikthema:\n\n%s", level, content)
}

func Explanation(correct models.Option) string {
	return fmt.Sprintf("Die richtige Antwort ist %s", correct)
}

// ResultMessage renders poll stats; without votes the percentage line reads "-".
func ResultMessage(snap models.PollSnapshot) string {
	percent := "-"
	if pct, err := snap.PercentCorrect(); err == nil {
		percent = fmt.Sprintf("%.2f%%", pct)
	}
	return fmt.Sprintf("Aktuelle Umfrageergebnisse:\nGesamtstimmen: %d\nRichtige Antworten: %d\nProzent richtig: %s",
		snap.TotalVotes, snap.CorrectVotes, percent)
}

// OperatorMessage is the user-visible notice for a failed cycle.
func OperatorMessage(err error) string {
	var reason string
	switch {
	case errors.Is(err, models.ErrStorageUnavailable):
		reason = "Die Geschichten-Datenbank ist nicht erreichbar."
	case errors.Is(err, models.ErrGenerationFailure):
		reason = "Der Inhalt konnte nicht erzeugt werden."
	case errors.Is(err, models.ErrRenderFailure):
		reason = "Die Audiodatei konnte nicht erstellt werden."
	case errors.Is(err, models.ErrDeliveryFailure):
		reason = "Eine Nachricht konnte nicht gesendet werden."
	case errors.Is(err, models.ErrCycleInProgress):
		reason = "Es läuft bereits eine Lieferung."
	default:
		reason = "Unerwarteter Fehler."
	}
	return "Die heutige Lieferung wurde abgebrochen. " + reason
}
