package parser

import (
	"regexp"
	"strings"

	"flash-quiz/internal/models"
)

var dateLine = regexp.MustCompile(`^\d{1,2}/\d{1,2}$`)

// Segment turns raw notes into flashcards without calling a model.
//
// A line that is not a bullet ("*" or "-") starts a new heading; bullets below
// it become the answer, one per line. Date lines such as "9/2" close the
// current card. Headings without bullets and bullets before the first heading
// are dropped.
func Segment(notes string) []models.Flashcard {
	cards := []models.Flashcard{}
	title := ""
	var body []string

	flush := func() {
		if title != "" && len(body) > 0 {
			cards = append(cards, models.Flashcard{
				Question: title,
				Answer:   strings.TrimSpace(strings.Join(body, "\n")),
			})
		}
		title = ""
		body = nil
	}

	for _, line := range strings.Split(notes, "\n") {
		stripped := strings.TrimSpace(line)
		if stripped == "" {
			continue
		}

		if dateLine.MatchString(stripped) {
			flush()
			continue
		}

		if !strings.HasPrefix(stripped, "*") && !strings.HasPrefix(stripped, "-") {
			flush()
			title = stripped
			continue
		}

		if title == "" {
			continue
		}
		cleaned := strings.TrimLeft(stripped, "*")
		cleaned = strings.TrimLeft(cleaned, "-")
		body = append(body, strings.TrimSpace(cleaned))
	}
	flush()

	return cards
}
