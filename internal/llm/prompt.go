package llm

import (
	"bytes"
	"fmt"
	"text/template"

	"flash-quiz/internal/models"
)

const (
	// DefaultFlashcardCount is how many flashcards the prompt asks for.
	DefaultFlashcardCount = 4
	// DefaultQuizCount is how many quiz questions the prompt asks for.
	DefaultQuizCount = 5
)

var flashcardPromptTmpl = template.Must(template.New("flashcards").Parse(`You are an AI assistant meant to generate flashcards from a user's imported notes. Here are the user's notes:

{{.Notes}}

Your task:

Generate flashcards in this format-
**Flashcard 1**
QUESTION: <Question>
ANSWER: <Answer>

Repeat and make {{.Count}} total flashcards to help this user study. Do not disobey the format and do not add any additional text other than the flashcards.
`))

var quizPromptTmpl = template.Must(template.New("quiz").Funcs(template.FuncMap{
	"inc": func(i int) int { return i + 1 },
}).Parse(`You are an AI assistant meant to generate a quiz from a user's imported flashcards. Here are the flashcards:

{{range $i, $c := .Cards}}{{inc $i}}. Q: {{$c.Question}} | A: {{$c.Answer}}
{{end}}
Your task:

Generate a {{.Count}}-question multiple-choice quiz in this format-
**Question 1**
QUESTION: <Question text>
OPTION 1: <Possible answer>
OPTION 2: <Possible answer>
OPTION 3: <Possible answer>
OPTION 4: <Possible answer>
CORRECT ANSWER: <Option number with the correct answer>

Repeat for {{.Count}} questions to help this user study. Do not disobey the format and do not add any additional text other than the quiz.
`))

// FlashcardPrompt asks the model for count QUESTION/ANSWER pairs from notes.
func FlashcardPrompt(notes string, count int) (string, error) {
	if count <= 0 {
		count = DefaultFlashcardCount
	}
	var buf bytes.Buffer
	if err := flashcardPromptTmpl.Execute(&buf, struct {
		Notes string
		Count int
	}{notes, count}); err != nil {
		return "", fmt.Errorf("render flashcard prompt: %w", err)
	}
	return buf.String(), nil
}

// QuizPrompt asks the model for count four-option questions built from cards.
func QuizPrompt(cards []models.Flashcard, count int) (string, error) {
	if count <= 0 {
		count = DefaultQuizCount
	}
	var buf bytes.Buffer
	if err := quizPromptTmpl.Execute(&buf, struct {
		Cards []models.Flashcard
		Count int
	}{cards, count}); err != nil {
		return "", fmt.Errorf("render quiz prompt: %w", err)
	}
	return buf.String(), nil
}
