// Package parser recovers flashcards and quiz questions from free-form model
// output that loosely follows a "LABEL: value" per line convention.
package parser

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"flash-quiz/internal/models"
)

const (
	LabelQuestion      = "QUESTION"
	LabelAnswer        = "ANSWER"
	LabelCorrectAnswer = "CORRECT ANSWER"

	// OptionCount is the number of options every quiz question carries.
	OptionCount = 4
)

// ErrMismatchedLabels is returned in strict mode when the label sequences
// that make up a row have different lengths.
var ErrMismatchedLabels = errors.New("label sequences have different lengths")

// OptionLabel returns the label for the n-th option, counting from 1.
func OptionLabel(n int) string {
	return "OPTION " + strconv.Itoa(n)
}

// Options tunes parsing.
type Options struct {
	// Strict rejects output whose label sequences differ in length instead of
	// truncating to the shortest.
	Strict bool
}

// FlashcardResult is the outcome of ParseFlashcards.
type FlashcardResult struct {
	Cards      []models.Flashcard
	Counts     map[string]int
	Mismatched bool
}

// QuizResult is the outcome of ParseQuiz.
type QuizResult struct {
	Questions  []models.QuizQuestion
	Counts     map[string]int
	Mismatched bool
}

var patterns = map[string]*regexp.Regexp{}

func init() {
	labels := []string{LabelQuestion, LabelAnswer, LabelCorrectAnswer}
	for i := 1; i <= OptionCount; i++ {
		labels = append(labels, OptionLabel(i))
	}
	for _, label := range labels {
		patterns[label] = compileLabel(label)
	}
}

// compileLabel matches a line starting with at most one whitespace character,
// optional quote or bold markers, the label and a colon. The match is anchored
// so ANSWER never matches inside CORRECT ANSWER.
func compileLabel(label string) *regexp.Regexp {
	return regexp.MustCompile(`^\s?["*]*` + regexp.QuoteMeta(label) + `["*]*:["*]*\s*(.*)$`)
}

func patternFor(label string) *regexp.Regexp {
	if re, ok := patterns[label]; ok {
		return re
	}
	return compileLabel(label)
}

// Extract returns the trailing content of every line labelled with label, in
// order of appearance.
func Extract(raw, label string) []string {
	re := patternFor(label)
	var values []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimRight(line, "\r")
		m := re.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		values = append(values, cleanValue(m[1]))
	}
	return values
}

// cleanValue strips whitespace and the quote or bold markers models wrap
// values in.
func cleanValue(v string) string {
	v = strings.TrimSpace(v)
	for {
		trimmed := strings.TrimSpace(strings.Trim(v, `"`))
		trimmed = strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(trimmed, "**"), "**"))
		if trimmed == v {
			return v
		}
		v = trimmed
	}
}

// ParseFlashcards zips QUESTION and ANSWER lines into flashcards.
func ParseFlashcards(raw string, opts Options) (FlashcardResult, error) {
	questions := Extract(raw, LabelQuestion)
	answers := Extract(raw, LabelAnswer)

	result := FlashcardResult{
		Counts: map[string]int{
			LabelQuestion: len(questions),
			LabelAnswer:   len(answers),
		},
		Mismatched: len(questions) != len(answers),
	}
	if result.Mismatched && opts.Strict {
		result.Cards = []models.Flashcard{}
		return result, mismatchError(result.Counts, LabelQuestion, LabelAnswer)
	}

	n := min(len(questions), len(answers))
	result.Cards = make([]models.Flashcard, 0, n)
	for i := 0; i < n; i++ {
		result.Cards = append(result.Cards, models.Flashcard{
			Question: questions[i],
			Answer:   answers[i],
		})
	}
	return result, nil
}

// ParseQuiz zips OPTION 1..4 and CORRECT ANSWER lines into quiz questions.
// QUESTION lines are optional here: when present they fill the question text
// by position but never shorten the result.
func ParseQuiz(raw string, opts Options) (QuizResult, error) {
	required := make([]string, 0, OptionCount+1)
	columns := make(map[string][]string, OptionCount+2)
	for i := 1; i <= OptionCount; i++ {
		label := OptionLabel(i)
		required = append(required, label)
		columns[label] = Extract(raw, label)
	}
	required = append(required, LabelCorrectAnswer)
	columns[LabelCorrectAnswer] = Extract(raw, LabelCorrectAnswer)
	questions := Extract(raw, LabelQuestion)

	result := QuizResult{Counts: map[string]int{LabelQuestion: len(questions)}}
	n := -1
	for _, label := range required {
		count := len(columns[label])
		result.Counts[label] = count
		if n == -1 {
			n = count
			continue
		}
		if count != n {
			result.Mismatched = true
		}
		n = min(n, count)
	}
	if result.Mismatched && opts.Strict {
		result.Questions = []models.QuizQuestion{}
		return result, mismatchError(result.Counts, required...)
	}

	result.Questions = make([]models.QuizQuestion, 0, n)
	for i := 0; i < n; i++ {
		q := models.QuizQuestion{
			Options:   make([]string, OptionCount),
			AnswerKey: columns[LabelCorrectAnswer][i],
		}
		for j := 0; j < OptionCount; j++ {
			q.Options[j] = columns[OptionLabel(j+1)][i]
		}
		if i < len(questions) {
			q.Question = questions[i]
		}
		q.CorrectIndex = ResolveAnswerKey(q.AnswerKey, q.Options)
		result.Questions = append(result.Questions, q)
	}
	return result, nil
}

// ResolveAnswerKey maps a CORRECT ANSWER value to a zero based option index.
// It accepts an option number ("3", "OPTION 3"), a letter ("C", "c)"), or the
// text of one of the options. It returns -1 when none apply.
func ResolveAnswerKey(key string, options []string) int {
	key = strings.TrimSpace(key)
	if key == "" {
		return -1
	}

	if digits := firstNumber(key); digits != "" {
		n, err := strconv.Atoi(digits)
		if err == nil && n >= 1 && n <= len(options) {
			return n - 1
		}
	}

	fields := strings.Fields(key)
	if len(fields) > 1 && strings.EqualFold(fields[0], "option") {
		fields = fields[1:]
	}
	token := strings.TrimRight(fields[0], ").:,")
	if len(token) == 1 {
		r := unicode.ToUpper(rune(token[0]))
		if r >= 'A' && int(r-'A') < len(options) {
			return int(r - 'A')
		}
	}

	for i, opt := range options {
		if opt != "" && strings.EqualFold(strings.TrimSpace(opt), key) {
			return i
		}
	}
	return -1
}

func firstNumber(s string) string {
	start := strings.IndexFunc(s, unicode.IsDigit)
	if start == -1 {
		return ""
	}
	end := start
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	return s[start:end]
}

func mismatchError(counts map[string]int, labels ...string) error {
	parts := make([]string, 0, len(labels))
	for _, label := range labels {
		parts = append(parts, fmt.Sprintf("%s=%d", label, counts[label]))
	}
	return fmt.Errorf("%w: %s", ErrMismatchedLabels, strings.Join(parts, " "))
}
