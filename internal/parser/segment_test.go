package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flash-quiz/internal/models"
)

func TestSegment_HeadingsAndBullets(t *testing.T) {
	notes := `9/2
Processes
* A program in execution
- Has its own address space

Threads
  * Share the address space
*- Cheaper to create
9/4
Scheduling
* Round robin
`

	cards := Segment(notes)
	require.Len(t, cards, 3)

	assert.Equal(t, models.Flashcard{
		Question: "Processes",
		Answer:   "A program in execution\nHas its own address space",
	}, cards[0])
	assert.Equal(t, "Threads", cards[1].Question)
	assert.Equal(t, "Share the address space\nCheaper to create", cards[1].Answer)
	assert.Equal(t, "Scheduling", cards[2].Question)
	assert.Equal(t, "Round robin", cards[2].Answer)
}

func TestSegment_DropsHeadingWithoutBullets(t *testing.T) {
	notes := "Intro\nOverview\n* first point\n"

	cards := Segment(notes)
	require.Len(t, cards, 1)
	assert.Equal(t, "Overview", cards[0].Question)
}

func TestSegment_DropsBulletsBeforeHeading(t *testing.T) {
	notes := "* orphan\n- another\nTopic\n* kept\n"

	cards := Segment(notes)
	require.Len(t, cards, 1)
	assert.Equal(t, "kept", cards[0].Answer)
}

func TestSegment_DateLineClosesCard(t *testing.T) {
	notes := "Topic\n* one\n11/11\n* stray after date\n"

	cards := Segment(notes)
	require.Len(t, cards, 1)
	assert.Equal(t, "one", cards[0].Answer)
}

func TestSegment_Empty(t *testing.T) {
	cards := Segment("\n\n   \n")
	assert.NotNil(t, cards)
	assert.Empty(t, cards)
}
