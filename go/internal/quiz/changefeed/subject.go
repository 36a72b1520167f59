package changefeed

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/mcdev12/quizcoletivo/go/internal/quiz/realtime"
)

// DefaultSubjectPrefix is the root of every change subject.
const DefaultSubjectPrefix = "quiz.changes"

// Subject is where a change for one collection of one game is published:
// <prefix>.<game_id>.<collection>.
func Subject(prefix string, gameID uuid.UUID, c realtime.Collection) string {
	return fmt.Sprintf("%s.%s.%s", prefix, gameID, c)
}

// AllSubjects matches every change under prefix.
func AllSubjects(prefix string) string {
	return prefix + ".>"
}

// ParseSubject splits a change subject back into game id and collection.
func ParseSubject(prefix, subject string) (uuid.UUID, realtime.Collection, error) {
	rest, ok := strings.CutPrefix(subject, prefix+".")
	if !ok {
		return uuid.Nil, "", fmt.Errorf("subject %q outside %s", subject, prefix)
	}
	rawID, rawCollection, ok := strings.Cut(rest, ".")
	if !ok {
		return uuid.Nil, "", fmt.Errorf("subject %q has no collection", subject)
	}
	gameID, err := uuid.Parse(rawID)
	if err != nil {
		return uuid.Nil, "", fmt.Errorf("subject %q: bad game id: %w", subject, err)
	}
	c := realtime.Collection(rawCollection)
	if !c.Valid() {
		return uuid.Nil, "", fmt.Errorf("%w: subject %q", realtime.ErrUnknownChange, subject)
	}
	return gameID, c, nil
}
