package game

import (
	"errors"

	"github.com/mcdev12/quizcoletivo/go/internal/quiz/repository"
)

var (
	// ErrConfiguration means question generation has no credential to run with.
	ErrConfiguration = errors.New("question generation is not configured")
	// ErrGeneration covers a failed generator call and a malformed or short question set.
	ErrGeneration = errors.New("question generation failed")
	ErrValidation = errors.New("validation failed")
	ErrNotAdmin   = errors.New("not the admin of this game")
	ErrGameEnded  = errors.New("game has ended")

	ErrNotFound       = repository.ErrNotFound
	ErrRoomCodeTaken  = repository.ErrRoomCodeTaken
	ErrQuestionClosed = repository.ErrQuestionClosed
	ErrStaleState     = repository.ErrStaleState
)
