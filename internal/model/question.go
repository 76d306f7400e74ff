package model

import (
	"github.com/google/uuid"
)

// AnswerKeyEntry is one question's correct option ids, in the assignment's
// stable question order. This is the only shape the disclosure path exposes:
// no scores, no per-student data.
type AnswerKeyEntry struct {
	QuestionID       uuid.UUID   `json:"question_id"`
	CorrectOptionIDs []uuid.UUID `json:"correct_option_ids"`
}
