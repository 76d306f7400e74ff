package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/classwork-backend/internal/model"
)

// QuestionRepository reads the answer key for the disclosure path. Question
// authoring is owned by the classwork module.
type QuestionRepository struct {
	pool *pgxpool.Pool
}

// NewQuestionRepository creates a new QuestionRepository.
func NewQuestionRepository(pool *pgxpool.Pool) *QuestionRepository {
	return &QuestionRepository{pool: pool}
}

// ListAnswerKey returns, for every question of the assignment in position
// order, the ids of its correct options. Questions with no correct option
// still appear with an empty set, so clients see every question slot.
func (r *QuestionRepository) ListAnswerKey(ctx context.Context, assignmentID uuid.UUID) ([]model.AnswerKeyEntry, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT q.id, o.id
		 FROM questions q
		 LEFT JOIN question_options o ON o.question_id = q.id AND o.is_correct
		 WHERE q.assignment_id = $1
		 ORDER BY q.position ASC, o.position ASC`,
		assignmentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var key []model.AnswerKeyEntry
	for rows.Next() {
		var questionID uuid.UUID
		var optionID *uuid.UUID
		if err := rows.Scan(&questionID, &optionID); err != nil {
			return nil, err
		}
		if len(key) == 0 || key[len(key)-1].QuestionID != questionID {
			key = append(key, model.AnswerKeyEntry{
				QuestionID:       questionID,
				CorrectOptionIDs: []uuid.UUID{},
			})
		}
		if optionID != nil {
			last := &key[len(key)-1]
			last.CorrectOptionIDs = append(last.CorrectOptionIDs, *optionID)
		}
	}
	return key, rows.Err()
}
