package game

import (
	"encoding/json"
	"fmt"

	"github.com/atriumhq/atrium/pkg/protocol"
)

// defaultQuizQuestions is the built-in question set used for every quiz
// session. Each session gets its own copy.
func defaultQuizQuestions() []protocol.QuizQuestion {
	return []protocol.QuizQuestion{
		{
			ID:           "q1",
			Question:     "What is the capital of France?",
			Options:      []string{"London", "Berlin", "Paris", "Madrid"},
			CorrectIndex: 2,
		},
		{
			ID:           "q2",
			Question:     "Which planet is known as the Red Planet?",
			Options:      []string{"Venus", "Mars", "Jupiter", "Saturn"},
			CorrectIndex: 1,
		},
		{
			ID:           "q3",
			Question:     "What is 2 + 2?",
			Options:      []string{"3", "4", "5", "22"},
			CorrectIndex: 1,
		},
		{
			ID:           "q4",
			Question:     "Who wrote Romeo and Juliet?",
			Options:      []string{"Charles Dickens", "William Shakespeare", "Mark Twain", "Jane Austen"},
			CorrectIndex: 1,
		},
		{
			ID:           "q5",
			Question:     "What is the largest ocean on Earth?",
			Options:      []string{"Atlantic", "Indian", "Arctic", "Pacific"},
			CorrectIndex: 3,
		},
	}
}

func unmarshalPayload(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return fmt.Errorf("empty payload")
	}
	return json.Unmarshal(data, v)
}
