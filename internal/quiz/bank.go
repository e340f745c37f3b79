package quiz

import (
	"math/rand"

	"retroquiz-service/internal/domain"
)

// builtinQuestions is the offline question set used when the store is
// unreachable or empty. Keeping the game playable without a database beats
// failing the session.
var builtinQuestions = []domain.Question{
	{ID: -1, Prompt: "What is the capital of France?", OptionA: "London", OptionB: "Berlin", OptionC: "Paris", OptionD: "Madrid", Correct: domain.OptionC, Category: "Geography", Difficulty: "Easy"},
	{ID: -2, Prompt: "Which planet is known as the Red Planet?", OptionA: "Venus", OptionB: "Mars", OptionC: "Jupiter", OptionD: "Saturn", Correct: domain.OptionB, Category: "Science", Difficulty: "Easy"},
	{ID: -3, Prompt: "What is 7 x 8?", OptionA: "54", OptionB: "56", OptionC: "58", OptionD: "64", Correct: domain.OptionB, Category: "Math", Difficulty: "Easy"},
	{ID: -4, Prompt: "Who painted the Mona Lisa?", OptionA: "Van Gogh", OptionB: "Picasso", OptionC: "Rembrandt", OptionD: "Da Vinci", Correct: domain.OptionD, Category: "Art", Difficulty: "Easy"},
	{ID: -5, Prompt: "What is the largest ocean on Earth?", OptionA: "Atlantic", OptionB: "Indian", OptionC: "Pacific", OptionD: "Arctic", Correct: domain.OptionC, Category: "Geography", Difficulty: "Easy"},
	{ID: -6, Prompt: "In which year did World War II end?", OptionA: "1943", OptionB: "1944", OptionC: "1945", OptionD: "1946", Correct: domain.OptionC, Category: "History", Difficulty: "Medium"},
	{ID: -7, Prompt: "What is the chemical symbol for gold?", OptionA: "Go", OptionB: "Gd", OptionC: "Au", OptionD: "Ag", Correct: domain.OptionC, Category: "Science", Difficulty: "Medium"},
	{ID: -8, Prompt: "How many sides does a hexagon have?", OptionA: "5", OptionB: "6", OptionC: "7", OptionD: "8", Correct: domain.OptionB, Category: "Math", Difficulty: "Easy"},
	{ID: -9, Prompt: "Which language has the most native speakers?", OptionA: "English", OptionB: "Hindi", OptionC: "Spanish", OptionD: "Mandarin Chinese", Correct: domain.OptionD, Category: "Language", Difficulty: "Medium"},
	{ID: -10, Prompt: "What gas do plants absorb from the atmosphere?", OptionA: "Oxygen", OptionB: "Carbon dioxide", OptionC: "Nitrogen", OptionD: "Hydrogen", Correct: domain.OptionB, Category: "Science", Difficulty: "Easy"},
	{ID: -11, Prompt: "Who wrote 'Romeo and Juliet'?", OptionA: "Charles Dickens", OptionB: "William Shakespeare", OptionC: "Jane Austen", OptionD: "Mark Twain", Correct: domain.OptionB, Category: "Literature", Difficulty: "Easy"},
	{ID: -12, Prompt: "What is the smallest prime number?", OptionA: "0", OptionB: "1", OptionC: "2", OptionD: "3", Correct: domain.OptionC, Category: "Math", Difficulty: "Medium"},
	{ID: -13, Prompt: "Which country hosted the 2016 Summer Olympics?", OptionA: "China", OptionB: "Brazil", OptionC: "UK", OptionD: "Japan", Correct: domain.OptionB, Category: "Sports", Difficulty: "Medium"},
	{ID: -14, Prompt: "What is the longest river in the world?", OptionA: "Amazon", OptionB: "Yangtze", OptionC: "Nile", OptionD: "Mississippi", Correct: domain.OptionC, Category: "Geography", Difficulty: "Medium"},
	{ID: -15, Prompt: "How many bits are in a byte?", OptionA: "4", OptionB: "8", OptionC: "16", OptionD: "32", Correct: domain.OptionB, Category: "Technology", Difficulty: "Easy"},
}

// Bank returns a copy of the full offline bank in its canonical order.
func Bank() []domain.Question {
	out := make([]domain.Question, len(builtinQuestions))
	copy(out, builtinQuestions)
	return out
}

// BuiltinQuestions returns up to count questions from the offline bank in a
// shuffled order.
func BuiltinQuestions(count int) []domain.Question {
	return Sample(rand.New(rand.NewSource(rand.Int63())), builtinQuestions, count)
}

// Sample returns up to count questions drawn without repetition from qs.
func Sample(rnd *rand.Rand, qs []domain.Question, count int) []domain.Question {
	shuffled := make([]domain.Question, len(qs))
	copy(shuffled, qs)
	rnd.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	if count > 0 && count < len(shuffled) {
		shuffled = shuffled[:count]
	}
	return shuffled
}
