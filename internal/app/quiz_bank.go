package app

// Question is one multiple-choice item. CorrectAnswer must equal one of
// Options exactly.
type Question struct {
	Question      string   `json:"question" jsonschema_description:"Question text"`
	Options       []string `json:"options" jsonschema_description:"Exactly four answer options"`
	CorrectAnswer string   `json:"correct_answer" jsonschema_description:"The correct option, copied verbatim from options"`
}

// DefaultQuiz is served whenever nothing better is available.
func DefaultQuiz() []Question {
	return cloneQuestions(defaultQuiz)
}

var defaultQuiz = []Question{
	{
		Question: "What is the main purpose of Python?",
		Options: []string{
			"General-purpose programming",
			"Only web development",
			"Only data science",
			"Only game development",
		},
		CorrectAnswer: "General-purpose programming",
	},
	{
		Question: "Which of these is a core feature of Python?",
		Options: []string{
			"Dynamic typing",
			"Static typing only",
			"Manual memory management",
			"Compilation required",
		},
		CorrectAnswer: "Dynamic typing",
	},
	{
		Question: "What makes Python popular for beginners?",
		Options: []string{
			"Simple, readable syntax",
			"Complex compilation process",
			"Manual memory management",
			"Strict typing system",
		},
		CorrectAnswer: "Simple, readable syntax",
	},
}

// quizBank maps a video id or normalized topic to its hand-written quiz.
var quizBank = map[string][]Question{
	"python": {
		{
			Question:      "Which keyword defines a function in Python?",
			Options:       []string{"def", "func", "function", "lambda only"},
			CorrectAnswer: "def",
		},
		{
			Question:      "What does len([1, 2, 3]) return?",
			Options:       []string{"2", "3", "4", "An error"},
			CorrectAnswer: "3",
		},
		{
			Question:      "Which collection type is immutable?",
			Options:       []string{"list", "dict", "tuple", "set"},
			CorrectAnswer: "tuple",
		},
	},
	"python data structures": {
		{
			Question:      "Which method adds an item to the end of a list?",
			Options:       []string{"append", "add", "push", "insert_end"},
			CorrectAnswer: "append",
		},
		{
			Question:      "What happens when you add a duplicate value to a set?",
			Options:       []string{"It is ignored", "It raises KeyError", "It is stored twice", "The set is cleared"},
			CorrectAnswer: "It is ignored",
		},
		{
			Question:      "Which expression reads a dict value without raising on a missing key?",
			Options:       []string{"d.get(key)", "d[key]", "d.fetch(key)", "d.value(key)"},
			CorrectAnswer: "d.get(key)",
		},
	},
	"machine learning": {
		{
			Question:      "Predicting a house price from its features is an example of",
			Options:       []string{"Regression", "Clustering", "Classification", "Dimensionality reduction"},
			CorrectAnswer: "Regression",
		},
		{
			Question:      "Which algorithm labels a point by the majority class of its closest neighbours?",
			Options:       []string{"k-nearest neighbors", "Linear regression", "k-means", "PCA"},
			CorrectAnswer: "k-nearest neighbors",
		},
		{
			Question:      "Why is data split into training and test sets?",
			Options:       []string{"To measure performance on unseen data", "To train faster", "To reduce storage", "To remove outliers"},
			CorrectAnswer: "To measure performance on unseen data",
		},
	},
	"sql": {
		{
			Question:      "Which clause filters rows before grouping?",
			Options:       []string{"WHERE", "HAVING", "ORDER BY", "LIMIT"},
			CorrectAnswer: "WHERE",
		},
		{
			Question:      "A primary key must be",
			Options:       []string{"Unique and not null", "A number", "Indexed twice", "The first column"},
			CorrectAnswer: "Unique and not null",
		},
		{
			Question:      "Which join returns only rows with matches in both tables?",
			Options:       []string{"INNER JOIN", "LEFT JOIN", "FULL OUTER JOIN", "CROSS JOIN"},
			CorrectAnswer: "INNER JOIN",
		},
	},
	"go": {
		{
			Question:      "How do you start a goroutine?",
			Options:       []string{"go f()", "async f()", "spawn f()", "thread f()"},
			CorrectAnswer: "go f()",
		},
		{
			Question:      "What is the zero value of a map?",
			Options:       []string{"nil", "An empty map", "0", "It has none"},
			CorrectAnswer: "nil",
		},
		{
			Question:      "Which statement runs a call when the surrounding function returns?",
			Options:       []string{"defer", "finally", "ensure", "after"},
			CorrectAnswer: "defer",
		},
	},
}

// LookupQuiz returns the bank quiz for a video id or topic, or DefaultQuiz.
func LookupQuiz(key string) []Question {
	if qs, ok := bankQuiz(key); ok {
		return qs
	}
	return DefaultQuiz()
}

func bankQuiz(key string) ([]Question, bool) {
	if qs, ok := quizBank[key]; ok {
		return cloneQuestions(qs), true
	}
	if qs, ok := quizBank[normalizeKey(key)]; ok {
		return cloneQuestions(qs), true
	}
	return nil, false
}

func cloneQuestions(in []Question) []Question {
	out := make([]Question, len(in))
	for i, q := range in {
		out[i] = Question{
			Question:      q.Question,
			Options:       append([]string(nil), q.Options...),
			CorrectAnswer: q.CorrectAnswer,
		}
	}
	return out
}
