package app

import "fmt"

/*
================================================
Prompts
- every generator answers with JSON only
- the schema is appended so non-structured providers see it too
================================================
*/

const quizSystemPrompt = `You are a quiz generator that creates multiple-choice questions about programming tutorials. Return only valid JSON.`

const quizPrompt = `Create a quiz based on this tutorial:
Title: %s
Description: %s

Generate %d multiple-choice questions. Return ONLY a JSON array with this exact format:
[
    {
        "question": "Question text here",
        "options": ["Option 1", "Option 2", "Option 3", "Option 4"],
        "correct_answer": "Option that is correct (must match exactly one of the options)"
    }
]

JSON schema:
%s`

const openQuestionSystemPrompt = `You are a question generator that creates open-ended questions about programming tutorials. Return only valid JSON.`

const openQuestionPrompt = `Create open-ended questions based on this tutorial:
Title: %s
Description: %s

Generate %d open-ended questions that test understanding of key concepts. Return ONLY a JSON array with this exact format:
[
    {
        "question": "Question text here that requires a short explanation",
        "expected_concepts": ["concept1", "concept2", "concept3", "concept4"]
    }
]

The questions should:
1. Be specific to the video content
2. Require 1-3 line answers
3. Test understanding of important concepts
4. Include 3-5 expected concepts for each question

JSON schema:
%s`

const evaluationSystemPrompt = `You are an answer evaluator for programming questions. Return only valid JSON.`

const evaluationPrompt = `Evaluate this answer to a programming question:
Question: %s
User's Answer: %s
Expected Concepts: %s

Evaluate the answer based on:
1. Accuracy of the explanation
2. Coverage of expected concepts
3. Clarity and conciseness

Return ONLY a JSON object with this format:
{
    "score": (float between 0 and 1),
    "feedback": "Constructive feedback explaining the score and suggesting improvements",
    "concepts_covered": ["list", "of", "concepts", "mentioned", "in", "answer"]
}

JSON schema:
%s`

const tutorSystemPrompt = `You are a patient programming tutor inside a learning app.
Answer the learner's question clearly and briefly, with a small example when it helps.
If the question is about the current video, stay within what the video covers.
Use markdown for code.`

const tutorVideoContext = `The learner is watching:
Title: %s
Description: %s`

func buildQuizPrompt(title, description string, n int) string {
	return fmt.Sprintf(quizPrompt, title, description, n, schemaText(quizSchema))
}

func buildOpenQuestionPrompt(title, description string, n int) string {
	return fmt.Sprintf(openQuestionPrompt, title, description, n, schemaText(openQuestionSchema))
}
