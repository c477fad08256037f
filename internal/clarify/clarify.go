// Package clarify gates pipeline entry on topic quality. A topic that is too
// short, too vague or a bare acronym produces clarifying questions instead
// of a research run, and the exchange is persisted so an interrupted
// clarification can be picked up later.
package clarify

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// minTopicLength is the shortest topic, in runes, accepted without
// clarification.
const minTopicLength = 20

// maxQuestions caps how many clarifying questions a single exchange asks.
const maxQuestions = 3

// ambiguousTerms are words that make a topic vague regardless of length.
var ambiguousTerms = map[string]struct{}{
	"it": {}, "this": {}, "that": {}, "they": {}, "them": {},
	"something": {}, "anything": {}, "what": {}, "how": {},
}

// shortTopics are bare acronyms that need an angle before they are
// researchable.
var shortTopics = map[string]struct{}{
	"ai": {}, "ml": {}, "dl": {}, "llm": {}, "nlp": {}, "cv": {},
	"ag": {}, "ar": {}, "vr": {}, "mr": {},
	"web": {}, "app": {}, "db": {}, "os": {}, "api": {},
}

// Heuristic decides whether a topic is specific enough to research using
// fixed lexical rules. It keeps no state.
type Heuristic struct{}

// NeedsClarification reports whether topic is too underspecified to run.
func (Heuristic) NeedsClarification(topic string) bool {
	if utf8.RuneCountInString(strings.TrimSpace(topic)) < minTopicLength {
		return true
	}
	for _, word := range strings.Fields(strings.ToLower(topic)) {
		if _, ok := ambiguousTerms[word]; ok {
			return true
		}
	}
	_, ok := shortTopics[strings.ToLower(topic)]
	return ok
}

// GenerateQuestions produces up to three clarifying questions for topic.
// The questions go from most to least specific: context first, vagueness
// second, desired depth last.
func (Heuristic) GenerateQuestions(topic string) []string {
	trimmed := strings.TrimSpace(topic)
	if utf8.RuneCountInString(trimmed) < 5 {
		return []string{
			"What specific topic would you like to research?",
			"What aspect or angle are you interested in?",
			"What is the purpose of this research?",
		}
	}

	var questions []string
	if utf8.RuneCountInString(trimmed) < minTopicLength {
		questions = append(questions, fmt.Sprintf(
			"Could you provide more context about %q? What specifically would you like to learn?", topic))
	}
	for _, word := range strings.Fields(strings.ToLower(topic)) {
		if _, ok := ambiguousTerms[word]; ok {
			questions = append(questions,
				"Your topic seems vague. Could you be more specific about what you mean?")
			break
		}
	}
	if len(questions) < maxQuestions {
		questions = append(questions,
			"What depth of research do you need? (brief overview / comprehensive analysis)")
	}
	if len(questions) > maxQuestions {
		questions = questions[:maxQuestions]
	}
	return questions
}
