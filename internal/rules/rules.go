// ABOUTME: Ordered keyword rule tables for intent, entity, topic and importance decisions
// ABOUTME: All tables use explicit first-match or fixed-order semantics over lowercased text

package rules

import "strings"

// Intent is the classified purpose of a user message.
type Intent string

const (
	IntentGreeting           Intent = "greeting"
	IntentInformationSeeking Intent = "information_seeking"
	IntentMemoryRetrieval    Intent = "memory_retrieval"
	IntentClosing            Intent = "closing"
	IntentGeneralQuery       Intent = "general_query"
)

// intentRule pairs a keyword set with its outcome. Rules are evaluated in
// declaration order; the first rule with any matching keyword wins.
type intentRule struct {
	keywords []string
	intent   Intent
}

// intentRules is ordered by precedence. Ties go to the earliest rule:
// "hello, how are you" classifies as greeting, not information_seeking.
var intentRules = []intentRule{
	{keywords: []string{"hello", "hi", "hey"}, intent: IntentGreeting},
	{keywords: []string{"help", "how", "what", "explain"}, intent: IntentInformationSeeking},
	{keywords: []string{"remember", "recall", "previous"}, intent: IntentMemoryRetrieval},
	{keywords: []string{"thank", "thanks", "bye", "goodbye"}, intent: IntentClosing},
}

// ClassifyIntent maps message text to one of the closed intent set using
// first-match precedence. Matching is substring-based over the lowercased
// text; anything unmatched is a general query.
func ClassifyIntent(text string) Intent {
	lower := strings.ToLower(text)
	for _, rule := range intentRules {
		if containsAny(lower, rule.keywords) {
			return rule.intent
		}
	}
	return IntentGeneralQuery
}

// entityVocabulary is the fixed vocabulary scanned for entity extraction.
// Matches are reported in vocabulary order.
var entityVocabulary = []string{
	"weather", "time", "date", "location", "person", "ai", "technology",
}

// maxEntities caps the extracted entity list.
const maxEntities = 5

// ExtractEntities returns vocabulary entries present in the text, in
// vocabulary order, capped at 5.
func ExtractEntities(text string) []string {
	lower := strings.ToLower(text)
	var entities []string
	for _, entity := range entityVocabulary {
		if strings.Contains(lower, entity) {
			entities = append(entities, entity)
			if len(entities) == maxEntities {
				break
			}
		}
	}
	return entities
}

// topicGroup names a topic and the keywords that trigger it.
type topicGroup struct {
	topic    string
	keywords []string
}

// topicGroups is scanned in declaration order; a topic is included when any
// of its keywords appears in the text.
var topicGroups = []topicGroup{
	{topic: "technology", keywords: []string{"ai", "computer", "software", "tech", "digital"}},
	{topic: "weather", keywords: []string{"weather", "temperature", "rain", "sunny", "cloudy"}},
	{topic: "general", keywords: []string{"help", "question", "information", "explain"}},
	{topic: "personal", keywords: []string{"remember", "preference", "like", "dislike", "favorite"}},
}

// maxTopics caps the extracted topic list.
const maxTopics = 3

// ExtractTopics returns topic group names triggered by the text, in group
// declaration order, capped at 3. Topic evaluation is independent of intent
// classification: a greeting that mentions AI still yields the technology topic.
func ExtractTopics(text string) []string {
	lower := strings.ToLower(text)
	var topics []string
	for _, group := range topicGroups {
		if containsAny(lower, group.keywords) {
			topics = append(topics, group.topic)
			if len(topics) == maxTopics {
				break
			}
		}
	}
	return topics
}

// importanceBracket pairs a predicate with its score bonus. Only the first
// matching bracket applies; brackets are never additive.
type importanceBracket struct {
	matches func(lower string, raw string) bool
	bonus   int
}

var importanceBrackets = []importanceBracket{
	{
		// Critical indicators are checked first and short-circuit the rest.
		matches: func(lower, _ string) bool {
			return containsAny(lower, []string{"important", "remember", "crucial", "critical"})
		},
		bonus: 5,
	},
	{
		matches: func(lower, _ string) bool {
			return containsAny(lower, []string{"prefer", "like", "dislike", "favorite"})
		},
		bonus: 4,
	},
	{
		matches: func(lower, _ string) bool {
			return containsAny(lower, []string{"always", "never", "usually"})
		},
		bonus: 3,
	},
	{
		matches: func(_, raw string) bool { return len(raw) > 100 },
		bonus:   2,
	},
}

// ImportanceScore computes the memory importance of a message: base 1 plus
// the bonus of the first matching bracket, capped at 10. It is a pure
// function of the message text.
func ImportanceScore(text string) int {
	score := 1
	lower := strings.ToLower(text)
	for _, bracket := range importanceBrackets {
		if bracket.matches(lower, text) {
			score += bracket.bonus
			break
		}
	}
	if score > 10 {
		score = 10
	}
	return score
}

// containsAny reports whether any keyword appears as a substring of s.
func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
