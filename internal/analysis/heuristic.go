package analysis

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/MikeSquared-Agency/convoscope/internal/conversation"
)

// HeuristicScorer grades a conversation with keyword rules. It needs no
// network and gives the same answer for the same input.
type HeuristicScorer struct{}

func NewHeuristicScorer() *HeuristicScorer { return &HeuristicScorer{} }

func (s *HeuristicScorer) Name() string { return "heuristic" }

var positiveKeywords = []string{
	"thanks", "thank you", "great", "worked", "works now", "perfect", "awesome",
	"helpful", "appreciate", "resolved", "solved", "love", "excellent", "back in",
}

var negativeKeywords = []string{
	"not working", "doesn't work", "didn't work", "still", "frustrat", "angry",
	"useless", "terrible", "worst", "never", "can't", "cannot", "expired",
	"wrong", "annoy", "broken", "error", "failed", "waste",
}

var acknowledgeKeywords = []string{
	"sorry", "thanks", "thank you", "i understand", "got it", "glad", "great to hear",
	"happy to help", "hi ", "hello",
}

var proposeKeywords = []string{
	"?", "you can", "try", "i've sent", "i have sent", "use ", "click", "let me",
	"go to", "open ", "check",
}

var stopwords = map[string]struct{}{
	"about": {}, "after": {}, "again": {}, "also": {}, "been": {}, "could": {},
	"does": {}, "doesn't": {}, "didn't": {}, "from": {}, "have": {}, "help": {},
	"into": {}, "just": {}, "know": {}, "like": {}, "more": {}, "need": {},
	"says": {}, "some": {}, "that": {}, "that's": {}, "there": {}, "they": {},
	"think": {}, "this": {}, "though": {}, "thanks": {}, "very": {}, "want": {},
	"what": {}, "when": {}, "where": {}, "which": {}, "will": {}, "with": {},
	"would": {}, "your": {}, "can't": {}, "i'm": {}, "it's": {}, "lot": {},
	"found": {}, "worked": {}, "back": {}, "never": {}, "still": {},
}

const (
	maxHeuristicTopics  = 5
	maxSuggestedPrompts = 3
	shortReplyChars     = 40
)

// tone counts keyword hits in text. Each keyword counts once.
func tone(text string) (pos, neg int) {
	lower := strings.ToLower(text)
	for _, k := range positiveKeywords {
		if strings.Contains(lower, k) {
			pos++
		}
	}
	for _, k := range negativeKeywords {
		if strings.Contains(lower, k) {
			neg++
		}
	}
	return pos, neg
}

func containsAny(text string, keywords []string) bool {
	lower := strings.ToLower(text)
	for _, k := range keywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

type turnStats struct {
	userTurns      int
	unanswered     []int
	lastUserTone   int
	totalTone      int
	posHits        int
	negHits        int
	assistantChars int
	assistantTurns int
	acknowledged   []int
	proposed       []int
	noNextStep     []int
	afterNegative  []int
}

func collect(conv *conversation.Conversation) turnStats {
	var st turnStats
	prevNegative := false
	for i, m := range conv.Messages {
		switch {
		case m.IsUser():
			st.userTurns++
			pos, neg := tone(m.Content)
			st.posHits += pos
			st.negHits += neg
			st.totalTone += pos - neg
			st.lastUserTone = pos - neg
			prevNegative = pos-neg < 0
			if i == len(conv.Messages)-1 || !conv.Messages[i+1].IsAssistant() {
				st.unanswered = append(st.unanswered, m.ID)
			}
		case m.IsAssistant():
			st.assistantTurns++
			st.assistantChars += len(m.Content)
			if containsAny(m.Content, acknowledgeKeywords) {
				st.acknowledged = append(st.acknowledged, m.ID)
			}
			if containsAny(m.Content, proposeKeywords) {
				st.proposed = append(st.proposed, m.ID)
			} else {
				st.noNextStep = append(st.noNextStep, m.ID)
			}
			if prevNegative {
				st.afterNegative = append(st.afterNegative, m.ID)
			}
			prevNegative = false
		}
	}
	return st
}

func (s *HeuristicScorer) Score(ctx context.Context, conv *conversation.Conversation, opts Options) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	st := collect(conv)

	sat := satisfaction(conv, st)
	eff := effectiveness(conv, st)
	sentiment := overallSentiment(st)
	topics := keyTopics(conv)

	res := &Result{
		Summary:               summarize(conv, st, sentiment, topics),
		UserSatisfactionScore: sat,
		ResponseEffectiveness: eff,
		OverallSentiment:      sentiment,
		ConversationQuality:   QualityFor(sat, eff),
		KeyTopics:             topics,
		SuggestedImprovements: improvements(st),
	}

	if opts.IncludeSuggestions {
		for i, t := range topics {
			if i == maxSuggestedPrompts {
				break
			}
			res.SuggestedPrompts = append(res.SuggestedPrompts, "Tell me more about "+t)
		}
	}
	if opts.DetailedAnalysis {
		res.BotResponseAnalysis = botAnalysis(st)
	}
	return res, nil
}

func satisfaction(conv *conversation.Conversation, st turnStats) int {
	v := 50.0 + 8*float64(st.totalTone) + 12*float64(st.lastUserTone)
	switch conv.UserSatisfaction {
	case conversation.SatisfactionPositive:
		v += 20
	case conversation.SatisfactionNegative:
		v -= 20
	}
	switch conv.Status {
	case conversation.StatusCompleted:
		v += 5
	case conversation.StatusAbandoned:
		v -= 15
	}
	return clampScore(v)
}

func effectiveness(conv *conversation.Conversation, st turnStats) int {
	v := 0.0
	if st.userTurns > 0 {
		answered := st.userTurns - len(st.unanswered)
		v += 70 * float64(answered) / float64(st.userTurns)
	} else if st.assistantTurns > 0 {
		v += 50
	}
	if last := conv.Messages[len(conv.Messages)-1]; last.IsAssistant() || conv.Status == conversation.StatusCompleted {
		v += 20
	}
	if st.assistantTurns > 0 && st.assistantChars/st.assistantTurns >= shortReplyChars {
		v += 10
	}
	if conv.Status == conversation.StatusAbandoned {
		v -= 20
	}
	return clampScore(v)
}

func overallSentiment(st turnStats) string {
	switch {
	case st.posHits > 0 && st.negHits > 0 && st.totalTone >= -1 && st.totalTone <= 1:
		return "mixed"
	case st.totalTone > 0:
		return "positive"
	case st.totalTone < 0:
		return "negative"
	default:
		return "neutral"
	}
}

// keyTopics ranks recorded intents first, then frequent words from user
// turns. Ties keep first-appearance order.
func keyTopics(conv *conversation.Conversation) []string {
	var topics []string
	seen := make(map[string]struct{})
	add := func(t string) {
		if _, ok := seen[t]; ok || t == "" {
			return
		}
		seen[t] = struct{}{}
		topics = append(topics, t)
	}

	for _, m := range conv.Messages {
		if m.Intent != "" {
			add(strings.ReplaceAll(strings.ToLower(m.Intent), "_", " "))
		}
	}

	counts := make(map[string]int)
	var order []string
	for _, m := range conv.Messages {
		if !m.IsUser() {
			continue
		}
		words := strings.FieldsFunc(strings.ToLower(m.Content), func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
		})
		for _, w := range words {
			if len(w) < 4 {
				continue
			}
			if _, stop := stopwords[w]; stop {
				continue
			}
			if counts[w] == 0 {
				order = append(order, w)
			}
			counts[w]++
		}
	}
	sort.SliceStable(order, func(i, j int) bool { return counts[order[i]] > counts[order[j]] })
	for _, w := range order {
		if len(topics) >= maxHeuristicTopics {
			break
		}
		add(w)
	}

	if len(topics) > maxHeuristicTopics {
		topics = topics[:maxHeuristicTopics]
	}
	if len(topics) == 0 {
		topics = []string{"general"}
	}
	return topics
}

func improvements(st turnStats) []string {
	out := []string{}
	if n := len(st.unanswered); n > 0 {
		out = append(out, fmt.Sprintf("Reply to every user message; %d went unanswered.", n))
	}
	if st.assistantTurns > 0 && st.assistantChars/st.assistantTurns < shortReplyChars {
		out = append(out, "Give fuller answers instead of one-line replies.")
	}
	if len(st.noNextStep) > 0 {
		out = append(out, "Close each reply with a concrete next step or question.")
	}
	if st.lastUserTone < 0 {
		out = append(out, "Follow up when the user still sounds frustrated at the end.")
	}
	if len(st.afterNegative) > 0 && len(st.acknowledged) == 0 {
		out = append(out, "Acknowledge the problem before offering a fix.")
	}
	return out
}

func botAnalysis(st turnStats) *BotResponseAnalysis {
	b := &BotResponseAnalysis{
		Strengths:       []Annotation{},
		Weaknesses:      []Annotation{},
		ImprovementTips: []Annotation{},
	}

	// A reply follows ACP when it both acknowledges and proposes.
	both := 0
	ack := make(map[int]bool, len(st.acknowledged))
	for _, id := range st.acknowledged {
		ack[id] = true
	}
	for _, id := range st.proposed {
		if ack[id] {
			both++
		}
	}
	b.FollowsACPFormat = st.assistantTurns > 0 && both*2 > st.assistantTurns

	if len(st.acknowledged) > 0 {
		b.Strengths = append(b.Strengths, Annotation{
			Text:       "Acknowledged the user before answering.",
			MessageIDs: st.acknowledged,
		})
	}
	if len(st.proposed) > 0 {
		b.Strengths = append(b.Strengths, Annotation{
			Text:       "Offered a concrete next step.",
			MessageIDs: st.proposed,
		})
	}
	if len(st.noNextStep) > 0 {
		b.Weaknesses = append(b.Weaknesses, Annotation{
			Text:       "Reply leaves the user without a next step.",
			MessageIDs: st.noNextStep,
		})
		b.ImprovementTips = append(b.ImprovementTips, Annotation{
			Text:       "End replies with a question or a clear action.",
			MessageIDs: st.noNextStep,
		})
	}
	if len(st.unanswered) > 0 {
		b.Weaknesses = append(b.Weaknesses, Annotation{
			Text:       "User message went unanswered.",
			MessageIDs: st.unanswered,
		})
	}
	if len(st.afterNegative) > 0 {
		b.ImprovementTips = append(b.ImprovementTips, Annotation{
			Text:       "Name the user's frustration explicitly in the reply that follows it.",
			MessageIDs: st.afterNegative,
		})
	}
	if len(b.ImprovementTips) == 0 {
		b.ImprovementTips = append(b.ImprovementTips, Annotation{
			Text: "Keep the current reply structure.",
		})
	}
	return b
}

func summarize(conv *conversation.Conversation, st turnStats, sentiment string, topics []string) string {
	title := strings.TrimSpace(conv.Title)
	if title == "" {
		title = "Untitled conversation"
	}
	answered := st.userTurns - len(st.unanswered)
	return fmt.Sprintf("%s: %d messages covering %s. The user's tone was %s and %d of %d user messages got a reply.",
		title, len(conv.Messages), topics[0], sentiment, answered, st.userTurns)
}
