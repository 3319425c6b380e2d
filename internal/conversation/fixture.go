package conversation

// Default returns the built-in conversation shown before anything is imported.
func Default() *Conversation {
	return &Conversation{
		ID:               "conv-001",
		Title:            "Resetting a forgotten account password",
		Date:             "2025-03-14",
		Duration:         "6m 12s",
		Status:           StatusCompleted,
		UserSatisfaction: SatisfactionPositive,
		Messages: []Message{
			{
				ID:        1,
				Role:      RoleAssistant,
				Content:   "Hi there! I'm the support assistant. How can I help you today?",
				Timestamp: "10:02 AM",
				Sentiment: "friendly",
				StarterPrompts: []string{
					"I forgot my password",
					"How do I update my email?",
					"Talk to a human",
				},
			},
			{
				ID:        2,
				Role:      RoleUser,
				Content:   "I can't log in. I think I forgot my password and the reset email never arrives.",
				Timestamp: "10:03 AM",
				Intent:    "password_reset",
			},
			{
				ID:        3,
				Role:      RoleAssistant,
				Content:   "Sorry about that. Reset emails can land in spam. Could you check your spam folder, and confirm the address you signed up with?",
				Timestamp: "10:03 AM",
				Sentiment: "empathetic",
				StarterPrompts: []string{
					"I checked spam already",
					"I'm not sure which email I used",
				},
			},
			{
				ID:        4,
				Role:      RoleUser,
				Content:   "Found it in spam. The link says it expired though.",
				Timestamp: "10:05 AM",
				Intent:    "expired_link",
			},
			{
				ID:        5,
				Role:      RoleAssistant,
				Content:   "Reset links expire after 30 minutes. I've sent a fresh one just now. Use it within the next half hour and you'll be able to choose a new password.",
				Timestamp: "10:06 AM",
				Sentiment: "helpful",
				StarterPrompts: []string{
					"It worked, thanks!",
					"The new link didn't arrive",
				},
			},
			{
				ID:        6,
				Role:      RoleUser,
				Content:   "That worked, I'm back in. Thanks a lot!",
				Timestamp: "10:08 AM",
				Intent:    "confirmation",
			},
			{
				ID:        7,
				Role:      RoleAssistant,
				Content:   "Great to hear! Anything else I can help you with?",
				Timestamp: "10:08 AM",
				Sentiment: "positive",
				StarterPrompts: []string{
					"No, that's all",
					"How do I enable two-factor authentication?",
				},
			},
		},
	}
}
