package constant

const (
	ChatMessageRoleUser      = "user"
	ChatMessageRoleAssistant = "assistant"
	ChatMessageRoleSystem    = "system"

	ChatFlowStandard   = "standard"
	ChatFlowAssessment = "assessment"

	ChatGreetingStandard = "Hey there! 👋 I'm SocialSync. I'm here to help you find your people. No pressure, just tell me: what's your vibe lately?"

	ChatGreetingAssessment = "Hi! I'm SocialSync AI. To help you find the best events, I need to get to know you a little bit.\n\n" +
		"**Tell me, what kind of activities energize you? Do you prefer large, loud groups or smaller, intimate gatherings?**"

	ChatAssessmentFollowUp = "Got it. And what are your main hobbies? What do you usually like to do on weekends?"

	ChatAssessmentDone = "All set! Based on what you said, I think you fit best as an: **%s**.\n\n" +
		"From now on, you can ask for specific recommendations. You can ask about budget (e.g., 'anything free this weekend') " +
		"or atmosphere (e.g., 'I want a place to meet new people')."

	ChatAssessmentRetry = "Thanks! Give me one more detail: would you rather spend a free evening out with a crowd or somewhere quiet with a few people?"

	ChatMissionComplete = "Mission Complete! Have a great time! 🎉"

	ChatFollowUpFallback = "Here's what I found! What do you think?"

	ChatSearchExhausted = "I've run out of new events matching that vibe! Should we try a different category?"

	ChatAskLocation = "Where would you like to go? A neighborhood or part of town works."
	ChatAskTime     = "When are you free? Tonight, this weekend, a specific day?"
	ChatAskBudget   = "What's your budget? Free, cheap, or are you happy to splurge a bit?"
	ChatAskGeneric  = "Tell me a bit more about what you have in mind."
)
