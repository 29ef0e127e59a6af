package response

import (
	"fmt"

	"socialsync-be/internal/constant"
	"socialsync-be/pkg/rag/protocol"
)

// Greeting is the first assistant line for a flow.
func Greeting(flow string) string {
	if flow == constant.ChatFlowAssessment {
		return constant.ChatGreetingAssessment
	}
	return constant.ChatGreetingStandard
}

func Completion() string {
	return constant.ChatMissionComplete
}

func Exhausted() string {
	return constant.ChatSearchExhausted
}

func AssessmentFollowUp() string {
	return constant.ChatAssessmentFollowUp
}

// AssessmentDone announces the tribe and switches the user to recommendations.
func AssessmentDone(tribe string) string {
	return fmt.Sprintf(constant.ChatAssessmentDone, tribe)
}

// AssessmentRetry holds the conversation while classification is retried.
func AssessmentRetry() string {
	return constant.ChatAssessmentRetry
}

// ClarifyingQuestion is the fixed question for a missing slot.
func ClarifyingQuestion(slot protocol.Slot) string {
	switch slot {
	case protocol.SlotLocation:
		return constant.ChatAskLocation
	case protocol.SlotTime:
		return constant.ChatAskTime
	case protocol.SlotBudget:
		return constant.ChatAskBudget
	default:
		return constant.ChatAskGeneric
	}
}

// FollowUpFallback replaces a follow-up generation that was nothing but commands.
func FollowUpFallback() string {
	return constant.ChatFollowUpFallback
}
