package prompt

import (
	"fmt"
	"strings"

	"socialsync-be/pkg/rag/protocol"
	"socialsync-be/pkg/store"
)

// SystemPrompt is the operating instruction every new session starts with.
func SystemPrompt() string {
	var prompt strings.Builder

	prompt.WriteString("<role>\n")
	prompt.WriteString("You are SocialSync, a warm and upbeat assistant that helps people find local events where they can meet others.\n")
	prompt.WriteString("Keep answers short: two or three sentences, one question at a time.\n")
	prompt.WriteString("</role>\n\n")

	writeProtocol(&prompt)

	prompt.WriteString("<rules>\n")
	prompt.WriteString("1. Never invent events. Events only come from the search.\n")
	prompt.WriteString("2. Before searching, learn WHERE (area), WHEN (day or time) and the BUDGET.\n")
	prompt.WriteString("3. If the user says they do not mind (\"surprise me\", \"anything\"), search right away.\n")
	prompt.WriteString("4. If the user asks for more or other options, search again with the same vibe.\n")
	prompt.WriteString("5. Once the user picks an event or says goodbye, conclude.\n")
	prompt.WriteString("</rules>")

	return prompt.String()
}

func writeProtocol(prompt *strings.Builder) {
	prompt.WriteString("<commands>\n")
	prompt.WriteString("You control the app with two commands. Each command goes on its own line.\n")
	prompt.WriteString(fmt.Sprintf("- To search, write: %s: <short search query>\n", protocol.SearchMarker))
	prompt.WriteString(fmt.Sprintf("- To finish the conversation, write: %s\n", protocol.ConcludeMarker))
	prompt.WriteString("Never write both commands in the same reply. The user never sees the command lines.\n")
	prompt.WriteString("</commands>\n\n")
}

// SteeringInstruction is appended for one generation only and never stored.
func SteeringInstruction(missing []protocol.Slot) string {
	var prompt strings.Builder

	prompt.WriteString("<checklist>\n")
	if len(missing) == 0 {
		prompt.WriteString("Location, time and budget are all known. You may search now.\n")
	} else {
		names := make([]string, len(missing))
		for i, s := range missing {
			names[i] = strings.ToUpper(string(s))
		}
		prompt.WriteString(fmt.Sprintf("Still unknown: %s.\n", strings.Join(names, ", ")))
		prompt.WriteString(fmt.Sprintf("Ask about %s next, in one friendly question. Do not search yet.\n", names[0]))
	}
	prompt.WriteString("Priority: a request for more options always means search. ")
	prompt.WriteString("If the user does not care about a detail, treat it as known.\n")
	prompt.WriteString("</checklist>")

	return prompt.String()
}

// FollowUpNote tells the model what was just shown so it can ask for a reaction.
func FollowUpNote(count int, firstPage bool) string {
	if firstPage {
		return fmt.Sprintf("SYSTEM: You just showed the first %d options. Briefly ask for thoughts.", count)
	}
	return fmt.Sprintf("SYSTEM: You just showed %d MORE events. Briefly ask if these are better.", count)
}

// SearchExecuted is the assistant bookkeeping turn recorded after a search.
func SearchExecuted(query string) string {
	return "SEARCH_EXECUTED: " + query
}

// IsBookkeeping reports turns written by the orchestrator rather than said to the user.
func IsBookkeeping(t store.Turn) bool {
	return t.Role == store.RoleSystem ||
		(t.Role == store.RoleAssistant && strings.HasPrefix(t.Content, "SEARCH_EXECUTED"))
}

// Label is one classification target with a short description for the model.
type Label struct {
	Name        string
	Description string
}

// ClassifierPrompt asks for a single label in JSON.
func ClassifierPrompt(transcript string, labels []Label) string {
	var prompt strings.Builder

	prompt.WriteString("<task>\n")
	prompt.WriteString("Read the conversation and decide which social type fits the user best.\n")
	prompt.WriteString("</task>\n\n")

	prompt.WriteString("<types>\n")
	for _, l := range labels {
		prompt.WriteString(fmt.Sprintf("- %s: %s\n", l.Name, l.Description))
	}
	prompt.WriteString("</types>\n\n")

	prompt.WriteString("<conversation>\n")
	prompt.WriteString(transcript)
	prompt.WriteString("\n</conversation>\n\n")

	prompt.WriteString("<output>\n")
	prompt.WriteString("Answer with JSON only, e.g. {\"tribe\": \"<type>\", \"reason\": \"<one sentence>\"}\n")
	prompt.WriteString("</output>")

	return prompt.String()
}

// Transcript renders the non-system turns as "role: content" lines.
func Transcript(turns []store.Turn) string {
	var b strings.Builder
	for _, t := range turns {
		if t.Role == store.RoleSystem {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(t.Role)
		b.WriteString(": ")
		b.WriteString(t.Content)
	}
	return b.String()
}
