// Package chat answers user messages through an ordered list of generation
// providers. When every provider fails the user still gets a reply: a canned
// message picked from the prompt's keywords.
package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ownlingo/unibot/assistant"
	"github.com/ownlingo/unibot/assistant/fallback"
)

// Provider is one generation backend
type Provider = fallback.Provider[assistant.ChatRequest, assistant.ChatReply]

// EchoLimit is how many runes of the prompt the generic canned reply repeats
const EchoLimit = 100

// Orchestrator runs chat requests through the generation chain
type Orchestrator struct {
	chain *fallback.Chain[assistant.ChatRequest, assistant.ChatReply]
}

// New builds an orchestrator over providers, tried in the given order
func New(providers ...Provider) *Orchestrator {
	chain := fallback.NewChain(assistant.CapabilityChat, providers...).
		WithDegrade(func(req assistant.ChatRequest, _ error) assistant.ChatReply {
			return assistant.ChatReply{Reply: CannedReply(req.Prompt)}
		})
	return &Orchestrator{chain: chain}
}

// Configured reports whether at least one generation provider exists
func (o *Orchestrator) Configured() bool {
	return o.chain.Len() > 0
}

// Send validates req and returns a generated or canned reply. Errors are
// limited to validation, configuration and cancellation.
func (o *Orchestrator) Send(ctx context.Context, req assistant.ChatRequest) (assistant.ChatReply, error) {
	if err := req.Validate(); err != nil {
		return assistant.ChatReply{}, err
	}
	if !o.Configured() {
		return assistant.ChatReply{}, assistant.MissingCredential("GOOGLE_API_KEY")
	}

	start := time.Now()
	res, err := o.chain.Run(ctx, req)
	if err != nil {
		return assistant.ChatReply{}, err
	}

	reply := res.Value
	reply.Provider = res.Provider
	reply.Degraded = res.Degraded
	reply.Reason = res.Reason
	reply.Duration = time.Since(start)
	return reply, nil
}

type cannedRule struct {
	keywords []string
	reply    string
}

// Checked in order; the first rule with a matching keyword wins.
var cannedRules = []cannedRule{
	{
		keywords: []string{"translate", "language"},
		reply:    "🌍 I can help with translation! Use the 'Translate' button above to translate text between languages.",
	},
	{
		keywords: []string{"speak", "voice", "audio"},
		reply:    "🔊 You can use the 'Text-to-Speech' button to hear any text spoken aloud!",
	},
	{
		keywords: []string{"emergency", "help", "urgent"},
		reply:    "🚨 For emergencies, please contact local emergency services. Use the translation and text-to-speech features to communicate your needs clearly.",
	},
	{
		keywords: []string{"legal", "lawyer", "court", "visa", "rights"},
		reply:    "⚖️ For legal questions, please reach out to a local legal aid organization. You can use translation to read forms and documents in your language.",
	},
	{
		keywords: []string{"health", "doctor", "hospital", "medicine", "sick"},
		reply:    "🏥 For health concerns, please contact a local clinic or health worker. Translation and text-to-speech can help you describe your symptoms.",
	},
}

// CannedReply picks the local substitute for prompt
func CannedReply(prompt string) string {
	lower := strings.ToLower(prompt)
	for _, rule := range cannedRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				return rule.reply
			}
		}
	}

	return fmt.Sprintf("🤖 The AI chat service has reached its daily limit, but other features are still available! Try using:\n"+
		"• 🔊 Text-to-Speech to hear text spoken\n"+
		"• 🌍 Translation to convert between languages  \n"+
		"• 🎤 Speech-to-Text to convert voice to text\n"+
		"• 📸 Image-to-Text to extract text from photos\n\n"+
		"Your question: \"%s\"", Truncate(prompt, EchoLimit))
}

// Truncate keeps the first limit runes of s and marks the cut with "..."
func Truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
