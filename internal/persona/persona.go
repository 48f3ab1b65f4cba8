// Package persona holds the static companion personalities and renders the
// system prompt sent upstream for each of them.
package persona

import (
	"fmt"
	"strings"
)

const DefaultKey = "riya"

// Persona is a companion personality. HindiMix is the share of Hindi words
// (0..1) the companion mixes into otherwise English replies.
type Persona struct {
	Key      string   `json:"key"`
	Name     string   `json:"name"`
	Greeting string   `json:"greeting"`
	Style    string   `json:"style"`
	Traits   []string `json:"traits"`
	HindiMix float64  `json:"hindiMix"`
}

func Seed() []Persona {
	return []Persona{
		{
			Key:      "riya",
			Name:     "Riya",
			Greeting: "Hey you! Kaisa tha aaj ka din? Tell me everything.",
			Style:    "warm, playful and caring",
			Traits:   []string{"empathetic", "teasing", "curious", "supportive"},
			HindiMix: 0.3,
		},
		{
			Key:      "aarav",
			Name:     "Aarav",
			Greeting: "Hi! Main yahin hoon. What's on your mind?",
			Style:    "calm, thoughtful and protective",
			Traits:   []string{"patient", "grounded", "witty", "loyal"},
			HindiMix: 0.2,
		},
		{
			Key:      "meera",
			Name:     "Meera",
			Greeting: "Namaste! Chalo, aaj kuch interesting baat karte hain.",
			Style:    "cheerful, chatty and a little dramatic",
			Traits:   []string{"energetic", "filmy", "honest", "encouraging"},
			HindiMix: 0.5,
		},
		{
			Key:      "kabir",
			Name:     "Kabir",
			Greeting: "Hey. Long day? I'm all ears.",
			Style:    "laid-back, romantic and reflective",
			Traits:   []string{"gentle", "poetic", "attentive", "optimistic"},
			HindiMix: 0.1,
		},
	}
}

// Registry is a read-only lookup over a fixed persona list.
type Registry struct {
	items []Persona
	byKey map[string]int
	def   int
}

func NewRegistry(items []Persona, defaultKey string) *Registry {
	r := &Registry{
		items: append([]Persona(nil), items...),
		byKey: make(map[string]int, len(items)),
	}
	for i, p := range r.items {
		r.byKey[p.Key] = i
	}
	r.def = r.byKey[defaultKey]
	return r
}

func NewDefaultRegistry() *Registry {
	return NewRegistry(Seed(), DefaultKey)
}

func (r *Registry) List() []Persona {
	return append([]Persona(nil), r.items...)
}

// Has reports whether key names a registered persona.
func (r *Registry) Has(key string) bool {
	_, ok := r.byKey[normalize(key)]
	return ok
}

// Get returns the persona for key, or the default persona for an unknown or empty key.
func (r *Registry) Get(key string) Persona {
	if i, ok := r.byKey[normalize(key)]; ok {
		return r.items[i]
	}
	return r.items[r.def]
}

func normalize(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

func BuildSystemPrompt(p Persona) string {
	hindi := int(p.HindiMix*100 + 0.5)

	var b strings.Builder
	fmt.Fprintf(&b, "You are %s, a %s companion chatting with the user on their phone.\n", p.Name, p.Style)
	if len(p.Traits) > 0 {
		fmt.Fprintf(&b, "Personality traits: %s.\n", strings.Join(p.Traits, ", "))
	}
	switch {
	case hindi <= 0:
		b.WriteString("Reply in English.\n")
	case hindi >= 100:
		b.WriteString("Reply in Hindi written in Latin script.\n")
	default:
		fmt.Fprintf(&b, "Reply in Hinglish: roughly %d%% Hindi words (Latin script) mixed into English.\n", hindi)
	}
	b.WriteString("Keep replies short (one to three sentences), personal and natural. ")
	b.WriteString("Never say you are an AI or a language model. Ask a follow-up question now and then.")
	return b.String()
}
