package persona

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegistryLookupFallsBackToDefault(t *testing.T) {
	r := NewDefaultRegistry()

	assert.Equal(t, "Meera", r.Get("meera").Name)
	assert.Equal(t, "Meera", r.Get(" MEERA ").Name)
	assert.Equal(t, DefaultKey, r.Get("").Key)
	assert.Equal(t, DefaultKey, r.Get("nobody").Key)

	assert.True(t, r.Has("kabir"))
	assert.False(t, r.Has("nobody"))
}

func TestListIsACopy(t *testing.T) {
	r := NewDefaultRegistry()
	list := r.List()
	list[0].Name = "changed"
	assert.NotEqual(t, "changed", r.List()[0].Name)
}

func TestBuildSystemPrompt(t *testing.T) {
	p := Persona{Name: "Riya", Style: "warm", Traits: []string{"kind", "funny"}, HindiMix: 0.3}
	prompt := BuildSystemPrompt(p)

	assert.Contains(t, prompt, "You are Riya")
	assert.Contains(t, prompt, "kind, funny")
	assert.Contains(t, prompt, "30% Hindi")

	assert.Contains(t, BuildSystemPrompt(Persona{Name: "X", Style: "s"}), "Reply in English")
	assert.Contains(t, BuildSystemPrompt(Persona{Name: "X", Style: "s", HindiMix: 1}), "Reply in Hindi")
}
