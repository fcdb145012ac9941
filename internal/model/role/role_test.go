package role

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCatalog(t *testing.T) {
	roles, err := Parse([]byte(`
roles:
  - id: sre
    title: Site Reliability Engineer
    subtitle: Incidents & Capacity
    difficulty: Hard
    voice_id: en_male_glen_emo_v2_mars_bigtts
  - id: designer
    title: Product Designer
`))
	require.NoError(t, err)
	require.Len(t, roles, 2)
	assert.Equal(t, "en_male_glen_emo_v2_mars_bigtts", roles[0].VoiceID)
	assert.Equal(t, "Product Designer", roles[1].Title)
}

func TestParseCatalogRejectsBadEntries(t *testing.T) {
	_, err := Parse([]byte("roles:\n  - id: x\n"))
	assert.Error(t, err)

	_, err = Parse([]byte("roles:\n  - {id: a, title: A}\n  - {id: a, title: B}\n"))
	assert.ErrorContains(t, err, "duplicate")
}

func TestMemoryStoreLookup(t *testing.T) {
	store := NewMemoryStore(Seed())

	got, ok := store.FindByTitle("software engineer")
	require.True(t, ok)
	assert.Equal(t, "software-engineer", got.ID)

	_, ok = store.FindByID("astronaut")
	assert.False(t, ok)
	assert.Len(t, store.List(), 3)
}
