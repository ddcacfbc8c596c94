package textgen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStripFences(t *testing.T) {
	assert.Equal(t, `[1,2]`, stripFences("```json\n[1,2]\n```"))
	assert.Equal(t, `[1,2]`, stripFences("```\n[1,2]```"))
	assert.Equal(t, `{"a":1}`, stripFences(`  {"a":1} `))
}

func TestParseCharactersDropsIncompleteEntries(t *testing.T) {
	out, err := parseCharacters("```json\n" + `[
		{"name":"Mara","description":"tall, red coat"},
		{"name":"","description":"nobody"},
		{"name":"Ghost","description":"   "}
	]` + "\n```")
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "Mara", out[0].Name)
}

func TestParseScenesRejectsEmpty(t *testing.T) {
	_, err := parseScenes("[]")
	require.Error(t, err)

	out, err := parseScenes(`[{"scene":1,"duration_seconds":12,"summary":"opening"}]`)
	require.NoError(t, err)
	assert.Equal(t, 12, out[0].DurationSeconds)
}

func TestParsePanelsNumbersAcrossScenes(t *testing.T) {
	out, err := parsePanels(`[
		{"scene":1,"frames":[{"second":0,"description":"a","characters":["Mara"]},{"second":5,"description":"b"}]},
		{"scene":2,"frames":[{"second":0,"description":"c","characters":[]}]}
	]`)
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, []int{1, 2, 3}, []int{out[0].PanelNumber, out[1].PanelNumber, out[2].PanelNumber})
	assert.Equal(t, 2, out[2].Scene)
	assert.Equal(t, 5, out[1].Second)
	assert.NotNil(t, out[1].Characters)
	assert.Empty(t, out[1].Characters)

	_, err = parsePanels(`[{"scene":1,"frames":[]}]`)
	require.Error(t, err)
}

func TestParseTransitionsPadsShortAnswers(t *testing.T) {
	transitions := []Transition{{FromSeq: 1, ToSeq: 2}, {FromSeq: 2, ToSeq: 3}, {FromSeq: 3, ToSeq: 4}}
	out, err := parseTransitions(`["Camera pushes in", ""]`, transitions)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"Camera pushes in",
		"Smooth cinematic transition from frame 2 to frame 3",
		"Smooth cinematic transition from frame 3 to frame 4",
	}, out)

	out, err = parseTransitions(`["a","b","c","d"]`, transitions[:2])
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, out)
}

func TestParseRejectsMalformedJSON(t *testing.T) {
	_, err := parseCharacters("not json")
	require.Error(t, err)
}
