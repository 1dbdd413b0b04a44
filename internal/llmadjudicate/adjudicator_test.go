package llmadjudicate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smilemakc/avtrace/internal/retry"
)

func TestParseVerdictStrictJSON(t *testing.T) {
	v, err := parseVerdict(`{"result":"yes","reason":"cart icon visible"}`)
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.True(t, *v)
}

func TestParseVerdictJSONEmbeddedInProse(t *testing.T) {
	v, err := parseVerdict("Sure, here you go: {\"result\": \"no\", \"reason\": \"not visible\"} thanks!")
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.False(t, *v)
}

func TestParseVerdictBareWordFallback(t *testing.T) {
	v, err := parseVerdict(`the result: yes, it's there`)
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.True(t, *v)
}

func TestParseVerdictInconclusive(t *testing.T) {
	v, err := parseVerdict("I cannot determine this.")
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestParseVerdictUnexpectedValueIsTerminal(t *testing.T) {
	_, err := parseVerdict(`{"result":"maybe","reason":"unsure"}`)
	require.Error(t, err)
	var terminal *retry.Terminal
	require.ErrorAs(t, err, &terminal)
}
