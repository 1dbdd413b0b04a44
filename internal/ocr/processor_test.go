package ocr

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProcessNormalizesConfusables(t *testing.T) {
	p := Process("O1l Login")
	assert.Equal(t, "011 10gin", p.Cleaned)
}

func TestProcessHalfWidthFolding(t *testing.T) {
	p := Process("ＬＯＧＩＮ")
	assert.Equal(t, "10gin", p.Cleaned)
}

func TestSmartContainsExact(t *testing.T) {
	assert.True(t, SmartContains("Welcome to the Login screen", "login"))
}

func TestSmartContainsIgnoresSpacing(t *testing.T) {
	assert.True(t, SmartContains("L o g  in", "login"))
}

func TestSmartContainsWordSubset(t *testing.T) {
	assert.True(t, SmartContains("please confirm your email address", "confirm email"))
}

func TestSmartContainsFuzzy(t *testing.T) {
	assert.True(t, SmartContains("Sgn In", "sign in"))
}

func TestSmartContainsRejectsUnrelated(t *testing.T) {
	assert.False(t, SmartContains("settings menu", "checkout"))
}

func TestSmartContainsEmptyNeedle(t *testing.T) {
	assert.False(t, SmartContains("anything", ""))
}

func TestFuzzyRatioIdentical(t *testing.T) {
	assert.Equal(t, 1.0, FuzzyRatio("abc", "abc"))
}

func TestFuzzyRatioDisjoint(t *testing.T) {
	assert.Equal(t, 0.0, FuzzyRatio("abc", "xyz"))
}

func TestExtractXMLText(t *testing.T) {
	xml := `<node text="Sign in" content-desc="Sign in button" bounds="[0,0][1,1]"/>`
	got := ExtractXMLText(xml)
	assert.Contains(t, got, "Sign in")
	assert.Contains(t, got, "Sign in button")
}
