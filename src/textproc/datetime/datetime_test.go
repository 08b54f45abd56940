package datetime

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSupportsLanguage(t *testing.T) {
	assert.True(t, SupportsLanguage("en"))
	assert.True(t, SupportsLanguage("DE"))
	assert.False(t, SupportsLanguage("fr"))
}

func TestOptimizeUnsupportedLanguageReturnsUnchanged(t *testing.T) {
	assert.Equal(t, "3 15 pm meeting", Optimize("3 15 pm meeting", "fr"))
}

func TestOptimizeGermanTimeRewritesToColonForm(t *testing.T) {
	assert.Equal(t, "treffen um 14:30 Uhr bitte", Optimize("treffen um 14 Uhr 30 bitte", "de"))
}

func TestOptimizeGermanOneUhrFoldsToOne(t *testing.T) {
	assert.Equal(t, "es ist 1 Uhr", Optimize("es ist ein Uhr", "de"))
}

func TestOptimizeGermanDateRewritesToTwoDigitForm(t *testing.T) {
	assert.Equal(t, "am 03.04.2024 treffen", Optimize("am 3. 4. 2024 treffen", "de"))
}

func TestOptimizeGermanDateWithoutYear(t *testing.T) {
	assert.Equal(t, "am 03.04. treffen", Optimize("am 3. 4. treffen", "de"))
}

func TestOptimizeGermanDateRejectsOutOfRangeMonth(t *testing.T) {
	assert.Equal(t, "am 3. 13. treffen", Optimize("am 3. 13. treffen", "de"))
}

func TestOptimizeEnglishTimeRewritesToColonForm(t *testing.T) {
	assert.Equal(t, "meet at 3:15 pm today", Optimize("meet at 3 15 pm today", "en"))
}

func TestOptimizeEnglishOneOclockFolds(t *testing.T) {
	assert.Equal(t, "it is 1 o'clock", Optimize("it is one o'clock", "en"))
}

func TestOptimizeEnglishTimeRejectsInvalidMinutes(t *testing.T) {
	assert.Equal(t, "call at 3 75 pm", Optimize("call at 3 75 pm", "en"))
}
