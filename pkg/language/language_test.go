package language

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetect(t *testing.T) {
	t.Run("english", func(t *testing.T) {
		sample := "It was a bright cold day in April, and the clocks were striking thirteen. " +
			"Winston Smith, his chin nuzzled into his breast in an effort to escape the vile wind, " +
			"slipped quickly through the glass doors of Victory Mansions."
		code, ok := Detect(sample, DefaultConfidenceThreshold)
		assert.True(t, ok)
		assert.Equal(t, "en", code)
	})

	t.Run("french", func(t *testing.T) {
		sample := "Longtemps, je me suis couché de bonne heure. Parfois, à peine ma bougie éteinte, " +
			"mes yeux se fermaient si vite que je n'avais pas le temps de me dire: je m'endors."
		code, ok := Detect(sample, DefaultConfidenceThreshold)
		assert.True(t, ok)
		assert.Equal(t, "fr", code)
	})

	t.Run("sample too short", func(t *testing.T) {
		_, ok := Detect("short", DefaultConfidenceThreshold)
		assert.False(t, ok)
	})

	t.Run("empty sample", func(t *testing.T) {
		_, ok := Detect("", DefaultConfidenceThreshold)
		assert.False(t, ok)
	})
}
