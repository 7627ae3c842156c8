package style

import (
	"bytes"
	"testing"

	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
)

func TestStyles(t *testing.T) {
	SetColorProfile(termenv.ANSI256)
	t.Cleanup(func() { SetColorProfile(termenv.Ascii) })

	out := Success.Render("Test")
	assert.Contains(t, out, "Test")
	assert.NotEqual(t, "Test", out, "style should add ANSI codes when forced")
	assert.NotEqual(t, "✓", SuccessPrefix)
}

func TestIcon(t *testing.T) {
	SetColorProfile(termenv.ANSI256)
	t.Cleanup(func() { SetColorProfile(termenv.Ascii) })

	out := Icon("X", Error)
	assert.Contains(t, out, "X")
	assert.NotEqual(t, "X", out)
}

func TestInit_NoColor(t *testing.T) {
	Init(&bytes.Buffer{}, true)
	assert.Equal(t, "Test", Success.Render("Test"))
	assert.Equal(t, "✓", SuccessPrefix)
	assert.Equal(t, "B", ForGrade("B").Render("B"))
}

func TestInit_NonTerminal(t *testing.T) {
	t.Setenv("NO_COLOR", "")
	t.Setenv("CLICOLOR_FORCE", "")
	Init(&bytes.Buffer{}, false)
	assert.Equal(t, "On Track", ForTrend("On Track").Render("On Track"))
}
