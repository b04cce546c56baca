package ingest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

const samplePage = `<!DOCTYPE html>
<html>
<head>
  <title>Prenatal Nutrition Guide</title>
  <script>var tracking = "noise";</script>
  <style>body { color: red; }</style>
</head>
<body>
  <nav><a href="/">Home</a><a href="/about">About</a></nav>
  <h1>Nutrition During Pregnancy</h1>
  <p>Folate is important in the first trimester.</p>
  <p>Iron   needs
     increase later on.</p>
  <footer>Copyright 2024</footer>
</body>
</html>`

func TestExtractHTMLText(t *testing.T) {
	title, text := extractHTMLText(strings.NewReader(samplePage))

	assert.Equal(t, "Prenatal Nutrition Guide", title)
	assert.Contains(t, text, "Nutrition During Pregnancy")
	assert.Contains(t, text, "Folate is important in the first trimester.")
	assert.Contains(t, text, "Iron needs", "runs of spaces should collapse")
	assert.Contains(t, text, "increase later on.")

	assert.NotContains(t, text, "tracking", "script content must be dropped")
	assert.NotContains(t, text, "color: red", "style content must be dropped")
	assert.NotContains(t, text, "Home", "nav content must be dropped")
	assert.NotContains(t, text, "Copyright", "footer content must be dropped")
}

func TestExtractHTMLTextParagraphBreaks(t *testing.T) {
	_, text := extractHTMLText(strings.NewReader(
		"<body><p>first block</p><p>second block</p></body>"))

	parts := strings.Split(text, "\n")
	assert.Contains(t, parts, "first block")
	assert.Contains(t, parts, "second block")
}

func TestExtractHTMLTextMalformed(t *testing.T) {
	_, text := extractHTMLText(strings.NewReader("<p>unclosed paragraph <b>bold"))
	assert.Contains(t, text, "unclosed paragraph")
	assert.Contains(t, text, "bold")
}

func TestExtractHTMLTextEmpty(t *testing.T) {
	title, text := extractHTMLText(strings.NewReader(""))
	assert.Empty(t, title)
	assert.Empty(t, text)
}
