package questionbank

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPlainText(t *testing.T) {
	tests := []struct{ in, want string }{
		{"<p>Hello</p>", "Hello"},
		{"a &lt; b &amp;&amp; c", "a < b && c"},
		{`<span class="math"><math><mi>x</mi></math></span> + 1`, "x + 1"},
		{"line<br>break", "line\nbreak"},
		{"<p>one</p>\n\n<p>two</p>", "one\ntwo"},
		{"", ""},
		{`<p>Solve <math alttext="x > 5"><mi>x</mi><mo>&gt;</mo><mn>5</mn></math> now</p>`, "Solve x>5 now"},
		{`<img alt="a > b" src="f.png"/>after`, "after"},
		{"x < 5<br/>y", "x < 5\ny"},
		{"<ul><li>one</li><li>two</li></ul>", "one\ntwo"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, PlainText(tt.in), "PlainText(%q)", tt.in)
	}
}
