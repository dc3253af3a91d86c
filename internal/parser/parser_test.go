package parser

import (
	"archive/zip"
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdf-rag/internal/models"
)

func TestExtract_Text(t *testing.T) {
	got, err := Extract("notes.TXT", []byte("  hello world\n\n"))
	require.NoError(t, err)
	assert.Equal(t, "hello world", got)
}

func TestExtract_Markdown(t *testing.T) {
	src := "# Title\n\nSome *emphasis* and a [link](http://x).\n\n- one\n- two\n\n```\ncode line\n```\n"
	got, err := Extract("readme.md", []byte(src))
	require.NoError(t, err)
	assert.Equal(t, "Title\n\nSome emphasis and a link.\n\none\n\ntwo\n\ncode line", got)
}

func TestExtract_Failures(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		data     []byte
	}{
		{"unsupported", "image.png", []byte{0x89, 'P', 'N', 'G'}},
		{"whitespace only", "blank.txt", []byte(" \n\t ")},
		{"malformed pdf", "broken.pdf", []byte("%PDF-1.4 not really")},
		{"not a zip", "deck.pptx", []byte("plain")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Extract(tt.filename, tt.data)
			assert.ErrorIs(t, err, models.ErrExtraction)
		})
	}
}

func TestExtract_PPTXSlidesInOrder(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	slides := map[string]string{
		"ppt/slides/slide10.xml":           `<p:sld><a:p><a:r><a:t>Tenth</a:t></a:r></a:p></p:sld>`,
		"ppt/slides/slide2.xml":            `<p:sld><a:p><a:r><a:t>Second</a:t></a:r></a:p></p:sld>`,
		"ppt/slides/_rels/slide2.xml.rels": `<Relationships/>`,
		"ppt/slides/slide1.xml":            `<p:sld><a:p><a:r><a:t>First</a:t></a:r><a:r><a:t xml:space="preserve"> slide</a:t></a:r></a:p></p:sld>`,
	}
	for name, body := range slides {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())

	got, err := Extract("deck.pptx", buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "First slide\n\nSecond\n\nTenth", got)
}

func TestXMLText_WordRuns(t *testing.T) {
	doc := `<w:document><w:body>` +
		`<w:p><w:r><w:t>Hello</w:t></w:r><w:r><w:t xml:space="preserve"> world</w:t></w:r></w:p>` +
		`<w:p><w:r><w:instrText>ignored</w:instrText><w:t>Next</w:t></w:r></w:p>` +
		`</w:body></w:document>`
	got, err := xmlText(doc)
	require.NoError(t, err)
	assert.Equal(t, "Hello world\nNext", got)
}

func TestSupported(t *testing.T) {
	assert.True(t, Supported("a.PDF"))
	assert.True(t, Supported("b.docx"))
	assert.False(t, Supported("c.exe"))
}
