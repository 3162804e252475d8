package extractor

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"unicode/utf16"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"golang.org/x/text/encoding/charmap"
)

// PageCount returns the number of pages in the PDF at filePath.
func PageCount(filePath string) (int, error) {
	n, err := api.PageCountFile(filePath)
	if err != nil {
		return 0, fmt.Errorf("count pages: %w", err)
	}
	return n, nil
}

// extractWithPdfcpu reads every page content stream through pdfcpu and
// decodes the text showing operators. It handles files whose font tables
// trip up ledongthuc/pdf.
func extractWithPdfcpu(filePath string) (pages []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdfcpu crashed: %v", r)
		}
	}()

	f, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	ctx, err := api.ReadValidateAndOptimize(f, conf)
	if err != nil {
		return nil, fmt.Errorf("pdfcpu read: %w", err)
	}

	for pageNr := 1; pageNr <= ctx.PageCount; pageNr++ {
		r, err := pdfcpu.ExtractPageContent(ctx, pageNr)
		if err != nil || r == nil {
			continue
		}
		data, err := io.ReadAll(r)
		if err != nil {
			continue
		}
		if text := decodeContentStream(data); text != "" {
			pages = append(pages, text)
		}
	}

	if len(pages) == 0 {
		return nil, fmt.Errorf("no text operators found in %d pages", ctx.PageCount)
	}
	return pages, nil
}

// contentToken is one lexical item of a content stream.
type contentToken struct {
	kind  tokenKind
	text  string
	num   float64
	array []contentToken
}

type tokenKind int

const (
	tokOperator tokenKind = iota
	tokString
	tokNumber
	tokArray
	tokOther
)

// decodeContentStream turns the text operators of a page content stream
// into lines of plain text. Line breaks follow the positioning operators.
func decodeContentStream(data []byte) string {
	var (
		lines    []string
		line     strings.Builder
		operands []contentToken
	)

	newLine := func() {
		if s := strings.TrimSpace(line.String()); s != "" {
			lines = append(lines, s)
		}
		line.Reset()
	}

	lx := &contentLexer{data: data}
	for {
		tok, ok := lx.next()
		if !ok {
			break
		}
		if tok.kind != tokOperator {
			operands = append(operands, tok)
			continue
		}

		switch tok.text {
		case "Tj":
			if s, ok := lastString(operands); ok {
				line.WriteString(s)
			}
		case "'", "\"":
			newLine()
			if s, ok := lastString(operands); ok {
				line.WriteString(s)
			}
		case "TJ":
			if len(operands) > 0 && operands[len(operands)-1].kind == tokArray {
				line.WriteString(joinTJ(operands[len(operands)-1].array))
			}
		case "Td", "TD":
			if len(operands) >= 2 && operands[len(operands)-1].num != 0 {
				newLine()
			} else if line.Len() > 0 {
				line.WriteByte(' ')
			}
		case "T*", "Tm", "ET":
			newLine()
		}
		operands = operands[:0]
	}
	newLine()

	return strings.Join(lines, "\n")
}

func lastString(operands []contentToken) (string, bool) {
	if len(operands) == 0 || operands[len(operands)-1].kind != tokString {
		return "", false
	}
	return operands[len(operands)-1].text, true
}

// joinTJ concatenates the strings of a TJ array. Large negative kerning
// values mark word gaps.
func joinTJ(items []contentToken) string {
	var b strings.Builder
	for _, it := range items {
		switch it.kind {
		case tokString:
			b.WriteString(it.text)
		case tokNumber:
			if it.num < -200 {
				b.WriteByte(' ')
			}
		}
	}
	return b.String()
}

type contentLexer struct {
	data []byte
	pos  int
}

func (lx *contentLexer) next() (contentToken, bool) {
	lx.skipSpace()
	if lx.pos >= len(lx.data) {
		return contentToken{}, false
	}

	c := lx.data[lx.pos]
	switch {
	case c == '(':
		return contentToken{kind: tokString, text: decodeTextBytes(lx.literal())}, true
	case c == '<' && lx.peek(1) == '<':
		lx.pos += 2
		return contentToken{kind: tokOther, text: "<<"}, true
	case c == '>' && lx.peek(1) == '>':
		lx.pos += 2
		return contentToken{kind: tokOther, text: ">>"}, true
	case c == '<':
		return contentToken{kind: tokString, text: decodeHexBytes(lx.hex())}, true
	case c == '[':
		lx.pos++
		var items []contentToken
		for {
			lx.skipSpace()
			if lx.pos >= len(lx.data) {
				break
			}
			if lx.data[lx.pos] == ']' {
				lx.pos++
				break
			}
			it, ok := lx.next()
			if !ok {
				break
			}
			items = append(items, it)
		}
		return contentToken{kind: tokArray, array: items}, true
	case c == '/':
		start := lx.pos
		lx.pos++
		lx.word()
		return contentToken{kind: tokOther, text: string(lx.data[start:lx.pos])}, true
	case c == '-' || c == '+' || c == '.' || (c >= '0' && c <= '9'):
		w := lx.word()
		if n, err := strconv.ParseFloat(w, 64); err == nil {
			return contentToken{kind: tokNumber, num: n, text: w}, true
		}
		return contentToken{kind: tokOther, text: w}, true
	case isDelimiter(c):
		lx.pos++
		return contentToken{kind: tokOther, text: string(c)}, true
	default:
		return contentToken{kind: tokOperator, text: lx.word()}, true
	}
}

func (lx *contentLexer) peek(off int) byte {
	if lx.pos+off < len(lx.data) {
		return lx.data[lx.pos+off]
	}
	return 0
}

func (lx *contentLexer) skipSpace() {
	for lx.pos < len(lx.data) {
		c := lx.data[lx.pos]
		if c == '%' {
			for lx.pos < len(lx.data) && lx.data[lx.pos] != '\n' && lx.data[lx.pos] != '\r' {
				lx.pos++
			}
			continue
		}
		if !isSpace(c) {
			return
		}
		lx.pos++
	}
}

func (lx *contentLexer) word() string {
	start := lx.pos
	for lx.pos < len(lx.data) && !isSpace(lx.data[lx.pos]) && !isDelimiter(lx.data[lx.pos]) {
		lx.pos++
	}
	if lx.pos == start && lx.pos < len(lx.data) {
		lx.pos++
	}
	return string(lx.data[start:lx.pos])
}

// literal reads a (...) string with nested parentheses and escapes.
func (lx *contentLexer) literal() []byte {
	lx.pos++
	var buf bytes.Buffer
	depth := 1
	for lx.pos < len(lx.data) {
		c := lx.data[lx.pos]
		lx.pos++
		switch c {
		case '\\':
			lx.escape(&buf)
		case '(':
			depth++
			buf.WriteByte(c)
		case ')':
			depth--
			if depth == 0 {
				return buf.Bytes()
			}
			buf.WriteByte(c)
		default:
			buf.WriteByte(c)
		}
	}
	return buf.Bytes()
}

func (lx *contentLexer) escape(buf *bytes.Buffer) {
	if lx.pos >= len(lx.data) {
		return
	}
	c := lx.data[lx.pos]
	lx.pos++
	switch c {
	case 'n':
		buf.WriteByte('\n')
	case 'r':
		buf.WriteByte('\r')
	case 't':
		buf.WriteByte('\t')
	case 'b':
		buf.WriteByte('\b')
	case 'f':
		buf.WriteByte('\f')
	case '\r', '\n':
		// line continuation
		if c == '\r' && lx.pos < len(lx.data) && lx.data[lx.pos] == '\n' {
			lx.pos++
		}
	default:
		if c < '0' || c > '7' {
			buf.WriteByte(c)
			return
		}
		val := int(c - '0')
		for i := 0; i < 2 && lx.pos < len(lx.data); i++ {
			d := lx.data[lx.pos]
			if d < '0' || d > '7' {
				break
			}
			val = val*8 + int(d-'0')
			lx.pos++
		}
		buf.WriteByte(byte(val))
	}
}

// hex reads a <...> string.
func (lx *contentLexer) hex() []byte {
	lx.pos++
	var digits []byte
	for lx.pos < len(lx.data) && lx.data[lx.pos] != '>' {
		if c := lx.data[lx.pos]; !isSpace(c) {
			digits = append(digits, c)
		}
		lx.pos++
	}
	lx.pos++
	if len(digits)%2 == 1 {
		digits = append(digits, '0')
	}
	out := make([]byte, 0, len(digits)/2)
	for i := 0; i < len(digits); i += 2 {
		v, err := strconv.ParseUint(string(digits[i:i+2]), 16, 8)
		if err != nil {
			return out
		}
		out = append(out, byte(v))
	}
	return out
}

// decodeTextBytes maps single-byte string content through WinAnsiEncoding,
// the encoding Brazilian bank statements use for their standard fonts.
func decodeTextBytes(b []byte) string {
	s, err := charmap.Windows1252.NewDecoder().Bytes(b)
	if err != nil {
		return string(b)
	}
	return string(s)
}

// decodeHexBytes treats hex strings with a UTF-16BE byte order mark or a
// leading zero byte as two-byte text.
func decodeHexBytes(b []byte) string {
	if len(b) >= 2 && len(b)%2 == 0 && (b[0] == 0 || (b[0] == 0xFE && b[1] == 0xFF)) {
		if b[0] == 0xFE {
			b = b[2:]
		}
		u := make([]uint16, 0, len(b)/2)
		for i := 0; i+1 < len(b); i += 2 {
			u = append(u, uint16(b[i])<<8|uint16(b[i+1]))
		}
		return string(utf16.Decode(u))
	}
	return decodeTextBytes(b)
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\n' || c == '\r' || c == '\t' || c == '\f' || c == 0
}

func isDelimiter(c byte) bool {
	return strings.IndexByte("()<>[]{}/%", c) >= 0
}
