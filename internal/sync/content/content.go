package content

import "bytes"

// sniffLen matches the window git uses when deciding whether a blob is binary.
const sniffLen = 8000

var (
	crlf = []byte("\r\n")
	cr   = []byte("\r")
	lf   = []byte("\n")
)

// Normalize rewrites CRLF and lone CR line endings to LF.
// Binary content is returned unchanged.
func Normalize(data []byte) []byte {
	if bytes.IndexByte(data, '\r') < 0 || IsBinary(data) {
		return data
	}
	out := bytes.ReplaceAll(data, crlf, lf)
	return bytes.ReplaceAll(out, cr, lf)
}

// Equal reports whether a and b are identical after normalization.
func Equal(a, b []byte) bool {
	if bytes.Equal(a, b) {
		return true
	}
	return bytes.Equal(Normalize(a), Normalize(b))
}

func IsBinary(data []byte) bool {
	if len(data) > sniffLen {
		data = data[:sniffLen]
	}
	return bytes.IndexByte(data, 0) >= 0
}
