package server

import (
	"errors"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/transform"
)

// ErrNonASCII is returned when a byte outside the 7-bit range is seen
// while the session is in plain ASCII mode.
var ErrNonASCII = errors.New("non-ASCII byte in ASCII mode")

// textEncoding is the character set negotiated for the session. It
// governs control lines as well as text-type transfers and listings.
type textEncoding int

const (
	encodingASCII textEncoding = iota
	encodingUTF8
)

func (e textEncoding) String() string {
	if e == encodingUTF8 {
		return "UTF-8"
	}
	return "ASCII"
}

// validator returns a pass-through transformer that fails on the first
// byte sequence not valid under e.
func (e textEncoding) validator() transform.Transformer {
	if e == encodingUTF8 {
		return encoding.UTF8Validator
	}
	return asciiValidator{}
}

// validLine reports whether a control line is acceptable under e.
func (e textEncoding) validLine(line string) bool {
	_, _, err := transform.String(e.validator(), line)
	return err == nil
}

// isEncodingError reports whether err came from one of the validators.
func isEncodingError(err error) bool {
	return errors.Is(err, ErrNonASCII) || errors.Is(err, encoding.ErrInvalidUTF8)
}

type asciiValidator struct{ transform.NopResetter }

func (asciiValidator) Transform(dst, src []byte, atEOF bool) (nDst, nSrc int, err error) {
	n := len(src)
	if n > len(dst) {
		n = len(dst)
		err = transform.ErrShortDst
	}
	for i := 0; i < n; i++ {
		if src[i] >= utf8.RuneSelf {
			copy(dst, src[:i])
			return i, i, ErrNonASCII
		}
	}
	copy(dst, src[:n])
	return n, n, err
}

// lfToCRLF produces network line endings for outgoing text. A LF already
// preceded by CR is left alone so CRLF files are not doubled.
type lfToCRLF struct {
	prevCR bool
}

func (t *lfToCRLF) Reset() { t.prevCR = false }

func (t *lfToCRLF) Transform(dst, src []byte, atEOF bool) (nDst, nSrc int, err error) {
	for nSrc < len(src) {
		c := src[nSrc]
		if c == '\n' && !t.prevCR {
			if nDst+2 > len(dst) {
				return nDst, nSrc, transform.ErrShortDst
			}
			dst[nDst] = '\r'
			dst[nDst+1] = '\n'
			nDst += 2
		} else {
			if nDst >= len(dst) {
				return nDst, nSrc, transform.ErrShortDst
			}
			dst[nDst] = c
			nDst++
		}
		t.prevCR = c == '\r'
		nSrc++
	}
	return nDst, nSrc, nil
}

// crlfToLF restores local line endings for incoming text. A lone CR is
// kept as is.
type crlfToLF struct{ transform.NopResetter }

func (crlfToLF) Transform(dst, src []byte, atEOF bool) (nDst, nSrc int, err error) {
	for nSrc < len(src) {
		c := src[nSrc]
		if c == '\r' {
			if nSrc+1 == len(src) && !atEOF {
				return nDst, nSrc, transform.ErrShortSrc
			}
			if nSrc+1 < len(src) && src[nSrc+1] == '\n' {
				nSrc++
				continue
			}
		}
		if nDst >= len(dst) {
			return nDst, nSrc, transform.ErrShortDst
		}
		dst[nDst] = c
		nDst++
		nSrc++
	}
	return nDst, nSrc, nil
}

// outgoingText is applied to file content sent to the client in text mode.
func outgoingText(e textEncoding) transform.Transformer {
	return transform.Chain(e.validator(), &lfToCRLF{})
}

// incomingText is applied to file content received in text mode.
func incomingText(e textEncoding) transform.Transformer {
	return transform.Chain(crlfToLF{}, e.validator())
}
