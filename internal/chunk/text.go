package chunk

import (
	"fmt"
	"unicode/utf8"

	"golang.org/x/text/language"
	"png.adpollak.net/internal/binread"
	"png.adpollak.net/internal/inflate"
	"png.adpollak.net/internal/oops"
)

const maxKeywordLength = 79

// readKeyword consumes a null-terminated keyword of 1-79 bytes.
func readKeyword(cur *binread.Cursor, chunkName string) (string, error) {
	kw, err := cur.NullTerminated()
	if err != nil {
		return "", oops.Format(err, "%s keyword", chunkName)
	}
	if len(kw) == 0 || len(kw) > maxKeywordLength {
		return "", oops.Format(nil, "%s keyword length %d not in 1..%d", chunkName, len(kw), maxKeywordLength)
	}
	return toText(kw, chunkName+" keyword")
}

func toText(b []byte, what string) (string, error) {
	if !utf8.Valid(b) {
		return "", oops.Format(oops.ErrInvalidText, "%s", what)
	}
	return string(b), nil
}

type Text struct {
	Keyword string
	Text    string
}

func (t *Text) String() string {
	return fmt.Sprintf("%s: %s", t.Keyword, t.Text)
}

func DecodeText(c Chunk) (*Text, error) {
	cur := binread.NewCursor(c.Data)
	keyword, err := readKeyword(cur, "tEXt")
	if err != nil {
		return nil, err
	}
	text, err := toText(cur.Rest(), "tEXt text")
	if err != nil {
		return nil, err
	}
	return &Text{Keyword: keyword, Text: text}, nil
}

type CompressedText struct {
	Keyword           string
	CompressionMethod CompressionMethod
	Text              string
}

func (t *CompressedText) String() string {
	return fmt.Sprintf("%s\n----------------------------------\n%s", t.Keyword, t.Text)
}

func DecodeCompressedText(c Chunk) (*CompressedText, error) {
	cur := binread.NewCursor(c.Data)
	keyword, err := readKeyword(cur, "zTXt")
	if err != nil {
		return nil, err
	}
	method, err := readCompressionMethod(cur, "zTXt")
	if err != nil {
		return nil, err
	}
	inflated, err := inflate.Inflate(cur.Rest())
	if err != nil {
		return nil, err
	}
	text, err := toText(inflated, "zTXt text")
	if err != nil {
		return nil, err
	}
	return &CompressedText{Keyword: keyword, CompressionMethod: method, Text: text}, nil
}

func readCompressionMethod(cur *binread.Cursor, chunkName string) (CompressionMethod, error) {
	raw, err := cur.Uint8()
	if err != nil {
		return 0, oops.Format(oops.ErrTruncated, "%s compression method", chunkName)
	}
	return CompressionMethodFromRaw(raw)
}

type InternationalText struct {
	Keyword           string
	Compressed        bool
	CompressionMethod CompressionMethod
	LanguageTag       string // may be empty
	TranslatedKeyword string // may be empty
	Text              string
}

// Language parses LanguageTag as a BCP 47 tag. An empty tag yields
// language.Und.
func (t *InternationalText) Language() (language.Tag, error) {
	if t.LanguageTag == "" {
		return language.Und, nil
	}
	return language.Parse(t.LanguageTag)
}

func DecodeInternationalText(c Chunk) (*InternationalText, error) {
	cur := binread.NewCursor(c.Data)
	keyword, err := readKeyword(cur, "iTXt")
	if err != nil {
		return nil, err
	}

	flag, err := cur.Uint8()
	if err != nil {
		return nil, oops.Format(oops.ErrTruncated, "iTXt compression flag")
	}
	if flag > 1 {
		return nil, oops.Format(oops.ErrUnknownCode, "iTXt compression flag %d", flag)
	}
	// The method byte is present, and must be 0, even when uncompressed.
	method, err := readCompressionMethod(cur, "iTXt")
	if err != nil {
		return nil, err
	}

	lang, err := cur.NullTerminated()
	if err != nil {
		return nil, oops.Format(err, "iTXt language tag")
	}
	translated, err := cur.NullTerminated()
	if err != nil {
		return nil, oops.Format(err, "iTXt translated keyword")
	}

	body := cur.Rest()
	if flag == 1 {
		if body, err = inflate.Inflate(body); err != nil {
			return nil, err
		}
	}

	t := &InternationalText{
		Keyword:           keyword,
		Compressed:        flag == 1,
		CompressionMethod: method,
	}
	if t.LanguageTag, err = toText(lang, "iTXt language tag"); err != nil {
		return nil, err
	}
	if t.TranslatedKeyword, err = toText(translated, "iTXt translated keyword"); err != nil {
		return nil, err
	}
	if t.Text, err = toText(body, "iTXt text"); err != nil {
		return nil, err
	}
	return t, nil
}

type ICCProfile struct {
	Name              string
	CompressionMethod CompressionMethod
	Compressed        []byte
}

// Profile inflates the embedded ICC profile.
func (p *ICCProfile) Profile() ([]byte, error) {
	return inflate.Inflate(p.Compressed)
}

func DecodeICCProfile(c Chunk) (*ICCProfile, error) {
	cur := binread.NewCursor(c.Data)
	name, err := readKeyword(cur, "iCCP")
	if err != nil {
		return nil, err
	}
	method, err := readCompressionMethod(cur, "iCCP")
	if err != nil {
		return nil, err
	}
	return &ICCProfile{
		Name:              name,
		CompressionMethod: method,
		Compressed:        cur.Rest(),
	}, nil
}
