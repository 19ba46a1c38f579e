package docs

import (
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	domainerrors "wrapgen/internal/core/errors"
)

// Source supplies documentation keyed by fully-qualified C++ name. params,
// when given, selects among overloads by parameter type spelling.
type Source interface {
	Lookup(symbol string, params ...string) (string, bool)
}

// Map is an in-memory Source keyed by qualified name. Overloads are not
// distinguished.
type Map map[string]string

func (m Map) Lookup(symbol string, _ ...string) (string, bool) {
	doc, ok := m[symbol]
	return doc, ok
}

// None is a Source with no entries.
var None Source = Map(nil)

type xmlIndex struct {
	XMLName   xml.Name          `xml:"doxygenindex"`
	Compounds []*xmlCompoundRef `xml:"compound"`
}

type xmlCompoundRef struct {
	RefID string `xml:"refid,attr"`
	Kind  string `xml:"kind,attr"`
	Name  string `xml:"name"`
}

type xmlDoxygen struct {
	XMLName   xml.Name          `xml:"doxygen"`
	Compounds []*xmlCompoundDef `xml:"compounddef"`
}

type xmlCompoundDef struct {
	ID       string           `xml:"id,attr"`
	Kind     string           `xml:"kind,attr"`
	Name     string           `xml:"compoundname"`
	Brief    xmlDescription   `xml:"briefdescription"`
	Detailed xmlDescription   `xml:"detaileddescription"`
	Sections []*xmlSectionDef `xml:"sectiondef"`
}

type xmlSectionDef struct {
	Kind    string          `xml:"kind,attr"`
	Members []*xmlMemberDef `xml:"memberdef"`
}

type xmlMemberDef struct {
	Kind     string         `xml:"kind,attr"`
	Name     string         `xml:"name"`
	Params   []xmlParam     `xml:"param"`
	Brief    xmlDescription `xml:"briefdescription"`
	Detailed xmlDescription `xml:"detaileddescription"`
}

type xmlParam struct {
	Type xmlDescription `xml:"type"`
}

// xmlDescription keeps the raw mixed content of a description element.
type xmlDescription struct {
	Inner string `xml:",innerxml"`
}

// compoundKinds are the index entries whose files can hold documentation
// for bound symbols.
var compoundKinds = map[string]bool{
	"class":     true,
	"struct":    true,
	"namespace": true,
	"union":     true,
}

type entry struct {
	params []string
	doc    string
}

// Index is a Source backed by a Doxygen XML output directory.
type Index struct {
	dir     string
	entries map[string][]entry
}

// Load reads index.xml in dir and every class, struct and namespace
// compound it lists.
func Load(dir string) (*Index, error) {
	indexPath := filepath.Join(dir, "index.xml")
	f, err := os.Open(indexPath)
	if err != nil {
		if os.IsNotExist(err) {
			e := domainerrors.New(domainerrors.CodeNotFound, "doxygen index.xml not found")
			return nil, domainerrors.AddContext(e, domainerrors.CtxPath, indexPath)
		}
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "open doxygen index")
	}
	defer f.Close()

	var idx xmlIndex
	if err := decode(f, &idx); err != nil {
		return nil, domainerrors.AddContext(
			domainerrors.Wrap(err, domainerrors.CodeValidationError, "malformed doxygen index"),
			domainerrors.CtxPath, indexPath)
	}

	out := &Index{dir: dir, entries: make(map[string][]entry)}
	loaded := 0
	for _, ref := range idx.Compounds {
		if !compoundKinds[ref.Kind] || ref.RefID == "" {
			continue
		}
		if err := out.loadCompound(ref.RefID); err != nil {
			return nil, err
		}
		loaded++
	}
	slog.Debug("loaded doxygen documentation", "dir", dir, "compounds", loaded, "symbols", len(out.entries))
	return out, nil
}

func (x *Index) loadCompound(refID string) error {
	path := filepath.Join(x.dir, refID+".xml")
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Doxygen sometimes lists compounds it did not write.
			slog.Debug("doxygen compound file missing", "path", path)
			return nil
		}
		return domainerrors.Wrap(err, domainerrors.CodeInternal, "open doxygen compound")
	}
	defer f.Close()

	var doc xmlDoxygen
	if err := decode(f, &doc); err != nil {
		return domainerrors.AddContext(
			domainerrors.Wrap(err, domainerrors.CodeValidationError, "malformed doxygen compound"),
			domainerrors.CtxPath, path)
	}
	for _, c := range doc.Compounds {
		x.add(c.Name, nil, describe(c.Brief, c.Detailed))
		for _, s := range c.Sections {
			for _, m := range s.Members {
				params := make([]string, len(m.Params))
				for i, p := range m.Params {
					params[i] = normalizeType(flatten(p.Type.Inner))
				}
				x.add(c.Name+"::"+m.Name, params, describe(m.Brief, m.Detailed))
			}
		}
	}
	return nil
}

func (x *Index) add(symbol string, params []string, doc string) {
	x.entries[symbol] = append(x.entries[symbol], entry{params: params, doc: doc})
}

// Lookup returns the documentation for symbol. With params, the overload
// whose parameter types match is preferred; otherwise the first entry wins.
func (x *Index) Lookup(symbol string, params ...string) (string, bool) {
	entries, ok := x.entries[symbol]
	if !ok || len(entries) == 0 {
		return "", false
	}
	if len(params) > 0 || len(entries) > 1 {
		want := make([]string, len(params))
		for i, p := range params {
			want[i] = normalizeType(p)
		}
		for _, e := range entries {
			if equalTypes(e.params, want) {
				return e.doc, true
			}
		}
	}
	return entries[0].doc, true
}

func (x *Index) Len() int { return len(x.entries) }

func decode(r io.Reader, v any) error {
	dec := xml.NewDecoder(r)
	// Doxygen declares UTF-8; anything else is passed through unchanged.
	dec.CharsetReader = func(_ string, in io.Reader) (io.Reader, error) { return in, nil }
	return dec.Decode(v)
}

func describe(brief, detailed xmlDescription) string {
	parts := make([]string, 0, 2)
	for _, d := range []xmlDescription{brief, detailed} {
		if text := flatten(d.Inner); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n\n")
}

// flatten extracts the text of a Doxygen description fragment. Paragraphs
// are separated by blank lines and each parameter item is its own paragraph.
func flatten(inner string) string {
	if strings.TrimSpace(inner) == "" {
		return ""
	}
	dec := xml.NewDecoder(strings.NewReader("<d>" + inner + "</d>"))
	dec.Strict = false
	dec.Entity = xml.HTMLEntity

	var (
		paras   []string
		cur     strings.Builder
		inParam int
	)
	flush := func() {
		if text := collapse(cur.String()); text != "" {
			paras = append(paras, text)
		}
		cur.Reset()
	}
	for {
		tok, err := dec.Token()
		if err != nil {
			break
		}
		switch t := tok.(type) {
		case xml.CharData:
			cur.Write(t)
		case xml.StartElement:
			switch t.Name.Local {
			case "parameteritem":
				flush()
				inParam++
			case "para", "simplesect":
				if inParam == 0 {
					flush()
				}
			case "parametername":
				cur.WriteString(" ")
			case "parameterdescription":
				cur.WriteString(": ")
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "parameteritem":
				inParam--
				flush()
			case "para", "simplesect":
				if inParam == 0 {
					flush()
				}
			}
		}
	}
	flush()
	return strings.Join(paras, "\n\n")
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// normalizeType removes spacing differences so "const Point2 &" and
// "const Point2&" compare equal.
func normalizeType(t string) string {
	t = collapse(t)
	t = strings.ReplaceAll(t, " &", "&")
	t = strings.ReplaceAll(t, " *", "*")
	t = strings.ReplaceAll(t, "< ", "<")
	t = strings.ReplaceAll(t, " >", ">")
	return t
}

func equalTypes(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] && !sameUnqualified(a[i], b[i]) {
			return false
		}
	}
	return true
}

// sameUnqualified accepts a match when one side spells the type without its
// namespace, as Doxygen does for types in the enclosing scope.
func sameUnqualified(a, b string) bool {
	return strings.HasSuffix(a, "::"+b) || strings.HasSuffix(b, "::"+a) ||
		stripScopes(a) == stripScopes(b)
}

func stripScopes(t string) string {
	var b strings.Builder
	for _, word := range strings.FieldsFunc(t, func(r rune) bool { return r == ' ' }) {
		if i := strings.LastIndex(word, "::"); i >= 0 {
			word = word[i+2:]
		}
		b.WriteString(word)
		b.WriteByte(' ')
	}
	return strings.TrimSpace(b.String())
}

func (x *Index) String() string {
	return fmt.Sprintf("doxygen(%s, %d symbols)", x.dir, len(x.entries))
}
