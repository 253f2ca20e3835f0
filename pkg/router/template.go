package router

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/raywall/spec-emulator/pkg/faults"
)

type SegmentKind int

const (
	// Literal casa o segmento exato.
	Literal SegmentKind = iota
	// Capture absorve exatamente um segmento não vazio ({id}).
	Capture
	// AffixCapture absorve um segmento com prefixo/sufixo fixos ({id}.json).
	AffixCapture
)

type Segment struct {
	Kind   SegmentKind
	Value  string
	Name   string
	Prefix string
	Suffix string
}

// shape é a forma do segmento sem o nome do parâmetro.
func (s Segment) shape() string {
	switch s.Kind {
	case Capture:
		return "{}"
	case AffixCapture:
		return s.Prefix + "{}" + s.Suffix
	default:
		return s.Value
	}
}

// match devolve o valor capturado quando o segmento do path é aceito.
func (s Segment) match(value string) (string, bool) {
	switch s.Kind {
	case Literal:
		return "", value == s.Value
	case Capture:
		return value, value != ""
	default:
		if len(value) <= len(s.Prefix)+len(s.Suffix) ||
			!strings.HasPrefix(value, s.Prefix) || !strings.HasSuffix(value, s.Suffix) {
			return "", false
		}
		return value[len(s.Prefix) : len(value)-len(s.Suffix)], true
	}
}

// Template é um path template OpenAPI já segmentado.
type Template struct {
	Raw      string
	Segments []Segment
}

// Skeleton identifica uma rota: método + forma dos segmentos, ignorando nomes de parâmetros.
// "GET /users/{id}" e "GET /users/{userId}" têm o mesmo skeleton.
type Skeleton string

// ParseTemplate converte "/a/{b}/c{d}.json" em segmentos.
func ParseTemplate(raw string) (*Template, error) {
	if !strings.HasPrefix(raw, "/") {
		return nil, buildError("template '%s' deve começar com '/'", raw)
	}

	tpl := &Template{Raw: raw}
	trimmed := strings.Trim(raw, "/")
	if trimmed == "" {
		return tpl, nil
	}

	names := make(map[string]bool)
	for _, part := range strings.Split(trimmed, "/") {
		seg, err := parseSegment(part)
		if err != nil {
			return nil, buildError("template '%s': %v", raw, err)
		}
		if seg.Kind != Literal {
			if names[seg.Name] {
				return nil, buildError("template '%s': parâmetro '%s' repetido", raw, seg.Name)
			}
			names[seg.Name] = true
		}
		tpl.Segments = append(tpl.Segments, seg)
	}
	return tpl, nil
}

func parseSegment(part string) (Segment, error) {
	if part == "" {
		return Segment{}, fmt.Errorf("segmento vazio")
	}

	open := strings.Index(part, "{")
	if open < 0 {
		if strings.Contains(part, "}") {
			return Segment{}, fmt.Errorf("segmento '%s' com '}' sem abertura", part)
		}
		return Segment{Kind: Literal, Value: part}, nil
	}

	end := strings.Index(part, "}")
	if end < open {
		return Segment{}, fmt.Errorf("segmento '%s' malformado", part)
	}
	rest := part[end+1:]
	if strings.ContainsAny(rest, "{}") {
		return Segment{}, fmt.Errorf("segmento '%s' com mais de um parâmetro", part)
	}

	name := part[open+1 : end]
	if name == "" {
		return Segment{}, fmt.Errorf("segmento '%s' com parâmetro sem nome", part)
	}

	prefix := part[:open]
	if prefix == "" && rest == "" {
		return Segment{Kind: Capture, Name: name}, nil
	}
	return Segment{Kind: AffixCapture, Name: name, Prefix: prefix, Suffix: rest}, nil
}

// Shape devolve a forma do template, ex: "/users/{}/files/{}.json".
func (t *Template) Shape() string {
	if len(t.Segments) == 0 {
		return "/"
	}
	var b strings.Builder
	for _, seg := range t.Segments {
		b.WriteByte('/')
		b.WriteString(seg.shape())
	}
	return b.String()
}

// Skeleton combina o método (normalizado) com a forma do template.
func (t *Template) Skeleton(method string) Skeleton {
	return Skeleton(strings.ToUpper(method) + " " + t.Shape())
}

// Names devolve os nomes dos parâmetros na ordem dos segmentos.
func (t *Template) Names() []string {
	var names []string
	for _, seg := range t.Segments {
		if seg.Kind != Literal {
			names = append(names, seg.Name)
		}
	}
	return names
}

// Bind associa valores capturados (posicionais) aos nomes deste template.
func (t *Template) Bind(captures []string) map[string]string {
	params := make(map[string]string)
	for i, name := range t.Names() {
		if i < len(captures) {
			params[name] = captures[i]
		}
	}
	return params
}

// Extract casa um path concreto diretamente contra este template.
func (t *Template) Extract(path string) (map[string]string, bool) {
	segments := SplitPath(path)
	if len(segments) != len(t.Segments) {
		return nil, false
	}
	var captures []string
	for i, seg := range t.Segments {
		value, ok := seg.match(segments[i])
		if !ok {
			return nil, false
		}
		if seg.Kind != Literal {
			captures = append(captures, value)
		}
	}
	return t.Bind(captures), true
}

// SplitPath quebra o path em segmentos decodificados. Barra final é ignorada.
// Cada segmento é decodificado separadamente para que %2F permaneça dentro do segmento.
func SplitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	parts := strings.Split(trimmed, "/")
	for i, part := range parts {
		if decoded, err := url.PathUnescape(part); err == nil {
			parts[i] = decoded
		}
	}
	return parts
}

func buildError(format string, args ...interface{}) error {
	return faults.NewTypedError(faults.BuildError, fmt.Sprintf(format, args...), nil)
}
