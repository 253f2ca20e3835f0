package catalog

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// Ordem fixa de métodos dentro de um path item.
var methodOrder = []string{"get", "put", "post", "delete", "options", "head", "patch", "trace"}

var docExtensions = map[string]bool{".yaml": true, ".yml": true, ".json": true}

// maxRefDepth limita cadeias de $ref que apontam para outros $ref.
const maxRefDepth = 32

// LoadDir lê recursivamente todos os documentos OpenAPI do diretório, em ordem lexicográfica.
// Arquivos inválidos são registrados em log e ignorados. Diretório inexistente resulta em catálogo vazio.
func LoadDir(dir string) (*Catalog, error) {
	if dir == "" {
		return New(), nil
	}

	info, err := os.Stat(dir)
	if errors.Is(err, fs.ErrNotExist) {
		log.Warn().Str("dir", dir).Msg("Diretório OpenAPI não encontrado. Catálogo vazio.")
		return New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("falha ao acessar diretório OpenAPI: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("caminho OpenAPI não é um diretório: %s", dir)
	}

	var files []string
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && docExtensions[strings.ToLower(filepath.Ext(path))] {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("falha ao percorrer diretório OpenAPI: %w", err)
	}
	sort.Strings(files)

	var ops []*Operation
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			log.Warn().Err(err).Str("file", file).Msg("Documento OpenAPI ignorado")
			continue
		}
		parsed, err := Parse(data, file)
		if err != nil {
			log.Warn().Err(err).Str("file", file).Msg("Documento OpenAPI ignorado")
			continue
		}
		log.Debug().Str("file", file).Int("operations", len(parsed)).Msg("Documento OpenAPI carregado")
		ops = append(ops, parsed...)
	}

	return New(ops...), nil
}

// Parse converte um documento OpenAPI 3 (YAML ou JSON) em operações.
func Parse(data []byte, source string) ([]*Operation, error) {
	var raw interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("documento malformado: %w", err)
	}

	root, ok := sanitize(raw).(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("documento não é um objeto")
	}
	if _, ok := root["openapi"]; !ok {
		if _, swagger := root["swagger"]; swagger {
			return nil, fmt.Errorf("swagger 2.0 não suportado, converta para OpenAPI 3")
		}
		return nil, fmt.Errorf("campo 'openapi' ausente")
	}

	p := &docParser{
		root:    root,
		source:  source,
		schemas: make(map[string]*Schema),
	}
	return p.operations()
}

type docParser struct {
	root    map[string]interface{}
	source  string
	schemas map[string]*Schema
}

func (p *docParser) operations() ([]*Operation, error) {
	paths := asMap(p.root["paths"])
	docSecurity, hasDocSecurity := p.root["security"]

	templates := make([]string, 0, len(paths))
	for tpl := range paths {
		templates = append(templates, tpl)
	}
	sort.Strings(templates)

	var ops []*Operation
	for _, tpl := range templates {
		if !strings.HasPrefix(tpl, "/") {
			return nil, fmt.Errorf("path inválido '%s': deve começar com '/'", tpl)
		}
		item := p.deref(paths[tpl])
		shared := p.parameters(item["parameters"])

		for _, method := range methodOrder {
			rawOp, ok := item[method]
			if !ok {
				continue
			}
			node := asMap(rawOp)

			op := &Operation{
				Method:     strings.ToUpper(method),
				Path:       tpl,
				Summary:    asString(node["summary"]),
				Tags:       asStrings(node["tags"]),
				Parameters: mergeParameters(shared, p.parameters(node["parameters"])),
				Responses:  p.responses(node["responses"]),
				Source:     p.source,
			}
			op.ID = asString(node["operationId"])
			if op.ID == "" {
				op.ID = op.Method + " " + op.Path
			}

			if sec, ok := node["security"]; ok {
				op.RequiresAuth = securityRequired(sec)
			} else if hasDocSecurity {
				op.RequiresAuth = securityRequired(docSecurity)
			}

			ops = append(ops, op)
		}
	}
	return ops, nil
}

// securityRequired: lista vazia ou contendo um requisito vazio ({}) torna a autenticação opcional.
func securityRequired(node interface{}) bool {
	list, ok := node.([]interface{})
	if !ok || len(list) == 0 {
		return false
	}
	for _, req := range list {
		if m, ok := req.(map[string]interface{}); ok && len(m) == 0 {
			return false
		}
	}
	return true
}

func mergeParameters(shared, own []*Parameter) []*Parameter {
	out := make([]*Parameter, 0, len(shared)+len(own))
	overridden := make(map[string]bool)
	for _, prm := range own {
		overridden[prm.In+":"+prm.Name] = true
	}
	for _, prm := range shared {
		if !overridden[prm.In+":"+prm.Name] {
			out = append(out, prm)
		}
	}
	return append(out, own...)
}

func (p *docParser) parameters(node interface{}) []*Parameter {
	list, _ := node.([]interface{})
	out := make([]*Parameter, 0, len(list))
	for _, raw := range list {
		m := p.deref(raw)
		name := asString(m["name"])
		if name == "" {
			continue
		}
		in := asString(m["in"])
		out = append(out, &Parameter{
			Name:     name,
			In:       in,
			Required: asBool(m["required"]) || in == InPath,
			Schema:   p.schema(m["schema"]),
		})
	}
	return out
}

func (p *docParser) responses(node interface{}) map[string]*Response {
	out := make(map[string]*Response)
	for code, raw := range asMap(node) {
		m := p.deref(raw)
		resp := &Response{
			Status:      strings.ToUpper(code),
			Description: asString(m["description"]),
			Content:     make(map[string]*MediaType),
		}
		if resp.Status == "DEFAULT" {
			resp.Status = "default"
		}
		for mediaType, rawMT := range asMap(m["content"]) {
			resp.Content[strings.ToLower(mediaType)] = p.mediaType(asMap(rawMT))
		}
		out[resp.Status] = resp
	}
	return out
}

func (p *docParser) mediaType(m map[string]interface{}) *MediaType {
	mt := &MediaType{
		Schema:   p.schema(m["schema"]),
		Examples: make(map[string]*Example),
	}
	if ex, ok := m["example"]; ok {
		mt.Example = ex
		mt.HasExample = true
	}
	for name, raw := range asMap(m["examples"]) {
		exNode := p.deref(raw)
		value, ok := exNode["value"]
		if !ok {
			// externalValue não é resolvido
			continue
		}
		mt.Examples[name] = &Example{Summary: asString(exNode["summary"]), Value: value}
	}
	return mt
}

// schema constrói o Schema, memorizando por $ref para que ciclos virem ponteiros compartilhados.
func (p *docParser) schema(node interface{}) *Schema {
	m, ok := node.(map[string]interface{})
	if !ok {
		return nil
	}
	if ref := asString(m["$ref"]); ref != "" {
		if s, ok := p.schemas[ref]; ok {
			return s
		}
		s := &Schema{}
		p.schemas[ref] = s
		target, err := p.lookup(ref)
		if err != nil {
			log.Warn().Err(err).Str("file", p.source).Msg("Referência de schema não resolvida")
			return s
		}
		if tm, ok := target.(map[string]interface{}); ok {
			p.fillSchema(s, tm)
		}
		return s
	}

	s := &Schema{}
	p.fillSchema(s, m)
	return s
}

func (p *docParser) fillSchema(s *Schema, m map[string]interface{}) {
	if ref := asString(m["$ref"]); ref != "" {
		*s = *p.schema(m)
		return
	}

	switch t := m["type"].(type) {
	case string:
		s.Type = t
	case []interface{}:
		// OpenAPI 3.1: primeiro tipo diferente de null
		for _, v := range t {
			if str, ok := v.(string); ok && str != "null" {
				s.Type = str
				break
			}
		}
	}
	s.Format = asString(m["format"])
	s.Required = asStrings(m["required"])
	s.Items = p.schema(m["items"])

	if ex, ok := m["example"]; ok {
		s.Example, s.HasExample = ex, true
	} else if list, ok := m["examples"].([]interface{}); ok && len(list) > 0 {
		s.Example, s.HasExample = list[0], true
	}
	if def, ok := m["default"]; ok {
		s.Default, s.HasDefault = def, true
	}
	if enum, ok := m["enum"].([]interface{}); ok {
		s.Enum = enum
	}

	if props := asMap(m["properties"]); len(props) > 0 {
		s.Properties = make(map[string]*Schema, len(props))
		for name, raw := range props {
			s.Properties[name] = p.schema(raw)
		}
	}

	s.AllOf = p.schemaList(m["allOf"])
	s.OneOf = p.schemaList(m["oneOf"])
	s.AnyOf = p.schemaList(m["anyOf"])

	if s.Type == "" && len(s.Properties) > 0 {
		s.Type = "object"
	}
}

func (p *docParser) schemaList(node interface{}) []*Schema {
	list, ok := node.([]interface{})
	if !ok {
		return nil
	}
	out := make([]*Schema, 0, len(list))
	for _, raw := range list {
		if s := p.schema(raw); s != nil {
			out = append(out, s)
		}
	}
	return out
}

// deref segue $ref de objetos não-schema (responses, parameters, examples, path items).
func (p *docParser) deref(node interface{}) map[string]interface{} {
	m := asMap(node)
	for depth := 0; depth < maxRefDepth; depth++ {
		ref := asString(m["$ref"])
		if ref == "" {
			return m
		}
		target, err := p.lookup(ref)
		if err != nil {
			log.Warn().Err(err).Str("file", p.source).Msg("Referência não resolvida")
			return map[string]interface{}{}
		}
		m = asMap(target)
	}
	log.Warn().Str("file", p.source).Msg("Cadeia de $ref muito longa")
	return map[string]interface{}{}
}

// lookup resolve referências locais no formato JSON Pointer (#/components/...).
func (p *docParser) lookup(ref string) (interface{}, error) {
	if !strings.HasPrefix(ref, "#/") {
		return nil, fmt.Errorf("referência externa não suportada: %s", ref)
	}

	var current interface{} = p.root
	for _, token := range strings.Split(strings.TrimPrefix(ref, "#/"), "/") {
		token = strings.ReplaceAll(strings.ReplaceAll(token, "~1", "/"), "~0", "~")
		m, ok := current.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("referência inválida: %s", ref)
		}
		current, ok = m[token]
		if !ok {
			return nil, fmt.Errorf("referência inexistente: %s", ref)
		}
	}
	return current, nil
}

// sanitize normaliza mapas do yaml.v3 (chaves não-string, como códigos 200) para map[string]interface{}.
func sanitize(input interface{}) interface{} {
	switch x := input.(type) {
	case map[interface{}]interface{}:
		m := make(map[string]interface{}, len(x))
		for k, v := range x {
			m[fmt.Sprintf("%v", k)] = sanitize(v)
		}
		return m
	case map[string]interface{}:
		m := make(map[string]interface{}, len(x))
		for k, v := range x {
			m[k] = sanitize(v)
		}
		return m
	case []interface{}:
		l := make([]interface{}, len(x))
		for i, v := range x {
			l[i] = sanitize(v)
		}
		return l
	default:
		return input
	}
}

func asMap(v interface{}) map[string]interface{} {
	if m, ok := v.(map[string]interface{}); ok {
		return m
	}
	return map[string]interface{}{}
}

func asString(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func asBool(v interface{}) bool {
	b, _ := v.(bool)
	return b
}

func asStrings(v interface{}) []string {
	list, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
