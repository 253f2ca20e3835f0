package rules

import (
	"fmt"
	"strings"
)

// Template é um valor (mapa, lista ou escalar) cujas strings podem conter expressões ${...}.
//
// Uma string que é inteira uma expressão mantém o tipo do resultado ("${params.id}" pode
// virar número ou objeto). Expressões no meio de texto são interpoladas como string.
// Strings sem ${ são literais.
type Template struct {
	root interface{}
	rm   *RuleManager
}

// CompileTemplate valida todas as expressões do valor. O valor é normalizado (chaves YAML viram string).
func (rm *RuleManager) CompileTemplate(value interface{}) (*Template, error) {
	t := &Template{root: Sanitize(value), rm: rm}
	if err := t.validate(t.root); err != nil {
		return nil, err
	}
	return t, nil
}

// Render avalia o template com as variáveis da requisição.
func (t *Template) Render(vars map[string]interface{}) (interface{}, error) {
	if t == nil {
		return nil, nil
	}
	return t.process(t.root, vars)
}

// RenderString avalia uma string de template e devolve o resultado formatado como texto.
func (rm *RuleManager) RenderString(raw string, vars map[string]interface{}) (string, error) {
	parts, err := splitExpressions(raw)
	if err != nil {
		return "", err
	}
	v, err := rm.renderParts(parts, vars)
	if err != nil {
		return "", err
	}
	if s, ok := v.(string); ok {
		return s, nil
	}
	return fmt.Sprintf("%v", v), nil
}

func (t *Template) validate(data interface{}) error {
	switch v := data.(type) {
	case map[string]interface{}:
		for k, val := range v {
			if err := t.validate(val); err != nil {
				return fmt.Errorf("campo '%s': %w", k, err)
			}
		}
	case []interface{}:
		for i, val := range v {
			if err := t.validate(val); err != nil {
				return fmt.Errorf("item[%d]: %w", i, err)
			}
		}
	case string:
		parts, err := splitExpressions(v)
		if err != nil {
			return err
		}
		for _, p := range parts {
			if !p.expr {
				continue
			}
			if _, err := t.rm.CompileProgram(p.text); err != nil {
				return err
			}
		}
	}
	return nil
}

func (t *Template) process(template interface{}, vars map[string]interface{}) (interface{}, error) {
	switch v := template.(type) {
	case map[string]interface{}:
		result := make(map[string]interface{}, len(v))
		for k, val := range v {
			res, err := t.process(val, vars)
			if err != nil {
				return nil, err
			}
			result[k] = res
		}
		return result, nil

	case []interface{}:
		result := make([]interface{}, len(v))
		for i, val := range v {
			res, err := t.process(val, vars)
			if err != nil {
				return nil, err
			}
			result[i] = res
		}
		return result, nil

	case string:
		parts, err := splitExpressions(v)
		if err != nil {
			return nil, err
		}
		return t.rm.renderParts(parts, vars)

	default:
		return v, nil
	}
}

func (rm *RuleManager) renderParts(parts []part, vars map[string]interface{}) (interface{}, error) {
	if len(parts) == 1 {
		if !parts[0].expr {
			return parts[0].text, nil
		}
		return rm.EvaluateValue(parts[0].text, vars)
	}

	var sb strings.Builder
	for _, p := range parts {
		if !p.expr {
			sb.WriteString(p.text)
			continue
		}
		val, err := rm.EvaluateValue(p.text, vars)
		if err != nil {
			return nil, err
		}
		if val != nil {
			sb.WriteString(fmt.Sprintf("%v", val))
		}
	}
	return sb.String(), nil
}

type part struct {
	text string
	expr bool
}

// splitExpressions separa texto literal de trechos ${...}. Chaves dentro da expressão
// (mapas CEL) e dentro de literais entre aspas são respeitadas.
func splitExpressions(s string) ([]part, error) {
	if !strings.Contains(s, "${") {
		return []part{{text: s}}, nil
	}

	var parts []part
	rest := s
	for {
		start := strings.Index(rest, "${")
		if start < 0 {
			if rest != "" {
				parts = append(parts, part{text: rest})
			}
			break
		}
		if start > 0 {
			parts = append(parts, part{text: rest[:start]})
		}

		end := closingBrace(rest[start+2:])
		if end < 0 {
			return nil, fmt.Errorf("expressão sem fechamento em '%s'", s)
		}
		expr := strings.TrimSpace(rest[start+2 : start+2+end])
		if expr == "" {
			return nil, fmt.Errorf("expressão vazia em '%s'", s)
		}
		parts = append(parts, part{text: expr, expr: true})
		rest = rest[start+2+end+1:]
	}
	return parts, nil
}

func closingBrace(s string) int {
	depth := 0
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
		case c == '{':
			depth++
		case c == '}':
			if depth == 0 {
				return i
			}
			depth--
		}
	}
	return -1
}

// Sanitize converte mapas com chave interface{} (YAML) em map[string]interface{}, recursivamente.
func Sanitize(input interface{}) interface{} {
	switch x := input.(type) {
	case map[interface{}]interface{}:
		m := map[string]interface{}{}
		for k, v := range x {
			m[fmt.Sprintf("%v", k)] = Sanitize(v)
		}
		return m
	case map[string]interface{}:
		m := map[string]interface{}{}
		for k, v := range x {
			m[k] = Sanitize(v)
		}
		return m
	case []interface{}:
		l := make([]interface{}, len(x))
		for i, v := range x {
			l[i] = Sanitize(v)
		}
		return l
	default:
		return input
	}
}
