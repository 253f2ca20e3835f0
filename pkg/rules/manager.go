package rules

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/checker/decls"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"google.golang.org/protobuf/types/known/structpb"
)

// RuleManager gerencia a compilação e avaliação de expressões CEL usadas nas respostas declaradas.
// Programas compilados ficam em cache por expressão.
type RuleManager struct {
	env *cel.Env

	mu    sync.RWMutex
	cache map[string]cel.Program
}

// NewRuleManager inicializa o ambiente CEL com as variáveis expostas para cada requisição.
func NewRuleManager() (*RuleManager, error) {
	env, err := cel.NewEnv(
		cel.StdLib(),
		cel.Declarations(
			decls.NewVar("params", decls.Dyn),  // Parâmetros de path
			decls.NewVar("query", decls.Dyn),   // Query string (primeiro valor)
			decls.NewVar("header", decls.Dyn),  // Headers em minúsculas
			decls.NewVar("body", decls.Dyn),    // Corpo JSON da requisição
			decls.NewVar("request", decls.Dyn), // method e path
			decls.NewVar("matches", decls.Dyn), // Registros filtrados do dataset
		),
	)
	if err != nil {
		return nil, fmt.Errorf("erro fatal CEL init: %w", err)
	}

	return &RuleManager{env: env, cache: make(map[string]cel.Program)}, nil
}

// CompileProgram compila (ou recupera do cache) a expressão.
func (rm *RuleManager) CompileProgram(expr string) (cel.Program, error) {
	rm.mu.RLock()
	prg, ok := rm.cache[expr]
	rm.mu.RUnlock()
	if ok {
		return prg, nil
	}

	ast, issues := rm.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("erro de compilação CEL '%s': %w", expr, issues.Err())
	}
	prg, err := rm.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("erro ao gerar programa CEL: %w", err)
	}

	rm.mu.Lock()
	rm.cache[expr] = prg
	rm.mu.Unlock()
	return prg, nil
}

// EvaluateBool processa condições (deve retornar true/false).
func (rm *RuleManager) EvaluateBool(expression string, vars map[string]interface{}) (bool, error) {
	if expression == "" {
		return true, nil // Expressão vazia = aprova
	}

	out, err := rm.eval(expression, vars)
	if err != nil {
		return false, err
	}
	if val, ok := out.Value().(bool); ok {
		return val, nil
	}
	return false, fmt.Errorf("resultado não é booleano")
}

// EvaluateValue retorna o valor da expressão já convertido para tipos serializáveis em JSON.
func (rm *RuleManager) EvaluateValue(expression string, vars map[string]interface{}) (interface{}, error) {
	if expression == "" {
		return nil, nil
	}

	out, err := rm.eval(expression, vars)
	if err != nil {
		return nil, err
	}
	return native(out)
}

func (rm *RuleManager) eval(expression string, vars map[string]interface{}) (ref.Val, error) {
	prg, err := rm.CompileProgram(expression)
	if err != nil {
		return nil, err
	}
	out, _, err := prg.Eval(withDefaults(vars))
	if err != nil {
		return nil, fmt.Errorf("erro execução CEL: %w", err)
	}
	return out, nil
}

// withDefaults garante que toda variável declarada existe, para que "has()" e acessos
// a mapas vazios não falhem por variável ausente.
func withDefaults(vars map[string]interface{}) map[string]interface{} {
	out := map[string]interface{}{
		"params":  map[string]interface{}{},
		"query":   map[string]interface{}{},
		"header":  map[string]interface{}{},
		"body":    map[string]interface{}{},
		"request": map[string]interface{}{},
		"matches": []interface{}{},
	}
	for k, v := range vars {
		if v != nil {
			out[k] = v
		}
	}
	return out
}

var jsonValueType = reflect.TypeOf(&structpb.Value{})

// native converte o resultado CEL. Escalares saem como tipos Go; listas e mapas passam por structpb.
func native(val ref.Val) (interface{}, error) {
	switch val.Type() {
	case types.ListType, types.MapType:
		converted, err := val.ConvertToNative(jsonValueType)
		if err != nil {
			return nil, fmt.Errorf("resultado CEL não serializável: %w", err)
		}
		return converted.(*structpb.Value).AsInterface(), nil
	case types.NullType:
		return nil, nil
	default:
		return val.Value(), nil
	}
}
