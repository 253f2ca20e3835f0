package rules

import (
	"testing"
)

func TestEvaluateBool(t *testing.T) {
	rm, _ := NewRuleManager()

	data := map[string]interface{}{
		"params": map[string]interface{}{"id": "obj1"},
		"query":  map[string]interface{}{"region": "EMEA"},
	}

	// Cenário 1: Sucesso
	ok, err := rm.EvaluateBool("params.id == 'obj1' && query.region == 'EMEA'", data)
	if err != nil || !ok {
		t.Errorf("Falha na validação correta: %v", err)
	}

	// Cenário 2: Falha
	ok, _ = rm.EvaluateBool("params.id == 'outro'", data)
	if ok {
		t.Error("Deveria retornar false")
	}

	// Cenário 3: variável não enviada existe vazia
	ok, err = rm.EvaluateBool("!has(body.name)", nil)
	if err != nil || !ok {
		t.Errorf("body ausente deveria ser mapa vazio: %v", err)
	}
}

func TestEvaluateValue(t *testing.T) {
	rm, _ := NewRuleManager()
	data := map[string]interface{}{
		"body": map[string]interface{}{"val": 100},
	}

	res, err := rm.EvaluateValue("body.val * 2", data)
	if err != nil {
		t.Fatalf("Erro ao avaliar: %v", err)
	}

	if res.(int64) != 200 {
		t.Errorf("Esperado 200, recebido %v", res)
	}

	obj, err := rm.EvaluateValue("{'id': 'x', 'tags': ['a']}", nil)
	if err != nil {
		t.Fatalf("Erro ao avaliar mapa: %v", err)
	}
	m, ok := obj.(map[string]interface{})
	if !ok || m["id"] != "x" {
		t.Errorf("Esperado mapa nativo, recebido %#v", obj)
	}
}

func TestCompileProgramCache(t *testing.T) {
	rm, _ := NewRuleManager()

	first, err := rm.CompileProgram("params.id")
	if err != nil {
		t.Fatalf("Erro de compilação: %v", err)
	}
	second, _ := rm.CompileProgram("params.id")
	if first != second {
		t.Error("Programa deveria vir do cache")
	}

	if _, err := rm.CompileProgram("params.id =="); err == nil {
		t.Error("Esperava erro de sintaxe")
	}
}
