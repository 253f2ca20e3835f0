package catalog

import "sort"

// Locais de parâmetro suportados.
const (
	InPath   = "path"
	InQuery  = "query"
	InHeader = "header"
	InCookie = "cookie"
)

// Schema é a parte do JSON Schema necessária para derivar respostas de exemplo.
type Schema struct {
	Type       string
	Format     string
	Items      *Schema
	Properties map[string]*Schema
	Required   []string

	Example    interface{}
	HasExample bool
	Default    interface{}
	HasDefault bool
	Enum       []interface{}

	AllOf []*Schema
	OneOf []*Schema
	AnyOf []*Schema
}

// Example é um exemplo nomeado de media type.
type Example struct {
	Summary string
	Value   interface{}
}

// MediaType descreve o conteúdo de uma resposta para um content type.
type MediaType struct {
	Schema     *Schema
	Example    interface{}
	HasExample bool
	Examples   map[string]*Example
}

// Response é uma resposta documentada. Status pode ser "200", "2XX" ou "default".
type Response struct {
	Status      string
	Description string
	Content     map[string]*MediaType
}

type Parameter struct {
	Name     string
	In       string
	Required bool
	Schema   *Schema
}

// Operation é o par (método, template de path) documentado em algum arquivo OpenAPI.
type Operation struct {
	ID           string
	Method       string
	Path         string
	Summary      string
	Tags         []string
	Parameters   []*Parameter
	Responses    map[string]*Response
	RequiresAuth bool
	// Source é o arquivo de origem, usado em mensagens de erro de construção.
	Source string
}

// StatusCodes devolve os códigos documentados em ordem lexicográfica.
func (o *Operation) StatusCodes() []string {
	codes := make([]string, 0, len(o.Responses))
	for code := range o.Responses {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// Catalog é imutável depois de carregado; consumidores apenas leem.
type Catalog struct {
	operations []*Operation
}

// New cria um catálogo a partir de operações já construídas.
func New(ops ...*Operation) *Catalog {
	return &Catalog{operations: append([]*Operation(nil), ops...)}
}

// Operations devolve as operações na ordem de carga.
func (c *Catalog) Operations() []*Operation {
	if c == nil {
		return nil
	}
	return append([]*Operation(nil), c.operations...)
}

func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.operations)
}
