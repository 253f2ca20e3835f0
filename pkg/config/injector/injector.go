package injector

import (
	"context"
	"fmt"
	"os"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/raywall/spec-emulator/pkg/cloud"
)

// Regex para capturar padrões ${tipo.chave}
// Ex: ${env.CLIENT_SECRET}, ${ssm./emulator/secret}, ${secret.emulator-clients}
var pattern = regexp.MustCompile(`\$\{(env|ssm|secret)\.([^}]+)\}`)

// Resolver busca valores em uma fonte externa.
type Resolver func(ctx context.Context, key string) (interface{}, error)

type Injector struct {
	resolvers map[string]Resolver
}

func New() *Injector {
	return &Injector{resolvers: map[string]Resolver{
		"env": func(ctx context.Context, key string) (interface{}, error) {
			return os.Getenv(key), nil
		},
		"ssm": func(ctx context.Context, key string) (interface{}, error) {
			return cloud.Parameter(ctx, key, true)
		},
		"secret": func(ctx context.Context, key string) (interface{}, error) {
			return cloud.Secret(ctx, key)
		},
	}}
}

// WithResolver troca a fonte de um tipo (usado em testes para ssm e secret).
func (i *Injector) WithResolver(sourceType string, r Resolver) *Injector {
	i.resolvers[sourceType] = r
	return i
}

func (i *Injector) Inject(ctx context.Context, target interface{}) error {
	v := reflect.ValueOf(target)
	if v.Kind() != reflect.Ptr || v.IsNil() {
		return fmt.Errorf("target deve ser um ponteiro para struct não nulo")
	}
	return i.injectRecursive(ctx, v.Elem())
}

func (i *Injector) injectRecursive(ctx context.Context, v reflect.Value) error {
	switch v.Kind() {
	case reflect.Struct:
		t := v.Type()
		for k := 0; k < t.NumField(); k++ {
			field := t.Field(k)
			value := v.Field(k)
			if !field.IsExported() {
				continue
			}

			if err := i.processStructTags(field, value); err != nil {
				return err
			}

			if value.Kind() == reflect.String && value.CanSet() {
				newValue, err := i.interpolateString(ctx, value.String())
				if err != nil {
					return err
				}
				value.SetString(newValue)
			}

			if value.CanSet() || value.Kind() == reflect.Ptr {
				if err := i.injectRecursive(ctx, value); err != nil {
					return err
				}
			}
		}

	case reflect.Map:
		if v.Type().Key().Kind() == reflect.String && !v.IsNil() {
			return i.injectMap(ctx, v)
		}

	case reflect.Ptr, reflect.Interface:
		if !v.IsNil() {
			return i.injectRecursive(ctx, v.Elem())
		}

	case reflect.Slice:
		for j := 0; j < v.Len(); j++ {
			elem := v.Index(j)
			if elem.Kind() == reflect.Interface && !elem.IsNil() && elem.Elem().Kind() == reflect.String {
				newVal, err := i.interpolateString(ctx, elem.Elem().String())
				if err != nil {
					return err
				}
				elem.Set(reflect.ValueOf(newVal))
				continue
			}
			if err := i.injectRecursive(ctx, elem); err != nil {
				return err
			}
		}
	}
	return nil
}

// processStructTags aplica variáveis de ambiente declaradas com env:"NOME".
func (i *Injector) processStructTags(field reflect.StructField, value reflect.Value) error {
	if !value.CanSet() {
		return nil
	}
	if tag := field.Tag.Get("env"); tag != "" {
		if val, exists := os.LookupEnv(tag); exists {
			if err := setField(value, val); err != nil {
				return fmt.Errorf("env %s: %w", tag, err)
			}
		}
	}
	return nil
}

func (i *Injector) interpolateString(ctx context.Context, input string) (string, error) {
	if !strings.Contains(input, "${") {
		return input, nil
	}

	var err error
	result := pattern.ReplaceAllStringFunc(input, func(match string) string {
		content := match[2 : len(match)-1]
		sourceType, key, ok := strings.Cut(content, ".")
		if !ok {
			return match
		}

		resolve, found := i.resolvers[sourceType]
		if !found {
			return match
		}
		val, resolveErr := resolve(ctx, key)
		if resolveErr != nil {
			err = resolveErr
			return match
		}
		return fmt.Sprintf("%v", val)
	})

	return result, err
}

// injectMap lida com mapas dinâmicos (ex: corpo de um override)
func (i *Injector) injectMap(ctx context.Context, v reflect.Value) error {
	iter := v.MapRange()
	updates := make(map[string]interface{})

	for iter.Next() {
		key := iter.Key()
		elem := iter.Value()
		if elem.Kind() == reflect.Interface {
			elem = elem.Elem()
		}
		if !elem.IsValid() {
			continue
		}

		switch elem.Kind() {
		case reflect.String:
			newVal, err := i.interpolateString(ctx, elem.String())
			if err != nil {
				return err
			}
			updates[key.String()] = newVal
		case reflect.Map, reflect.Slice:
			if err := i.injectRecursive(ctx, elem); err != nil {
				return err
			}
		}
	}

	for k, val := range updates {
		v.SetMapIndex(reflect.ValueOf(k).Convert(v.Type().Key()), reflect.ValueOf(val).Convert(v.Type().Elem()))
	}
	return nil
}

func setField(field reflect.Value, val string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(val)
	case reflect.Bool:
		b, err := strconv.ParseBool(val)
		if err != nil {
			return err
		}
		field.SetBool(b)
	case reflect.Int, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			return err
		}
		field.SetInt(n)
	}
	return nil
}
