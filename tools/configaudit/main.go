// Command configaudit cross-checks the configuration struct against the
// defaults registered in the loader. Viper's AutomaticEnv only binds
// environment variables for keys that were registered with SetDefault,
// so a struct field without a default silently ignores its ATLAS_*
// variable. The audit fails when the two sets drift.
//
// Usage: configaudit [-dir internal/config]
package main

import (
	"flag"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strconv"
	"strings"
)

func main() {
	dir := flag.String("dir", "internal/config", "directory of the config package")
	flag.Parse()

	structKeys, err := collectStructKeys(filepath.Join(*dir, "config.go"), "Config")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading config struct: %v\n", err)
		os.Exit(1)
	}
	defaultKeys, err := collectDefaultKeys(filepath.Join(*dir, "load.go"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading defaults: %v\n", err)
		os.Exit(1)
	}

	missing := diffKeys(structKeys, defaultKeys)
	orphaned := diffKeys(defaultKeys, structKeys)

	if len(missing) == 0 && len(orphaned) == 0 {
		fmt.Printf("configaudit: %d keys in sync\n", len(structKeys))
		return
	}

	for _, key := range missing {
		fmt.Printf("no default registered for struct key: %s\n", key)
	}
	for _, key := range orphaned {
		fmt.Printf("default registered for unknown key: %s\n", key)
	}
	os.Exit(1)
}

// collectStructKeys parses file and returns the set of dotted
// mapstructure key paths reachable from the named root struct.
func collectStructKeys(file, root string) (map[string]bool, error) {
	fset := token.NewFileSet()
	parsed, err := parser.ParseFile(fset, file, nil, 0)
	if err != nil {
		return nil, err
	}

	structs := make(map[string]*ast.StructType)
	ast.Inspect(parsed, func(n ast.Node) bool {
		spec, ok := n.(*ast.TypeSpec)
		if !ok {
			return true
		}
		if st, ok := spec.Type.(*ast.StructType); ok {
			structs[spec.Name.Name] = st
		}
		return true
	})

	rootStruct, ok := structs[root]
	if !ok {
		return nil, fmt.Errorf("struct %s not found in %s", root, file)
	}

	keys := make(map[string]bool)
	walkStruct(rootStruct, "", structs, keys)
	return keys, nil
}

// walkStruct records the dotted key of every leaf field, descending into
// fields whose type is another struct from the same file.
func walkStruct(st *ast.StructType, prefix string, structs map[string]*ast.StructType, keys map[string]bool) {
	for _, field := range st.Fields.List {
		tag := mapstructureTag(field)
		if tag == "" || tag == "-" {
			continue
		}
		key := tag
		if prefix != "" {
			key = prefix + "." + tag
		}

		if ident, ok := field.Type.(*ast.Ident); ok {
			if nested, isStruct := structs[ident.Name]; isStruct {
				walkStruct(nested, key, structs, keys)
				continue
			}
		}
		keys[key] = true
	}
}

// mapstructureTag extracts the key name from a field's mapstructure tag,
// dropping option suffixes like ",squash".
func mapstructureTag(field *ast.Field) string {
	if field.Tag == nil {
		return ""
	}
	raw, err := strconv.Unquote(field.Tag.Value)
	if err != nil {
		return ""
	}
	tag := reflect.StructTag(raw).Get("mapstructure")
	if i := strings.IndexByte(tag, ','); i >= 0 {
		tag = tag[:i]
	}
	return tag
}

// collectDefaultKeys parses file and returns every string literal passed
// as the first argument of a SetDefault call.
func collectDefaultKeys(file string) (map[string]bool, error) {
	fset := token.NewFileSet()
	parsed, err := parser.ParseFile(fset, file, nil, 0)
	if err != nil {
		return nil, err
	}

	keys := make(map[string]bool)
	ast.Inspect(parsed, func(n ast.Node) bool {
		call, ok := n.(*ast.CallExpr)
		if !ok {
			return true
		}
		sel, ok := call.Fun.(*ast.SelectorExpr)
		if !ok || sel.Sel.Name != "SetDefault" || len(call.Args) == 0 {
			return true
		}
		lit, ok := call.Args[0].(*ast.BasicLit)
		if !ok || lit.Kind != token.STRING {
			return true
		}
		key, err := strconv.Unquote(lit.Value)
		if err == nil {
			keys[key] = true
		}
		return true
	})
	return keys, nil
}

// diffKeys returns the keys of a that are absent from b, sorted.
func diffKeys(a, b map[string]bool) []string {
	var out []string
	for key := range a {
		if !b[key] {
			out = append(out, key)
		}
	}
	sort.Strings(out)
	return out
}
