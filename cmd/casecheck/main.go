// Package main validates case catalogs and emits their JSON schema.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/invopop/jsonschema"

	"github.com/MRamiBalles/medsim/internal/domain/clinical"
)

// catalogFile is the wrapped catalog layout accepted by the loader.
type catalogFile struct {
	Cases []clinical.CaseTemplate `json:"cases" jsonschema:"required"`
}

func main() {
	var schemaPath string
	flag.StringVar(&schemaPath, "schema", "", "write the catalog JSON schema to this path (- for stdout) and exit")
	flag.Parse()

	if schemaPath != "" {
		if err := writeSchema(schemaPath, buildSchema()); err != nil {
			fmt.Fprintf(os.Stderr, "casecheck: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: casecheck [-schema out.json] cases.json...")
		os.Exit(2)
	}

	failed := false
	for _, path := range flag.Args() {
		n, problems, err := check(path)
		switch {
		case err != nil:
			fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
			failed = true
		case len(problems) > 0:
			for _, p := range problems {
				fmt.Printf("%s: %s\n", path, p)
			}
			failed = true
		default:
			fmt.Printf("%s: %d cases OK\n", path, n)
		}
	}
	if failed {
		os.Exit(1)
	}
}

func check(path string) (int, []clinical.Problem, error) {
	templates, err := clinical.LoadFile(path)
	if err != nil {
		return 0, nil, err
	}
	if len(templates) == 0 {
		return 0, nil, fmt.Errorf("no cases found")
	}
	return len(templates), clinical.ValidateAll(templates), nil
}

func buildSchema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: true,
	}
	schema := reflector.Reflect(new(catalogFile))
	schema.Title = "MedSim case catalog"
	schema.Description = "Clinical cases loaded by the shift server; a bare array of cases is also accepted."
	return schema
}

func writeSchema(outPath string, schema *jsonschema.Schema) error {
	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	data = append(data, '\n')

	if outPath == "-" {
		_, err := os.Stdout.Write(data)
		return err
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("create schema directory: %w", err)
	}
	tmpPath := outPath + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write temp schema: %w", err)
	}
	if err := os.Rename(tmpPath, outPath); err != nil {
		return fmt.Errorf("replace schema: %w", err)
	}
	return nil
}
