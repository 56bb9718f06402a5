package contracts

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"log"
	"path"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"unification-service/internal/core/domain"
	"unification-service/schemas"
)

const (
	EventMatchRequest    = "MatchRequestEvent"
	CommandUnifiedUpdate = "UnifiedUpdateCommand"
	Version1             = "1.0.0"
)

var compiledSchemas = make(map[string]*jsonschema.Schema)

func init() {
	if err := loadSchemas(schemas.FS); err != nil {
		log.Fatalf("failed to load schemas: %v", err)
	}
}

// loadSchemas компилирует все v<N>.json; ключ - "ИмяВPascalCase/N.0.0"
func loadSchemas(fsys fs.FS) error {
	compiler := jsonschema.NewCompiler()
	compiler.AssertFormat = true

	var files []string
	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || path.Ext(p) != ".json" {
			return nil
		}
		raw, err := fs.ReadFile(fsys, p)
		if err != nil {
			return err
		}
		if err := compiler.AddResource(p, strings.NewReader(string(raw))); err != nil {
			return fmt.Errorf("add schema %s: %w", p, err)
		}
		files = append(files, p)
		return nil
	})
	if err != nil {
		return err
	}

	for _, p := range files {
		key, err := schemaKey(p)
		if err != nil {
			return err
		}
		schema, err := compiler.Compile(p)
		if err != nil {
			return fmt.Errorf("compile schema %s: %w", p, err)
		}
		compiledSchemas[key] = schema
	}
	return nil
}

// schemaKey: "events/match-request-event/v1.json" -> "MatchRequestEvent/1.0.0"
func schemaKey(p string) (string, error) {
	dir, file := path.Split(p)
	name := path.Base(strings.TrimSuffix(dir, "/"))
	version := strings.TrimSuffix(file, ".json")
	if name == "" || name == "." || !strings.HasPrefix(version, "v") || len(version) < 2 {
		return "", fmt.Errorf("schema path %q must look like <kind>/<name>/v<N>.json", p)
	}

	title := cases.Title(language.Und)
	var b strings.Builder
	for _, part := range strings.Split(name, "-") {
		b.WriteString(title.String(part))
	}
	return fmt.Sprintf("%s/%s.0.0", b.String(), version[1:]), nil
}

// ValidateEvent принимает тело сообщения и его метаданные и проверяет по схеме
func ValidateEvent(eventType, eventVersion string, body []byte) error {
	var v interface{}
	if err := json.Unmarshal(body, &v); err != nil {
		return domain.WrapError(domain.ErrorKindSchemaViolation, "validate "+eventType, fmt.Errorf("message body is not a valid JSON: %w", err))
	}
	return Validate(eventType, eventVersion, v)
}

// Validate проверяет уже разобранный документ (map[string]any и т.п.)
func Validate(name, version string, v interface{}) error {
	key := fmt.Sprintf("%s/%s", name, version)
	schema, ok := compiledSchemas[key]
	if !ok {
		return domain.Schemaf("validate", "schema for '%s' version '%s' not found", name, version)
	}
	if err := schema.Validate(v); err != nil {
		return domain.WrapError(domain.ErrorKindSchemaViolation, "validate "+name, fmt.Errorf("JSON schema validation failed: %w", err))
	}
	return nil
}
