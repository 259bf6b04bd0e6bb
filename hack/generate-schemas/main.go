package main

import (
	"os"
	"path"

	"github.com/flanksource/commons/logger"
	"github.com/invopop/jsonschema"
	"github.com/spf13/cobra"

	v1 "github.com/flanksource/gid-seminars/api/v1"
)

// sources mirrors the [source.<id>] tables of sources.toml.
type sources struct {
	Source map[string]v1.SourceConfig `json:"source"`
}

var schemas = map[string]any{
	"settings": &v1.Settings{},
	"sources":  &sources{},
}

var generateSchema = &cobra.Command{
	Use:   "generate-schema",
	Short: "Write JSON schemas for settings.toml and sources.toml",
	Run: func(cmd *cobra.Command, args []string) {
		if err := os.MkdirAll(schemaPath, 0755); err != nil {
			logger.Fatalf("unable to create %s: %v", schemaPath, err)
		}
		for file, obj := range schemas {
			r := jsonschema.Reflector{DoNotReference: true}
			data, err := r.Reflect(obj).MarshalJSON()
			if err != nil {
				logger.Fatalf("error marshalling: %v", err)
			}

			p := path.Join(schemaPath, file+".schema.json")
			if err := os.WriteFile(p, data, 0644); err != nil {
				logger.Fatalf("unable to save schema: %v", err)
			}
			logger.Infof("Saved JSON schema to %s", p)
		}
	},
}

var schemaPath string

func main() {
	generateSchema.Flags().StringVar(&schemaPath, "schema-path", "../../config/schemas", "Path to save JSON schema to")
	if err := generateSchema.Execute(); err != nil {
		os.Exit(1)
	}
}
