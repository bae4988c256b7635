package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cuemby/collstore/internal/keyschema"
	"github.com/cuemby/collstore/pkg/collstore"
)

// resolveURL returns the --url flag value, falling back to COLLSTORE_URL.
func resolveURL(cmd *cobra.Command) (string, error) {
	url, _ := cmd.Flags().GetString("url")
	if url == "" {
		url = os.Getenv("COLLSTORE_URL")
	}
	if url == "" {
		return "", fmt.Errorf("no connection URL: pass --url or set COLLSTORE_URL")
	}
	return url, nil
}

// schemaFromFlags builds a keyschema.Schema from the --unique and --index
// persistent flags.
func schemaFromFlags(cmd *cobra.Command) (keyschema.Schema, error) {
	unique, _ := cmd.Flags().GetStringSlice("unique")
	indexed, _ := cmd.Flags().GetStringSlice("index")

	cfg := make(map[string]keyschema.FieldOptions, len(unique)+len(indexed))
	for _, attr := range indexed {
		cfg[attr] = keyschema.FieldOptions{}
	}
	for _, attr := range unique {
		cfg[attr] = keyschema.FieldOptions{Unique: true}
	}
	return keyschema.New(cfg)
}

// openCollection resolves the connection URL and schema from flags, connects,
// and opens the named collection. The caller is responsible for closing db.
func openCollection(ctx context.Context, cmd *cobra.Command, name string) (collstore.Database, collstore.Collection, error) {
	url, err := resolveURL(cmd)
	if err != nil {
		return nil, nil, err
	}
	schema, err := schemaFromFlags(cmd)
	if err != nil {
		return nil, nil, err
	}

	db, err := collstore.Connect(ctx, url)
	if err != nil {
		return nil, nil, err
	}

	coll, err := db.Collection(ctx, name, schema)
	if err != nil {
		_ = db.Close(ctx)
		return nil, nil, err
	}
	return db, coll, nil
}
