package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/cuemby/collstore/pkg/collstore"
)

var putCmd = &cobra.Command{
	Use:   "put <collection> <json-record>",
	Short: "Add a record, or upsert it by id with --upsert",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		db, coll, err := openCollection(ctx, cmd, args[0])
		if err != nil {
			return err
		}
		defer db.Close(ctx)

		var rec collstore.Record
		if err := json.Unmarshal([]byte(args[1]), &rec); err != nil {
			return fmt.Errorf("invalid record JSON: %w", err)
		}

		upsert, _ := cmd.Flags().GetBool("upsert")
		if !upsert {
			if _, ok := rec[collstore.IDField]; !ok {
				rec[collstore.IDField] = uuid.New().String()
			}
			return coll.Add(ctx, rec)
		}

		id, ok := rec[collstore.IDField]
		if !ok {
			return fmt.Errorf("upsert requires the record to carry %q", collstore.IDField)
		}
		return coll.Update(ctx, collstore.IDField, id, rec, collstore.WithUpsert())
	},
}

func init() {
	putCmd.Flags().Bool("upsert", false, "Insert-if-absent by id instead of failing on a duplicate")
}
