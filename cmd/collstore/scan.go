package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cuemby/collstore/pkg/collstore"
)

var scanCmd = &cobra.Command{
	Use:   "scan <collection> [attr value]",
	Short: "List every record, or every record matching attr == value",
	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) == 1 || len(args) == 3 {
			return nil
		}
		return fmt.Errorf("scan takes either <collection> or <collection> <attr> <value>")
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		db, coll, err := openCollection(ctx, cmd, args[0])
		if err != nil {
			return err
		}
		defer db.Close(ctx)

		var attr string
		var value any
		if len(args) == 3 {
			attr, value = args[1], parseValue(args[2])
		}

		iter, err := coll.GetAll(ctx, attr, value)
		if err != nil {
			return err
		}
		recs, err := collstore.CollectAll(ctx, iter)
		if err != nil {
			return err
		}
		return printJSON(recs)
	},
}
