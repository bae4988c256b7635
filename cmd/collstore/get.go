package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var getCmd = &cobra.Command{
	Use:   "get <collection> <attr> <value>",
	Short: "Fetch the one record matching attr == value",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		db, coll, err := openCollection(ctx, cmd, args[0])
		if err != nil {
			return err
		}
		defer db.Close(ctx)

		rec, ok, err := coll.Get(ctx, args[1], parseValue(args[2]))
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("no record with %s = %s", args[1], args[2])
		}
		return printJSON(rec)
	},
}

func printJSON(v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}
