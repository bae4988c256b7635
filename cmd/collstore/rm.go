package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var rmCmd = &cobra.Command{
	Use:   "rm <collection> <attr> <value>",
	Short: "Delete every record matching attr == value",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		db, coll, err := openCollection(ctx, cmd, args[0])
		if err != nil {
			return err
		}
		defer db.Close(ctx)

		n, err := coll.Remove(ctx, args[1], parseValue(args[2]))
		if err != nil {
			return err
		}
		fmt.Printf("removed %d record(s)\n", n)
		return nil
	},
}
