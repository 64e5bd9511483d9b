package main

import (
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var (
	queryTenant   string
	queryPage     int
	queryPageSize int
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Print one page of a tour operator's pricing rows",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		tenantID, err := uuid.Parse(queryTenant)
		if err != nil {
			return eris.Wrap(err, "invalid --tenant")
		}

		env, err := initApp(ctx, "query")
		if err != nil {
			return err
		}
		defer env.Close()

		result, err := env.Query.Query(ctx, tenantID, queryPage, queryPageSize)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), result)
	},
}

func init() {
	queryCmd.Flags().StringVar(&queryTenant, "tenant", "", "tour operator id (uuid)")
	queryCmd.Flags().IntVar(&queryPage, "page", 1, "page number, starting at 1")
	queryCmd.Flags().IntVar(&queryPageSize, "page-size", 0, "rows per page (default from config)")
	_ = queryCmd.MarkFlagRequired("tenant")
	rootCmd.AddCommand(queryCmd)
}
