package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	apikeyName  string
	apikeyEmail string
)

var apikeyCmd = &cobra.Command{
	Use:   "apikey",
	Short: "Manage query API keys",
}

var apikeyCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new API key",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return err
		}

		key, err := st.CreateAPIKey(ctx, apikeyName, apikeyEmail)
		if err != nil {
			return err
		}

		fmt.Printf("created api key %q\n%s\n", key.Name, key.Key)
		return nil
	},
}

func init() {
	apikeyCreateCmd.Flags().StringVar(&apikeyName, "name", "", "key holder name")
	apikeyCreateCmd.Flags().StringVar(&apikeyEmail, "email", "", "key holder email")
	apikeyCreateCmd.MarkFlagRequired("name")
	apikeyCmd.AddCommand(apikeyCreateCmd)
	rootCmd.AddCommand(apikeyCmd)
}
