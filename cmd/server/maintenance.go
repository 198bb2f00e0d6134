package main

import (
	"errors"
	"fmt"

	"github.com/sileshop/backend/internal/service"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the database schema and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.UseMemoryStore() {
			return errors.New("DATABASE_URL is required for migrate")
		}
		st, err := openStores(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		st.close()
		fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
		return nil
	},
}

var expireCmd = &cobra.Command{
	Use:   "expire",
	Short: "Flip every ended slot to expired and print how many changed",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.UseMemoryStore() {
			return errors.New("DATABASE_URL is required for expire")
		}
		st, err := openStores(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer st.close()

		n, err := service.NewSweeper(st.slots, nil, 0, nil).RunOnce(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d slots expired\n", n)
		return nil
	},
}
