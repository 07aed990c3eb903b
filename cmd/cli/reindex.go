package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/mistapp/backend/internal/database"
	"github.com/mistapp/backend/internal/search"
	"github.com/spf13/cobra"
)

var reindexSince time.Duration

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Push posts into the Elasticsearch index",
	Long:  "Reindexes every post, or only posts created within --since, into ELASTICSEARCH_URL.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, db, err := openDB()
		if err != nil {
			return err
		}
		defer database.Close()

		if !cfg.Search.Enabled {
			return fmt.Errorf("ELASTICSEARCH_URL is not set")
		}
		client, err := search.NewClient(cfg.Search.URL, http.DefaultTransport)
		if err != nil {
			return err
		}
		if err := client.InitializeIndices(cmd.Context()); err != nil {
			return err
		}

		var since time.Time
		if reindexSince > 0 {
			since = time.Now().Add(-reindexSince)
		}
		n, err := search.Reindex(cmd.Context(), db, client, since)
		if err != nil {
			return err
		}
		fmt.Println(success(fmt.Sprintf("Indexed %d posts", n)))
		return nil
	},
}

func init() {
	reindexCmd.Flags().DurationVar(&reindexSince, "since", 0, "Only reindex posts created within this duration (0 = all)")
}
