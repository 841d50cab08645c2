package main

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/go-kit/log"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/coffersTech/photon/internal/config"
	"github.com/coffersTech/photon/internal/controller"
	"github.com/coffersTech/photon/internal/engine"
)

var (
	datasetName string
	queryJSON   string
	filterExpr  string
	returning   []string
	limit       int
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Run one query against a dataset and print the rows as JSON",
	Args:  cobra.NoArgs,
	RunE:  runQuery,
}

var fieldsCmd = &cobra.Command{
	Use:   "fields",
	Short: "List the fields of a dataset",
	Args:  cobra.NoArgs,
	RunE:  runFields,
}

func init() {
	for _, c := range []*cobra.Command{queryCmd, fieldsCmd} {
		c.Flags().StringVarP(&datasetName, "dataset", "d", "", "Dataset name")
		_ = c.MarkFlagRequired("dataset")
		rootCmd.AddCommand(c)
	}
	queryCmd.Flags().StringVar(&queryJSON, "query", "", "Query as a JSON document")
	queryCmd.Flags().StringVarP(&filterExpr, "filter", "f", "", "NanoQL filter expression")
	queryCmd.Flags().StringSliceVarP(&returning, "returning", "r", nil, "Fields to return")
	queryCmd.Flags().IntVar(&limit, "limit", 0, "Stop after this many rows (0 means no limit)")
}

func openDataset(logger log.Logger) (*engine.Dataset, error) {
	cfg, err := config.LoadFile(filepath.Join(configDir, datasetName+controller.ConfigExt))
	if err != nil {
		return nil, err
	}
	return controller.Build(cfg, logger, nil)
}

func runQuery(cmd *cobra.Command, args []string) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	ds, err := openDataset(logger)
	if err != nil {
		return err
	}

	q := &engine.Query{}
	if queryJSON != "" {
		if q, err = engine.ParseQuery([]byte(queryJSON)); err != nil {
			return err
		}
	}
	if filterExpr != "" {
		if err := q.AddNanoQL(filterExpr); err != nil {
			return err
		}
	}
	for _, f := range returning {
		q.AddReturning(f)
	}
	if cmd.Flags().Changed("limit") {
		if limit < 0 {
			return errors.New("limit must not be negative")
		}
		q.Limit = limit
	}

	rs, err := ds.Query(cmd.Context(), q)
	if err != nil {
		return err
	}

	stream := jsoniter.NewStream(jsoniter.ConfigCompatibleWithStandardLibrary, os.Stdout, 4096)
	stream.WriteObjectStart()
	stream.WriteObjectField("results")
	rs.WriteTo(stream)
	stream.WriteMore()
	stream.WriteObjectField("stats")
	rs.Stats.WriteTo(stream)
	stream.WriteObjectEnd()
	stream.WriteRaw("\n")
	return stream.Flush()
}

func runFields(cmd *cobra.Command, args []string) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	ds, err := openDataset(logger)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "FIELD\tTYPE")
	for _, f := range ds.Fields() {
		fmt.Fprintf(w, "%s\t%s\n", f.Name, f.Type)
	}
	return w.Flush()
}
