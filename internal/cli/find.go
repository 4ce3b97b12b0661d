package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/clqa/internal/kind"
)

// FindOptions holds flags for the find command.
type FindOptions struct {
	*RootOptions
	storeFlags
}

// findResult is the JSON payload of find.
type findResult struct {
	Kind    string          `json:"kind"`
	Query   json.RawMessage `json:"query"`
	Records []recordView    `json:"records"`
}

// NewFindCommand creates the find command.
func NewFindCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &FindOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "find",
		Short: "List records matching a parameter query",
		Long: `List the records of a result store whose parameters contain every
--param with an equal value. Without --param every record is listed.
Nothing is computed.

Examples:
  clqa find --sim /data/qa/run1 -p nside=128
  clqa find --sim /data/qa/run1 --kind shear -p minz=0.5 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFind(opts, cmd)
		},
	}

	opts.storeFlags.register(cmd, kind.CCL.Name)

	return cmd
}

func runFind(opts *FindOptions, cmd *cobra.Command) error {
	query, err := opts.query()
	if err != nil {
		return err
	}

	sess, err := opts.openSession(cmd, &opts.storeFlags)
	if err != nil {
		return err
	}
	defer sess.Close()

	recs, err := sess.find(query)
	if err != nil {
		return err
	}

	f := opts.formatter(cmd)
	if f.Format == "json" {
		result := findResult{Kind: sess.kind.Name, Query: rawParams(query), Records: []recordView{}}
		for _, rec := range recs {
			v, err := newRecordView(rec)
			if err != nil {
				return WrapExitError(ExitFailure, "failed to read record", err)
			}
			result.Records = append(result.Records, v)
		}
		return f.Success(result)
	}

	if len(recs) == 0 {
		return f.Success(fmt.Sprintf("No %s records match %s in %s", sess.kind.Name, query, sess.store.Root()))
	}
	t := Table{Header: []string{"ID", "ARTIFACTS", "PARAMS"}}
	for _, rec := range recs {
		arts, err := rec.Artifacts()
		if err != nil {
			return WrapExitError(ExitFailure, "failed to read record", err)
		}
		t.Rows = append(t.Rows, []string{rec.ID, strings.Join(arts, ","), rec.Params.Without("id").String()})
	}
	return f.Success(t)
}
