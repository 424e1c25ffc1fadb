package kv

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/ValentinKolb/dLayer/lib/session"
	"github.com/VictoriaMetrics/metrics"
	"github.com/spf13/cobra"
)

var (
	setCmd = &cobra.Command{
		Use:   "set [key] [value]",
		Short: "Sets the value for a key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := root.Write(session.Bytes(args[0]), session.Bytes(args[1])); err != nil {
				return err
			}
			fmt.Println("set successfully")
			return nil
		},
	}
	getCmd = &cobra.Command{
		Use:   "get [key]",
		Short: "Reads the value for a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			value, found, err := root.Read(session.Bytes(key))
			if err != nil {
				return err
			}
			fmt.Printf("key=%s, found=%v, resp=%s\n", key, found, value)
			return nil
		},
	}
	delCmd = &cobra.Command{
		Use:   "del [key]",
		Short: "Deletes a key value pair",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := root.Erase(session.Bytes(args[0])); err != nil {
				return err
			}
			fmt.Println("delete successfully")
			return nil
		},
	}
	scanCmd = &cobra.Command{
		Use:   "scan",
		Short: "Lists key value pairs in key order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			from, _ := cmd.Flags().GetString("from")
			to, _ := cmd.Flags().GetString("to")
			reverse, _ := cmd.Flags().GetBool("reverse")
			limit, _ := cmd.Flags().GetInt("limit")

			n, err := scan(os.Stdout, root, session.IterOptions{
				LowerBound: session.Bytes(from),
				UpperBound: session.Bytes(to),
				Reverse:    reverse,
			}, limit)
			if err != nil {
				return err
			}
			fmt.Printf("(%d entries)\n", n)
			return nil
		},
	}
	statsCmd = &cobra.Command{
		Use:   "stats",
		Short: "Prints database information and overlay metrics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := json.MarshalIndent(database.GetInfo(), "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(info))
			fmt.Println()
			metrics.WritePrometheus(os.Stdout, false)
			return nil
		},
	}
	demoCmd = &cobra.Command{
		Use:   "demo",
		Short: "Writes through an undo stack and commits the result",
		Long: `Writes foo1 directly into the database, pushes a session,
writes foo2 into it, commits the revision and reads both keys back.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return demo(os.Stdout, session.NewUndoStack(root))
		},
	}
)

func init() {
	scanCmd.Flags().String("from", "", "Inclusive lower bound")
	scanCmd.Flags().String("to", "", "Exclusive upper bound")
	scanCmd.Flags().Bool("reverse", false, "Iterate in descending key order")
	scanCmd.Flags().Int("limit", 0, "Maximum number of entries (0 = unlimited)")
}
