package kv

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/ValentinKolb/dLayer/lib/session"
	"github.com/VictoriaMetrics/metrics"
	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run [file]",
	Short: "Runs a script of undo stack operations",
	Long: `Runs a script of undo stack operations, one per line. Without a file
(or with "-") the script is read from stdin. Lines starting with # are ignored.

Operations:
  push                 push a new session, prints its revision
  set <key> <value>    write into the top layer
  del <key>            erase from the top layer
  get <key>            read through the top layer
  scan [from] [to]     list the merged view of the top layer
  rscan [from] [to]    like scan, in descending order
  commit [revision]    commit up to the revision (default: top)
  undo                 discard the top session
  squash               merge the top two sessions
  rev                  print the top revision
  flush                write buffered root writes to the database

Pushed sessions that are still on the stack at the end are discarded.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var in io.Reader = os.Stdin
		if len(args) == 1 && args[0] != "-" {
			file, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer file.Close()
			in = file
		}

		stack := session.NewUndoStack(root)
		err := runScript(stack, in, os.Stdout)
		err = errors.CombineErrors(err, stack.Close())

		if showMetrics, _ := cmd.Flags().GetBool("metrics"); showMetrics {
			fmt.Println()
			metrics.WritePrometheus(os.Stdout, false)
		}
		return err
	},
}

func init() {
	runCmd.Flags().Bool("metrics", false, "Print overlay metrics after the script")
}

// runScript executes one stack operation per line of in
func runScript(stack *session.UndoStack, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		if err := execute(stack, strings.Fields(text), out); err != nil {
			return errors.Wrapf(err, "line %d (%s)", line, text)
		}
	}
	return scanner.Err()
}

func execute(stack *session.UndoStack, fields []string, out io.Writer) error {
	op, args := fields[0], fields[1:]
	need := func(lo, hi int) error {
		if len(args) < lo || len(args) > hi {
			return errors.Newf("%s takes %d to %d arguments, got %d", op, lo, hi, len(args))
		}
		return nil
	}

	switch op {
	case "push":
		if err := need(0, 0); err != nil {
			return err
		}
		fmt.Fprintf(out, "rev %d\n", stack.Push())

	case "set":
		if len(args) < 2 {
			return errors.New("set takes a key and a value")
		}
		return stack.Top().Write(session.Bytes(args[0]), session.Bytes(strings.Join(args[1:], " ")))

	case "del":
		if err := need(1, 1); err != nil {
			return err
		}
		return stack.Top().Erase(session.Bytes(args[0]))

	case "get":
		if err := need(1, 1); err != nil {
			return err
		}
		value, found, err := stack.Top().Read(session.Bytes(args[0]))
		if err != nil {
			return err
		}
		if found {
			fmt.Fprintf(out, "%s=%s\n", args[0], value)
		} else {
			fmt.Fprintf(out, "%s not found\n", args[0])
		}

	case "scan", "rscan":
		if err := need(0, 2); err != nil {
			return err
		}
		opts := session.IterOptions{Reverse: op == "rscan"}
		if len(args) > 0 {
			opts.LowerBound = session.Bytes(args[0])
		}
		if len(args) > 1 {
			opts.UpperBound = session.Bytes(args[1])
		}
		_, err := scan(out, stack.Top(), opts, 0)
		return err

	case "commit":
		if err := need(0, 1); err != nil {
			return err
		}
		rev := stack.Revision()
		if len(args) == 1 {
			n, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return errors.Wrap(err, "revision must be a number")
			}
			rev = session.Revision(n)
		}
		return stack.Commit(rev)

	case "undo":
		if err := need(0, 0); err != nil {
			return err
		}
		return stack.Undo()

	case "squash":
		if err := need(0, 0); err != nil {
			return err
		}
		return stack.Squash()

	case "rev":
		if err := need(0, 0); err != nil {
			return err
		}
		fmt.Fprintf(out, "rev %d\n", stack.Revision())

	case "flush":
		if err := need(0, 0); err != nil {
			return err
		}
		return stack.Root().Flush()

	default:
		return errors.Newf("unknown operation %q", op)
	}
	return nil
}

// scan prints up to limit entries (0 = all) of layer's merged view
func scan(out io.Writer, layer session.Layer, opts session.IterOptions, limit int) (int, error) {
	it, err := layer.NewIterator(opts)
	if err != nil {
		return 0, err
	}

	n := 0
	for ok := it.First(); ok && (limit <= 0 || n < limit); ok = it.Next() {
		fmt.Fprintf(out, "%s=%s\n", it.Key(), it.Value())
		n++
	}
	return n, errors.CombineErrors(it.Error(), it.Close())
}

// demo writes foo1 at the base of the stack, foo2 into a pushed session and commits it
func demo(out io.Writer, stack *session.UndoStack) error {
	printValue := func(layer session.Layer, key string) error {
		value, found, err := layer.Read(session.Bytes(key))
		if err != nil {
			return err
		}
		if found {
			fmt.Fprintf(out, "{key, value} = {%s, %s}\n", key, value)
		}
		return nil
	}
	writeValue := func(key, value string) error {
		top := stack.Top()
		if err := top.Write(session.Bytes(key), session.Bytes(value)); err != nil {
			return err
		}
		return printValue(top, key)
	}

	// no sessions pushed: this goes straight to the root and cannot be undone
	if err := writeValue("foo1", "hello world"); err != nil {
		return err
	}

	stack.Push()
	if err := writeValue("foo2", "hello again"); err != nil {
		return err
	}
	if err := stack.Commit(stack.Revision()); err != nil {
		return err
	}

	for _, key := range []string{"foo1", "foo2"} {
		if err := printValue(stack.Top(), key); err != nil {
			return err
		}
	}
	return nil
}
