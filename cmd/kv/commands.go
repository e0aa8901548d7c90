package kv

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ValentinKolb/pxKV/lib/session"
	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var (
	getCmd = &cobra.Command{
		Use:   "get [key]",
		Short: "Reads the value for a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, kvSession.Do("get", args[0]))
		},
	}
	setCmd = &cobra.Command{
		Use:   "set [key] [value]",
		Short: "Sets the value for a key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			setArgs := []any{args[0], args[1]}
			if ex, _ := cmd.Flags().GetInt("ex"); ex > 0 {
				setArgs = append(setArgs, "EX", ex)
			}
			if nx, _ := cmd.Flags().GetBool("nx"); nx {
				setArgs = append(setArgs, "NX")
			}
			return run(cmd, kvSession.Do("set", setArgs...))
		},
	}
	delCmd = &cobra.Command{
		Use:   "del [key...]",
		Short: "Deletes keys and prints how many existed",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, kvSession.Do("del", toAny(args)...))
		},
	}
	getDefaultCmd = &cobra.Command{
		Use:   "getdefault [key] [default]",
		Short: "Reads the value for a key, or the default if the key does not exist",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, kvSession.GetDefault(args[0], args[1], nil))
		},
	}
	getJSONCmd = &cobra.Command{
		Use:   "getjson [key]",
		Short: "Reads the value for a key and decodes it as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := await(cmd, kvSession.GetJSON(args[0], nil))
			if err != nil {
				return err
			}
			out, err := json.MarshalIndent(res, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
	setJSONCmd = &cobra.Command{
		Use:   "setjson [key] [json]",
		Short: "Validates a JSON document and stores it under a key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var obj any
			if err := json.Unmarshal([]byte(args[1]), &obj); err != nil {
				return fmt.Errorf("value is not valid JSON: %w", err)
			}
			return run(cmd, kvSession.SetJSON(args[0], obj, nil))
		},
	}
	searchCmd = &cobra.Command{
		Use:   "search [pattern]",
		Short: "Prints all keys matching a glob pattern together with their values",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stream, _ := cmd.Flags().GetBool("stream")
			limit, _ := cmd.Flags().GetInt("limit")

			if !stream && limit <= 0 {
				return run(cmd, kvSession.GetSearch(args[0], nil, nil))
			}

			n := 0
			_, err := await(cmd, kvSession.GetSearch(args[0], func(key string, value any, next func()) bool {
				n++
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", key, format(value, ""))
				if limit > 0 && n >= limit {
					return false
				}
				next()
				return true
			}, nil))
			return err
		},
	}
	delSearchCmd = &cobra.Command{
		Use:   "delsearch [pattern]",
		Short: "Deletes all keys matching a glob pattern",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, kvSession.DelSearch(args[0], nil))
		},
	}
	doCmd = &cobra.Command{
		Use:   "do [command] [args...]",
		Short: "Runs any store command (see 'kv commands')",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, kvSession.Do(args[0], toAny(args[1:])...))
		},
	}
	multiCmd = &cobra.Command{
		Use:   "multi [command...]",
		Short: "Runs several commands as one transaction, e.g. multi \"set a 1\" \"incr a\"",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entry := "multi"
			if batch, _ := cmd.Flags().GetBool("batch"); batch {
				entry = "batch"
			}
			tx, ok := kvSession.Tx(entry)
			if !ok {
				return fmt.Errorf("invalid transaction entry %s", entry)
			}

			for _, line := range args {
				fields := strings.Fields(line)
				if len(fields) == 0 {
					continue
				}
				tx.Queue(fields[0], toAny(fields[1:])...)
			}

			finalize, _ := cmd.Flags().GetString("finalize")
			exec, ok := tx.Command(finalize)
			if !ok {
				return fmt.Errorf("invalid finalize alias %s (expected exec, exec_atomic or exec_transaction)", finalize)
			}
			return run(cmd, exec())
		},
	}
	commandsCmd = &cobra.Command{
		Use:   "commands",
		Short: "Lists the commands the configured store supports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			for _, name := range kvSession.Commands() {
				if name == strings.ToLower(name) {
					fmt.Fprintln(cmd.OutOrStdout(), name)
				}
			}
			return nil
		},
	}
)

func init() {
	setCmd.Flags().Int("ex", 0, "Expire the key after this many seconds")
	setCmd.Flags().Bool("nx", false, "Only set the key if it does not exist")

	searchCmd.Flags().Bool("stream", false, "Print the entries while they are fetched")
	searchCmd.Flags().Int("limit", 0, "Stop after this many entries (implies --stream)")

	multiCmd.Flags().Bool("batch", false, "Create the transaction as a batch (exec is not atomic)")
	multiCmd.Flags().String("finalize", "exec", "Finalize alias to send the transaction with")
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// run waits for p and prints its result
func run(cmd *cobra.Command, p *session.Promise) error {
	res, err := await(cmd, p)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), format(res, ""))
	return nil
}

func toAny(args []string) []any {
	out := make([]any, len(args))
	for i, a := range args {
		out[i] = a
	}
	return out
}

// format renders a reply the way redis-cli does
func format(v any, indent string) string {
	switch v := v.(type) {
	case nil:
		return "(nil)"
	case string:
		return strconv.Quote(v)
	case []byte:
		return strconv.Quote(string(v))
	case int64:
		return fmt.Sprintf("(integer) %d", v)
	case error:
		return fmt.Sprintf("(error) %v", v)
	case *session.Mapping:
		if v.Len() == 0 {
			return "(empty mapping)"
		}
		var sb strings.Builder
		v.Range(func(key string, value any) bool {
			if sb.Len() > 0 {
				sb.WriteString("\n" + indent)
			}
			sb.WriteString(fmt.Sprintf("%s: %s", key, format(value, indent+"  ")))
			return true
		})
		return sb.String()
	case []any:
		if len(v) == 0 {
			return "(empty array)"
		}
		var sb strings.Builder
		for i, item := range v {
			if i > 0 {
				sb.WriteString("\n" + indent)
			}
			sb.WriteString(fmt.Sprintf("%d) %s", i+1, format(item, indent+"   ")))
		}
		return sb.String()
	default:
		return fmt.Sprint(v)
	}
}
