package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"time"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/matheus3301/mailcore/internal/account"
	"github.com/matheus3301/mailcore/internal/api"
	"github.com/matheus3301/mailcore/internal/lock"
	"github.com/matheus3301/mailcore/internal/message"
	"github.com/matheus3301/mailcore/internal/retention"
)

func main() {
	accountFlag := flag.String("account", "", "account name (overrides config default)")
	jsonFlag := flag.Bool("json", false, "output in JSON format")
	flag.Parse()

	name := account.Resolve(*accountFlag)
	if err := account.ValidateName(name); err != nil {
		fatalf("%v", err)
	}

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	if _, _, held := lock.Holder(account.Dir(name)); !held {
		fatalf("no daemon running for account %q (start mailcored --account %s)", name, name)
	}

	c, err := api.Dial(account.SocketPath(name))
	if err != nil {
		fatalf("cannot connect to daemon for account %q: %v", name, err)
	}
	defer func() { _ = c.Close() }()

	if args[0] == "watch" {
		prefix := ""
		if len(args) > 1 {
			prefix = args[1]
		}
		cmdWatch(c, prefix)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	out, err := run(ctx, c, args)
	if err != nil {
		fatalf("%v", err)
	}
	if *jsonFlag {
		outputJSON(out)
		return
	}
	printHuman(args[0], out)
}

func run(ctx context.Context, c *api.Client, args []string) (*structpb.Struct, error) {
	switch args[0] {
	case "status":
		fields := map[string]any{}
		if len(args) > 1 {
			secs, err := strconv.ParseUint(args[1], 10, 32)
			if err != nil {
				return nil, fmt.Errorf("invalid age %q", args[1])
			}
			fields["older_than_seconds"] = uint32(secs)
			fields["from_server"] = len(args) > 2 && args[2] == "server"
		}
		return c.Call(ctx, api.MethodStatus, fields)
	case "seen":
		return callIDs(ctx, c, api.MethodMarkSeen, args[1:], nil)
	case "star", "unstar":
		return callIDs(ctx, c, api.MethodStar, args[1:], map[string]any{"star": args[0] == "star"})
	case "delete":
		return callIDs(ctx, c, api.MethodDelete, args[1:], nil)
	case "info", "summary":
		if len(args) != 2 {
			return nil, fmt.Errorf("usage: mailctl %s <msg-id>", args[0])
		}
		id, err := parseID(args[1])
		if err != nil {
			return nil, err
		}
		method := api.MethodInfo
		if args[0] == "summary" {
			method = api.MethodSummary
		}
		return c.Call(ctx, method, map[string]any{"id": uint32(id)})
	case "receipt":
		if len(args) != 3 {
			return nil, errors.New("usage: mailctl receipt <contact-id> <message-id-header>")
		}
		from, err := strconv.ParseUint(args[1], 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid contact id %q", args[1])
		}
		return c.Call(ctx, api.MethodReceipt, map[string]any{"from": uint32(from), "mid": args[2]})
	case "housekeeping":
		return c.Call(ctx, api.MethodHousekeeping, nil)
	case "empty":
		var flags uint32
		for _, f := range args[1:] {
			switch f {
			case "mvbox":
				flags |= retention.EmptyMvbox
			case "inbox":
				flags |= retention.EmptyInbox
			default:
				return nil, fmt.Errorf("unknown folder %q", f)
			}
		}
		return c.Call(ctx, api.MethodEmptyServer, map[string]any{"flags": flags})
	default:
		printUsage()
		return nil, fmt.Errorf("unknown command: %s", args[0])
	}
}

func callIDs(ctx context.Context, c *api.Client, method string, args []string, extra map[string]any) (*structpb.Struct, error) {
	if len(args) == 0 {
		return nil, errors.New("at least one message id is required")
	}
	ids := make([]any, 0, len(args))
	for _, a := range args {
		id, err := parseID(a)
		if err != nil {
			return nil, err
		}
		ids = append(ids, uint32(id))
	}
	fields := map[string]any{"ids": ids}
	for k, v := range extra {
		fields[k] = v
	}
	return c.Call(ctx, method, fields)
}

func parseID(s string) (message.MsgID, error) {
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid message id %q", s)
	}
	return message.MsgID(n), nil
}

func printHuman(cmd string, out *structpb.Struct) {
	f := out.GetFields()
	switch cmd {
	case "status":
		fmt.Printf("Account:  %s\n", f["account"].GetStringValue())
		fmt.Printf("Uptime:   %.0fms\n", f["uptime_ms"].GetNumberValue())
		fmt.Printf("Messages: %.0f\n", f["messages"].GetNumberValue())
		fmt.Printf("Requests: %.0f\n", f["deaddrop"].GetNumberValue())
		if v, ok := f["deletable"]; ok {
			fmt.Printf("Deletable: %.0f\n", v.GetNumberValue())
		}
	case "info":
		fmt.Print(f["text"].GetStringValue())
	case "summary":
		if t := f["text1"].GetStringValue(); t != "" {
			fmt.Printf("%s: ", t)
		}
		fmt.Printf("%s [%s]\n", f["text2"].GetStringValue(), f["state"].GetStringValue())
	case "receipt":
		if f["fired"].GetBoolValue() {
			fmt.Println("Message marked as read.")
		} else {
			fmt.Println("Receipt recorded.")
		}
	case "housekeeping":
		fmt.Printf("Removed %.0f messages, %.0f receipts, %.0f locations.\n",
			f["messages"].GetNumberValue(), f["receipts"].GetNumberValue(), f["locations"].GetNumberValue())
	default:
		if f["ok"].GetBoolValue() {
			fmt.Println("OK")
		} else {
			fmt.Println("Nothing to do.")
		}
	}
}

func cmdWatch(c *api.Client, prefix string) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	err := c.WatchEvents(ctx, prefix, func(evt *structpb.Struct) error {
		outputJSON(evt)
		return nil
	})
	if err != nil && ctx.Err() == nil {
		fatalf("%v", err)
	}
}

func outputJSON(m *structpb.Struct) {
	b, err := protojson.MarshalOptions{Multiline: true, Indent: "  "}.Marshal(m)
	if err != nil {
		fmt.Fprintf(os.Stderr, "json encode error: %v\n", err)
		return
	}
	fmt.Println(string(b))
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
	os.Exit(1)
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: mailctl [--account <name>] [--json] <command>")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "commands:")
	fmt.Fprintln(os.Stderr, "  status [secs [server]]     Show account counters, optionally a deletion estimate")
	fmt.Fprintln(os.Stderr, "  seen <id>...               Mark messages as seen")
	fmt.Fprintln(os.Stderr, "  star|unstar <id>...        Star or unstar messages")
	fmt.Fprintln(os.Stderr, "  delete <id>...             Delete messages")
	fmt.Fprintln(os.Stderr, "  info <id>                  Show message details")
	fmt.Fprintln(os.Stderr, "  summary <id>               Show the chat-list preview of a message")
	fmt.Fprintln(os.Stderr, "  receipt <contact> <mid>    Inject a read receipt")
	fmt.Fprintln(os.Stderr, "  housekeeping               Purge deleted messages now")
	fmt.Fprintln(os.Stderr, "  empty mvbox|inbox...       Empty server folders")
	fmt.Fprintln(os.Stderr, "  watch [prefix]             Stream events (default: msg)")
}
