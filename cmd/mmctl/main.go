// mmctl — command-line client for the mmsim control API.
//
// Usage:
//
//	mmctl [-addr URL] start [-capital N] [-seed N]
//	mmctl [-addr URL] poll <session-id>
//	mmctl [-addr URL] watch <session-id> [-n ticks]
//	mmctl [-addr URL] trade <session-id> buy|sell [size]
//	mmctl [-addr URL] params <session-id>   (bundle JSON on stdin)
//	mmctl [-addr URL] report <session-id>
//	mmctl [-addr URL] stop <session-id>
//	mmctl [-addr URL] reset <session-id>
//	mmctl [-addr URL] reports
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
)

// client wraps a resty HTTP client pointed at one mmsim instance, with
// retry on transient server errors.
type client struct {
	http *resty.Client
}

func newClient(baseURL string) *client {
	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10 * time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(200 * time.Millisecond).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() >= 500
		}).
		SetHeader("Content-Type", "application/json")

	return &client{http: httpClient}
}

// call performs one request and pretty-prints the JSON response. Non-2xx
// responses are reported with the server's tagged error body.
func (c *client) call(method, path string, body any) error {
	req := c.http.R()
	if body != nil {
		req.SetBody(body)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	if resp.StatusCode() >= 400 {
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode(), resp.String())
	}

	var pretty json.RawMessage = resp.Body()
	out, err := json.MarshalIndent(pretty, "", "  ")
	if err != nil {
		fmt.Println(resp.String())
		return nil
	}
	fmt.Println(string(out))
	return nil
}

func main() {
	addr := flag.String("addr", "http://localhost:8090", "mmsim API base URL")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}

	c := newClient(*addr)
	if err := run(c, args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(c *client, args []string) error {
	switch cmd := args[0]; cmd {
	case "start":
		fs := flag.NewFlagSet("start", flag.ExitOnError)
		capital := fs.Float64("capital", 10000, "initial capital")
		seed := fs.Int64("seed", 42, "simulator seed")
		fs.Parse(args[1:])
		return c.call(http.MethodPost, "/api/sessions", map[string]any{
			"initial_capital": *capital,
			"seed":            *seed,
		})

	case "poll":
		id, err := sessionArg(args)
		if err != nil {
			return err
		}
		return c.call(http.MethodPost, "/api/sessions/"+id+"/poll", nil)

	case "watch":
		id, err := sessionArg(args)
		if err != nil {
			return err
		}
		fs := flag.NewFlagSet("watch", flag.ExitOnError)
		n := fs.Int("n", 10, "number of ticks to poll")
		fs.Parse(args[2:])
		for i := 0; i < *n; i++ {
			if err := c.call(http.MethodPost, "/api/sessions/"+id+"/poll", nil); err != nil {
				return err
			}
		}
		return nil

	case "trade":
		id, err := sessionArg(args)
		if err != nil {
			return err
		}
		if len(args) < 3 {
			return fmt.Errorf("trade needs a side: buy or sell")
		}
		body := map[string]any{"side": args[2]}
		if len(args) > 3 {
			size, err := strconv.ParseInt(args[3], 10, 64)
			if err != nil {
				return fmt.Errorf("bad size %q: %w", args[3], err)
			}
			body["size"] = size
		}
		return c.call(http.MethodPost, "/api/sessions/"+id+"/trade", body)

	case "params":
		id, err := sessionArg(args)
		if err != nil {
			return err
		}
		var bundle json.RawMessage
		if err := json.NewDecoder(os.Stdin).Decode(&bundle); err != nil {
			return fmt.Errorf("read param bundle from stdin: %w", err)
		}
		return c.call(http.MethodPut, "/api/sessions/"+id+"/params", bundle)

	case "report":
		id, err := sessionArg(args)
		if err != nil {
			return err
		}
		return c.call(http.MethodGet, "/api/sessions/"+id+"/report", nil)

	case "stop":
		id, err := sessionArg(args)
		if err != nil {
			return err
		}
		return c.call(http.MethodPost, "/api/sessions/"+id+"/stop", nil)

	case "reset":
		id, err := sessionArg(args)
		if err != nil {
			return err
		}
		return c.call(http.MethodPost, "/api/sessions/"+id+"/reset", nil)

	case "reports":
		return c.call(http.MethodGet, "/api/reports", nil)

	default:
		usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func sessionArg(args []string) (string, error) {
	if len(args) < 2 || args[1] == "" {
		return "", fmt.Errorf("%s needs a session id", args[0])
	}
	return args[1], nil
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: mmctl [-addr URL] <command> [args]

commands:
  start [-capital N] [-seed N]     create a session
  poll <id>                        advance one tick, print snapshot
  watch <id> [-n ticks]            poll repeatedly
  trade <id> buy|sell [size]       manual trade
  params <id>                      update params (bundle JSON on stdin)
  report <id>                      analytics for the current run
  stop <id> | reset <id>           session lifecycle
  reports                          list persisted final reports`)
}
