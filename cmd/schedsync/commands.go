package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"schedsync/internal/event"
	"schedsync/internal/ics"
	appLog "schedsync/internal/log"
	"schedsync/internal/store"
	"schedsync/internal/web"
)

// filterFlags are shared by the commands that fetch.
type filterFlags struct {
	user       string
	categories []int
	from, to   string
}

func (f *filterFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.user, "user", "u", "", "Owner id (defaults to config user_id)")
	cmd.Flags().IntSliceVar(&f.categories, "category", nil, "Restrict to category value (repeatable)")
	cmd.Flags().StringVar(&f.from, "from", "", "Range start (requires --to)")
	cmd.Flags().StringVar(&f.to, "to", "", "Range end (requires --from)")
}

func (f *filterFlags) apply(a *app) {
	fs := a.store.Filter()
	fs.SetCategories(f.categories...)
	var bounds []string
	for _, b := range []string{f.from, f.to} {
		if b != "" {
			bounds = append(bounds, b)
		}
	}
	fs.SetDateRange(bounds...)
}

func newFetchCmd(a *app) *cobra.Command {
	var (
		ff      filterFlags
		visible []int
	)
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch events matching the filter and print them as JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			user, err := a.userID(ff.user)
			if err != nil {
				return err
			}
			ff.apply(a)
			if cmd.Flags().Changed("visible") {
				a.store.Filter().SetVisible(visible...)
			}

			if _, err := a.store.Fetch(cmd.Context(), user); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), a.store.Visible())
		},
	}
	ff.register(cmd)
	cmd.Flags().IntSliceVar(&visible, "visible", nil, "Only print these category values (client-side)")
	return cmd
}

func newAddCmd(a *app) *cobra.Command {
	var (
		user string
		data string
	)
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create an event, then reload the owner's events",
		RunE: func(cmd *cobra.Command, _ []string) error {
			payload, err := readPayload(cmd.InOrStdin(), data)
			if err != nil {
				return err
			}
			if _, ok := payload["id"]; !ok {
				owner, err := a.userID(user)
				if err != nil {
					return err
				}
				payload["id"] = string(owner)
			}
			if err := a.store.Add(cmd.Context(), payload); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), a.store.Events())
		},
	}
	cmd.Flags().StringVarP(&user, "user", "u", "", "Owner id when the payload has none")
	cmd.Flags().StringVarP(&data, "data", "d", "-", "Event JSON, or - to read stdin")
	return cmd
}

func newUpdateCmd(a *app) *cobra.Command {
	var data string
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Send a full event object, then reload the owner's events",
		RunE: func(cmd *cobra.Command, _ []string) error {
			payload, err := readPayload(cmd.InOrStdin(), data)
			if err != nil {
				return err
			}
			resp, err := a.store.Update(cmd.Context(), payload)
			if err != nil {
				return err
			}
			return printRaw(cmd.OutOrStdout(), resp)
		},
	}
	cmd.Flags().StringVarP(&data, "data", "d", "-", "Event JSON, or - to read stdin")
	return cmd
}

func newRemoveCmd(a *app) *cobra.Command {
	var (
		user string
		sno  int64
	)
	cmd := &cobra.Command{
		Use:   "remove",
		Short: "Delete an event, then reload the owner's events",
		RunE: func(cmd *cobra.Command, _ []string) error {
			owner, err := a.userID(user)
			if err != nil {
				return err
			}
			resp, err := a.store.Remove(cmd.Context(), owner, sno)
			if err != nil {
				return err
			}
			return printRaw(cmd.OutOrStdout(), resp)
		},
	}
	cmd.Flags().StringVarP(&user, "user", "u", "", "Owner id (defaults to config user_id)")
	cmd.Flags().Int64Var(&sno, "sno", 0, "Event sequence number")
	_ = cmd.MarkFlagRequired("sno")
	return cmd
}

func newExportCmd(a *app) *cobra.Command {
	var (
		ff  filterFlags
		out string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Fetch events and write them as an iCalendar file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			user, err := a.userID(ff.user)
			if err != nil {
				return err
			}
			ff.apply(a)
			events, err := a.store.Fetch(cmd.Context(), user)
			if err != nil {
				return err
			}

			loc, err := time.LoadLocation(a.cfg.Timezone)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if out != "-" {
				f, err := os.Create(out)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}

			skipped, err := ics.Export(w, events, ics.ExportOptions{
				Name:     "schedule " + user.String(),
				Location: loc,
				Registry: a.registry,
			})
			if err != nil {
				return err
			}
			appLog.Info("ics export done", "events", len(events)-skipped, "skipped", skipped, "out", out)
			return nil
		},
	}
	ff.register(cmd)
	cmd.Flags().StringVarP(&out, "out", "o", "-", "Output file, or - for stdout")
	return cmd
}

func newWatchCmd(a *app) *cobra.Command {
	var ff filterFlags
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Resync the cache on the configured refresh schedule",
		RunE: func(cmd *cobra.Command, _ []string) error {
			user, err := a.userID(ff.user)
			if err != nil {
				return err
			}
			ff.apply(a)
			return a.watch(cmd.Context(), user)
		},
	}
	ff.register(cmd)
	return cmd
}

func newServeCmd(a *app) *cobra.Command {
	var (
		ff     filterFlags
		listen string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Resync on schedule and serve the cache as read-only JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			user, err := a.userID(ff.user)
			if err != nil {
				return err
			}
			ff.apply(a)
			if listen == "" {
				listen = a.cfg.Listen
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			srv := web.NewServer(a.store, a.registry, user)
			errCh := make(chan error, 1)
			go func() {
				err := srv.ListenAndServe(ctx, listen)
				cancel()
				errCh <- err
			}()

			if err := a.watch(ctx, user); err != nil {
				return err
			}
			return <-errCh
		},
	}
	ff.register(cmd)
	cmd.Flags().StringVar(&listen, "listen", "", "HTTP listen address (overrides config if set)")
	return cmd
}

// watch fetches once, then on every cron tick, until ctx is canceled.
// Failed fetches are logged and leave the cache as it was.
func (a *app) watch(ctx context.Context, user event.ID) error {
	resync := func() {
		events, err := a.store.Fetch(ctx, user)
		if err != nil {
			appLog.Error("scheduled resync failed", err, "user", user)
			return
		}
		appLog.Info("scheduled resync", "user", user, "count", len(events))
	}

	c := cron.New()
	if _, err := c.AddFunc(a.cfg.RefreshCron, resync); err != nil {
		return fmt.Errorf("invalid refresh schedule %q: %w", a.cfg.RefreshCron, err)
	}

	resync()
	c.Start()
	appLog.Info("watching", "user", user, "refresh", a.cfg.RefreshCron)

	<-ctx.Done()
	<-c.Stop().Done()
	appLog.Info("watch stopped", "user", user)
	return nil
}

// readPayload decodes an event object from data, or from in when data is
// "-". Numbers are kept as json.Number so they are re-sent unchanged.
func readPayload(in io.Reader, data string) (store.Payload, error) {
	var r io.Reader = strings.NewReader(data)
	if data == "-" {
		r = in
	}
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var p store.Payload
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("decode event payload: %w", err)
	}
	if p == nil {
		return nil, fmt.Errorf("decode event payload: empty object")
	}
	return p, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printRaw(w io.Writer, resp store.Response) error {
	if len(bytes.TrimSpace(resp)) == 0 {
		return nil
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, resp, "", "  "); err != nil {
		_, err = fmt.Fprintln(w, string(resp))
		return err
	}
	buf.WriteByte('\n')
	_, err := buf.WriteTo(w)
	return err
}
